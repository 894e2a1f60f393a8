package dvql

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rlch/dvql/metadata"
)

// Config represents the .dvql.yaml configuration file.
type Config struct {
	// Environment made active when the language server starts
	Environment string `yaml:"environment,omitempty"`

	// Log level for the language server (debug, info, warn, error)
	LogLevel string `yaml:"log_level,omitempty"`

	// Metadata source settings
	Metadata metadata.SourceConfig `yaml:"metadata"`

	// Completion settings
	Completion CompletionConfig `yaml:"completion,omitempty"`
}

// CompletionConfig holds settings for completion.
type CompletionConfig struct {
	// How long attribute lists stay cached (e.g., "5m"). Zero keeps the default.
	AttributeTTL time.Duration `yaml:"attribute_ttl,omitempty"`

	// Expression selecting which entities are suggested,
	// e.g. `IsCustomEntity || LogicalName in ["account", "contact"]`
	EntityFilter string `yaml:"entity_filter,omitempty"`
}

// DefaultConfigNames are the filenames we search for.
var DefaultConfigNames = []string{".dvql.yaml", ".dvql.yml", "dvql.yaml", "dvql.yml"}

// LoadConfig finds and loads the nearest .dvql.yaml walking up from dir.
func LoadConfig(dir string) (*Config, error) {
	path, err := FindConfig(dir)
	if err != nil {
		return nil, err
	}

	return LoadConfigFile(path)
}

// FindConfig searches for a config file starting from dir and walking up.
func FindConfig(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for dir := absDir; ; {
		for _, name := range DefaultConfigNames {
			path := filepath.Join(dir, name)

			_, err := os.Stat(path)
			if err == nil {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrConfigNotFound
		}

		dir = parent
	}
}

// LoadConfigFile loads a config from a specific path.
// A relative metadata path is resolved against the config file's directory.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var cfg Config

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Metadata.Path != "" && !filepath.IsAbs(cfg.Metadata.Path) {
		cfg.Metadata.Path = filepath.Join(filepath.Dir(path), cfg.Metadata.Path)
	}

	return &cfg, nil
}
