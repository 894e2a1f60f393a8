package metadata

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownSource is returned by NewRepository for an unregistered source name.
	ErrUnknownSource = errors.New("unknown metadata source")

	// ErrUnknownEnvironment is returned when a source has no metadata for an environment.
	ErrUnknownEnvironment = errors.New("unknown environment")

	// ErrUnknownEntity is returned when an environment has no entity with the requested name.
	ErrUnknownEntity = errors.New("unknown entity")
)

// Repository loads schema metadata for an environment.
// Implementations are idempotent reads; errors are returned as-is to callers.
type Repository interface {
	// EntitySuggestions lists the entities of an environment.
	EntitySuggestions(ctx context.Context, environmentID string) ([]EntitySuggestion, error)

	// AttributeSuggestions lists the attributes of one entity.
	AttributeSuggestions(ctx context.Context, environmentID, entity string) ([]AttributeSuggestion, error)
}

// SourceFactory creates a Repository from source configuration.
type SourceFactory func(cfg SourceConfig) (Repository, error)

// SourceConfig holds settings for a metadata source.
type SourceConfig struct {
	// Source is the registered source name (e.g., "file", "redis").
	Source string `yaml:"source"`

	// Path is the snapshot directory for the file source.
	Path string `yaml:"path,omitempty"`

	// URI is the connection URI for network sources (e.g., "redis://localhost:6379/0").
	URI string `yaml:"uri,omitempty"`

	// Prefix is prepended to every key a network source reads.
	Prefix string `yaml:"prefix,omitempty"`
}

var sources = make(map[string]SourceFactory)

// RegisterSource registers a source factory by name.
func RegisterSource(name string, factory SourceFactory) {
	sources[name] = factory
}

// NewRepository creates a repository from the source named in cfg.
func NewRepository(cfg SourceConfig) (Repository, error) { //nolint:ireturn
	factory, ok := sources[cfg.Source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, cfg.Source)
	}

	return factory(cfg)
}

// RegisteredSources returns the names of all registered sources, sorted.
func RegisteredSources() []string {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func init() {
	RegisterSource("file", func(cfg SourceConfig) (Repository, error) {
		return NewFileRepository(cfg.Path), nil
	})
	RegisterSource("redis", func(cfg SourceConfig) (Repository, error) {
		repo, err := NewRedisRepositoryFromURI(cfg.URI, cfg.Prefix)
		if err != nil {
			return nil, err
		}

		return repo, nil
	})
}
