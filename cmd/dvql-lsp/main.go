// Command dvql-lsp is a Language Server Protocol server for Dataverse SQL and
// FetchXML queries.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rlch/dvql"
	"github.com/rlch/dvql/completion"
	"github.com/rlch/dvql/intellisense"
	"github.com/rlch/dvql/lsp"
	"github.com/rlch/dvql/metadata"
)

var version = "dev"

func main() {
	app := &cli.Command{
		Name:    "dvql-lsp",
		Version: version,
		Usage:   "Language server for Dataverse SQL and FetchXML queries",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to .dvql.yaml (default: search upwards from the working directory)",
				Sources: cli.EnvVars("DVQL_CONFIG"),
			},
		},
		Action: serve,
	}

	err := app.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	// Set up logging to stderr (stdout is for LSP communication)
	config := zap.NewDevelopmentConfig()
	config.OutputPaths = []string{"stderr"}
	config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("log_level: %w", err)
		}

		config.Level = zap.NewAtomicLevelAt(level)
	}

	logger, err := config.Build()
	if err != nil {
		return err
	}

	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("Starting dvql-lsp server",
		zap.String("source", cfg.Metadata.Source),
		zap.String("environment", cfg.Environment))

	err = run(ctx, logger, cfg, os.Stdin, os.Stdout)
	if err != nil {
		logger.Error("Server error", zap.Error(err))
	}

	return err
}

// loadConfig reads path, or the nearest config file. Without one the server
// reads snapshots from the working directory.
func loadConfig(path string) (*dvql.Config, error) {
	if path != "" {
		return dvql.LoadConfigFile(path)
	}

	cfg, err := dvql.LoadConfig(".")
	if errors.Is(err, dvql.ErrConfigNotFound) {
		return &dvql.Config{Metadata: metadata.SourceConfig{Source: "file", Path: "."}}, nil
	}

	return cfg, err
}

func run(ctx context.Context, logger *zap.Logger, cfg *dvql.Config, in io.Reader, out io.Writer) error {
	repo, err := metadata.NewRepository(cfg.Metadata)
	if err != nil {
		return err
	}

	if c, ok := repo.(io.Closer); ok {
		defer func() {
			_ = c.Close()
		}()
	}

	filter, err := completion.CompileFilter[metadata.EntitySuggestion](cfg.Completion.EntityFilter)
	if err != nil {
		return fmt.Errorf("entity_filter: %w", err)
	}

	env := intellisense.NewContextService(logger.Named("context"))

	cache := intellisense.NewCache(repo, env,
		intellisense.WithAttributeTTL(cfg.Completion.AttributeTTL),
		intellisense.WithLogger(logger.Named("cache")),
		intellisense.WithSingleFlight())
	defer cache.Close()

	// Create a JSON-RPC stream connection over stdio
	stream := jsonrpc2.NewStream(&readWriteCloser{in, out})
	conn := jsonrpc2.NewConn(stream)

	// Create a client to send notifications to the editor
	client := protocol.ClientDispatcher(conn, logger)

	// Create our LSP server
	server := lsp.NewServer(client, logger, env, cache,
		lsp.WithNotifier(conn),
		lsp.WithEntityFilter(filter))
	defer server.Close()

	env.SetActiveEnvironment(cfg.Environment)

	// Register the server handler with the connection
	conn.Go(ctx, protocol.ServerHandler(server, nil))

	// Wait for the connection to close
	<-conn.Done()

	return conn.Err()
}

// readWriteCloser wraps separate reader/writer into io.ReadWriteCloser.
type readWriteCloser struct {
	io.Reader
	io.Writer
}

func (rwc *readWriteCloser) Close() error {
	// Close writer if it's closeable
	if c, ok := rwc.Writer.(io.Closer); ok {
		return c.Close()
	}

	return nil
}
