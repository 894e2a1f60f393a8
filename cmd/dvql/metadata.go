package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/rlch/dvql"
	"github.com/rlch/dvql/completion"
	"github.com/rlch/dvql/metadata"
)

var (
	errNoEnvironment   = errors.New("no environment: pass --env or set environment in .dvql.yaml")
	errUnknownFormat   = errors.New("unknown output format")
	errNotListable     = errors.New("metadata source cannot list environments")
	errPublishNotRedis = errors.New("publish needs a redis source")
)

// metadataFlags select the metadata source. They override .dvql.yaml.
func metadataFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "path to .dvql.yaml (default: search upwards from the working directory)",
			Sources: cli.EnvVars("DVQL_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "environment id",
			Sources: cli.EnvVars("DVQL_ENVIRONMENT"),
		},
		&cli.StringFlag{
			Name:    "source",
			Usage:   "metadata source (file, redis)",
			Sources: cli.EnvVars("DVQL_METADATA_SOURCE"),
		},
		&cli.StringFlag{
			Name:    "path",
			Usage:   "snapshot directory for the file source",
			Sources: cli.EnvVars("DVQL_METADATA_PATH"),
		},
		&cli.StringFlag{
			Name:    "uri",
			Usage:   "connection URI for the redis source",
			Sources: cli.EnvVars("DVQL_METADATA_URI"),
		},
		&cli.StringFlag{
			Name:    "prefix",
			Usage:   "key prefix for the redis source",
			Sources: cli.EnvVars("DVQL_METADATA_PREFIX"),
		},
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"o"},
			Usage:   "output format (table, json, yaml)",
			Value:   "table",
		},
		colorFlag(),
	}
}

func entitiesCommand() *cli.Command {
	return &cli.Command{
		Name:  "entities",
		Usage: "List the entities of an environment",
		Flags: append(append(metadataFlags(), outputFlags()...),
			&cli.StringFlag{
				Name:    "filter",
				Aliases: []string{"f"},
				Usage:   `expression selecting entities, e.g. 'IsCustomEntity' (default: completion.entity_filter)`,
			},
		),
		Action: runEntities,
	}
}

func attributesCommand() *cli.Command {
	return &cli.Command{
		Name:      "attributes",
		Aliases:   []string{"attrs"},
		Usage:     "List the attributes of an entity",
		ArgsUsage: "<entity>",
		Flags: append(append(metadataFlags(), outputFlags()...),
			&cli.StringFlag{
				Name:    "filter",
				Aliases: []string{"f"},
				Usage:   `expression selecting attributes, e.g. 'AttributeType == "Money"'`,
			},
		),
		Action: runAttributes,
	}
}

func environmentsCommand() *cli.Command {
	return &cli.Command{
		Name:   "envs",
		Usage:  "List the environments of the file source",
		Flags:  metadataFlags(),
		Action: runEnvironments,
	}
}

func publishCommand() *cli.Command {
	return &cli.Command{
		Name:      "publish",
		Usage:     "Copy an environment snapshot file into the redis source",
		ArgsUsage: "<snapshot.yaml>",
		Flags:     metadataFlags(),
		Action:    runPublish,
	}
}

// metadataConfig merges .dvql.yaml with the flags that were set.
func metadataConfig(cmd *cli.Command) (*dvql.Config, error) {
	var (
		cfg *dvql.Config
		err error
	)

	if path := cmd.String("config"); path != "" {
		cfg, err = dvql.LoadConfigFile(path)
	} else {
		cfg, err = dvql.LoadConfig(".")
		if errors.Is(err, dvql.ErrConfigNotFound) {
			cfg, err = &dvql.Config{Metadata: metadata.SourceConfig{Source: "file", Path: "."}}, nil
		}
	}

	if err != nil {
		return nil, err
	}

	overrides := []struct {
		flag string
		dst  *string
	}{
		{"env", &cfg.Environment},
		{"source", &cfg.Metadata.Source},
		{"path", &cfg.Metadata.Path},
		{"uri", &cfg.Metadata.URI},
		{"prefix", &cfg.Metadata.Prefix},
	}

	for _, o := range overrides {
		if cmd.IsSet(o.flag) {
			*o.dst = cmd.String(o.flag)
		}
	}

	return cfg, nil
}

// openRepository returns the configured repository and a function closing it.
func openRepository(cfg *dvql.Config) (metadata.Repository, func(), error) { //nolint:ireturn
	repo, err := metadata.NewRepository(cfg.Metadata)
	if err != nil {
		return nil, nil, err
	}

	closeRepo := func() {}
	if c, ok := repo.(io.Closer); ok {
		closeRepo = func() { _ = c.Close() }
	}

	return repo, closeRepo, nil
}

func runEntities(ctx context.Context, cmd *cli.Command) error {
	cfg, err := metadataConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.Environment == "" {
		return errNoEnvironment
	}

	expr := cfg.Completion.EntityFilter
	if cmd.IsSet("filter") {
		expr = cmd.String("filter")
	}

	filter, err := completion.CompileFilter[metadata.EntitySuggestion](expr)
	if err != nil {
		return err
	}

	repo, closeRepo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	entities, err := repo.EntitySuggestions(ctx, cfg.Environment)
	if err != nil {
		return err
	}

	entities, err = filter.Apply(entities)
	if err != nil {
		return err
	}

	rows := make([][]string, len(entities))
	for i, e := range entities {
		rows[i] = []string{e.LogicalName, e.DisplayName, strconv.FormatBool(e.IsCustomEntity)}
	}

	return render(cmd, entities, []string{"Logical Name", "Display Name", "Custom"}, rows)
}

func runAttributes(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return cli.Exit("attributes takes exactly one entity name", 2) //nolint:mnd // usage error
	}

	cfg, err := metadataConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.Environment == "" {
		return errNoEnvironment
	}

	filter, err := completion.CompileFilter[metadata.AttributeSuggestion](cmd.String("filter"))
	if err != nil {
		return err
	}

	repo, closeRepo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	attrs, err := repo.AttributeSuggestions(ctx, cfg.Environment, cmd.Args().First())
	if err != nil {
		return err
	}

	attrs, err = filter.Apply(attrs)
	if err != nil {
		return err
	}

	rows := make([][]string, len(attrs))
	for i, a := range attrs {
		rows[i] = []string{a.LogicalName, a.DisplayName, a.AttributeType, strconv.FormatBool(a.IsCustomAttribute)}
	}

	return render(cmd, attrs, []string{"Logical Name", "Display Name", "Type", "Custom"}, rows)
}

func runEnvironments(_ context.Context, cmd *cli.Command) error {
	cfg, err := metadataConfig(cmd)
	if err != nil {
		return err
	}

	repo, closeRepo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	files, ok := repo.(*metadata.FileRepository)
	if !ok {
		return fmt.Errorf("%w: %s", errNotListable, cfg.Metadata.Source)
	}

	envs, err := files.Environments()
	if err != nil {
		return err
	}

	for _, env := range envs {
		_, _ = fmt.Fprintln(cmd.Root().Writer, env)
	}

	return nil
}

func runPublish(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return cli.Exit("publish takes exactly one snapshot file", 2) //nolint:mnd // usage error
	}

	cfg, err := metadataConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.Environment == "" {
		return errNoEnvironment
	}

	snap, err := metadata.LoadSnapshot(cmd.Args().First())
	if err != nil {
		return err
	}

	repo, closeRepo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	redisRepo, ok := repo.(*metadata.RedisRepository)
	if !ok {
		return fmt.Errorf("%w, got %q", errPublishNotRedis, cfg.Metadata.Source)
	}

	err = redisRepo.Publish(ctx, cfg.Environment, snap)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.Root().ErrWriter, "published %d entities to %s\n", len(snap.Entities), cfg.Environment)

	return nil
}

// render writes v in the --format the user asked for. Tables are built from
// headers and rows.
func render(cmd *cli.Command, v any, headers []string, rows [][]string) error {
	out := cmd.Root().Writer

	switch cmd.String("format") {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")

		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(out)
		defer func() { _ = enc.Close() }()

		return enc.Encode(v)
	case "table":
		styles := stylesFor(out, cmd.Bool("color"))

		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(styles.Dim).
			Headers(headers...).
			Rows(rows...).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return styles.Bold.Padding(0, 1)
				}

				return lipgloss.NewStyle().Padding(0, 1)
			})

		_, err := fmt.Fprintln(out, t.Render())

		return err
	default:
		return fmt.Errorf("%w: %q", errUnknownFormat, cmd.String("format"))
	}
}
