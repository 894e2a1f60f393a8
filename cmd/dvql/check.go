package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/rlch/dvql/analysis"
)

var severityNames = map[analysis.DiagnosticSeverity]string{
	analysis.SeverityError:       "error",
	analysis.SeverityWarning:     "warning",
	analysis.SeverityInformation: "info",
	analysis.SeverityHint:        "hint",
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Aliases:   []string{"vet"},
		Usage:     "Report problems in SQL query files",
		ArgsUsage: "[files...]",
		Flags: append(append(metadataFlags(), colorFlag()),
			&cli.BoolFlag{
				Name:  "offline",
				Usage: "skip the checks that need environment metadata",
			},
		),
		Action: runCheck,
	}
}

func runCheck(ctx context.Context, cmd *cli.Command) error {
	cfg, err := metadataConfig(cmd)
	if err != nil {
		return err
	}

	var schema analysis.Schema

	if !cmd.Bool("offline") && cfg.Environment != "" {
		repo, closeRepo, err := openRepository(cfg)
		if err != nil {
			return err
		}
		defer closeRepo()

		schema = analysis.EnvironmentSchema(repo, cfg.Environment)
	}

	analyzer := analysis.NewAnalyzer(schema)
	out := cmd.Root().Writer
	styles := stylesFor(out, cmd.Bool("color"))

	type source struct{ name, text string }

	var sources []source

	if cmd.Args().Len() == 0 {
		data, err := io.ReadAll(cmd.Root().Reader)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}

		sources = append(sources, source{"<stdin>", string(data)})
	} else {
		files, err := collectFiles(cmd.Args().Slice(), ".sql")
		if err != nil {
			return err
		}

		if len(files) == 0 {
			return errNoQueryFiles
		}

		for _, file := range files {
			data, err := os.ReadFile(file) //#nosec G304 -- paths come from user args
			if err != nil {
				return err
			}

			sources = append(sources, source{file, string(data)})
		}
	}

	var errorCount int

	for _, src := range sources {
		result := analyzer.Analyze(ctx, src.text)
		if result.SchemaError != nil {
			return fmt.Errorf("%s: %w", src.name, result.SchemaError)
		}

		for _, d := range result.Diagnostics {
			severity := severityNames[d.Severity]

			style := styles.Muted
			if d.Severity == analysis.SeverityError {
				style = styles.Error
				errorCount++
			}

			_, _ = fmt.Fprintf(out, "%s:%d:%d: %s: %s %s\n",
				styles.Bold.Render(src.name),
				d.Span.Start.Line, d.Span.Start.Column,
				style.Render(severity),
				d.Message,
				styles.Dim.Render("["+d.Code+"]"))
		}
	}

	if errorCount > 0 {
		return cli.Exit("", 1)
	}

	return nil
}
