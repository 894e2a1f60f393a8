package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/rlch/dvql"
)

func fetchXMLCommand() *cli.Command {
	return &cli.Command{
		Name:      "fetchxml",
		Aliases:   []string{"fx"},
		Usage:     "Translate a SQL query to FetchXML",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "query text (instead of a file or stdin)",
			},
		},
		Action: runFetchXML,
	}
}

func runFetchXML(_ context.Context, cmd *cli.Command) error {
	query, err := readQuery(cmd)
	if err != nil {
		return err
	}

	out, err := dvql.QueryToFetchXML(query)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.Root().Writer, out)

	return err
}

// readQuery returns the --query flag if the command has one and it is set,
// otherwise the file named by the first argument, otherwise stdin.
func readQuery(cmd *cli.Command) (string, error) {
	if q := cmd.String("query"); q != "" {
		return q, nil
	}

	if cmd.Args().Len() > 0 {
		data, err := os.ReadFile(cmd.Args().First()) //#nosec G304 -- path comes from user args
		if err != nil {
			return "", err
		}

		return string(data), nil
	}

	data, err := io.ReadAll(cmd.Root().Reader)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}

	return string(data), nil
}
