// Package main provides the dvql CLI tool.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

var version = "dev"

func main() {
	err := app().Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func app() *cli.Command {
	return &cli.Command{
		Name:    "dvql",
		Version: version,
		Usage:   "Dataverse SQL and FetchXML query tool",
		Commands: []*cli.Command{
			fmtCommand(),
			checkCommand(),
			lexCommand(),
			fetchXMLCommand(),
			entitiesCommand(),
			attributesCommand(),
			environmentsCommand(),
			publishCommand(),
		},
	}
}

func colorFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:  "color",
		Usage: "colour output on terminals (NO_COLOR also disables it)",
		Value: true,
	}
}
