package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/rlch/dvql"
)

var errNoQueryFiles = errors.New("no .sql files found")

const filePermissions = 0o600

func fmtCommand() *cli.Command {
	return &cli.Command{
		Name:      "fmt",
		Aliases:   []string{"format"},
		Usage:     "Format SQL query files",
		ArgsUsage: "[files...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "write",
				Aliases: []string{"w"},
				Usage:   "write result to file instead of stdout",
			},
			&cli.BoolFlag{
				Name:    "check",
				Aliases: []string{"c"},
				Usage:   "check if files are formatted (exit 1 if not)",
			},
			&cli.BoolFlag{
				Name:    "diff",
				Aliases: []string{"d"},
				Usage:   "display diffs instead of rewriting files",
			},
		},
		Action: runFmt,
	}
}

// fmtMode is what fmt does with a file whose formatting changed.
type fmtMode int

const (
	fmtPrint fmtMode = iota
	fmtWrite
	fmtDiff
	fmtQuiet
)

func fmtModeOf(cmd *cli.Command) fmtMode {
	switch {
	case cmd.Bool("write"):
		return fmtWrite
	case cmd.Bool("diff"):
		return fmtDiff
	case cmd.Bool("check"):
		return fmtQuiet
	default:
		return fmtPrint
	}
}

func runFmt(_ context.Context, cmd *cli.Command) error {
	out := cmd.Root().Writer

	if cmd.Args().Len() == 0 {
		return formatStdin(cmd.Root().Reader, out)
	}

	files, err := collectFiles(cmd.Args().Slice(), ".sql")
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return errNoQueryFiles
	}

	mode := fmtModeOf(cmd)

	var unformatted []string

	for _, file := range files {
		changed, err := formatFile(file, mode, out)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}

		if changed {
			unformatted = append(unformatted, file)
		}
	}

	if !cmd.Bool("check") || len(unformatted) == 0 {
		return nil
	}

	errOut := cmd.Root().ErrWriter
	_, _ = fmt.Fprintln(errOut, "not formatted:")

	for _, file := range unformatted {
		_, _ = fmt.Fprintf(errOut, "  %s\n", file)
	}

	return cli.Exit("", 1)
}

// collectFiles expands directories to the files under them with extension ext.
func collectFiles(args []string, ext string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			files = append(files, arg)

			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ext) {
				files = append(files, path)
			}

			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return files, nil
}

func formatStdin(in io.Reader, out io.Writer) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}

	formatted, err := dvql.Format(string(data))
	if err != nil {
		return fmt.Errorf("formatting: %w", err)
	}

	_, err = io.WriteString(out, formatted)

	return err
}

// formatFile reports whether path needs formatting, handling it per mode.
func formatFile(path string, mode fmtMode, out io.Writer) (bool, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- paths come from user args
	if err != nil {
		return false, err
	}

	original := string(data)

	formatted, err := dvql.Format(original)
	if err != nil {
		return false, err
	}

	if original == formatted {
		return false, nil
	}

	switch mode {
	case fmtWrite:
		if err := os.WriteFile(path, []byte(formatted), filePermissions); err != nil {
			return true, err
		}

		_, err = fmt.Fprintln(out, path)
	case fmtDiff:
		printDiff(out, path, original, formatted)
	case fmtPrint:
		_, err = io.WriteString(out, formatted)
	case fmtQuiet:
	}

	return true, err
}

func printDiff(out io.Writer, path, original, formatted string) {
	_, _ = fmt.Fprintf(out, "--- %s\n", path)
	_, _ = fmt.Fprintf(out, "+++ %s (formatted)\n", path)

	origLines := strings.Split(strings.TrimSuffix(original, "\n"), "\n")
	fmtLines := strings.Split(strings.TrimSuffix(formatted, "\n"), "\n")

	// Line-by-line; formatting rarely moves lines far.
	for i := range max(len(origLines), len(fmtLines)) {
		var origLine, fmtLine string

		if i < len(origLines) {
			origLine = origLines[i]
		}

		if i < len(fmtLines) {
			fmtLine = fmtLines[i]
		}

		if origLine == fmtLine {
			continue
		}

		if i < len(origLines) {
			_, _ = fmt.Fprintf(out, "-%s\n", origLine)
		}

		if i < len(fmtLines) {
			_, _ = fmt.Fprintf(out, "+%s\n", fmtLine)
		}
	}
}
