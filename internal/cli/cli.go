// Package cli implements leadctl, the command-line front end to the lead
// analytics engine. Every subcommand loads the dataset, applies the shared
// --filter selections and prints a table or, with --json, JSON.
package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

type commands struct {
	Summary    *SummaryCommand
	Charts     *ChartsCommand
	Export     *ExportCommand
	Dimensions *DimensionsCommand
}

func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "leadctl"
	parser.LongDescription = "Filter, summarize and export freight customer leads from a CSV file or a Postgres table."

	cmds := &commands{
		Summary:    &SummaryCommand{globals: &globals},
		Charts:     &ChartsCommand{globals: &globals},
		Export:     &ExportCommand{globals: &globals},
		Dimensions: &DimensionsCommand{globals: &globals},
	}

	parser.AddCommand("summary", "Show summary metrics", "Show lead count, average rate, total distance, high-priority count, top industry and conversion rate for the filtered leads.", cmds.Summary)
	parser.AddCommand("charts", "Show chart datasets", "Show the aggregated chart datasets for the filtered leads.", cmds.Charts)
	parser.AddCommand("export", "Export filtered leads as CSV", "Write the filtered leads, or only their contact columns, as CSV.", cmds.Export)
	parser.AddCommand("dimensions", "List filter dimensions", "List the filter dimensions and, for categorical ones, their distinct values.", cmds.Dimensions)

	return parser, &globals, cmds
}

// Run parses os.Args and executes the matched subcommand.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses args (os.Args when nil) and executes the matched
// subcommand.
func RunWithArgs(version string, args []string) error {
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("leadctl %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok && flagsErr.Type == goflags.ErrHelp {
			return nil
		}
		return err
	}
	return nil
}
