// Command foxsync-log is a tool for viewing and analyzing foxsync audit
// trail files.
//
// Audit files are created when running foxsync with the -audit flag (or
// the auditLog config key).
//
// Usage:
//
//	foxsync-log <command> [flags] <file.flog>
//
// Commands:
//
//	view     View audit file in human-readable format
//	export   Export audit file to JSONL or CSV format
//	filter   Filter audit file and write to new file
//	stats    Show statistics about the audit file
//
// Examples:
//
//	# View all events
//	foxsync-log view audit.flog
//
//	# View only failed calls and commits
//	foxsync-log view --failures audit.flog
//
//	# View only scheduler writes
//	foxsync-log view --kind commit audit.flog
//
//	# Export to JSONL
//	foxsync-log export --format jsonl audit.flog
//
//	# Keep one device's events and save to a new file
//	foxsync-log filter --device 60KH12345 -o filtered.flog audit.flog
//
//	# Show statistics
//	foxsync-log stats audit.flog
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/foxsync/foxsync-go/cmd/foxsync-log/commands"
	"github.com/foxsync/foxsync-go/pkg/log"
)

const usage = `foxsync-log - FoxSync Audit Trail Analyzer

Usage:
  foxsync-log <command> [flags] <file.flog>

Commands:
  view     View audit file in human-readable format
  export   Export audit file to JSONL or CSV format
  filter   Filter audit file and write to new file
  stats    Show statistics about the audit file

Use "foxsync-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// filterFlags registers the shared filter flags on fs and returns a
// builder that assembles the log.Filter after parsing.
func filterFlags(fs *flag.FlagSet) func() log.Filter {
	kind := fs.String("kind", "", "Filter by event kind (call, commit, poll)")
	device := fs.String("device", "", "Filter by device serial")
	endpoint := fs.String("endpoint", "", "Filter calls by API endpoint path")
	since := fs.String("since", "", "Keep events at or after this RFC 3339 time")
	until := fs.String("until", "", "Keep events before this RFC 3339 time")
	failures := fs.Bool("failures", false, "Keep only failed calls, commits, and polls")

	return func() log.Filter {
		var filter log.Filter
		if *kind != "" {
			k, err := commands.ParseKindFlag(*kind)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			filter.Kind = &k
		}
		filter.DeviceSN = *device
		filter.Endpoint = *endpoint
		if *since != "" {
			t, err := time.Parse(time.RFC3339, *since)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: invalid -since: %v\n", err)
				os.Exit(1)
			}
			filter.TimeStart = &t
		}
		if *until != "" {
			t, err := time.Parse(time.RFC3339, *until)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: invalid -until: %v\n", err)
				os.Exit(1)
			}
			filter.TimeEnd = &t
		}
		filter.FailuresOnly = *failures
		return filter
	}
}

func pathArg(fs *flag.FlagSet) string {
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: audit file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `foxsync-log view - View audit file in human-readable format

Usage:
  foxsync-log view [flags] <file.flog>

Flags:
`)
		fs.PrintDefaults()
	}
	build := filterFlags(fs)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if err := commands.View(os.Stdout, pathArg(fs), build()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `foxsync-log export - Export audit file to JSONL or CSV format

Usage:
  foxsync-log export [flags] <file.flog>

Flags:
`)
		fs.PrintDefaults()
	}
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	out := fs.String("o", "", "Output file (default stdout)")
	build := filterFlags(fs)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := pathArg(fs)

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	var err error
	switch *format {
	case "jsonl":
		err = commands.ExportJSONL(w, path, build())
	case "csv":
		err = commands.ExportCSV(w, path, build())
	default:
		err = fmt.Errorf("unknown format %q (want jsonl or csv)", *format)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `foxsync-log filter - Filter audit file and write to new file

Usage:
  foxsync-log filter [flags] -o <out.flog> <file.flog>

Flags:
`)
		fs.PrintDefaults()
	}
	out := fs.String("o", "", "Output file (required)")
	build := filterFlags(fs)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *out == "" {
		fmt.Fprintln(os.Stderr, "Error: -o output file required")
		fs.Usage()
		os.Exit(1)
	}

	n, err := commands.FilterFile(pathArg(fs), *out, build())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d event(s) to %s\n", n, *out)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `foxsync-log stats - Show statistics about the audit file

Usage:
  foxsync-log stats [flags] <file.flog>

Flags:
`)
		fs.PrintDefaults()
	}
	build := filterFlags(fs)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if err := commands.Stats(os.Stdout, pathArg(fs), build()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
