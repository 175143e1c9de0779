package cli

import (
	"fmt"
	"strings"
)

// FlagDoc documents one job-specific flag
type FlagDoc struct {
	Name string // without dashes
	Arg  string // empty for boolean flags
	Help string
}

var commonFlags = []FlagDoc{
	{Name: "limite, -l", Arg: "N", Help: "process at most N items (applied after fetching)"},
	{Name: "pc", Help: "write JSON files under export.base_dir instead of the store"},
	{Name: "emulator", Help: "write to the Firestore emulator (store.emulator_host)"},
	{Name: "mock", Help: "write to an in-memory store"},
	{Name: "dry-run", Help: "run every stage but skip commits and file writes"},
	{Name: "verbose, -v", Help: "debug logging"},
	{Name: "id", Arg: "X", Help: "restrict the run to one entity"},
	{Name: "inicio", Arg: "AAAA-MM-DD", Help: "start of the date range (with --fim)"},
	{Name: "fim", Arg: "AAAA-MM-DD", Help: "end of the date range (with --inicio)"},
	{Name: "ajuda, -h", Help: "show this help"},
}

// Usage renders the help text of a job
func Usage(job, description string, extra []FlagDoc) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Usage: legisync %s [legislatura] [flags]\n", job)
	if description != "" {
		fmt.Fprintf(&b, "\n%s\n", description)
	}

	b.WriteString("\nArguments:\n")
	b.WriteString("  legislatura    number between 1 and 100, as a leading number or --<n> (default: current)\n")

	b.WriteString("\nFlags:\n")
	writeFlags(&b, commonFlags)

	if len(extra) > 0 {
		fmt.Fprintf(&b, "\n%s flags:\n", job)
		writeFlags(&b, extra)
	}

	fmt.Fprintf(&b, "\nExamples:\n  legisync %s 57 --limite 10 --mock\n  legisync %s --57 --pc --dry-run\n", job, job)
	return b.String()
}

func writeFlags(b *strings.Builder, flags []FlagDoc) {
	for _, f := range flags {
		left := "--" + f.Name
		if f.Arg != "" {
			left += " " + f.Arg
		}
		fmt.Fprintf(b, "  %-28s %s\n", left, f.Help)
	}
}
