package display

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/teranos/legisync/etl"
	"github.com/teranos/legisync/runlog"
)

// RenderReport writes the end-of-run summary of a job as a table
func RenderReport(w io.Writer, r *etl.Report) error {
	s := r.Stats
	rows := pterm.TableData{
		{"Stage", "Succeeded", "Failed"},
		{"extract", fmtInt(s.Extract.Succeeded), fmtInt(s.Extract.Failed)},
		{"transform", fmtInt(s.Transform.Succeeded), fmtInt(s.Transform.Failed)},
		{"load", fmtInt(s.Load.Succeeded), fmtInt(s.Load.Failed)},
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err != nil {
		return err
	}

	dest := string(r.Destination)
	if r.DryRun {
		dest += " (dry run)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  legislature %d  %s  %s\n", pterm.Bold.Sprint(r.Job), r.Period, dest, r.Duration().Round(time.Millisecond))
	b.WriteString(table)
	b.WriteString("\n")
	if len(r.Chunks) > 0 {
		fmt.Fprintf(&b, "chunks: %d (%d failed), operations: %d, index operations: %d\n",
			len(r.Chunks), r.FailedChunks, r.Operations, r.IndexOps)
	}
	if r.FilesWritten > 0 {
		fmt.Fprintf(&b, "files written: %d\n", r.FilesWritten)
	}
	if r.Duplicates > 0 {
		fmt.Fprintf(&b, "duplicates collapsed: %d\n", r.Duplicates)
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(&b, "%s %s\n", pterm.Yellow("warning:"), warning)
	}

	switch {
	case r.State == etl.StateError:
		fmt.Fprintf(&b, "%s failed in %s: %s\n", pterm.Red("✗"), r.FailedState, r.Error)
	case !r.Healthy():
		fmt.Fprintf(&b, "%s finished with %d failed chunk(s)\n", pterm.Yellow("!"), r.FailedChunks)
	default:
		fmt.Fprintf(&b, "%s done\n", pterm.Green("✓"))
	}

	_, err = io.WriteString(w, b.String())
	return err
}

// RenderRuns writes ledger rows as a table
func RenderRuns(w io.Writer, runs []runlog.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded")
		return err
	}
	rows := pterm.TableData{{"Started", "Job", "Leg.", "Destination", "State", "Loaded", "Failed", "Chunks failed", "Duration"}}
	for _, r := range runs {
		state := r.State
		if r.FailedState != "" {
			state += " (" + r.FailedState + ")"
		}
		dest := r.Destination
		if r.DryRun {
			dest += " (dry)"
		}
		rows = append(rows, []string{
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Job,
			strconv.Itoa(r.Period),
			dest,
			state,
			fmtInt(r.Loaded),
			fmtInt(r.Failed),
			strconv.Itoa(r.FailedChunks),
			fmt.Sprintf("%.1fs", float64(r.DurationMS)/1000),
		})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, table)
	return err
}

func fmtInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
