package pulse

import (
	"fmt"

	"github.com/pterm/pterm"
)

// CLIEmitter outputs pretty-printed progress to the terminal using pterm
type CLIEmitter struct {
	verbosity int
}

// NewCLIEmitter creates a CLI progress emitter for terminal output
func NewCLIEmitter(verbosity int) *CLIEmitter {
	return &CLIEmitter{verbosity: verbosity}
}

// EmitStage prints a stage announcement
func (e *CLIEmitter) EmitStage(stage string, message string) {
	pterm.Printf("🔄 %s: %s\n", pterm.LightCyan(stage), message)
}

// EmitProgress prints a progress line
func (e *CLIEmitter) EmitProgress(event Event) {
	pterm.Printf("   %s %s %s\n",
		pterm.Gray(event.Stage),
		pterm.Green(fmt.Sprintf("%5.1f%%", event.Percent)),
		event.Message,
	)
}

// EmitComplete prints the completion line, and the summary when verbose
func (e *CLIEmitter) EmitComplete(summary map[string]interface{}) {
	pterm.Success.Println("Sync complete")
	if e.verbosity >= 1 {
		for key, value := range summary {
			pterm.Printf("  %s: %v\n", key, value)
		}
	}
}

// EmitError prints an error
func (e *CLIEmitter) EmitError(stage string, err error) {
	pterm.Error.Printf("Error in %s: %v\n", stage, err)
}

// EmitInfo prints an informational message when verbose
func (e *CLIEmitter) EmitInfo(message string) {
	if e.verbosity >= 1 {
		pterm.Info.Println(message)
	}
}
