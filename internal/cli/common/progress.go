package common

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/crmarques/mobilectl/internal/telemetry"
	"github.com/crmarques/mobilectl/plan"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// Spinner shows activity on stderr while a blocking call runs. It stays
// silent when status output is suppressed or stderr is not a terminal.
type Spinner struct {
	spinner *spinner.Spinner
}

func StartSpinner(command *cobra.Command, globalFlags *GlobalFlags, message string) *Spinner {
	if globalFlags != nil && globalFlags.NoStatus {
		return &Spinner{}
	}
	if !IsTerminalWriter(command) {
		return &Spinner{}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(command.ErrOrStderr()))
	s.Suffix = " " + message
	s.Start()
	return &Spinner{spinner: s}
}

func (s *Spinner) Stop() {
	if s == nil || s.spinner == nil {
		return
	}
	s.spinner.Stop()
}

// StepReporter spins while a plan step runs, prints its outcome, and counts
// it in the command metrics.
type StepReporter struct {
	command     *cobra.Command
	globalFlags *GlobalFlags
	metrics     *telemetry.Metrics
	current     *Spinner
}

func NewStepReporter(command *cobra.Command, globalFlags *GlobalFlags) *StepReporter {
	return &StepReporter{
		command:     command,
		globalFlags: globalFlags,
		metrics:     Metrics(command.Context()),
	}
}

func (r *StepReporter) Started(step plan.Step) {
	r.current = StartSpinner(r.command, r.globalFlags, step.Progress)
}

func (r *StepReporter) Finished(step plan.Step, err error) {
	r.current.Stop()
	r.current = nil
	r.metrics.ObserveStep(err)
	if r.globalFlags != nil && r.globalFlags.NoStatus {
		return
	}

	out := r.command.ErrOrStderr()
	if err != nil {
		fmt.Fprintf(out, "%s: %v\n", r.paint(text.FgRed, step.Failure), err)
		return
	}
	fmt.Fprintln(out, r.paint(text.FgGreen, step.Success))
}

func (r *StepReporter) paint(color text.Color, value string) string {
	if r.globalFlags != nil && r.globalFlags.NoColor {
		return value
	}
	return color.Sprint(value)
}
