// Package oscsummary defines the result type a completed (or resumed)
// online schema change run reports to the CLI's output renderers —
// the "run" equivalent of analyzer.Result for the "plan" command.
package oscsummary

import "time"

// RunSummary describes the outcome of a single Invoker.Execute or
// Invoker.Resume call.
type RunSummary struct {
	Origin  string
	Shadow  string
	Archive string

	RowsCopied int64
	Duration   time.Duration

	TriggersUsed bool
	Bypassed     bool
	SwitchMethod string // "atomic" or "locked"
	Resumed      bool
}
