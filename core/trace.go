package lisp

import "time"

// Trace records one program run: what went in, what was printed, and how
// each failing statement was reported.
type Trace struct {
	ID        int64
	Op        string // "run" or "eval"
	Source    string
	Output    string
	Result    string // Show of the final value; empty when there is none
	Errors    []string
	Timestamp string // RFC 3339, UTC
	Duration  time.Duration
}

func (t *Trace) OK() bool { return len(t.Errors) == 0 }

// ToMap converts a Trace to the JSON shape used on the daemon socket.
func (t *Trace) ToMap() map[string]any {
	errs := make([]any, len(t.Errors))
	for i, e := range t.Errors {
		errs[i] = e
	}
	m := map[string]any{
		"op":          t.Op,
		"source":      t.Source,
		"output":      t.Output,
		"errors":      errs,
		"timestamp":   t.Timestamp,
		"duration_ms": t.Duration.Milliseconds(),
	}
	if t.ID != 0 {
		m["id"] = t.ID
	}
	if t.Result != "" {
		m["result"] = t.Result
	}
	return m
}
