package orchestrator

import "time"

const (
	StatePending  = "pending"
	StateRunning  = "running"
	StateDone     = "done"
	StateFailed   = "failed"
	StateCanceled = "canceled"
)

// Progress is a read-only projection of one phase worker.
type Progress struct {
	Phase       string         `json:"phase"`
	State       string         `json:"state"`
	Total       int            `json:"total"`
	Visited     int            `json:"visited"`
	Skipped     int            `json:"skipped"`
	Invocations int            `json:"invocations"`
	Artifacts   int            `json:"artifacts"`
	WriteErrors int            `json:"write_errors"`
	Failures    int            `json:"failures"`
	Verdicts    map[string]int `json:"verdicts"`
	Current     string         `json:"current,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Error       string         `json:"error,omitempty"`
}

func (p Progress) clone() Progress {
	out := p
	out.Verdicts = make(map[string]int, len(p.Verdicts))
	for k, v := range p.Verdicts {
		out.Verdicts[k] = v
	}
	return out
}

// Finished reports whether the worker will not change state again.
func (p Progress) Finished() bool {
	return p.State == StateDone || p.State == StateFailed || p.State == StateCanceled
}
