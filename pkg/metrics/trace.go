package metrics

import (
	"sync"
	"time"
)

// Stage is one timed step of a pipeline invocation.
type Stage struct {
	Name     string
	Duration time.Duration
	Note     string
}

// Trace collects per-stage timings and truncation notes for one pipeline
// invocation. It backs the verbose diagnostic block of the presenter.
type Trace struct {
	mu      sync.Mutex
	started time.Time
	stages  []Stage
}

// NewTrace creates an empty trace anchored at the current time.
func NewTrace() *Trace {
	return &Trace{started: time.Now()}
}

// Record appends a completed stage.
func (t *Trace) Record(name string, duration time.Duration, note string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stages = append(t.stages, Stage{Name: name, Duration: duration, Note: note})
}

/*
Start begins timing a stage and returns a function that records it. The
optional note describes decisions made during the stage (for example a
truncation).
*/
func (t *Trace) Start(name string) func(notes ...string) {
	begin := time.Now()
	return func(notes ...string) {
		note := ""
		if len(notes) > 0 {
			note = notes[0]
		}
		t.Record(name, time.Since(begin), note)
	}
}

// Stages returns a snapshot of the recorded stages.
func (t *Trace) Stages() []Stage {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Stage, len(t.stages))
	copy(out, t.stages)
	return out
}

// Total is the wall-clock time since the trace was created.
func (t *Trace) Total() time.Duration {
	return time.Since(t.started)
}
