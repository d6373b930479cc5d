// Package common provides shared utilities for the stitching stages.
package common

import (
	"fmt"
	"strings"
	"time"
)

// Timer measures named stages of a run. Each call to Lap closes the
// stage that was running and starts the next one.
type Timer struct {
	start time.Time
	mark  time.Time
	laps  []Lap
}

// Lap is the recorded duration of one stage.
type Lap struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration_ns"`
}

// NewTimer creates a timer that starts counting immediately.
func NewTimer() *Timer {
	now := time.Now()
	return &Timer{start: now, mark: now}
}

// Lap records the time elapsed since the previous lap (or since the timer
// was created) under the given stage name and returns it.
func (t *Timer) Lap(stage string) time.Duration {
	now := time.Now()
	d := now.Sub(t.mark)
	t.mark = now
	t.laps = append(t.laps, Lap{Stage: stage, Duration: d})
	return d
}

// Laps returns a copy of the recorded laps in the order they were taken.
func (t *Timer) Laps() []Lap {
	out := make([]Lap, len(t.laps))
	copy(out, t.laps)
	return out
}

// Total returns the time elapsed since the timer was created.
func (t *Timer) Total() time.Duration {
	return time.Since(t.start)
}

// String renders the laps as "stage=duration" pairs.
func (t *Timer) String() string {
	parts := make([]string, 0, len(t.laps))
	for _, l := range t.laps {
		parts = append(parts, fmt.Sprintf("%s=%v", l.Stage, l.Duration.Round(time.Microsecond)))
	}
	return strings.Join(parts, " ")
}
