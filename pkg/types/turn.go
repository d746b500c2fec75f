package types

import "time"

/*
MemoryTurn is one recorded (query, response) pair in a session's history.
Turns are append-only: once written they are never mutated or deleted by
this subsystem.
*/
type MemoryTurn struct {
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	// Summary is an optional condensed form produced by a store
	// summarizer hook; empty when the hook is disabled.
	Summary string `json:"summary,omitempty"`
}
