// Package stream defines the turn event protocol: a closed set of typed
// events and an SSE emitter that serializes them at the wire boundary.
package stream

import "datachat/chart"

// Event is one protocol event. The set of implementations is fixed:
// token, sql, thinking, chart, done, error.
type Event interface {
	// Kind returns the wire event name.
	Kind() string
}

// TokenEvent carries the final answer text. Exactly one per successful
// turn, never emitted for intermediate steps.
type TokenEvent struct {
	Content string `json:"content"`
}

func (TokenEvent) Kind() string { return "token" }

// SQLEvent carries the literal SQL of one run_sql tool call.
type SQLEvent struct {
	SQL string `json:"sql"`
}

func (SQLEvent) Kind() string { return "sql" }

// ThinkingEvent carries the entire narration accumulated so far. Each
// ThinkingEvent in a turn is a snapshot that extends the previous one, so
// consumers replace their display rather than append.
type ThinkingEvent struct {
	Content string `json:"content"`
}

func (ThinkingEvent) Kind() string { return "thinking" }

// ChartEvent carries the synthesized visualization. At most one per turn.
type ChartEvent struct {
	chart.ChartData
}

func (ChartEvent) Kind() string { return "chart" }

// DoneEvent marks the end of the stream. Exactly one per turn, always
// last, success or failure.
type DoneEvent struct{}

func (DoneEvent) Kind() string { return "done" }

// ErrorEvent reports a turn failure. At most one per turn, always
// immediately followed by DoneEvent.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (ErrorEvent) Kind() string { return "error" }
