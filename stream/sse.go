package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Emitter writes events as server-sent-event frames. After the client
// context is done it silently drops further events, so a disconnected
// client stops the stream without interrupting the producing turn.
type Emitter struct {
	ctx     context.Context
	w       io.Writer
	flusher http.Flusher

	mu     sync.Mutex
	closed bool
}

// NewEmitter wraps an http.ResponseWriter for SSE output. It sets the
// stream headers and returns an error if the writer cannot flush.
func NewEmitter(ctx context.Context, w http.ResponseWriter) (*Emitter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("stream: response writer does not support flushing")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &Emitter{ctx: ctx, w: w, flusher: flusher}, nil
}

// Emit writes one event frame and flushes it. Returns false once the
// client has gone away; callers may keep producing, the emitter just
// stops writing.
func (e *Emitter) Emit(ev Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false
	}
	select {
	case <-e.ctx.Done():
		e.closed = true
		return false
	default:
	}

	data, err := json.Marshal(ev)
	if err != nil {
		// Payloads are our own closed types; a marshal failure here is a
		// programming error, but the stream contract still demands frames
		// keep flowing.
		data = []byte("{}")
	}
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", ev.Kind(), data); err != nil {
		e.closed = true
		return false
	}
	e.flusher.Flush()
	return true
}
