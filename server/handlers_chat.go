package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"datachat/metrics"
	"datachat/session"
	"datachat/stream"
	"datachat/svcerr"
)

type chatRequest struct {
	Message      string `json:"message"`
	ConnectionID string `json:"connection_id"`
}

// handleChatStream runs one chat turn over SSE. Validation failures are
// rejected before the stream opens; once streaming has started every
// outcome, success or failure, ends with a done event.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	if _, ok := s.sessions.Get(sessionID); !ok {
		respondErr(w, svcerr.NotFound("session", sessionID))
		return
	}

	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	if req.Message == "" {
		respondErr(w, svcerr.Validation("message 不能为空"))
		return
	}
	if req.ConnectionID == "" {
		respondErr(w, svcerr.Validation("connection_id 不能为空"))
		return
	}

	emitter, err := stream.NewEmitter(r.Context(), w)
	if err != nil {
		respondErr(w, err)
		return
	}

	start := time.Now()
	s.logger(fmt.Sprintf("[CHAT] turn start session=%s conn=%s", sessionID, req.ConnectionID))

	turn, runErr := s.agent.Run(r.Context(), sessionID, req.ConnectionID, req.Message, func(ev stream.Event) {
		emitter.Emit(ev)
	})
	if runErr != nil {
		s.logger(fmt.Sprintf("[CHAT] turn failed session=%s: %v", sessionID, runErr))
		emitter.Emit(stream.ErrorEvent{Message: runErr.Error()})
		emitter.Emit(stream.DoneEvent{})
		metrics.ObserveTurn("failed", time.Since(start))
		return
	}

	if turn.LastSQL != "" && turn.LastResult != "" {
		// The chart call runs off the request context so a disconnect
		// mid-synthesis does not lose the turn's persisted messages.
		data := s.charts.Synthesize(context.WithoutCancel(r.Context()), req.Message, turn.LastSQL, turn.LastResult)
		emitter.Emit(stream.ChartEvent{ChartData: *data})
	}

	now := time.Now().UnixMilli()
	s.sessions.Append(sessionID, session.Message{
		Role:      "user",
		Content:   req.Message,
		Timestamp: now,
	})
	s.sessions.Append(sessionID, session.Message{
		Role:            "assistant",
		Content:         turn.Answer,
		Timestamp:       time.Now().UnixMilli(),
		ThinkingProcess: turn.Thinking,
	})

	emitter.Emit(stream.DoneEvent{})
	metrics.ObserveTurn("ok", time.Since(start))
	s.logger(fmt.Sprintf("[CHAT] turn done session=%s in %s", sessionID, time.Since(start)))
}
