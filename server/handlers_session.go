package server

import (
	"net/http"

	"datachat/svcerr"
)

type sessionCreateRequest struct {
	Title string `json:"title"`
}

type sessionUpdateRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionCreateRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			respondErr(w, err)
			return
		}
	}
	sess := s.sessions.Create(req.Title)
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.sessions.List()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := s.sessions.Get(id)
	if !ok {
		respondErr(w, svcerr.NotFound("session", id))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req sessionUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	if req.Title == "" {
		respondErr(w, svcerr.Validation("title 不能为空"))
		return
	}
	sess, ok := s.sessions.UpdateTitle(id, req.Title)
	if !ok {
		respondErr(w, svcerr.NotFound("session", id))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.sessions.Delete(id) {
		respondErr(w, svcerr.NotFound("session", id))
		return
	}
	s.agent.DropSession(id)
	w.WriteHeader(http.StatusNoContent)
}
