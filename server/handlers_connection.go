package server

import (
	"net/http"

	"datachat/connection"
	"datachat/svcerr"
)

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"connections": s.manager.Store().List()})
}

func (s *Server) handleCreateConnection(w http.ResponseWriter, r *http.Request) {
	var p connection.Params
	if err := decodeBody(r, &p); err != nil {
		respondErr(w, err)
		return
	}
	if err := validateParams(p); err != nil {
		respondErr(w, err)
		return
	}

	rec, err := s.manager.Store().Add(p)
	if err != nil {
		respondErr(w, err)
		return
	}
	s.logger("[API] connection created: " + rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, ok := s.manager.Store().Get(id)
	if !ok {
		respondErr(w, svcerr.NotFound("connection", id))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdateConnection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var u connection.Update
	if err := decodeBody(r, &u); err != nil {
		respondErr(w, err)
		return
	}

	rec, ok, err := s.manager.Update(id, u)
	if err != nil {
		respondErr(w, err)
		return
	}
	if !ok {
		respondErr(w, svcerr.NotFound("connection", id))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ok, err := s.manager.Delete(id)
	if err != nil {
		respondErr(w, err)
		return
	}
	if !ok {
		respondErr(w, svcerr.NotFound("connection", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	var p connection.Params
	if err := decodeBody(r, &p); err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.tester.Test(p))
}

func (s *Server) handleTestSavedConnection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result, err := s.tester.TestByID(s.manager.Store(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func validateParams(p connection.Params) error {
	if p.Name == "" {
		return svcerr.Validation("name 不能为空")
	}
	if p.Database == "" {
		return svcerr.Validation("database 不能为空")
	}
	if p.Type != "sqlite" && p.Host == "" {
		return svcerr.Validation("host 不能为空")
	}
	return nil
}
