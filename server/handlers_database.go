package server

import (
	"net/http"
	"time"

	"datachat/metrics"
	"datachat/svcerr"
)

type queryRequest struct {
	ConnectionID string `json:"connection_id"`
	SQL          string `json:"sql"`
	Page         int    `json:"page"`
	PageSize     int    `json:"page_size"`
}

func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	connID := r.URL.Query().Get("connection_id")
	if connID == "" {
		respondErr(w, svcerr.Validation("connection_id 不能为空"))
		return
	}
	if _, ok := s.manager.Store().Get(connID); !ok {
		respondErr(w, svcerr.NotFound("connection", connID))
		return
	}

	db, dialect, err := s.manager.Handle(connID)
	if err != nil {
		respondErr(w, err)
		return
	}

	tables, err := s.introspector.Tables(r.Context(), db, dialect, nil)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeBody(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	if req.ConnectionID == "" {
		respondErr(w, svcerr.Validation("connection_id 不能为空"))
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 50
	}
	if _, ok := s.manager.Store().Get(req.ConnectionID); !ok {
		respondErr(w, svcerr.NotFound("connection", req.ConnectionID))
		return
	}

	db, _, err := s.manager.Handle(req.ConnectionID)
	if err != nil {
		respondErr(w, err)
		return
	}

	start := time.Now()
	result, err := s.gateway.Execute(r.Context(), db, req.SQL, req.Page, req.PageSize)
	if err != nil {
		metrics.ObserveQuery("failed", time.Since(start))
		respondErr(w, err)
		return
	}
	metrics.ObserveQuery("ok", time.Since(start))
	writeJSON(w, http.StatusOK, result)
}
