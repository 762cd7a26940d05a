package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"datachat/svcerr"
)

// errorBody is the JSON error envelope. The code field lets clients
// distinguish failure kinds without parsing messages.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: message, Code: code})
}

// respondErr maps the service error taxonomy onto HTTP responses.
func respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, svcerr.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, svcerr.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, svcerr.ErrForbiddenStatement):
		writeError(w, http.StatusBadRequest, "forbidden_statement", err.Error())
	case errors.Is(err, svcerr.ErrExecution):
		writeError(w, http.StatusBadRequest, "execution_error", err.Error())
	case errors.Is(err, svcerr.ErrConnectivity):
		writeError(w, http.StatusBadGateway, "connectivity_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return svcerr.Validation("无效的请求体: %v", err)
	}
	return nil
}
