package api

import (
	"encoding/json"
	"net/http"
)

// Error is the JSON body returned for every non-2xx response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // best effort, the client may already be gone
		json.NewEncoder(w).Encode(v)
	}
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeErr(w, http.StatusBadRequest, "bad_request", message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeErr(w, http.StatusNotFound, "not_found", message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeErr(w, http.StatusInternalServerError, "internal_error", message)
}

func writeUnavailable(w http.ResponseWriter, message string) {
	writeErr(w, http.StatusServiceUnavailable, "unavailable", message)
}
