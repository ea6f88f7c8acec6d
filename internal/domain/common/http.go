package common

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// APIError is the JSON error envelope returned by every handler.
type APIError struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// WriteError writes the standard error envelope.
func WriteError(w http.ResponseWriter, status int, code, detail string) {
	WriteJSON(w, status, errorResponse{Error: APIError{Code: code, Detail: detail}})
}
