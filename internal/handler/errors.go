package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/pavelanni/b2coach/internal/i18n"
	"github.com/pavelanni/b2coach/internal/llm"
	"github.com/pavelanni/b2coach/internal/session"
)

// ValidationError rejects a malformed or incomplete request. MsgID names
// the localized message shown to the client.
type ValidationError struct {
	MsgID string
	Data  map[string]any
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation: %s: %v", e.MsgID, e.Err)
	}
	return "validation: " + e.MsgID
}

func (e *ValidationError) Unwrap() error { return e.Err }

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps err onto a status code and a short localized message.
// Internal detail only goes to the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status = http.StatusInternalServerError
		msgID  = "ErrInternal"
		data   map[string]any
		valErr *ValidationError
		upErr  *llm.UpstreamError
	)
	switch {
	case errors.As(err, &valErr):
		status, msgID, data = http.StatusBadRequest, valErr.MsgID, valErr.Data
	case errors.Is(err, session.ErrInvalidSubmission):
		status, msgID = http.StatusBadRequest, "ErrInvalidSubmission"
	case errors.As(err, &upErr):
		status, msgID = http.StatusBadGateway, "ErrUpstream"
	}

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "request failed",
		"path", r.URL.Path,
		"status", status,
		"request_id", middleware.GetReqID(r.Context()),
		"error", err,
	)

	writeJSON(w, status, errorBody{Error: i18n.Td(r.Context(), msgID, data)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
