package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pavelanni/b2coach/internal/content"
	"github.com/pavelanni/b2coach/internal/feedback"
	"github.com/pavelanni/b2coach/internal/grading"
	"github.com/pavelanni/b2coach/internal/i18n"
	"github.com/pavelanni/b2coach/internal/model"
	"github.com/pavelanni/b2coach/internal/session"
)

// MaxBodyBytes caps every request body.
const MaxBodyBytes = 64 << 10

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	packager  *session.Packager
	generator content.Generator
	config    model.ServiceConfig
	limiter   *RateLimiter
}

// Option configures a Handler.
type Option func(*Handler)

// WithRateLimiter guards the endpoints that call the generator.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(h *Handler) { h.limiter = rl }
}

// New creates a new Handler.
func New(p *session.Packager, g content.Generator, cfg model.ServiceConfig, opts ...Option) *Handler {
	h := &Handler{packager: p, generator: g, config: cfg}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: i18n.T(r.Context(), "ErrNotFound")})
	})
	r.Get("/healthz", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if h.limiter != nil {
				r.Use(h.limiter.Middleware)
			}
			r.Post("/grammar/new", h.handleGrammarNew)
			r.Post("/writing/new", h.handleWritingNew)
			r.Post("/writing/submit", h.handleWritingSubmit)
		})
		r.Post("/grammar/submit", h.handleGrammarSubmit)
	})
}

func (h *Handler) mode() string {
	if h.config.DemoMode {
		return "demo"
	}
	return "ai"
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "mode": h.mode()})
}

func (h *Handler) handleGrammarNew(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req = req.Normalized()

	ex, err := h.generator.GrammarExercise(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.packager.PackageExercise(ex)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("grammar exercise issued",
		"exercise_id", resp.ExerciseID,
		"topic", ex.Meta.Topic,
		"items", len(resp.StudentView.Items),
		"mode", h.mode(),
	)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGrammarSubmit(w http.ResponseWriter, r *http.Request) {
	var req model.GrammarSubmitRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.SubmissionToken) == "" {
		writeError(w, r, &ValidationError{MsgID: "ErrTokenRequired"})
		return
	}

	rep, payload, err := grading.GradeToken(h.packager, req.SubmissionToken, req.Answers)
	if err != nil {
		writeError(w, r, err)
		return
	}
	fb, next := feedback.Build(rep.Results, payload.AnswerKey, payload.Meta)

	slog.Info("grammar submission graded", "correct", rep.Score.Correct, "total", rep.Score.Total)
	writeJSON(w, http.StatusOK, model.GrammarSubmitResponse{
		Score:                  rep.Score,
		Results:                rep.Results,
		PersonalisedFeedback:   fb,
		RecommendedNextRequest: next,
	})
}

func (h *Handler) handleWritingNew(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req = req.Normalized()

	bundle, err := h.generator.WritingTask(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.packager.PackageWritingTask(bundle)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("writing task issued", "task_id", resp.TaskID, "genre", resp.Task.Genre, "mode", h.mode())
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleWritingSubmit(w http.ResponseWriter, r *http.Request) {
	var req model.WritingSubmitRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, r, &ValidationError{MsgID: "ErrTextRequired"})
		return
	}
	if strings.TrimSpace(req.SubmissionToken) == "" {
		writeError(w, r, &ValidationError{MsgID: "ErrTokenRequired"})
		return
	}

	payload, err := h.packager.OpenWriting(req.SubmissionToken)
	if err != nil {
		writeError(w, r, err)
		return
	}

	fb, err := h.generator.AssessWriting(r.Context(), model.WritingBundle{Task: payload.Task, Rubric: payload.Rubric}, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("writing submission assessed", "task_id", payload.Task.TaskID, "words", len(strings.Fields(req.Text)))
	writeJSON(w, http.StatusOK, fb)
}

// decode reads a JSON body of at most MaxBodyBytes into v. Unknown fields
// are ignored and an empty body decodes as {}.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)

	var tooLarge *http.MaxBytesError
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	case errors.As(err, &tooLarge):
		return &ValidationError{MsgID: "ErrBodyTooLarge", Data: map[string]any{"Limit": MaxBodyBytes >> 10}, Err: err}
	default:
		return &ValidationError{MsgID: "ErrInvalidRequest", Err: fmt.Errorf("decode body: %w", err)}
	}
}
