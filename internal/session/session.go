// Package session splits generated content into a student view and a sealed
// submission token, and opens those tokens again on submission.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/b2coach/internal/model"
	"github.com/pavelanni/b2coach/internal/token"
)

// DefaultTTL is the validity window advertised in expires_at.
const DefaultTTL = time.Hour

var (
	// ErrInvalidSubmission is returned when a submission token cannot be
	// redeemed.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrExpired is returned for tokens past their window when expiry is
	// enforced.
	ErrExpired = fmt.Errorf("%w: token expired", ErrInvalidSubmission)
)

// Option configures a Packager.
type Option func(*Packager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(p *Packager) { p.now = now } }

// WithEnforceExpiry makes Open* reject tokens older than the TTL.
func WithEnforceExpiry(enforce bool) Option { return func(p *Packager) { p.enforceExpiry = enforce } }

// Packager issues and redeems submission tokens. It holds no per-request
// state and is safe for concurrent use.
type Packager struct {
	codec         *token.Codec
	ttl           time.Duration
	now           func() time.Time
	enforceExpiry bool
}

// New creates a Packager. A non-positive ttl means DefaultTTL.
func New(codec *token.Codec, ttl time.Duration, opts ...Option) *Packager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	p := &Packager{codec: codec, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

// TTL returns the validity window.
func (p *Packager) TTL() time.Duration { return p.ttl }

// PackageExercise seals the answer key and returns the student-facing half.
// The view is rebuilt from the student part alone, so nothing in it shares
// memory with the key.
func (p *Packager) PackageExercise(ex model.GrammarExercise) (model.GrammarNewResponse, error) {
	now := p.now().UTC()
	tok, err := p.codec.Seal(model.GrammarPayload{
		Kind:      model.PayloadGrammar,
		AnswerKey: ex.AnswerKey,
		Meta:      ex.Meta,
		CreatedAt: now,
	})
	if err != nil {
		return model.GrammarNewResponse{}, fmt.Errorf("seal answer key: %w", err)
	}

	return model.GrammarNewResponse{
		ExerciseID: "ex_" + uuid.NewString(),
		ExpiresAt:  now.Add(p.ttl),
		StudentView: model.StudentView{
			Title:        ex.StudentView.Title,
			Instructions: ex.StudentView.Instructions,
			Items:        ex.StudentView.Items.Clone(),
		},
		SubmissionToken: tok,
	}, nil
}

// PackageWritingTask seals the task and its rubric. Only the task goes back
// in the clear.
func (p *Packager) PackageWritingTask(b model.WritingBundle) (model.WritingNewResponse, error) {
	now := p.now().UTC()
	task := b.Task
	if task.TaskID == "" {
		task.TaskID = "wt_" + uuid.NewString()
	}
	tok, err := p.codec.Seal(model.WritingPayload{
		Kind:      model.PayloadWriting,
		Task:      task,
		Rubric:    b.Rubric,
		CreatedAt: now,
	})
	if err != nil {
		return model.WritingNewResponse{}, fmt.Errorf("seal writing task: %w", err)
	}
	return model.WritingNewResponse{
		TaskID:          task.TaskID,
		ExpiresAt:       now.Add(p.ttl),
		Task:            task,
		SubmissionToken: tok,
	}, nil
}

// OpenGrammar redeems a grammar token.
func (p *Packager) OpenGrammar(tok string) (model.GrammarPayload, error) {
	payload, err := token.OpenAs[model.GrammarPayload](p.codec, tok)
	if err != nil {
		return model.GrammarPayload{}, fmt.Errorf("%w: %w", ErrInvalidSubmission, err)
	}
	if !kindMatches(payload.Kind, model.PayloadGrammar) || len(payload.AnswerKey) == 0 {
		return model.GrammarPayload{}, fmt.Errorf("%w: not a grammar token", ErrInvalidSubmission)
	}
	if p.enforceExpiry && p.Expired(payload.CreatedAt) {
		return model.GrammarPayload{}, ErrExpired
	}
	return payload, nil
}

// OpenWriting redeems a writing token.
func (p *Packager) OpenWriting(tok string) (model.WritingPayload, error) {
	payload, err := token.OpenAs[model.WritingPayload](p.codec, tok)
	if err != nil {
		return model.WritingPayload{}, fmt.Errorf("%w: %w", ErrInvalidSubmission, err)
	}
	if !kindMatches(payload.Kind, model.PayloadWriting) || payload.Task.Prompt == "" {
		return model.WritingPayload{}, fmt.Errorf("%w: not a writing token", ErrInvalidSubmission)
	}
	if p.enforceExpiry && p.Expired(payload.CreatedAt) {
		return model.WritingPayload{}, ErrExpired
	}
	return payload, nil
}

// kindMatches accepts tokens sealed before payloads carried a kind; those are
// told apart by their required fields instead.
func kindMatches(got, want model.PayloadKind) bool {
	return got == want || got == ""
}

// Expired reports whether a payload created at createdAt is past the TTL.
// Tokens carry no redemption state, so an unexpired token can be redeemed
// any number of times.
func (p *Packager) Expired(createdAt time.Time) bool {
	return p.now().Sub(createdAt) > p.ttl
}
