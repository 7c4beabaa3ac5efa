// Package content defines the exercise generator the service depends on and
// provides a canned implementation for demo mode.
package content

import (
	"context"

	"github.com/pavelanni/b2coach/internal/model"
)

// Generator produces exercises, writing tasks and writing assessments.
// Implementations may block on network I/O and must honour ctx.
type Generator interface {
	GrammarExercise(ctx context.Context, req model.GenerateRequest) (model.GrammarExercise, error)
	WritingTask(ctx context.Context, req model.GenerateRequest) (model.WritingBundle, error)
	AssessWriting(ctx context.Context, bundle model.WritingBundle, text string) (model.WritingFeedback, error)
}
