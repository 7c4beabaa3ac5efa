// Package grading compares submitted answers with a sealed answer key.
package grading

import (
	"fmt"
	"strings"

	"github.com/pavelanni/b2coach/internal/model"
	"github.com/pavelanni/b2coach/internal/session"
)

// Report is the outcome of grading one submission.
type Report struct {
	Score   model.Score
	Results []model.GradedResult
}

// Normalize lower-cases s, collapses whitespace runs to a single space and
// trims the ends. Nothing else is forgiven.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Grade grades answers against key. The key defines the item universe and
// the output order: answers for unknown items are dropped, missing answers
// count as empty strings, and duplicate item IDs keep the last value.
func Grade(key []model.AnswerKeyEntry, answers []model.SubmittedAnswer) Report {
	given := make(map[string]string, len(answers))
	for _, a := range answers {
		given[a.ItemID] = a.Value
	}

	rep := Report{
		Score:   model.Score{Total: len(key)},
		Results: make([]model.GradedResult, 0, len(key)),
	}
	for _, k := range key {
		res := model.GradedResult{
			ItemID:        k.ItemID,
			IsCorrect:     Normalize(given[k.ItemID]) == Normalize(k.CorrectAnswer),
			CorrectAnswer: k.CorrectAnswer,
			Explanation:   k.Rationale,
		}
		if res.IsCorrect {
			rep.Score.Correct++
		} else {
			tag := k.Tag
			res.ErrorTag = &tag
		}
		rep.Results = append(rep.Results, res)
	}
	return rep
}

// GradeToken redeems tok and grades answers against the sealed key. A token
// that cannot be opened yields session.ErrInvalidSubmission and no report.
func GradeToken(p *session.Packager, tok string, answers []model.SubmittedAnswer) (Report, model.GrammarPayload, error) {
	payload, err := p.OpenGrammar(tok)
	if err != nil {
		return Report{}, model.GrammarPayload{}, fmt.Errorf("grade: %w", err)
	}
	return Grade(payload.AnswerKey, answers), payload, nil
}
