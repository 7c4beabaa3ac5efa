package grading

import (
	"errors"
	"testing"

	"github.com/pavelanni/b2coach/internal/model"
	"github.com/pavelanni/b2coach/internal/session"
	"github.com/pavelanni/b2coach/internal/token"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Had Known", "had known"},
		{" had   known ", "had known"},
		{"had\tknown\n", "had known"},
		{"", ""},
		{"   ", ""},
		{"Didn't", "didn't"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGradeNormalization(t *testing.T) {
	key := []model.AnswerKeyEntry{{ItemID: "i1", CorrectAnswer: "had known", Rationale: "r", Tag: "conditionals"}}

	tests := []struct {
		given string
		want  bool
	}{
		{"Had Known", true},
		{" had   known ", true},
		{"had known", true},
		{"had know", false},
		{"had known.", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.given, func(t *testing.T) {
			rep := Grade(key, []model.SubmittedAnswer{{ItemID: "i1", Value: tt.given}})
			if got := rep.Results[0].IsCorrect; got != tt.want {
				t.Errorf("is_correct = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGradeKeyDefinesUniverse(t *testing.T) {
	key := []model.AnswerKeyEntry{
		{ItemID: "i1", CorrectAnswer: "went", Tag: "time_expressions"},
		{ItemID: "i2", CorrectAnswer: "should", Tag: "modals"},
		{ItemID: "i3", CorrectAnswer: "can't", Tag: "modals"},
	}
	answers := []model.SubmittedAnswer{
		{ItemID: "ghost", Value: "boo"},
		{ItemID: "i3", Value: "can't"},
		{ItemID: "i1", Value: "go"},
	}

	rep := Grade(key, answers)

	if len(rep.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(rep.Results))
	}
	for i, want := range []string{"i1", "i2", "i3"} {
		if rep.Results[i].ItemID != want {
			t.Errorf("result %d item = %q, want %q (key order)", i, rep.Results[i].ItemID, want)
		}
	}
	for _, r := range rep.Results {
		if r.ItemID == "ghost" {
			t.Error("answer for unknown item appeared in results")
		}
	}
	if rep.Results[1].IsCorrect {
		t.Error("unanswered item graded correct")
	}
	if rep.Score != (model.Score{Correct: 1, Total: 3}) {
		t.Errorf("score = %+v, want 1/3", rep.Score)
	}
}

func TestGradeEmptySubmission(t *testing.T) {
	key := []model.AnswerKeyEntry{
		{ItemID: "i1", CorrectAnswer: "a", Tag: "articles"},
		{ItemID: "i2", CorrectAnswer: "", Tag: "articles"},
	}
	rep := Grade(key, nil)
	if rep.Results[0].IsCorrect {
		t.Error("missing answer graded correct")
	}
	if !rep.Results[1].IsCorrect {
		t.Error("empty expected answer should match a missing answer")
	}
}

func TestGradeDuplicateLastWins(t *testing.T) {
	key := []model.AnswerKeyEntry{{ItemID: "i1", CorrectAnswer: "had started", Tag: "narrative_tenses"}}
	answers := []model.SubmittedAnswer{
		{ItemID: "i1", Value: "had started"},
		{ItemID: "i1", Value: "started"},
	}
	if Grade(key, answers).Results[0].IsCorrect {
		t.Error("first duplicate won, want last")
	}

	answers[0], answers[1] = answers[1], answers[0]
	if !Grade(key, answers).Results[0].IsCorrect {
		t.Error("last duplicate ignored")
	}
}

func TestGradeResultFields(t *testing.T) {
	key := []model.AnswerKeyEntry{
		{ItemID: "i1", CorrectAnswer: "had started", Rationale: "Past perfect.", Tag: "narrative_tenses"},
		{ItemID: "i2", CorrectAnswer: "should", Rationale: "Criticism.", Tag: "modals"},
	}
	rep := Grade(key, []model.SubmittedAnswer{{ItemID: "i1", Value: "had started"}, {ItemID: "i2", Value: "must"}})

	ok := rep.Results[0]
	if ok.ErrorTag != nil {
		t.Errorf("correct item error_tag = %q, want nil", *ok.ErrorTag)
	}
	if ok.CorrectAnswer != "had started" || ok.Explanation != "Past perfect." {
		t.Errorf("correct item = %+v", ok)
	}

	bad := rep.Results[1]
	if bad.ErrorTag == nil || *bad.ErrorTag != "modals" {
		t.Errorf("incorrect item error_tag = %v, want modals", bad.ErrorTag)
	}
}

func TestGradeAggregateConsistency(t *testing.T) {
	key := []model.AnswerKeyEntry{
		{ItemID: "a", CorrectAnswer: "x"},
		{ItemID: "b", CorrectAnswer: "y"},
		{ItemID: "c", CorrectAnswer: "z"},
		{ItemID: "d", CorrectAnswer: "w"},
	}
	submissions := [][]model.SubmittedAnswer{
		nil,
		{{ItemID: "a", Value: "x"}},
		{{ItemID: "a", Value: "X"}, {ItemID: "b", Value: "y"}, {ItemID: "c", Value: "q"}},
		{{ItemID: "a", Value: "x"}, {ItemID: "b", Value: "y"}, {ItemID: "c", Value: "z"}, {ItemID: "d", Value: "w"}},
	}
	for _, answers := range submissions {
		rep := Grade(key, answers)
		correct := 0
		for _, r := range rep.Results {
			if r.IsCorrect {
				correct++
			}
		}
		if rep.Score.Correct != correct || rep.Score.Total != len(key) {
			t.Errorf("score %+v inconsistent with %d correct of %d", rep.Score, correct, len(key))
		}
	}
}

func TestGradeTokenEndToEnd(t *testing.T) {
	codec, err := token.New("grading-test-secret-abcdefgh")
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}
	p := session.New(codec, 0)

	tok, err := codec.Seal(map[string]any{
		"answer_key": []map[string]string{
			{"item_id": "i1", "correct_answer": "had started", "rationale": "...", "tag": "narrative_tenses"},
		},
	})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	rep, _, err := GradeToken(p, tok, []model.SubmittedAnswer{{ItemID: "i1", Value: "Had Started"}})
	if err != nil {
		t.Fatalf("GradeToken: %v", err)
	}
	if rep.Score != (model.Score{Correct: 1, Total: 1}) {
		t.Errorf("score = %+v, want 1/1", rep.Score)
	}
	r := rep.Results[0]
	if r.ItemID != "i1" || !r.IsCorrect || r.ErrorTag != nil {
		t.Errorf("result = %+v", r)
	}
}

func TestGradeTokenInvalid(t *testing.T) {
	codec, err := token.New("grading-test-secret-abcdefgh")
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}
	p := session.New(codec, 0)

	rep, _, err := GradeToken(p, "not-a-token", []model.SubmittedAnswer{{ItemID: "i1", Value: "x"}})
	if !errors.Is(err, session.ErrInvalidSubmission) {
		t.Errorf("error = %v, want ErrInvalidSubmission", err)
	}
	if rep.Results != nil || rep.Score != (model.Score{}) {
		t.Errorf("partial report returned: %+v", rep)
	}
}
