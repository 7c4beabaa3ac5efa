package session

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/b2coach/internal/model"
	"github.com/pavelanni/b2coach/internal/token"
)

func newTestPackager(t *testing.T, opts ...Option) *Packager {
	t.Helper()
	codec, err := token.New("session-test-secret-0123456789")
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}
	return New(codec, 0, opts...)
}

func testExercise() model.GrammarExercise {
	return model.GrammarExercise{
		Meta: model.ExerciseMeta{Level: model.LevelB2, Topic: "travel", ItemTypes: model.ItemKinds},
		StudentView: model.StudentView{
			Title:        "B2 Grammar Mix",
			Instructions: "Complete all items.",
			Items: model.Items{
				model.MCQ{ItemID: "i1", Prompt: "By the time we arrived, the film ___.", Options: []string{"started", "had started"}},
				model.GapFill{ItemID: "i2", Prompt: "If I ____ about the traffic...", Note: "Complete the conditional sentence."},
			},
		},
		AnswerKey: []model.AnswerKeyEntry{
			{ItemID: "i1", CorrectAnswer: "had started", Rationale: "Past perfect shows the earlier action.", Tag: "narrative_tenses"},
			{ItemID: "i2", CorrectAnswer: "had known", Rationale: "Third conditional uses past perfect.", Tag: "conditionals"},
		},
	}
}

func TestPackageExercise(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newTestPackager(t, WithClock(func() time.Time { return now }))
	ex := testExercise()

	resp, err := p.PackageExercise(ex)
	if err != nil {
		t.Fatalf("PackageExercise: %v", err)
	}
	if !strings.HasPrefix(resp.ExerciseID, "ex_") {
		t.Errorf("exercise id = %q, want ex_ prefix", resp.ExerciseID)
	}
	if !resp.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("expires_at = %v, want %v", resp.ExpiresAt, now.Add(time.Hour))
	}
	if len(resp.StudentView.Items) != 2 {
		t.Fatalf("student view has %d items, want 2", len(resp.StudentView.Items))
	}

	payload, err := p.OpenGrammar(resp.SubmissionToken)
	if err != nil {
		t.Fatalf("OpenGrammar: %v", err)
	}
	if len(payload.AnswerKey) != 2 || payload.AnswerKey[1].CorrectAnswer != "had known" {
		t.Errorf("answer key = %+v", payload.AnswerKey)
	}
	if payload.Meta.Topic != "travel" {
		t.Errorf("meta topic = %q", payload.Meta.Topic)
	}
	if !payload.CreatedAt.Equal(now) {
		t.Errorf("created_at = %v, want %v", payload.CreatedAt, now)
	}
}

func TestStudentViewCarriesNoAnswerKey(t *testing.T) {
	p := newTestPackager(t)
	ex := testExercise()

	resp, err := p.PackageExercise(ex)
	if err != nil {
		t.Fatalf("PackageExercise: %v", err)
	}
	data, err := json.Marshal(resp.StudentView)
	if err != nil {
		t.Fatalf("marshal view: %v", err)
	}
	view := string(data)
	for _, k := range ex.AnswerKey {
		if strings.Contains(view, k.Rationale) {
			t.Errorf("student view leaks rationale %q", k.Rationale)
		}
		if strings.Contains(view, k.Tag) {
			t.Errorf("student view leaks tag %q", k.Tag)
		}
	}
	if strings.Contains(view, "had known") {
		t.Error("student view leaks a gap-fill answer")
	}
	for _, field := range []string{"correct_answer", "rationale", "answer_key"} {
		if strings.Contains(view, field) {
			t.Errorf("student view contains field %q", field)
		}
	}
}

func TestStudentViewSharesNoMemory(t *testing.T) {
	p := newTestPackager(t)
	ex := testExercise()

	resp, err := p.PackageExercise(ex)
	if err != nil {
		t.Fatalf("PackageExercise: %v", err)
	}
	mcq := resp.StudentView.Items[0].(model.MCQ)
	mcq.Options[0] = "mutated"

	orig := ex.StudentView.Items[0].(model.MCQ)
	if orig.Options[0] != "started" {
		t.Error("student view options alias the generated exercise")
	}
}

func TestPackageWritingTask(t *testing.T) {
	p := newTestPackager(t)
	bundle := model.WritingBundle{
		Task: model.WritingTask{
			Level:     model.LevelB2,
			Genre:     model.GenreEmail,
			Title:     "Formal email: complaint",
			Prompt:    "Write to the hotel manager.",
			WordRange: model.WordRange{Min: 180, Max: 220},
		},
		Rubric: model.RubricDescriptors{Content: "Covers all bullet points."},
	}

	resp, err := p.PackageWritingTask(bundle)
	if err != nil {
		t.Fatalf("PackageWritingTask: %v", err)
	}
	if !strings.HasPrefix(resp.TaskID, "wt_") || resp.Task.TaskID != resp.TaskID {
		t.Errorf("task id = %q / %q", resp.TaskID, resp.Task.TaskID)
	}

	payload, err := p.OpenWriting(resp.SubmissionToken)
	if err != nil {
		t.Fatalf("OpenWriting: %v", err)
	}
	if payload.Task.Prompt != bundle.Task.Prompt || payload.Rubric.Content != "Covers all bullet points." {
		t.Errorf("payload = %+v", payload)
	}
}

func TestOpenRejectsOtherKind(t *testing.T) {
	p := newTestPackager(t)

	grammar, err := p.PackageExercise(testExercise())
	if err != nil {
		t.Fatalf("PackageExercise: %v", err)
	}
	if _, err := p.OpenWriting(grammar.SubmissionToken); !errors.Is(err, ErrInvalidSubmission) {
		t.Errorf("OpenWriting(grammar token) error = %v, want ErrInvalidSubmission", err)
	}

	writing, err := p.PackageWritingTask(model.WritingBundle{Task: model.WritingTask{Prompt: "Write."}})
	if err != nil {
		t.Fatalf("PackageWritingTask: %v", err)
	}
	if _, err := p.OpenGrammar(writing.SubmissionToken); !errors.Is(err, ErrInvalidSubmission) {
		t.Errorf("OpenGrammar(writing token) error = %v, want ErrInvalidSubmission", err)
	}
}

func TestOpenInvalidToken(t *testing.T) {
	p := newTestPackager(t)
	_, err := p.OpenGrammar("garbage")
	if !errors.Is(err, ErrInvalidSubmission) {
		t.Errorf("error = %v, want ErrInvalidSubmission", err)
	}
	if !errors.Is(err, token.ErrInvalidToken) {
		t.Errorf("error = %v, want wrapped ErrInvalidToken", err)
	}
}

func TestOpenLegacyPayloadWithoutKind(t *testing.T) {
	p := newTestPackager(t)
	tok, err := p.codec.Seal(map[string]any{
		"answer_key": []map[string]string{
			{"item_id": "i1", "correct_answer": "had started", "rationale": "...", "tag": "narrative_tenses"},
		},
		"created_at": "2026-01-01T00:00:00.000Z",
	})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	payload, err := p.OpenGrammar(tok)
	if err != nil {
		t.Fatalf("OpenGrammar: %v", err)
	}
	if payload.AnswerKey[0].CorrectAnswer != "had started" {
		t.Errorf("answer key = %+v", payload.AnswerKey)
	}
}

func TestExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	tests := []struct {
		name    string
		enforce bool
		age     time.Duration
		wantErr bool
	}{
		{"fresh", true, 10 * time.Minute, false},
		{"expired and enforced", true, 2 * time.Hour, true},
		{"expired but advisory", false, 2 * time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issued := now
			p := newTestPackager(t, WithClock(func() time.Time { return issued }), WithEnforceExpiry(tt.enforce))
			resp, err := p.PackageExercise(testExercise())
			if err != nil {
				t.Fatalf("PackageExercise: %v", err)
			}
			p.now = func() time.Time { return clock().Add(tt.age) }

			_, err = p.OpenGrammar(resp.SubmissionToken)
			if tt.wantErr {
				if !errors.Is(err, ErrExpired) || !errors.Is(err, ErrInvalidSubmission) {
					t.Errorf("error = %v, want ErrExpired", err)
				}
				return
			}
			if err != nil {
				t.Errorf("OpenGrammar: %v", err)
			}
		})
	}
}

func TestReplayOpensIdentically(t *testing.T) {
	p := newTestPackager(t)
	resp, err := p.PackageExercise(testExercise())
	if err != nil {
		t.Fatalf("PackageExercise: %v", err)
	}
	first, err := p.OpenGrammar(resp.SubmissionToken)
	if err != nil {
		t.Fatalf("first OpenGrammar: %v", err)
	}
	second, err := p.OpenGrammar(resp.SubmissionToken)
	if err != nil {
		t.Fatalf("second OpenGrammar: %v", err)
	}
	if len(first.AnswerKey) != len(second.AnswerKey) || first.AnswerKey[0] != second.AnswerKey[0] {
		t.Error("replayed token opened to a different payload")
	}
}
