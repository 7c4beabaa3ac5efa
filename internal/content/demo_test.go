package content

import (
	"context"
	"slices"
	"testing"

	"github.com/pavelanni/b2coach/internal/model"
)

func TestDemoGrammarExercise(t *testing.T) {
	d := NewDemo()

	tests := []struct {
		name      string
		req       model.GenerateRequest
		wantCount int
		wantTopic string
	}{
		{"defaults", model.GenerateRequest{}, 10, "general"},
		{"explicit zero", model.GenerateRequest{Count: count(0)}, 5, "general"},
		{"clamped low", model.GenerateRequest{Count: count(2), Topic: "travel"}, 5, "travel"},
		{"clamped high", model.GenerateRequest{Count: count(40)}, 15, "general"},
		{"exact", model.GenerateRequest{Count: count(7), Topic: "random"}, 7, "general"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, err := d.GrammarExercise(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("GrammarExercise: %v", err)
			}
			if err := ex.Validate(); err != nil {
				t.Fatalf("generated exercise invalid: %v", err)
			}
			if len(ex.StudentView.Items) != tt.wantCount || len(ex.AnswerKey) != tt.wantCount {
				t.Errorf("got %d items / %d keys, want %d", len(ex.StudentView.Items), len(ex.AnswerKey), tt.wantCount)
			}
			if ex.Meta.Topic != tt.wantTopic {
				t.Errorf("topic = %q, want %q", ex.Meta.Topic, tt.wantTopic)
			}

			seen := make(map[string]bool)
			for i, it := range ex.StudentView.Items {
				if seen[it.ID()] {
					t.Errorf("duplicate item id %s", it.ID())
				}
				seen[it.ID()] = true
				if ex.AnswerKey[i].ItemID != it.ID() {
					t.Errorf("key %d is for %s, item is %s", i, ex.AnswerKey[i].ItemID, it.ID())
				}
			}
		})
	}
}

func TestDemoMCQAnswersAreOptions(t *testing.T) {
	ex, err := NewDemo().GrammarExercise(context.Background(), model.GenerateRequest{Count: count(15)})
	if err != nil {
		t.Fatalf("GrammarExercise: %v", err)
	}
	for i, it := range ex.StudentView.Items {
		mcq, ok := it.(model.MCQ)
		if !ok {
			continue
		}
		if !slices.Contains(mcq.Options, ex.AnswerKey[i].CorrectAnswer) {
			t.Errorf("mcq %s: answer %q not among options %v", mcq.ItemID, ex.AnswerKey[i].CorrectAnswer, mcq.Options)
		}
	}
}

func TestDemoItemsDoNotShareTemplateOptions(t *testing.T) {
	ex, err := NewDemo().GrammarExercise(context.Background(), model.GenerateRequest{Count: count(15)})
	if err != nil {
		t.Fatalf("GrammarExercise: %v", err)
	}
	for _, it := range ex.StudentView.Items {
		if mcq, ok := it.(model.MCQ); ok {
			mcq.Options[0] = "mutated"
		}
	}
	for _, tpl := range grammarTemplates {
		if slices.Contains(tpl.options, "mutated") {
			t.Fatal("generated items alias the canned templates")
		}
	}
}

func TestDemoWritingTask(t *testing.T) {
	b, err := NewDemo().WritingTask(context.Background(), model.GenerateRequest{})
	if err != nil {
		t.Fatalf("WritingTask: %v", err)
	}
	if err := b.Task.Validate(); err != nil {
		t.Errorf("demo task invalid: %v", err)
	}
	if b.Rubric.Content == "" || b.Rubric.Language == "" {
		t.Errorf("rubric incomplete: %+v", b.Rubric)
	}
}

func TestDemoAssessWriting(t *testing.T) {
	d := NewDemo()

	tests := []struct {
		name   string
		text   string
		quotes []string
	}{
		{"formal", "Dear Sir or Madam, I am writing to complain.", nil},
		{"really", "I was Really unhappy.", []string{"really"}},
		{"both", "I really wanna a refund.", []string{"really", "wanna"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb, err := d.AssessWriting(context.Background(), model.WritingBundle{}, tt.text)
			if err != nil {
				t.Fatalf("AssessWriting: %v", err)
			}
			var quotes []string
			for _, c := range fb.TargetedCorrections {
				quotes = append(quotes, c.Quote)
				if c.Issue != "register" {
					t.Errorf("issue = %q, want register", c.Issue)
				}
			}
			if !slices.Equal(quotes, tt.quotes) {
				t.Errorf("corrections = %v, want %v", quotes, tt.quotes)
			}
			if !slices.Equal(fb.DetectedTags, []string{"organisation", "register"}) {
				t.Errorf("detected tags = %v", fb.DetectedTags)
			}
		})
	}
}

func count(n int) *int { return &n }
