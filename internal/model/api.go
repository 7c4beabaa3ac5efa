package model

import (
	"strings"
	"time"
)

// GenerateRequest asks for a new exercise or writing task.
type GenerateRequest struct {
	Topic      string   `json:"topic"`
	Count      *int     `json:"count,omitempty"`
	TargetTags []string `json:"target_tags"`
}

// ItemCount is the requested item count: 10 when absent, clamped into [5,15].
func (r GenerateRequest) ItemCount() int {
	if r.Count == nil {
		return DefaultItems
	}
	return max(MinItems, min(MaxItems, *r.Count))
}

// Normalized applies defaults and bounds: topic falls back to "random",
// count to ItemCount, and at most three target tags are kept.
func (r GenerateRequest) Normalized() GenerateRequest {
	n := r.ItemCount()
	out := GenerateRequest{Topic: strings.TrimSpace(r.Topic), Count: &n}
	if out.Topic == "" {
		out.Topic = TopicRandom
	}
	for _, t := range r.TargetTags {
		if len(out.TargetTags) == MaxTargetTags {
			break
		}
		if t = strings.TrimSpace(t); t != "" {
			out.TargetTags = append(out.TargetTags, t)
		}
	}
	return out
}

// GrammarNewResponse is returned when a grammar exercise is issued.
type GrammarNewResponse struct {
	ExerciseID      string      `json:"exercise_id"`
	ExpiresAt       time.Time   `json:"expires_at"`
	StudentView     StudentView `json:"student_view"`
	SubmissionToken string      `json:"submission_token"`
}

// WritingNewResponse is returned when a writing task is issued.
type WritingNewResponse struct {
	TaskID          string      `json:"task_id"`
	ExpiresAt       time.Time   `json:"expires_at"`
	Task            WritingTask `json:"task"`
	SubmissionToken string      `json:"submission_token"`
}

// SubmittedAnswer is one answer posted back by the client.
type SubmittedAnswer struct {
	ItemID string `json:"item_id"`
	Value  string `json:"value"`
}

// GrammarSubmitRequest carries a token and the student's answers.
type GrammarSubmitRequest struct {
	SubmissionToken string            `json:"submission_token"`
	Answers         []SubmittedAnswer `json:"answers"`
}

// WritingSubmitRequest carries a token and the student's text.
type WritingSubmitRequest struct {
	SubmissionToken string `json:"submission_token"`
	Text            string `json:"text"`
}

// GradedResult is the outcome for one answer-key entry.
type GradedResult struct {
	ItemID        string  `json:"item_id"`
	IsCorrect     bool    `json:"is_correct"`
	CorrectAnswer string  `json:"correct_answer"`
	Explanation   string  `json:"explanation"`
	ErrorTag      *string `json:"error_tag"`
}

// Score is the aggregate of a graded submission.
type Score struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// FocusArea is a weak tag with a study tip.
type FocusArea struct {
	Tag string `json:"tag"`
	Tip string `json:"tip"`
}

// GrammarFeedback is the personalised summary of a graded submission.
type GrammarFeedback struct {
	TopStrengths  []string    `json:"top_strengths"`
	TopFocusAreas []FocusArea `json:"top_focus_areas"`
	NextStep      string      `json:"next_step"`
}

// NextRequest is a suggested follow-up generate request.
type NextRequest struct {
	Mode       Mode     `json:"mode"`
	Level      Level    `json:"level"`
	Count      int      `json:"count"`
	TargetTags []string `json:"target_tags"`
	Topic      string   `json:"topic"`
}

// GrammarSubmitResponse is the graded result of a grammar submission.
type GrammarSubmitResponse struct {
	Score                  Score           `json:"score"`
	Results                []GradedResult  `json:"results"`
	PersonalisedFeedback   GrammarFeedback `json:"personalised_feedback"`
	RecommendedNextRequest *NextRequest    `json:"recommended_next_request,omitempty"`
}

// BandEvidence is a band estimate with its justification.
type BandEvidence struct {
	Band     string `json:"band"`
	Evidence string `json:"evidence"`
}

// RubricAssessment scores a text against the four B2 criteria.
type RubricAssessment struct {
	Content                  BandEvidence `json:"content"`
	CommunicativeAchievement BandEvidence `json:"communicative_achievement"`
	Organisation             BandEvidence `json:"organisation"`
	Language                 BandEvidence `json:"language"`
}

// Correction quotes a fragment of the student's text and suggests a fix.
type Correction struct {
	Quote  string `json:"quote"`
	Issue  string `json:"issue"`
	Better string `json:"better"`
}

// WritingFeedback is the assessment of a writing submission.
type WritingFeedback struct {
	Rubric                      RubricAssessment `json:"rubric"`
	PriorityActions             []string         `json:"priority_actions"`
	TargetedCorrections         []Correction     `json:"targeted_corrections"`
	OneParagraphImprovedExample string           `json:"one_paragraph_improved_example"`
	PersonalisedNextStep        string           `json:"personalised_next_step"`
	DetectedTags                []string         `json:"detected_tags"`
}
