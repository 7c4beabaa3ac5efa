package model

import (
	"errors"
	"fmt"
	"time"
)

// Level is a CEFR level. All generated content currently targets B2.
type Level string

const (
	// LevelB2 is the upper-intermediate level every exercise is written for.
	LevelB2 Level = "B2"
)

// Mode selects the kind of practice round.
type Mode string

const (
	ModeGrammar Mode = "grammar"
	ModeWriting Mode = "writing"
)

// PayloadKind discriminates the sealed payloads so a grammar token cannot be
// redeemed against the writing endpoint and vice versa.
type PayloadKind string

const (
	PayloadGrammar PayloadKind = "grammar"
	PayloadWriting PayloadKind = "writing"
)

// Genre is the text type a writing task asks for.
type Genre string

const (
	GenreEmail  Genre = "email"
	GenreEssay  Genre = "essay"
	GenreReport Genre = "report"
	GenreReview Genre = "review"
)

// Valid reports whether g is one of the known genres.
func (g Genre) Valid() bool {
	switch g {
	case GenreEmail, GenreEssay, GenreReport, GenreReview:
		return true
	}
	return false
}

// Request bounds for generation.
const (
	TopicRandom      = "random"
	DefaultItems     = 10
	MinItems         = 5
	MaxItems         = 15
	MaxTargetTags    = 3
	RecommendedItems = 8
)

// GrammarTags is the controlled vocabulary for grammar answer-key tags.
var GrammarTags = []string{
	"articles",
	"prepositions",
	"narrative_tenses",
	"conditionals",
	"modals",
	"relative_clauses",
	"passive",
	"reported_speech",
	"linkers",
}

// WritingTags is the vocabulary writing assessment may report in detected_tags.
var WritingTags = append(append([]string{}, GrammarTags...),
	"register",
	"organisation",
	"cohesion",
	"vocabulary_range",
	"accuracy",
)

// AnswerKeyEntry is the authoritative answer for one item.
type AnswerKeyEntry struct {
	ItemID        string `json:"item_id"`
	CorrectAnswer string `json:"correct_answer"`
	Rationale     string `json:"rationale"`
	Tag           string `json:"tag"`
}

// ExerciseMeta describes how an exercise was generated.
type ExerciseMeta struct {
	Level     Level      `json:"level"`
	Topic     string     `json:"topic"`
	ItemTypes []ItemKind `json:"item_types"`
}

// StudentView is the part of an exercise that is safe to send in the clear.
type StudentView struct {
	Title        string `json:"title"`
	Instructions string `json:"instructions"`
	Items        Items  `json:"items"`
}

// GrammarExercise is a freshly generated exercise before packaging.
type GrammarExercise struct {
	Meta        ExerciseMeta     `json:"meta"`
	StudentView StudentView      `json:"student_view"`
	AnswerKey   []AnswerKeyEntry `json:"answer_key"`
}

// Validate checks the structural rules every generated exercise must meet.
func (e GrammarExercise) Validate() error {
	if e.Meta.Level != LevelB2 {
		return fmt.Errorf("unsupported level %q", e.Meta.Level)
	}
	if len(e.StudentView.Items) == 0 {
		return errors.New("exercise has no items")
	}
	if len(e.AnswerKey) == 0 {
		return errors.New("exercise has no answer key")
	}
	for i, it := range e.StudentView.Items {
		if err := it.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

// WordRange bounds the length of a writing submission.
type WordRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// WritingTask is the student-facing writing prompt.
type WritingTask struct {
	TaskID    string    `json:"task_id"`
	Level     Level     `json:"level"`
	Genre     Genre     `json:"genre"`
	Title     string    `json:"title"`
	Prompt    string    `json:"prompt"`
	WordRange WordRange `json:"word_range"`
}

// Validate checks a generated writing task.
func (t WritingTask) Validate() error {
	switch {
	case t.Level != LevelB2:
		return fmt.Errorf("unsupported level %q", t.Level)
	case !t.Genre.Valid():
		return fmt.Errorf("unknown genre %q", t.Genre)
	case t.Prompt == "":
		return errors.New("task prompt is empty")
	case t.WordRange.Min < 50 || t.WordRange.Max < 60:
		return fmt.Errorf("word range %d-%d below minimum", t.WordRange.Min, t.WordRange.Max)
	}
	return nil
}

// RubricDescriptors are the assessor-facing criteria for a writing task.
type RubricDescriptors struct {
	Content                  string `json:"content"`
	CommunicativeAchievement string `json:"communicative_achievement"`
	Organisation             string `json:"organisation"`
	Language                 string `json:"language"`
}

// WritingBundle is a generated writing task together with its rubric.
type WritingBundle struct {
	Task   WritingTask       `json:"task"`
	Rubric RubricDescriptors `json:"rubric"`
}

// GrammarPayload is sealed inside a grammar submission token.
type GrammarPayload struct {
	Kind      PayloadKind      `json:"kind"`
	AnswerKey []AnswerKeyEntry `json:"answer_key"`
	Meta      ExerciseMeta     `json:"meta"`
	CreatedAt time.Time        `json:"created_at"`
}

// WritingPayload is sealed inside a writing submission token.
type WritingPayload struct {
	Kind      PayloadKind       `json:"kind"`
	Task      WritingTask       `json:"task"`
	Rubric    RubricDescriptors `json:"rubric"`
	CreatedAt time.Time         `json:"created_at"`
}

// ServiceConfig holds runtime parameters set via CLI flags.
type ServiceConfig struct {
	BasePath      string        // URL prefix for sub-path deployments
	DemoMode      bool          // canned content instead of the LLM
	TokenTTL      time.Duration // advertised token validity window
	EnforceExpiry bool          // reject tokens older than TokenTTL
	Lang          string        // default UI language (en, ru)
}
