package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/b2coach/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const maxTextRunes = 10000

var (
	studentTextRegex        = regexp.MustCompile(`(?i)</?\s*student-text\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

// PromptVariant represents a writing assessment strictness.
type PromptVariant string

const (
	// PromptStrict holds every criterion to the full band descriptor.
	PromptStrict PromptVariant = "strict"
	// PromptStandard is the default assessment variant.
	PromptStandard PromptVariant = "standard"
	// PromptLenient gives borderline work the higher band.
	PromptLenient PromptVariant = "lenient"
)

var validVariants = map[PromptVariant]bool{
	PromptStrict:   true,
	PromptStandard: true,
	PromptLenient:  true,
}

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[PromptVariant(v)]
}

var (
	loadOnce  sync.Once
	loadErr   error
	templates *template.Template
)

func load() error {
	loadOnce.Do(func() {
		templates, loadErr = template.New("prompts").
			Funcs(template.FuncMap{"join": strings.Join}).
			ParseFS(templateFS, "templates/*.tmpl")
	})
	return loadErr
}

// Prompt is a system/user message pair.
type Prompt struct {
	System string
	User   string
}

// GrammarData holds template data for grammar exercise generation.
type GrammarData struct {
	Count      int
	Topic      string
	TargetTags []string
	Tags       []string
	Schema     string
}

// WritingTaskData holds template data for writing task generation.
type WritingTaskData struct {
	Topic      string
	TargetTags []string
	Genres     []string
	Schema     string
}

// AssessData holds template data for writing assessment.
type AssessData struct {
	Variant    PromptVariant
	TaskPrompt string
	Rubric     model.RubricDescriptors
	Text       string
	Tags       []string
	Schema     string
}

// Grammar builds the exercise generation prompt.
func Grammar(d GrammarData) (Prompt, error) {
	if len(d.Tags) == 0 {
		d.Tags = model.GrammarTags
	}
	return build("grammar", d)
}

// WritingTask builds the writing task generation prompt.
func WritingTask(d WritingTaskData) (Prompt, error) {
	if len(d.Genres) == 0 {
		d.Genres = []string{
			string(model.GenreEmail), string(model.GenreEssay),
			string(model.GenreReport), string(model.GenreReview),
		}
	}
	return build("writing_task", d)
}

// AssessWriting builds the writing assessment prompt. The student's text is
// sanitized before it is placed inside the prompt.
func AssessWriting(d AssessData) (Prompt, error) {
	if !validVariants[d.Variant] {
		d.Variant = PromptStandard
	}
	if len(d.Tags) == 0 {
		d.Tags = model.WritingTags
	}
	d.Text = SanitizeText(d.Text)
	return build("writing_assess", d)
}

func build(name string, data any) (Prompt, error) {
	if err := load(); err != nil {
		return Prompt{}, fmt.Errorf("load prompt templates: %w", err)
	}
	system, err := render(name+"_system.tmpl", data)
	if err != nil {
		return Prompt{}, err
	}
	user, err := render(name+"_user.tmpl", data)
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{System: system, User: user}, nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// SanitizeText strips delimiter tags a student could use to break out of
// the text block, and truncates very long input.
func SanitizeText(text string) string {
	text = studentTextRegex.ReplaceAllString(text, "")
	text = systemInstructionsRegex.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if text == "" {
		return "[No text provided]"
	}

	if utf8.RuneCountInString(text) > maxTextRunes {
		runes := []rune(text)
		text = string(runes[:maxTextRunes]) + "\n\n[Text truncated due to length]"
	}

	return text
}
