package llm

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema names a JSON schema that generator output must satisfy.
type Schema struct {
	Name       string
	Definition map[string]any
}

func str() map[string]any { return map[string]any{"type": "string"} }

func nonEmpty() map[string]any { return map[string]any{"type": "string", "minLength": 1} }

func object(required []string, props map[string]any) map[string]any {
	return map[string]any{"type": "object", "required": required, "properties": props}
}

func textItem(kind string) map[string]any {
	return object([]string{"item_id", "type", "prompt"}, map[string]any{
		"item_id": str(),
		"type":    map[string]any{"const": kind},
		"prompt":  nonEmpty(),
		"note":    str(),
	})
}

var itemKinds = []any{"mcq", "gap_fill", "sentence_transformation", "error_correction"}

// GrammarExerciseSchema describes a generated exercise with its answer key.
var GrammarExerciseSchema = &Schema{
	Name: "grammar_exercise",
	Definition: object([]string{"meta", "student_view", "answer_key"}, map[string]any{
		"meta": object([]string{"level", "topic", "item_types"}, map[string]any{
			"level":      map[string]any{"const": "B2"},
			"topic":      str(),
			"item_types": map[string]any{"type": "array", "items": map[string]any{"enum": itemKinds}},
		}),
		"student_view": object([]string{"title", "instructions", "items"}, map[string]any{
			"title":        str(),
			"instructions": str(),
			"items": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{"oneOf": []any{
					object([]string{"item_id", "type", "prompt", "options"}, map[string]any{
						"item_id": str(),
						"type":    map[string]any{"const": "mcq"},
						"prompt":  nonEmpty(),
						"options": map[string]any{"type": "array", "minItems": 2, "maxItems": 6, "items": nonEmpty()},
					}),
					textItem("gap_fill"),
					textItem("sentence_transformation"),
					textItem("error_correction"),
				}},
			},
		}),
		"answer_key": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": object([]string{"item_id", "correct_answer", "rationale", "tag"}, map[string]any{
				"item_id":        str(),
				"correct_answer": str(),
				"rationale":      str(),
				"tag":            str(),
			}),
		},
	}),
}

var rubricDescriptors = object([]string{"content", "communicative_achievement", "organisation", "language"}, map[string]any{
	"content":                   str(),
	"communicative_achievement": str(),
	"organisation":              str(),
	"language":                  str(),
})

// WritingBundleSchema describes a generated writing task and its rubric.
var WritingBundleSchema = &Schema{
	Name: "writing_bundle",
	Definition: object([]string{"task", "rubric"}, map[string]any{
		"task": object([]string{"task_id", "level", "genre", "title", "prompt", "word_range"}, map[string]any{
			"task_id": str(),
			"level":   map[string]any{"const": "B2"},
			"genre":   map[string]any{"enum": []any{"email", "essay", "report", "review"}},
			"title":   str(),
			"prompt":  nonEmpty(),
			"word_range": object([]string{"min", "max"}, map[string]any{
				"min": map[string]any{"type": "integer", "minimum": 50},
				"max": map[string]any{"type": "integer", "minimum": 60},
			}),
		}),
		"rubric": rubricDescriptors,
	}),
}

func bandEvidence() map[string]any {
	return object([]string{"band", "evidence"}, map[string]any{"band": str(), "evidence": str()})
}

// WritingFeedbackSchema describes a writing assessment.
var WritingFeedbackSchema = &Schema{
	Name: "writing_feedback",
	Definition: object([]string{
		"rubric", "priority_actions", "targeted_corrections",
		"one_paragraph_improved_example", "personalised_next_step", "detected_tags",
	}, map[string]any{
		"rubric": object([]string{"content", "communicative_achievement", "organisation", "language"}, map[string]any{
			"content":                   bandEvidence(),
			"communicative_achievement": bandEvidence(),
			"organisation":              bandEvidence(),
			"language":                  bandEvidence(),
		}),
		"priority_actions": map[string]any{"type": "array", "minItems": 1, "maxItems": 5, "items": str()},
		"targeted_corrections": map[string]any{
			"type":     "array",
			"maxItems": 12,
			"items": object([]string{"quote", "issue", "better"}, map[string]any{
				"quote":  str(),
				"issue":  str(),
				"better": str(),
			}),
		},
		"one_paragraph_improved_example": str(),
		"personalised_next_step":         str(),
		"detected_tags":                  map[string]any{"type": "array", "maxItems": 6, "items": str()},
	}),
}

// String renders the schema definition for inclusion in a prompt.
func (s *Schema) String() string {
	b, err := json.MarshalIndent(s.Definition, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// schemaCache caches compiled JSON schemas by name.
var schemaCache sync.Map // map[string]*jsonschema.Schema

// validate checks raw JSON against schema.
func validate(schema *Schema, raw []byte) error {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	compiled, err := compiledSchema(schema)
	if err != nil {
		return fmt.Errorf("compile schema %q: %w", schema.Name, err)
	}

	if err := compiled.Validate(parsed); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func compiledSchema(schema *Schema) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(schema.Name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	// The compiler wants a decoded JSON value, so round-trip the Go map.
	defBytes, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("marshal schema definition: %w", err)
	}
	var defParsed any
	if err := json.Unmarshal(defBytes, &defParsed); err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}

	c := jsonschema.NewCompiler()
	url := fmt.Sprintf("schema://%s.json", schema.Name)
	if err := c.AddResource(url, defParsed); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	schemaCache.Store(schema.Name, compiled)
	return compiled, nil
}
