package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/pavelanni/b2coach/internal/content"
	"github.com/pavelanni/b2coach/internal/grading"
	"github.com/pavelanni/b2coach/internal/llm/prompts"
	"github.com/pavelanni/b2coach/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.PromptVariant
}

var _ content.Generator = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithVariant sets the writing assessment prompt variant.
func WithVariant(v prompts.PromptVariant) Option {
	return func(c *Client) { c.variant = v }
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string, opts ...Option) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	c := &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: prompts.PromptStandard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Ping checks that the endpoint is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return &UpstreamError{Op: "ping", Err: err}
	}
	return nil
}

// GrammarExercise generates an exercise together with its answer key.
func (c *Client) GrammarExercise(ctx context.Context, req model.GenerateRequest) (model.GrammarExercise, error) {
	req = req.Normalized()
	p, err := prompts.Grammar(prompts.GrammarData{
		Count:      req.ItemCount(),
		Topic:      req.Topic,
		TargetTags: req.TargetTags,
		Schema:     GrammarExerciseSchema.String(),
	})
	if err != nil {
		return model.GrammarExercise{}, err
	}

	var ex model.GrammarExercise
	if err := c.complete(ctx, "grammar", p, GrammarExerciseSchema, 0.4, &ex); err != nil {
		return model.GrammarExercise{}, err
	}
	if err := ex.Validate(); err != nil {
		return model.GrammarExercise{}, &UpstreamError{Op: "grammar", Err: err}
	}
	if err := keyCoversItems(ex); err != nil {
		return model.GrammarExercise{}, &UpstreamError{Op: "grammar", Err: err}
	}
	if ex.Meta.Topic == "" {
		ex.Meta.Topic = req.Topic
	}
	return ex, nil
}

// keyCoversItems checks that the answer key and the student items name the
// same ids, each exactly once, and that MCQ answers are among the options.
func keyCoversItems(ex model.GrammarExercise) error {
	items := make(map[string]model.Item, len(ex.StudentView.Items))
	for _, it := range ex.StudentView.Items {
		if _, dup := items[it.ID()]; dup {
			return fmt.Errorf("duplicate item id %q", it.ID())
		}
		items[it.ID()] = it
	}
	keyed := make(map[string]bool, len(ex.AnswerKey))
	for _, k := range ex.AnswerKey {
		if keyed[k.ItemID] {
			return fmt.Errorf("duplicate answer key entry for %q", k.ItemID)
		}
		keyed[k.ItemID] = true
		it, ok := items[k.ItemID]
		if !ok {
			return fmt.Errorf("answer key entry %q has no item", k.ItemID)
		}
		if mcq, ok := it.(model.MCQ); ok && !slices.ContainsFunc(mcq.Options, func(o string) bool {
			return grading.Normalize(o) == grading.Normalize(k.CorrectAnswer)
		}) {
			return fmt.Errorf("item %q: answer %q is not an option", k.ItemID, k.CorrectAnswer)
		}
	}
	for id := range items {
		if !keyed[id] {
			return fmt.Errorf("item %q has no answer key entry", id)
		}
	}
	return nil
}

// WritingTask generates a writing task and the rubric used to assess it.
func (c *Client) WritingTask(ctx context.Context, req model.GenerateRequest) (model.WritingBundle, error) {
	req = req.Normalized()
	p, err := prompts.WritingTask(prompts.WritingTaskData{
		Topic:      req.Topic,
		TargetTags: req.TargetTags,
		Schema:     WritingBundleSchema.String(),
	})
	if err != nil {
		return model.WritingBundle{}, err
	}

	var b model.WritingBundle
	if err := c.complete(ctx, "writing task", p, WritingBundleSchema, 0.5, &b); err != nil {
		return model.WritingBundle{}, err
	}
	if err := b.Task.Validate(); err != nil {
		return model.WritingBundle{}, &UpstreamError{Op: "writing task", Err: err}
	}
	return b, nil
}

// AssessWriting assesses text against the task and rubric in bundle.
func (c *Client) AssessWriting(ctx context.Context, bundle model.WritingBundle, text string) (model.WritingFeedback, error) {
	p, err := prompts.AssessWriting(prompts.AssessData{
		Variant:    c.variant,
		TaskPrompt: bundle.Task.Prompt,
		Rubric:     bundle.Rubric,
		Text:       text,
		Schema:     WritingFeedbackSchema.String(),
	})
	if err != nil {
		return model.WritingFeedback{}, err
	}

	var fb model.WritingFeedback
	if err := c.complete(ctx, "writing assessment", p, WritingFeedbackSchema, 0.2, &fb); err != nil {
		return model.WritingFeedback{}, err
	}
	if fb.TargetedCorrections == nil {
		fb.TargetedCorrections = []model.Correction{}
	}
	if fb.DetectedTags == nil {
		fb.DetectedTags = []string{}
	}
	return fb, nil
}

// complete runs one chat completion in JSON mode, validates the reply
// against schema and decodes it into out.
func (c *Client) complete(ctx context.Context, op string, p prompts.Prompt, schema *Schema, temperature float32, out any) error {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: temperature,
	})
	if err != nil {
		return &UpstreamError{Op: op, Err: fmt.Errorf("API call: %w", err)}
	}

	if len(resp.Choices) == 0 {
		return &UpstreamError{Op: op, Err: errors.New("no choices returned")}
	}

	raw := resp.Choices[0].Message.Content
	// The reply may carry an answer key, so only its size is logged.
	slog.Debug("LLM response", "op", op, "model", c.model, "bytes", len(raw))

	if raw == "" {
		return &UpstreamError{Op: op, Err: errors.New("empty content")}
	}
	if err := validate(schema, []byte(raw)); err != nil {
		return &UpstreamError{Op: op, Err: err}
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return &UpstreamError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
