// Package feedback turns graded results into strengths, focus areas and a
// suggested follow-up request.
package feedback

import (
	"cmp"
	"slices"

	"github.com/pavelanni/b2coach/internal/model"
)

const (
	// FallbackStrength is reported when no correct item carries a tag.
	FallbackStrength = "overall accuracy"
	// FallbackFocusTag is reported when there are no tagged mistakes.
	FallbackFocusTag = "general"

	fallbackFocusTip = "Keep practising and review explanations for mistakes."
	genericTip       = "Focus on accuracy first, then expand your range."

	nextStepFocused = "Generate a short set targeting your top focus area and re-check the explanations."
	nextStepClean   = "Try a new random set and aim for 8/10 or higher."

	topN = 2
)

// tips is read-only after package initialization.
var tips = map[string]string{
	"articles":         "Check first mention vs. specific reference, and singular countable nouns.",
	"prepositions":     "Learn common collocations (depend on, interested in, responsible for) and fixed phrases.",
	"narrative_tenses": "Use past perfect for earlier past actions and keep tense consistency within a paragraph.",
	"conditionals":     "Choose the conditional based on time/likelihood (0/1/2/3) and keep verb forms consistent.",
	"modals":           "Use modals for deduction and advice (must/can't/might; should/ought to).",
	"relative_clauses": "Use defining vs non-defining clauses appropriately; punctuate non-defining clauses.",
	"passive":          "Use passive when the doer is unknown/unimportant; keep tense correct (is done / was done / has been done).",
	"reported_speech":  "Backshift when needed and adjust time expressions (today → that day).",
	"linkers":          "Use a range of linkers (however, therefore, whereas) and avoid repeating the same ones.",
	"verb_patterns":    "Use gerunds or infinitives appropriately after verbs (e.g., suggest + gerund, decide + to-infinitive).",
	"comparatives":     "Use comparatives and superlatives correctly; use 'the most' for the superlative of long adjectives.",
	"inversion":        "Invert the auxiliary and subject after negative adverbials for emphasis (e.g., 'Not until...' 'Rarely have...').",
	"quantifiers":      "Use 'many/few' with countable nouns and 'much/little' with uncountable nouns.",
	"time_expressions": "After 'it's high/about time' use a past simple verb to talk about the present.",
	"present_perfect":  "Use present perfect for actions that started in the past and continue to the present or when the time is not specified.",
	"word_order":       "In indirect questions, use statement word order (e.g., 'Do you know where the station is?').",
}

// Tip returns the study tip for tag, or a generic one for unknown tags.
func Tip(tag string) string {
	if tip, ok := tips[tag]; ok {
		return tip
	}
	return genericTip
}

// Build summarises results. key supplies the tags of correctly answered
// items; meta supplies the level for the recommended next request, which is
// nil when there is nothing to focus on.
func Build(results []model.GradedResult, key []model.AnswerKeyEntry, meta model.ExerciseMeta) (model.GrammarFeedback, *model.NextRequest) {
	tagOf := make(map[string]string, len(key))
	for _, k := range key {
		if _, seen := tagOf[k.ItemID]; !seen {
			tagOf[k.ItemID] = k.Tag
		}
	}

	var hits, misses []string
	for _, r := range results {
		switch {
		case r.IsCorrect:
			if tag := tagOf[r.ItemID]; tag != "" {
				hits = append(hits, tag)
			}
		case r.ErrorTag != nil && *r.ErrorTag != "":
			misses = append(misses, *r.ErrorTag)
		}
	}

	fb := model.GrammarFeedback{
		TopStrengths: rank(hits),
		NextStep:     nextStepClean,
	}
	if len(fb.TopStrengths) == 0 {
		fb.TopStrengths = []string{FallbackStrength}
	}

	focus := rank(misses)
	if len(focus) == 0 {
		fb.TopFocusAreas = []model.FocusArea{{Tag: FallbackFocusTag, Tip: fallbackFocusTip}}
		return fb, nil
	}

	fb.NextStep = nextStepFocused
	for _, tag := range focus {
		fb.TopFocusAreas = append(fb.TopFocusAreas, model.FocusArea{Tag: tag, Tip: Tip(tag)})
	}

	level := meta.Level
	if level == "" {
		level = model.LevelB2
	}
	return fb, &model.NextRequest{
		Mode:       model.ModeGrammar,
		Level:      level,
		Count:      model.RecommendedItems,
		TargetTags: focus,
		Topic:      model.TopicRandom,
	}
}

// rank returns the topN most frequent tags. Equal counts keep the order in
// which the tags were first seen.
func rank(tags []string) []string {
	type entry struct {
		tag   string
		count int
	}
	var order []entry
	index := make(map[string]int)
	for _, t := range tags {
		if i, ok := index[t]; ok {
			order[i].count++
			continue
		}
		index[t] = len(order)
		order = append(order, entry{tag: t, count: 1})
	}

	slices.SortStableFunc(order, func(a, b entry) int { return cmp.Compare(b.count, a.count) })

	var out []string
	for _, e := range order[:min(topN, len(order))] {
		out = append(out, e.tag)
	}
	return out
}
