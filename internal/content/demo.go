package content

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	mrand "math/rand/v2"
	"strings"

	"github.com/pavelanni/b2coach/internal/model"
)

type itemTemplate struct {
	kind      model.ItemKind
	prompt    string
	options   []string
	note      string
	correct   string
	rationale string
	tag       string
}

var grammarTemplates = []itemTemplate{
	{
		kind:      model.KindMCQ,
		prompt:    "By the time we arrived, the film ___.",
		options:   []string{"started", "had started", "has started", "was starting"},
		correct:   "had started",
		rationale: "Past perfect shows the earlier action happened before we arrived.",
		tag:       "narrative_tenses",
	},
	{
		kind:      model.KindGapFill,
		prompt:    "If I ____ about the traffic, I would have left earlier.",
		note:      "Complete the conditional sentence.",
		correct:   "had known",
		rationale: "Third conditional uses past perfect in the if-clause.",
		tag:       "conditionals",
	},
	{
		kind:      model.KindSentenceTransformation,
		prompt:    "Rewrite using the word given: 'Despite being tired, she finished the report.' (ALTHOUGH)",
		note:      "Use 4–8 words.",
		correct:   "Although she was tired, she finished the report.",
		rationale: "Use 'although' to introduce the contrast clause.",
		tag:       "linkers",
	},
	{
		kind:      model.KindErrorCorrection,
		prompt:    "Correct the sentence: 'I have been to London last year.'",
		note:      "Fix the tense/time expression.",
		correct:   "I went to London last year.",
		rationale: "A finished time in the past ('last year') takes past simple, not present perfect.",
		tag:       "narrative_tenses",
	},
	{
		kind:      model.KindMCQ,
		prompt:    "You ____ have told me earlier; now it's too late to change the booking.",
		options:   []string{"must", "should", "can", "might"},
		correct:   "should",
		rationale: "'Should have' expresses criticism about a past action.",
		tag:       "modals",
	},
	{
		kind:      model.KindMCQ,
		prompt:    "I wish I ____ so much coffee last night; I couldn't sleep.",
		options:   []string{"didn't drink", "haven't drunk", "hadn't drunk", "won't drink"},
		correct:   "hadn't drunk",
		rationale: "Use past perfect after 'wish' to express regret about a past action.",
		tag:       "narrative_tenses",
	},
	{
		kind:      model.KindGapFill,
		prompt:    "She would have come to the party if she ____ (know) you were there.",
		note:      "Complete the conditional sentence.",
		correct:   "had known",
		rationale: "Third conditional uses past perfect in the if-clause.",
		tag:       "conditionals",
	},
	{
		kind:      model.KindErrorCorrection,
		prompt:    "Correct the sentence: 'They suggested to go by train.'",
		note:      "Fix the verb pattern.",
		correct:   "They suggested going by train.",
		rationale: "Use a gerund after 'suggest' rather than an infinitive.",
		tag:       "verb_patterns",
	},
	{
		kind:      model.KindSentenceTransformation,
		prompt:    "Rewrite using the word given: 'I haven't seen a film as exciting as this in years.' (MOST)",
		note:      "Use 5–9 words.",
		correct:   "This is the most exciting film I have seen in years.",
		rationale: "Use the superlative form 'the most exciting' with present perfect to express experience.",
		tag:       "comparatives",
	},
	{
		kind:      model.KindMCQ,
		prompt:    "He ____ be French because he hardly speaks any French.",
		options:   []string{"can't", "mustn't", "might", "shouldn't"},
		correct:   "can't",
		rationale: "'Can't' expresses deduction that something is impossible.",
		tag:       "modals",
	},
	{
		kind:      model.KindGapFill,
		prompt:    "Not until I reached the station ____ that I'd left my wallet at home.",
		note:      "Use inversion.",
		correct:   "did I realise",
		rationale: "After 'Not until', invert the auxiliary and subject (did I realise).",
		tag:       "inversion",
	},
	{
		kind:      model.KindErrorCorrection,
		prompt:    "Correct the sentence: 'There were too much people in the concert.'",
		note:      "Check quantifiers.",
		correct:   "There were too many people at the concert.",
		rationale: "Use 'many' with countable nouns and preposition 'at' for events.",
		tag:       "quantifiers",
	},
	{
		kind:      model.KindSentenceTransformation,
		prompt:    "Rewrite using the word given: 'Although he was tired, he went to work.' (IN SPITE OF)",
		note:      "Use 5–8 words.",
		correct:   "In spite of being tired, he went to work.",
		rationale: "Use 'in spite of' followed by a gerund or noun.",
		tag:       "linkers",
	},
	{
		kind:      model.KindMCQ,
		prompt:    "If I'd known about the exam, I ____ harder.",
		options:   []string{"would have studied", "will have studied", "would study", "will study"},
		correct:   "would have studied",
		rationale: "Third conditional uses 'would have' + past participle in the result clause.",
		tag:       "conditionals",
	},
	{
		kind:      model.KindGapFill,
		prompt:    "It's high time you ____ to bed.",
		note:      "Use the correct verb form.",
		correct:   "went",
		rationale: "After 'it's high time', use past simple to suggest an action in the present.",
		tag:       "time_expressions",
	},
}

// Demo serves canned content. It never performs I/O.
type Demo struct {
	// Title and Instructions label the grammar student view.
	Title        string
	Instructions string
}

var _ Generator = (*Demo)(nil)

// NewDemo returns a Demo with English labels.
func NewDemo() *Demo {
	return &Demo{
		Title:        "B2 Grammar Mix",
		Instructions: "Complete all items. Submit to see answers and feedback.",
	}
}

// GrammarExercise shuffles the canned templates and takes req.ItemCount() of
// them, cycling when more are asked for than exist. Every item gets a fresh
// ID so repeated templates stay distinct.
func (d *Demo) GrammarExercise(_ context.Context, req model.GenerateRequest) (model.GrammarExercise, error) {
	req = req.Normalized()

	shuffled := make([]itemTemplate, len(grammarTemplates))
	copy(shuffled, grammarTemplates)
	mrand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	ex := model.GrammarExercise{
		Meta: model.ExerciseMeta{
			Level:     model.LevelB2,
			Topic:     req.Topic,
			ItemTypes: model.ItemKinds,
		},
		StudentView: model.StudentView{
			Title:        d.Title,
			Instructions: d.Instructions,
		},
	}
	if ex.Meta.Topic == model.TopicRandom {
		ex.Meta.Topic = "general"
	}

	for i := range req.ItemCount() {
		tpl := shuffled[i%len(shuffled)]
		id := newID("i")
		ex.StudentView.Items = append(ex.StudentView.Items, tpl.item(id))
		ex.AnswerKey = append(ex.AnswerKey, model.AnswerKeyEntry{
			ItemID:        id,
			CorrectAnswer: tpl.correct,
			Rationale:     tpl.rationale,
			Tag:           tpl.tag,
		})
	}
	return ex, nil
}

func (t itemTemplate) item(id string) model.Item {
	switch t.kind {
	case model.KindMCQ:
		return model.MCQ{ItemID: id, Prompt: t.prompt, Options: append([]string(nil), t.options...)}
	case model.KindGapFill:
		return model.GapFill{ItemID: id, Prompt: t.prompt, Note: t.note}
	case model.KindSentenceTransformation:
		return model.SentenceTransformation{ItemID: id, Prompt: t.prompt, Note: t.note}
	default:
		return model.ErrorCorrection{ItemID: id, Prompt: t.prompt, Note: t.note}
	}
}

// WritingTask returns the canned formal complaint email.
func (d *Demo) WritingTask(_ context.Context, _ model.GenerateRequest) (model.WritingBundle, error) {
	return model.WritingBundle{
		Task: model.WritingTask{
			TaskID: newID("wt"),
			Level:  model.LevelB2,
			Genre:  model.GenreEmail,
			Title:  "Formal email: complaint",
			Prompt: "You recently stayed at a hotel and were unhappy with the service. Write a formal email to the manager.\n\n" +
				"Include:\n" +
				"- what went wrong (give 2–3 details)\n" +
				"- how it affected your stay\n" +
				"- what solution you expect (refund, apology, future discount)\n\n" +
				"Write 180–220 words.",
			WordRange: model.WordRange{Min: 180, Max: 220},
		},
		Rubric: model.RubricDescriptors{
			Content:                  "Covers all bullet points with relevant detail.",
			CommunicativeAchievement: "Appropriate formal register and clear purpose.",
			Organisation:             "Clear paragraphs and cohesive linkers.",
			Language:                 "Range of B2 grammar and vocabulary with acceptable accuracy.",
		},
	}, nil
}

// informal maps informal words to the suggestion given for them.
var informal = []struct{ word, better string }{
	{"really", "consider a more formal alternative (e.g., 'particularly')"},
	{"wanna", "want to"},
}

// AssessWriting returns fixed feedback plus register corrections for a few
// informal words found in text.
func (d *Demo) AssessWriting(_ context.Context, _ model.WritingBundle, text string) (model.WritingFeedback, error) {
	lower := strings.ToLower(text)
	corrections := []model.Correction{}
	for _, w := range informal {
		if strings.Contains(lower, w.word) {
			corrections = append(corrections, model.Correction{Quote: w.word, Issue: "register", Better: w.better})
		}
	}

	return model.WritingFeedback{
		Rubric: model.RubricAssessment{
			Content:                  model.BandEvidence{Band: "B2", Evidence: "You address the purpose and provide some details."},
			CommunicativeAchievement: model.BandEvidence{Band: "B2-", Evidence: "Mostly formal, but some informal wording appears."},
			Organisation:             model.BandEvidence{Band: "B2", Evidence: "Paragraphing is clear and ideas are easy to follow."},
			Language:                 model.BandEvidence{Band: "B2-", Evidence: "Good range, with some preposition/article slips."},
		},
		PriorityActions: []string{
			"Keep the tone consistently formal throughout.",
			"Add 1–2 stronger linkers (However, Therefore, As a result).",
			"Check articles with singular countable nouns (a/the).",
		},
		TargetedCorrections: corrections,
		OneParagraphImprovedExample: "I would appreciate a full refund, as the service did not match what was advertised and it significantly affected my stay. " +
			"In particular, the room was not cleaned on two occasions and the noise at night prevented me from resting properly.",
		PersonalisedNextStep: "Rewrite your opening paragraph aiming for a fully formal tone and 2 clear details.",
		DetectedTags:         []string{"organisation", "register"},
	}, nil
}

func newID(prefix string) string {
	b := make([]byte, 10)
	_, _ = rand.Read(b)
	return prefix + "_" + hex.EncodeToString(b)
}
