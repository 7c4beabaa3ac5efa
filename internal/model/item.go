package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// ItemKind names the shape of an exercise item.
type ItemKind string

const (
	KindMCQ                    ItemKind = "mcq"
	KindGapFill                ItemKind = "gap_fill"
	KindSentenceTransformation ItemKind = "sentence_transformation"
	KindErrorCorrection        ItemKind = "error_correction"
)

// ItemKinds lists every item kind in presentation order.
var ItemKinds = []ItemKind{KindMCQ, KindGapFill, KindSentenceTransformation, KindErrorCorrection}

// Item is one student-facing exercise item. The set of implementations is
// closed: MCQ, GapFill, SentenceTransformation and ErrorCorrection.
type Item interface {
	ID() string
	Kind() ItemKind
	Validate() error
	clone() Item
}

// MCQ is a multiple-choice item.
type MCQ struct {
	ItemID  string   `json:"item_id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// GapFill asks the student to complete a sentence.
type GapFill struct {
	ItemID string `json:"item_id"`
	Prompt string `json:"prompt"`
	Note   string `json:"note,omitempty"`
}

// SentenceTransformation asks for a rewrite using a given word.
type SentenceTransformation struct {
	ItemID string `json:"item_id"`
	Prompt string `json:"prompt"`
	Note   string `json:"note,omitempty"`
}

// ErrorCorrection asks the student to fix a faulty sentence.
type ErrorCorrection struct {
	ItemID string `json:"item_id"`
	Prompt string `json:"prompt"`
	Note   string `json:"note,omitempty"`
}

func (i MCQ) ID() string                    { return i.ItemID }
func (i GapFill) ID() string                { return i.ItemID }
func (i SentenceTransformation) ID() string { return i.ItemID }
func (i ErrorCorrection) ID() string        { return i.ItemID }

func (MCQ) Kind() ItemKind                    { return KindMCQ }
func (GapFill) Kind() ItemKind                { return KindGapFill }
func (SentenceTransformation) Kind() ItemKind { return KindSentenceTransformation }
func (ErrorCorrection) Kind() ItemKind        { return KindErrorCorrection }

func (i MCQ) clone() Item {
	i.Options = slices.Clone(i.Options)
	return i
}
func (i GapFill) clone() Item                { return i }
func (i SentenceTransformation) clone() Item { return i }
func (i ErrorCorrection) clone() Item        { return i }

// Validate enforces 2-6 non-empty options.
func (i MCQ) Validate() error {
	if err := validateCommon(i.ItemID, i.Prompt); err != nil {
		return err
	}
	if len(i.Options) < 2 || len(i.Options) > 6 {
		return fmt.Errorf("mcq %s: want 2-6 options, got %d", i.ItemID, len(i.Options))
	}
	for _, o := range i.Options {
		if o == "" {
			return fmt.Errorf("mcq %s: empty option", i.ItemID)
		}
	}
	return nil
}

func (i GapFill) Validate() error                { return validateCommon(i.ItemID, i.Prompt) }
func (i SentenceTransformation) Validate() error { return validateCommon(i.ItemID, i.Prompt) }
func (i ErrorCorrection) Validate() error        { return validateCommon(i.ItemID, i.Prompt) }

func validateCommon(id, prompt string) error {
	if id == "" {
		return errors.New("item_id is empty")
	}
	if prompt == "" {
		return fmt.Errorf("item %s: prompt is empty", id)
	}
	return nil
}

// The marshalers add the "type" discriminator. The local plain types drop the
// methods so json.Marshal does not recurse.

func (i MCQ) MarshalJSON() ([]byte, error) {
	type plain MCQ
	return json.Marshal(struct {
		Type ItemKind `json:"type"`
		plain
	}{KindMCQ, plain(i)})
}

func (i GapFill) MarshalJSON() ([]byte, error) {
	type plain GapFill
	return json.Marshal(struct {
		Type ItemKind `json:"type"`
		plain
	}{KindGapFill, plain(i)})
}

func (i SentenceTransformation) MarshalJSON() ([]byte, error) {
	type plain SentenceTransformation
	return json.Marshal(struct {
		Type ItemKind `json:"type"`
		plain
	}{KindSentenceTransformation, plain(i)})
}

func (i ErrorCorrection) MarshalJSON() ([]byte, error) {
	type plain ErrorCorrection
	return json.Marshal(struct {
		Type ItemKind `json:"type"`
		plain
	}{KindErrorCorrection, plain(i)})
}

// Items is a list of exercise items decoded by their "type" field.
type Items []Item

// UnmarshalJSON decodes each element into the concrete type named by its
// discriminator. Unknown kinds are an error.
func (s *Items) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(Items, 0, len(raws))
	for n, raw := range raws {
		it, err := decodeItem(raw)
		if err != nil {
			return fmt.Errorf("item %d: %w", n, err)
		}
		out = append(out, it)
	}
	*s = out
	return nil
}

func decodeItem(raw json.RawMessage) (Item, error) {
	var head struct {
		Type ItemKind `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case KindMCQ:
		var it MCQ
		err := json.Unmarshal(raw, &it)
		return it, err
	case KindGapFill:
		var it GapFill
		err := json.Unmarshal(raw, &it)
		return it, err
	case KindSentenceTransformation:
		var it SentenceTransformation
		err := json.Unmarshal(raw, &it)
		return it, err
	case KindErrorCorrection:
		var it ErrorCorrection
		err := json.Unmarshal(raw, &it)
		return it, err
	default:
		return nil, fmt.Errorf("unknown item type %q", head.Type)
	}
}

// Clone returns a deep copy of the list that shares no memory with s.
func (s Items) Clone() Items {
	if s == nil {
		return nil
	}
	out := make(Items, len(s))
	for i, it := range s {
		out[i] = it.clone()
	}
	return out
}
