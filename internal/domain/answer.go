// Package domain contains the core business types and decision logic for
// fleet checklist inspections: answers, template trees, scoring, photo
// requirement rules and the approval workflow state machine.
//
// Everything in this package is pure. Scoring and requirement evaluation are
// total functions over well-formed input; malformed shapes are treated as
// "unanswered" rather than raised as errors, so reporting stays robust
// against legacy or partially migrated data.
package domain

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// Sentiment Normalization
// =============================================================================

// Sentiment is the canonical semantic bucket for an evaluative answer.
//
// Checklists in the field use several parallel answer vocabularies
// (Conforme/Não Conforme, Bom/Regular/Ruim, Sim/Não, thumbs, smileys) that
// mean the same three outcomes. Every raw answer string is folded into this
// single enum, and both the score calculator and the attachment requirement
// engine consume it, so the normalization lives in exactly one place.
type Sentiment int

const (
	SentimentUnknown Sentiment = iota
	SentimentPositive
	SentimentNeutral
	SentimentNegative
)

// String returns the canonical name of the sentiment.
func (s Sentiment) String() string {
	switch s {
	case SentimentPositive:
		return "positive"
	case SentimentNeutral:
		return "neutral"
	case SentimentNegative:
		return "negative"
	}
	return "unknown"
}

// sentimentVocabulary maps folded answer tokens to their semantic bucket.
// Tokens outside this table are SentimentUnknown and never earn points.
var sentimentVocabulary = map[string]Sentiment{
	// positive
	"conforme": SentimentPositive,
	"bom":      SentimentPositive,
	"otimo":    SentimentPositive,
	"sim":      SentimentPositive,

	// neutral
	"regular": SentimentNeutral,
	"meh":     SentimentNeutral,
	"na":      SentimentNeutral,

	// negative
	"nao_conforme": SentimentNegative,
	"ruim":         SentimentNegative,
	"pessimo":      SentimentNegative,
	"nao":          SentimentNegative,
}

// diacriticFolder decomposes accented characters and drops the combining
// marks, so "Não" and "nao" fold to the same token.
var diacriticFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldToken lowercases a raw answer token, strips diacritics and collapses
// separators, producing the canonical lookup form ("Não Conforme" ->
// "nao_conforme").
func FoldToken(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	if folded, _, err := transform.String(diacriticFolder, t); err == nil {
		t = folded
	}
	t = strings.ReplaceAll(t, " ", "_")
	t = strings.ReplaceAll(t, "-", "_")
	return t
}

// NormalizeAnswer maps a raw answer string to its canonical sentiment.
// Unrecognized values (free text, list selections, numbers) map to
// SentimentUnknown.
func NormalizeAnswer(raw string) Sentiment {
	return sentimentVocabulary[FoldToken(raw)]
}

// =============================================================================
// Answer Value (tagged union)
// =============================================================================

// AnswerKind discriminates the shape of an answer value.
type AnswerKind int

const (
	// AnswerKindNone means no value has been recorded.
	AnswerKindNone AnswerKind = iota
	// AnswerKindString holds evaluative, text, date, registry and
	// single-selection answers.
	AnswerKindString
	// AnswerKindNumber holds numeric answers.
	AnswerKindNumber
	// AnswerKindStrings holds multiple-selection answers.
	AnswerKindStrings
)

// AnswerValue is the tagged union of answer shapes. Answers used to be
// loosely-typed blobs with ad hoc fields per item type; keying them by kind
// makes missing-case bugs visible at read sites.
type AnswerValue struct {
	kind AnswerKind
	str  string
	num  float64
	strs []string
}

// StringValue builds a string-kind answer value.
func StringValue(s string) AnswerValue {
	return AnswerValue{kind: AnswerKindString, str: s}
}

// NumberValue builds a number-kind answer value.
func NumberValue(n float64) AnswerValue {
	return AnswerValue{kind: AnswerKindNumber, num: n}
}

// StringsValue builds a multi-selection answer value.
func StringsValue(ss []string) AnswerValue {
	return AnswerValue{kind: AnswerKindStrings, strs: ss}
}

// Kind returns the discriminator of the value.
func (v AnswerValue) Kind() AnswerKind { return v.kind }

// IsZero reports whether no value has been recorded.
func (v AnswerValue) IsZero() bool { return v.kind == AnswerKindNone }

// Text returns the string payload; ok is false for other kinds.
func (v AnswerValue) Text() (s string, ok bool) {
	return v.str, v.kind == AnswerKindString
}

// Number returns the numeric payload; ok is false for other kinds.
func (v AnswerValue) Number() (n float64, ok bool) {
	return v.num, v.kind == AnswerKindNumber
}

// Strings returns the multi-selection payload; ok is false for other kinds.
func (v AnswerValue) Strings() (ss []string, ok bool) {
	return v.strs, v.kind == AnswerKindStrings
}

// Raw returns the string form used for sentiment matching. Only string-kind
// values participate in scoring and photo requirement triggers; every other
// kind returns "".
func (v AnswerValue) Raw() string {
	if v.kind == AnswerKindString {
		return v.str
	}
	return ""
}

// MarshalJSON encodes the value by its kind: null, string, number or array.
func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case AnswerKindString:
		return json.Marshal(v.str)
	case AnswerKindNumber:
		return json.Marshal(v.num)
	case AnswerKindStrings:
		return json.Marshal(v.strs)
	}
	return []byte("null"), nil
}

// UnmarshalJSON decodes a value from its wire shape.
func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*v = AnswerValue{}
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case '[':
		var ss []string
		if err := json.Unmarshal(data, &ss); err != nil {
			return err
		}
		*v = StringsValue(ss)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = NumberValue(n)
	}
	return nil
}

// =============================================================================
// Answer
// =============================================================================

// Answer is one recorded response to a checklist item, keyed by item ID in a
// ResponseSet. Absence of a key means the item is unanswered.
type Answer struct {
	Value       AnswerValue `json:"value,omitempty"`
	Observation string      `json:"observation,omitempty"`
	Photos      []string    `json:"photos,omitempty"`
	ImageURL    string      `json:"image_url,omitempty"`
	// InlineImage holds base64-encoded photo data retained locally when the
	// object store could not be reached at capture time.
	InlineImage string     `json:"inline_image,omitempty"`
	AnsweredAt  *time.Time `json:"answered_at,omitempty"`
}

// IsAnswered reports whether a value has been recorded.
func (a Answer) IsAnswered() bool {
	return !a.Value.IsZero()
}

// HasPhotoEvidence reports whether any photo evidence is attached, including
// locally retained inline data awaiting upload.
func (a Answer) HasPhotoEvidence() bool {
	return a.ImageURL != "" || len(a.Photos) > 0 || a.InlineImage != ""
}

// AnswerPatch is a partial update to one answer. Nil fields leave the
// corresponding answer field untouched; AddPhotos appends.
type AnswerPatch struct {
	Value       *AnswerValue `json:"value,omitempty"`
	Observation *string      `json:"observation,omitempty"`
	AddPhotos   []string     `json:"add_photos,omitempty"`
	ImageURL    *string      `json:"image_url,omitempty"`
	InlineImage *string      `json:"inline_image,omitempty"`
}

// Apply merges the patch into the answer. AnsweredAt is stamped on the first
// value write and never moves after that, so photo and observation edits
// leave the original answer time intact.
func (a Answer) Apply(p AnswerPatch, now time.Time) Answer {
	if p.Value != nil {
		a.Value = *p.Value
		if a.AnsweredAt == nil && !a.Value.IsZero() {
			at := now
			a.AnsweredAt = &at
		}
	}
	if p.Observation != nil {
		a.Observation = *p.Observation
	}
	if len(p.AddPhotos) > 0 {
		a.Photos = append(append([]string(nil), a.Photos...), p.AddPhotos...)
	}
	if p.ImageURL != nil {
		a.ImageURL = *p.ImageURL
	}
	if p.InlineImage != nil {
		a.InlineImage = *p.InlineImage
	}
	return a
}

// ResponseSet maps item IDs to answers. Item IDs are stable across template
// edits, so a ResponseSet survives template versioning.
type ResponseSet map[string]Answer

// Clone returns a deep copy of the response set.
func (r ResponseSet) Clone() ResponseSet {
	if r == nil {
		return nil
	}
	out := make(ResponseSet, len(r))
	for id, a := range r {
		if a.Photos != nil {
			a.Photos = append([]string(nil), a.Photos...)
		}
		out[id] = a
	}
	return out
}
