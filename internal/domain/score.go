// This file implements the checklist score calculator.
package domain

import "math"

// ItemBaseWeight is the fixed point weight of every scorable item,
// independent of area or sub-area nesting.
const ItemBaseWeight = 10.0

// Score is the result of scoring a response set against a template.
type Score struct {
	// Value is the percentage score, 0..100, rounded to two decimals.
	Value float64 `json:"value"`

	// MaxPoints is the total achievable points across scorable items.
	MaxPoints float64 `json:"max_points"`

	// EarnedPoints is the points actually earned.
	EarnedPoints float64 `json:"earned_points"`

	// TotalItems is the number of scorable items considered.
	TotalItems int `json:"total_items"`

	// Passed reports whether Value met the template's pass threshold.
	// A template with nothing to score cannot fail scoring.
	Passed bool `json:"passed"`
}

// CalculateScore walks the template tree and aggregates answer points into a
// 0-100 score plus pass/fail against the template's configured threshold.
//
// Only evaluative items count; every other item type is skipped regardless of
// its answer. Per item: a positive answer earns the full weight, a neutral
// answer half, a negative or unrecognized answer zero, and an unanswered item
// zero. The function is pure and safe to re-run as a fallback whenever a
// persisted score is absent.
func CalculateScore(tpl *Template, responses ResponseSet) Score {
	var s Score

	tpl.WalkItems(func(item Item) bool {
		if !item.Type.Scorable() {
			return true
		}
		s.TotalItems++
		s.MaxPoints += ItemBaseWeight

		answer, ok := responses[item.ID]
		if !ok || !answer.IsAnswered() {
			return true
		}

		switch NormalizeAnswer(answer.Value.Raw()) {
		case SentimentPositive:
			s.EarnedPoints += ItemBaseWeight
		case SentimentNeutral:
			s.EarnedPoints += ItemBaseWeight / 2
		}
		return true
	})

	if s.MaxPoints == 0 {
		s.Passed = true
		return s
	}

	s.Value = round2(s.EarnedPoints / s.MaxPoints * 100)
	s.Passed = s.Value >= tpl.PassThreshold()
	return s
}

// round2 rounds to two decimal places.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
