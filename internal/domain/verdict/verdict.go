// Package verdict maps nearest-neighbor relevance scores to a moderation decision.
package verdict

import (
	"fmt"

	"github.com/kailas-cloud/imgdetect/internal/domain"
)

// Category is the moderation outcome for a query image.
type Category string

// Verdict categories. NoHits is reported when the index returned nothing to compare against;
// it behaves like Safe but is kept distinguishable.
const (
	Forbidden   Category = "forbidden"
	NeedsReview Category = "needs_review"
	Safe        Category = "safe"
	NoHits      Category = "no_hits"
)

// Decision thresholds on the mean relevance.
// Forbidden is strictly above ForbiddenAbove; NeedsReview includes both bounds.
const (
	ForbiddenAbove  = 0.8
	NeedsReviewFrom = 0.75
)

const noHitsMessage = "No hits returned"

// IsValid checks if the category is one of the supported values.
func (c Category) IsValid() bool {
	return c == Forbidden || c == NeedsReview || c == Safe || c == NoHits
}

// Result is the scored outcome of a detection.
type Result struct {
	category   Category
	confidence float64
	hits       []domain.Hit
}

// Category returns the verdict category.
func (r Result) Category() Category { return r.category }

// Confidence returns the mean relevance of the hits (0 when there were none).
func (r Result) Confidence() float64 { return r.confidence }

// Hits returns the hits the verdict was computed from.
func (r Result) Hits() []domain.Hit { return r.hits }

// Percent returns the confidence scaled to 0..100.
func (r Result) Percent() float64 { return r.confidence * 100 }

// Message renders the human readable verdict.
func (r Result) Message() string {
	pct := r.Percent()
	switch r.category {
	case Forbidden:
		return fmt.Sprintf("Forbidden with %.1f%% confidence.", pct)
	case NeedsReview:
		return fmt.Sprintf("Needs review %.1f%% confidence.", pct)
	case Safe:
		return fmt.Sprintf("Safe %.1f%%.", pct)
	default:
		return noHitsMessage
	}
}

// Classify maps a mean relevance to a category.
func Classify(avg float64) Category {
	switch {
	case avg > ForbiddenAbove:
		return Forbidden
	case avg >= NeedsReviewFrom:
		return NeedsReview
	default:
		return Safe
	}
}

// Mean returns the arithmetic mean of the hits' relevance. Zero hits yield 0.
func Mean(hits []domain.Hit) float64 {
	if len(hits) == 0 {
		return 0
	}
	var sum float64
	for _, h := range hits {
		sum += h.Relevance
	}
	return sum / float64(len(hits))
}

// Score computes the verdict for a set of hits.
// With no hits the threshold comparison is skipped entirely.
func Score(hits []domain.Hit) Result {
	if len(hits) == 0 {
		return Result{category: NoHits}
	}
	avg := Mean(hits)
	return Result{
		category:   Classify(avg),
		confidence: avg,
		hits:       hits,
	}
}

