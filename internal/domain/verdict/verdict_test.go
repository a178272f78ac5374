package verdict

import (
	"testing"

	"github.com/kailas-cloud/imgdetect/internal/domain"
)

func scoreRelevances(relevances []float64) Result {
	hits := make([]domain.Hit, len(relevances))
	for i, r := range relevances {
		hits[i] = domain.Hit{Relevance: r}
	}
	return Score(hits)
}

func TestScore_Thresholds(t *testing.T) {
	tests := []struct {
		name       string
		relevances []float64
		category   Category
		message    string
	}{
		{"forbidden", []float64{0.9, 0.85}, Forbidden, "Forbidden with 87.5% confidence."},
		{"boundary 0.8 is review", []float64{0.8}, NeedsReview, "Needs review 80.0% confidence."},
		{"boundary 0.75 is review", []float64{0.75, 0.75}, NeedsReview, "Needs review 75.0% confidence."},
		{"safe", []float64{0.5, 0.6}, Safe, "Safe 55.0%."},
		{"just above forbidden", []float64{0.8000001}, Forbidden, "Forbidden with 80.0% confidence."},
		{"just below review", []float64{0.7499}, Safe, "Safe 75.0%."},
		{"above one is not clamped", []float64{1.2}, Forbidden, "Forbidden with 120.0% confidence."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := scoreRelevances(tc.relevances)
			if r.Category() != tc.category {
				t.Errorf("Category() = %q, want %q", r.Category(), tc.category)
			}
			if r.Message() != tc.message {
				t.Errorf("Message() = %q, want %q", r.Message(), tc.message)
			}
		})
	}
}

func TestScore_NoHits(t *testing.T) {
	r := Score(nil)
	if r.Category() != NoHits {
		t.Fatalf("Category() = %q, want %q", r.Category(), NoHits)
	}
	if r.Confidence() != 0 {
		t.Errorf("Confidence() = %v, want 0", r.Confidence())
	}
	if r.Message() != "No hits returned" {
		t.Errorf("Message() = %q", r.Message())
	}

	// 0.0 would classify as Safe through the thresholds; the no-hits path must not.
	safeZero := Result{category: Classify(0), confidence: 0}
	if safeZero.Message() == r.Message() {
		t.Errorf("no-hits message must differ from safe-at-zero message %q", safeZero.Message())
	}
}

func TestScore_MissingRelevanceCountsAsZero(t *testing.T) {
	hits := []domain.Hit{
		{ItemID: "a", Relevance: 0.9},
		{ItemID: "b"},
	}
	r := Score(hits)
	if r.Confidence() != 0.45 {
		t.Errorf("Confidence() = %v, want 0.45", r.Confidence())
	}
	if r.Category() != Safe {
		t.Errorf("Category() = %q, want %q", r.Category(), Safe)
	}
	if len(r.Hits()) != 2 {
		t.Errorf("Hits() len = %d, want 2", len(r.Hits()))
	}
}

func TestClassify_Boundaries(t *testing.T) {
	tests := []struct {
		avg  float64
		want Category
	}{
		{0.81, Forbidden},
		{0.8, NeedsReview},
		{0.77, NeedsReview},
		{0.75, NeedsReview},
		{0.74999, Safe},
		{0, Safe},
		{-0.3, Safe},
	}
	for _, tc := range tests {
		if got := Classify(tc.avg); got != tc.want {
			t.Errorf("Classify(%v) = %q, want %q", tc.avg, got, tc.want)
		}
	}
}

func TestIsValid(t *testing.T) {
	for _, c := range []Category{Forbidden, NeedsReview, Safe, NoHits} {
		if !c.IsValid() {
			t.Errorf("%q.IsValid() = false, want true", c)
		}
	}
	for _, c := range []Category{"", "FORBIDDEN", "unknown"} {
		if c.IsValid() {
			t.Errorf("%q.IsValid() = true, want false", c)
		}
	}
}
