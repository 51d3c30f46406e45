package memory

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	confidenceVolumeWeight   = 0.4
	confidenceCoverageWeight = 0.6
	confidenceVolumeCap      = 20.0
	topInterests             = 3
)

// recommendationConfidence is fixed per sub-category.
var recommendationConfidence = map[SubCategory]float64{
	SubDestination:   0.8,
	SubBudget:        0.85,
	SubSeason:        0.7,
	SubCultural:      0.75,
	SubAccommodation: 0.7,
	SubActivity:      0.8,
}

// synthesize projects one entity's counters and patterns into an Insight.
// It only reads the copies it is given.
func synthesize(entityID string, view profileView, patterns []Pattern, now time.Time) Insight {
	in := Insight{
		EntityID:        entityID,
		GeneratedAt:     now,
		Observations:    view.observations,
		Categories:      make([]CategorySummary, 0, len(TravelCategories)),
		Budget:          summarizeBudget(view.budget),
		Patterns:        make([]PatternSummary, 0, len(patterns)),
		Recommendations: []Recommendation{},
	}

	covered := 0
	for _, c := range TravelCategories {
		buckets := view.categories[c]
		summary := CategorySummary{Category: c, Buckets: []BucketCount{}}
		if len(buckets) > 0 {
			summary.Buckets = buckets
			summary.Top = buckets[0].Bucket
			summary.TopCount = buckets[0].Count
			covered++
		}
		in.Categories = append(in.Categories, summary)
		if summary.Top != "" {
			in.Recommendations = append(in.Recommendations, recommend(summary, in.Budget))
		}
	}

	for _, p := range patterns {
		in.Patterns = append(in.Patterns, PatternSummary{
			ID:          p.ID,
			Kind:        p.Kind,
			Strength:    p.Strength,
			Occurrences: p.Occurrences,
			LastSeenAt:  p.LastSeenAt,
		})
	}

	completeness := float64(covered) / float64(len(TravelCategories))
	volume := math.Min(float64(view.observations)/confidenceVolumeCap, 1)
	in.Confidence = confidenceVolumeWeight*volume + confidenceCoverageWeight*completeness
	return in
}

func summarizeBudget(b budgetStats) BudgetSummary {
	out := BudgetSummary{Category: "unknown", Flexibility: b.flexibility}
	if len(b.amounts) == 0 {
		return out
	}
	sum := 0.0
	out.MinAmount, out.MaxAmount = b.amounts[0], b.amounts[0]
	for _, a := range b.amounts {
		sum += a
		out.MinAmount = math.Min(out.MinAmount, a)
		out.MaxAmount = math.Max(out.MaxAmount, a)
	}
	out.AvgAmount = sum / float64(len(b.amounts))
	out.Category = b.category
	out.Latest = b.category
	return out
}

func recommend(summary CategorySummary, budget BudgetSummary) Recommendation {
	rec := Recommendation{
		Type:       string(summary.Category),
		Confidence: recommendationConfidence[summary.Category],
	}
	switch summary.Category {
	case SubDestination:
		rec.Message = fmt.Sprintf("User shows strong interest in %s", summary.Top)
		rec.Action = "prioritize_destination"
		rec.Data = map[string]any{"destination": summary.Top}
	case SubBudget:
		rec.Message = fmt.Sprintf("User prefers %s travel options", summary.Top)
		rec.Action = "filter_by_budget"
		rec.Data = map[string]any{
			"category":    summary.Top,
			"avg_amount":  budget.AvgAmount,
			"flexibility": budget.Flexibility,
		}
	case SubSeason:
		rec.Message = fmt.Sprintf("User prefers to travel in %s", summary.Top)
		rec.Action = "schedule_for_season"
		rec.Data = map[string]any{"season": summary.Top}
	case SubCultural:
		rec.Message = fmt.Sprintf("User is interested in %s experiences", summary.Top)
		rec.Action = "emphasize_cultural_aspects"
		rec.Data = map[string]any{"interests": topBuckets(summary.Buckets, topInterests)}
	case SubAccommodation:
		rec.Message = fmt.Sprintf("User prefers %s accommodation", strings.ReplaceAll(summary.Top, "_", " "))
		rec.Action = "filter_accommodation"
		rec.Data = map[string]any{"accommodation": summary.Top}
	case SubActivity:
		preferred := topBuckets(summary.Buckets, topInterests)
		rec.Message = fmt.Sprintf("Suggest activities: %s", strings.Join(preferred, ", "))
		rec.Action = "personalize_itinerary"
		rec.Data = map[string]any{"preferred_activities": preferred}
	}
	return rec
}

func topBuckets(buckets []BucketCount, n int) []string {
	if len(buckets) < n {
		n = len(buckets)
	}
	out := make([]string, 0, n)
	for _, b := range buckets[:n] {
		out = append(out, b.Bucket)
	}
	return out
}
