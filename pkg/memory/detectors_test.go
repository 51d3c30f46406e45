package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyQuery(t *testing.T) {
	cases := map[string]string{
		"What does a week in Rome cost?":   "budget_question",
		"Can you recommend somewhere warm": "destination_inquiry",
		"Build me an itinerary for Kyoto":  "planning_request",
		"Tell me about local traditions":   "cultural_question",
		"Do I need a visa for Egypt":       "documentation_question",
		"Is this hotel any good":           "accommodation_question",
		"Best restaurant near the Louvre":  "dining_question",
		"how do I change my booking":       "help_request",
		"thanks":                           "general",
	}
	for msg, want := range cases {
		if got := ClassifyQuery(msg); got != want {
			t.Errorf("ClassifyQuery(%q) = %q, want %q", msg, got, want)
		}
	}
}

func TestIsTravelRelated(t *testing.T) {
	assert.True(t, IsTravelRelated("Any good MUSEUM recommendations?"))
	assert.True(t, IsTravelRelated("booking a flight"))
	assert.False(t, IsTravelRelated("refactor the parser"))
	assert.False(t, IsTravelRelated(""))
}

func TestDetect_UserMessageProfile(t *testing.T) {
	clock := newFakeClock()
	d := newDetectors(2)

	obs := Observation{
		EntityID: "u1",
		Message:  "hey, cool luxury trip for two with a budget of $2,500 lol",
		Payload:  UserMessage{Language: "fr"},
		At:       clock.Now(),
	}
	det := d.detect(obs)
	assert.True(t, det.travel)

	profile, ok := d.entities.get("u1")
	require.True(t, ok)
	view := profile.view()
	require.NotNil(t, view.user)

	assert.Equal(t, 1, view.user.Messages)
	assert.Equal(t, "budget_question", view.user.TopQuery)
	assert.Equal(t, "casual", view.user.Style)
	assert.Equal(t, Preferences{BudgetRange: []int{2500}, Style: "luxury", Language: "fr", GroupSize: "couple"}, view.user.Preferences)
	assert.Equal(t, clock.Now().Hour(), view.user.PeakHour)
	assert.Contains(t, view.user.Concepts, "luxury")
	assert.NotContains(t, view.user.Concepts, "with")
}

func TestDetect_MissingEntitySkipsEntityCounters(t *testing.T) {
	d := newDetectors(2)
	det := d.detect(userMsg("", "trip to paris"))

	assert.False(t, det.travel)
	assert.Equal(t, 0, d.entities.len())
}

func TestDetect_TravelBucketsAreNotExclusive(t *testing.T) {
	d := newDetectors(2)
	d.detect(userMsg("u1", "beach trip to bali with some hiking"))

	profile, _ := d.entities.get("u1")
	view := profile.view()

	assert.Equal(t, []BucketCount{{Bucket: "bali", Count: 1}}, view.categories[SubDestination])
	assert.Equal(t, []BucketCount{{Bucket: "summer", Count: 1}}, view.categories[SubSeason])
	assert.Equal(t, []BucketCount{{Bucket: "adventure", Count: 1}, {Bucket: "relaxation", Count: 1}}, view.categories[SubActivity])
}

func TestDetect_OrderIndependentDeltas(t *testing.T) {
	msgs := []string{
		"visit rome in april for the museum",
		"budget around $900 for a hostel in tokyo",
		"rome again, maybe a cathedral tour",
	}

	forward := newDetectors(2)
	for _, m := range msgs {
		forward.detect(userMsg("u1", m))
	}
	backward := newDetectors(2)
	for i := len(msgs) - 1; i >= 0; i-- {
		backward.detect(userMsg("u1", msgs[i]))
	}

	fp, _ := forward.entities.get("u1")
	bp, _ := backward.entities.get("u1")
	fv, bv := fp.view(), bp.view()
	for _, c := range TravelCategories {
		assert.ElementsMatch(t, fv.categories[c], bv.categories[c], "category %s", c)
	}
}

func TestDetect_BudgetCategoryAndFlexibility(t *testing.T) {
	d := newDetectors(2)
	d.detect(userMsg("u1", "trip budget around $1,200 and $800"))

	profile, _ := d.entities.get("u1")
	view := profile.view()

	assert.Equal(t, "mid-range", view.budget.category)
	assert.InDelta(t, 0.6, view.budget.flexibility, 1e-9)
	assert.Equal(t, []float64{1200, 800}, view.budget.amounts)

	d.detect(userMsg("u1", "something cheap and affordable for the trip, $300"))
	view = profile.view()
	assert.Equal(t, "budget", view.budget.category)
	assert.InDelta(t, 0.5, view.budget.flexibility, 1e-9)
}

func TestDetect_AgentSuccessRateEMA(t *testing.T) {
	d := newDetectors(2)
	for i := 0; i < 3; i++ {
		d.detect(Observation{EntityID: "planner", Payload: AgentAction{Action: "search", Success: boolPtr(false), LatencyMS: floatPtr(100)}})
	}

	reports := d.agentReports()
	require.Len(t, reports, 1)
	r := reports[0]
	assert.InDelta(t, 0.729, r.SuccessRate, 1e-9)
	assert.InDelta(t, 27.1, r.AverageLatencyMS, 1e-9)
	assert.Equal(t, "search", r.TopAction)
	assert.Len(t, r.ImprovementAreas, 1)
	assert.Equal(t, "Review and optimize agent logic", r.Recommendation)
}

func TestDetect_CodeErrorProne(t *testing.T) {
	d := newDetectors(2)
	for i := 0; i < 6; i++ {
		d.detect(Observation{Payload: CodeChange{File: "pkg/api/handler.go", ChangeType: "bug_fix"}})
	}
	for i := 0; i < 5; i++ {
		d.detect(Observation{Payload: CodeChange{File: "pkg/api/handler.go", ChangeType: "feature"}})
	}
	d.detect(Observation{Payload: CodeChange{File: "README.md", ChangeType: "docs"}})

	reports := d.codeReports()
	require.Len(t, reports, 1)
	assert.Equal(t, "pkg/api/handler.go", reports[0].File)
	assert.True(t, reports[0].ErrorProne)
	assert.Equal(t, 11, reports[0].Changes)
}

func TestDetect_WorkflowBottleneck(t *testing.T) {
	d := newDetectors(2)
	d.detect(Observation{EntityID: "deploy", Payload: WorkflowExecution{
		DurationMS: floatPtr(1000),
		Success:    boolPtr(true),
		Steps: []WorkflowStep{
			{Name: "build", DurationMS: 500},
			{Name: "lint", DurationMS: 10},
		},
	}})

	reports := d.workflowReports()
	require.Len(t, reports, 1)
	assert.InDelta(t, 100, reports[0].AverageDurationMS, 1e-9)
	assert.Equal(t, "build", reports[0].Bottleneck)
	assert.Equal(t, "Optimize step: build", reports[0].Recommendation)
}

func TestDetect_RecurringErrorFlaggedOnce(t *testing.T) {
	d := newDetectors(2)
	obs := Observation{Message: "upstream timed out", Payload: ErrorEvent{ErrorType: "timeout", Solution: "retry with backoff"}}

	assert.False(t, d.detect(obs).recurring)
	assert.True(t, d.detect(obs).recurring)
	assert.False(t, d.detect(obs).recurring)

	reports := d.errorReports()
	require.Len(t, reports, 1)
	assert.Equal(t, 3, reports[0].Occurrences)
	assert.Equal(t, "retry with backoff", reports[0].TopSolution)
	assert.Len(t, reports[0].RecentContexts, 3)
}

func TestDetect_ErrorContextsBounded(t *testing.T) {
	d := newDetectors(2)
	for i := 0; i < 15; i++ {
		d.detect(Observation{Payload: ErrorEvent{ErrorType: "oom"}})
	}
	reports := d.errorReports()
	require.Len(t, reports, 1)
	assert.Len(t, reports[0].RecentContexts, maxErrorContexts)
}

func TestCounter_TopPrefersFirstInserted(t *testing.T) {
	c := NewCounter()
	c.Inc("rome", 1)
	c.Inc("paris", 1)

	top, n, ok := c.Top()
	assert.True(t, ok)
	assert.Equal(t, "rome", top)
	assert.Equal(t, 1, n)

	c.Inc("paris", 1)
	top, _, _ = c.Top()
	assert.Equal(t, "paris", top)
	assert.Equal(t, []BucketCount{{Bucket: "paris", Count: 2}, {Bucket: "rome", Count: 1}}, c.Sorted())
}

func TestExtractConcepts_CountsCharacters(t *testing.T) {
	got := extractConcepts("café nights in sevilla with paëlla")
	assert.Equal(t, []string{"nights", "sevilla", "paëlla"}, got)
	assert.NotContains(t, got, "café")
}
