package memory

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsights_UnknownEntityHasZeroConfidence(t *testing.T) {
	e := newTestEngine(t, newFakeClock(), nil)

	in := e.Insights("ghost")
	assert.Equal(t, "ghost", in.EntityID)
	assert.Equal(t, 0.0, in.Confidence)
	assert.NotNil(t, in.Recommendations)
	assert.Empty(t, in.Recommendations)
	assert.Empty(t, in.Patterns)
	assert.Len(t, in.Categories, len(TravelCategories))
	assert.Equal(t, "unknown", in.Budget.Category)
	assert.InDelta(t, 0.5, in.Budget.Flexibility, 1e-9)
}

func TestInsights_ConfidenceBlendsVolumeAndCoverage(t *testing.T) {
	e := newTestEngine(t, newFakeClock(), nil)
	e.Observe(userMsg("u1", "visit paris in summer"))

	in := e.Insights("u1")
	// 1 observation, 2 of 6 sub-categories covered.
	want := 0.4*(1.0/20.0) + 0.6*(2.0/6.0)
	assert.InDelta(t, want, in.Confidence, 1e-9)
	assert.Equal(t, "paris", in.Category(SubDestination).Top)
	assert.Equal(t, "summer", in.Category(SubSeason).Top)
	require.Len(t, in.Recommendations, 2)
	assert.Equal(t, "destination", in.Recommendations[0].Type)
	assert.Equal(t, 0.8, in.Recommendations[0].Confidence)
	assert.Equal(t, "User shows strong interest in paris", in.Recommendations[0].Message)
	assert.Equal(t, "season", in.Recommendations[1].Type)
}

func TestInsights_ConfidenceSaturates(t *testing.T) {
	e := newTestEngine(t, newFakeClock(), nil)
	msgs := []string{
		"visit paris in summer for the museum",
		"budget of $3,000 for the trip",
		"a resort with a spa would be great for the vacation",
	}
	for i := 0; i < 30; i++ {
		e.Observe(userMsg("u1", msgs[i%len(msgs)]))
	}

	in := e.Insights("u1")
	assert.InDelta(t, 1.0, in.Confidence, 1e-9)
	assert.Len(t, in.Recommendations, len(TravelCategories))
	for _, rec := range in.Recommendations {
		assert.Equal(t, recommendationConfidence[SubCategory(rec.Type)], rec.Confidence, rec.Type)
	}
}

func TestInsights_TopTieGoesToFirstInserted(t *testing.T) {
	e := newTestEngine(t, newFakeClock(), nil)
	e.Observe(userMsg("u1", "a trip to rome"))
	e.Observe(userMsg("u1", "a trip to tokyo"))

	dest := e.Insights("u1").Category(SubDestination)
	assert.Equal(t, "rome", dest.Top)
	assert.Equal(t, 1, dest.TopCount)
}

func TestInsights_IsPureRead(t *testing.T) {
	e := newTestEngine(t, newFakeClock(), nil)
	e.Observe(userMsg("u1", "trip to cairo to see the pyramids, budget $1,500"))

	before, err := json.Marshal(e.Insights("u1"))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_ = e.Insights("u1")
		_ = e.ExportForTransfer("u1")
	}
	after, err := json.Marshal(e.Insights("u1"))
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestInsights_IncludesEntityPatterns(t *testing.T) {
	e := newTestEngine(t, newFakeClock(), nil)
	for i := 0; i < 3; i++ {
		e.Observe(userMsg("u1", "cheap hostel in barcelona please"))
	}
	e.Observe(userMsg("u2", "cheap hostel in barcelona please"))
	e.ConsolidateNow()

	in := e.Insights("u1")
	require.Len(t, in.Patterns, 1)
	assert.Equal(t, KindUserMessage, in.Patterns[0].Kind)
	assert.Empty(t, e.Insights("u2").Patterns)
}

func TestAllInsights_SortedByConfidence(t *testing.T) {
	e := newTestEngine(t, newFakeClock(), nil)
	e.Observe(userMsg("low", "hello there"))
	e.Observe(userMsg("high", "visit rome in spring for the art and a hotel tour"))

	all := e.AllInsights()
	require.Len(t, all, 2)
	assert.Equal(t, "high", all[0].EntityID)
	assert.GreaterOrEqual(t, all[0].Confidence, all[1].Confidence)
}
