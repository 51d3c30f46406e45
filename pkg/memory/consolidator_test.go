package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, clock *fakeClock, gateway Gateway) *Engine {
	t.Helper()
	e, err := NewEngine(Config{Now: clock.Now}, gateway)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestConsolidate_ReinforcementScenario(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(t, clock, nil)

	e.Observe(userMsg("u1", "planning a trip to paris this summer"))
	e.Observe(userMsg("u1", "planning a trip to paris this autumn"))
	e.Observe(userMsg("u1", "planning a trip to paris this winter"))

	res := e.ConsolidateNow()
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 2, res.Absorbed)
	assert.Equal(t, 3, res.Processed)

	patterns := e.Patterns()
	require.Len(t, patterns, 1)
	assert.Equal(t, "u1", patterns[0].EntityID)
	assert.Equal(t, 1, patterns[0].Occurrences)
	assert.InDelta(t, 1.0, patterns[0].Strength, 1e-9)

	clock.Advance(time.Minute)
	e.Observe(userMsg("u1", "planning a trip to paris this spring"))
	res = e.ConsolidateNow()
	assert.Equal(t, 1, res.Reinforced)
	assert.Equal(t, 0, res.Created)

	patterns = e.Patterns()
	require.Len(t, patterns, 1)
	assert.Equal(t, 2, patterns[0].Occurrences)
	assert.InDelta(t, 1.1, patterns[0].Strength, 1e-6)
	assert.Equal(t, clock.Now(), patterns[0].LastSeenAt)
}

func TestConsolidate_ReinforcementKeepsSeedRepresentative(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(t, clock, nil)

	for i := 0; i < 3; i++ {
		e.Observe(userMsg("u1", "planning a trip to paris this summer"))
	}
	e.ConsolidateNow()
	seed := e.Patterns()[0].Representative

	clock.Advance(time.Minute)
	e.Observe(userMsg("u2", "planning a trip to paris this summer"))
	res := e.ConsolidateNow()
	require.Equal(t, 1, res.Reinforced)

	p := e.Patterns()[0]
	assert.Equal(t, 2, p.Occurrences)
	assert.Equal(t, "u1", p.EntityID)
	assert.Equal(t, p.EntityID, p.Representative.EntityID)
	assert.Equal(t, seed.ID, p.Representative.ID)
	assert.Len(t, e.Insights("u1").Patterns, 1)
}

func TestConsolidate_SkippedCyclesDoNotReprocess(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(t, clock, nil)

	for i := 0; i < 3; i++ {
		e.Observe(userMsg("u1", "looking for a beach resort in bali"))
	}
	first := e.ConsolidateNow()
	second := e.ConsolidateNow()

	assert.Equal(t, 1, first.Created)
	assert.Equal(t, 0, second.Processed)
	require.Len(t, e.Patterns(), 1)
	assert.Equal(t, 1, e.Patterns()[0].Occurrences)
}

func TestConsolidate_BelowMinOccurrencesCreatesNothing(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(t, clock, nil)

	e.Observe(userMsg("u1", "what is the visa policy for japan"))
	e.Observe(userMsg("u1", "what is the visa policy for japan"))
	e.Observe(userMsg("u2", "recommend restaurants near the colosseum"))

	res := e.ConsolidateNow()
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 3, res.Processed)
	assert.Empty(t, e.Patterns())

	// Processed entries never count as support later.
	e.Observe(userMsg("u1", "what is the visa policy for japan"))
	res = e.ConsolidateNow()
	assert.Equal(t, 0, res.Created)
}

func TestConsolidate_OccurrencesAreMonotonic(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(t, clock, nil)

	for i := 0; i < 3; i++ {
		e.Observe(Observation{EntityID: "bot", Payload: AgentAction{Action: "search_flights", Success: boolPtr(true)}})
	}
	e.ConsolidateNow()
	require.Len(t, e.Patterns(), 1)

	prev := e.Patterns()[0].Occurrences
	for n := 0; n < 5; n++ {
		clock.Advance(time.Hour)
		e.Observe(Observation{EntityID: "bot", Payload: AgentAction{Action: "search_flights", Success: boolPtr(true)}})
		e.ConsolidateNow()

		got := e.Patterns()[0].Occurrences
		if got != prev+1 {
			t.Fatalf("reinforcement %d: occurrences %d, want %d", n+1, got, prev+1)
		}
		prev = got
	}
	assert.Equal(t, 6, prev)
}

func TestConsolidate_KindsNeverShareAPattern(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(t, clock, nil)

	e.Observe(Observation{EntityID: "w1", Payload: WorkflowExecution{DurationMS: floatPtr(200)}})
	e.Observe(Observation{EntityID: "w1", Payload: WorkflowExecution{DurationMS: floatPtr(200)}})
	e.Observe(Observation{EntityID: "w1", Payload: AgentAction{Action: "x"}})

	res := e.ConsolidateNow()
	assert.Equal(t, 0, res.Created)
}

func TestConsolidate_BestMatchOptIn(t *testing.T) {
	clock := newFakeClock()
	e, err := NewEngine(Config{Now: clock.Now, ReinforceBestMatch: true}, nil)
	require.NoError(t, err)
	defer e.Close()

	e.longTerm.insert(&Pattern{ID: "pat-a", Kind: KindUserMessage, EntityID: "u1", Representative: userMsg("u1", "paris museum tour ideas"), Strength: 1, Occurrences: 1, CreatedAt: clock.Now(), LastSeenAt: clock.Now()})
	e.longTerm.insert(&Pattern{ID: "pat-b", Kind: KindUserMessage, EntityID: "u1", Representative: userMsg("u1", "paris museum tour"), Strength: 1, Occurrences: 1, CreatedAt: clock.Now(), LastSeenAt: clock.Now()})

	e.Observe(userMsg("u1", "paris museum tour"))
	e.ConsolidateNow()

	a, _ := e.Pattern("pat-a")
	b, _ := e.Pattern("pat-b")
	assert.Equal(t, 1, a.Occurrences)
	assert.Equal(t, 2, b.Occurrences)
}
