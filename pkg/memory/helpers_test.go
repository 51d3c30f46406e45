package memory

import (
	"context"
	"sync"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func userMsg(entityID, message string) Observation {
	return Observation{EntityID: entityID, Message: message, Payload: UserMessage{}}
}

func boolPtr(v bool) *bool        { return &v }
func floatPtr(v float64) *float64 { return &v }

// recordingGateway is an in-memory Gateway that remembers every call.
type recordingGateway struct {
	mu          sync.Mutex
	saved       [][]Pattern
	deleted     []string
	load        []Pattern
	insights    map[string]Insight
	preferences map[string]Preferences
	saveErr     error
	closed      int
}

func newRecordingGateway() *recordingGateway {
	return &recordingGateway{insights: map[string]Insight{}, preferences: map[string]Preferences{}}
}

func (g *recordingGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed++
	return nil
}

func (g *recordingGateway) SavePatterns(_ context.Context, patterns []Pattern) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.saveErr != nil {
		return g.saveErr
	}
	g.saved = append(g.saved, append([]Pattern(nil), patterns...))
	return nil
}

func (g *recordingGateway) DeletePatterns(_ context.Context, ids []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, ids...)
	return nil
}

func (g *recordingGateway) LoadPatterns(_ context.Context, minStrength float64, limit int) ([]Pattern, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := []Pattern{}
	for _, p := range g.load {
		if p.Strength > minStrength && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (g *recordingGateway) SaveEntityInsight(_ context.Context, entityID string, insight Insight) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.insights[entityID] = insight
	return nil
}

func (g *recordingGateway) SaveEntityPreferences(_ context.Context, entityID string, prefs Preferences) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.preferences[entityID] = prefs
	return nil
}

func (g *recordingGateway) LatestEntityInsight(_ context.Context, entityID string) (Insight, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.insights[entityID]
	return in, ok, nil
}

func (g *recordingGateway) EntityPreferences(_ context.Context, entityID string) (Preferences, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.preferences[entityID]
	return p, ok, nil
}
