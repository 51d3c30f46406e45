package memory

import (
	"math"
	"sync"
	"time"
)

const (
	maxConcepts         = 100
	maxErrorContexts    = 10
	maxImprovementAreas = 20
	emaKeep             = 0.9
	emaBlend            = 0.1
	agentHealthyRate    = 0.8
)

// entityProfile holds everything learned about one entity. Its lock is only
// held while a single observation is applied or a snapshot is copied out.
type entityProfile struct {
	mu           sync.Mutex
	observations int
	travel       map[SubCategory]*Counter
	budget       budgetStats
	user         *userStats
	lastSeen     time.Time
}

type budgetStats struct {
	amounts     []float64
	category    string
	flexibility float64
}

type userStats struct {
	messages    int
	queries     *Counter
	preferences Preferences
	style       string
	concepts    []string
	hours       [24]int
}

func newEntityProfile() *entityProfile {
	return &entityProfile{
		travel: map[SubCategory]*Counter{},
		budget: budgetStats{flexibility: 0.5},
	}
}

func (p *entityProfile) counter(c SubCategory) *Counter {
	ctr, ok := p.travel[c]
	if !ok {
		ctr = NewCounter()
		p.travel[c] = ctr
	}
	return ctr
}

func (p *entityProfile) applyTravel(delta travelDelta) {
	for _, c := range TravelCategories {
		buckets := delta.buckets[c]
		if len(buckets) == 0 {
			continue
		}
		ctr := p.counter(c)
		for _, b := range buckets {
			ctr.Inc(b, 1)
		}
	}
	if len(delta.amounts) == 0 {
		return
	}
	p.budget.amounts = append(p.budget.amounts, delta.amounts...)
	p.budget.category = delta.budget
	if delta.tighten {
		p.budget.flexibility = math.Max(0, p.budget.flexibility-flexibilityStep)
	}
	if delta.loosen {
		p.budget.flexibility = math.Min(1, p.budget.flexibility+flexibilityStep)
	}
}

func (p *entityProfile) applyUser(msg userDelta) {
	if p.user == nil {
		p.user = &userStats{queries: NewCounter(), style: "neutral"}
	}
	u := p.user
	u.messages++
	u.queries.Inc(msg.query, 1)
	u.hours[msg.hour]++
	if len(msg.budgetRange) > 0 {
		u.preferences.BudgetRange = msg.budgetRange
	}
	if msg.style != "" {
		u.preferences.Style = msg.style
	}
	if msg.groupSize != "" {
		u.preferences.GroupSize = msg.groupSize
	}
	if msg.language != "" {
		u.preferences.Language = msg.language
	}
	u.style = msg.interaction
	u.concepts = append(u.concepts, msg.concepts...)
	if n := len(u.concepts); n > maxConcepts {
		u.concepts = append([]string(nil), u.concepts[n-maxConcepts:]...)
	}
}

// profileView is a lock-free copy of an entity profile used by the
// synthesizer and the persistence snapshots.
type profileView struct {
	observations int
	categories   map[SubCategory][]BucketCount
	budget       budgetStats
	user         *userView
}

type userView struct {
	Messages    int         `json:"messages"`
	TopQuery    string      `json:"top_query,omitempty"`
	Preferences Preferences `json:"preferences"`
	Style       string      `json:"interaction_style"`
	Concepts    []string    `json:"concepts,omitempty"`
	PeakHour    int         `json:"peak_hour"`
}

func (p *entityProfile) view() profileView {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := profileView{
		observations: p.observations,
		categories:   map[SubCategory][]BucketCount{},
		budget: budgetStats{
			amounts:     append([]float64(nil), p.budget.amounts...),
			category:    p.budget.category,
			flexibility: p.budget.flexibility,
		},
	}
	for c, ctr := range p.travel {
		v.categories[c] = ctr.Sorted()
	}
	if p.user != nil {
		top, _, _ := p.user.queries.Top()
		peak := 0
		for h, n := range p.user.hours {
			if n > p.user.hours[peak] {
				peak = h
			}
		}
		prefs := p.user.preferences
		prefs.BudgetRange = append([]int(nil), prefs.BudgetRange...)
		v.user = &userView{
			Messages:    p.user.messages,
			TopQuery:    top,
			Preferences: prefs,
			Style:       p.user.style,
			Concepts:    append([]string(nil), p.user.concepts...),
			PeakHour:    peak,
		}
	}
	return v
}

type ImprovementArea struct {
	Area  string    `json:"area"`
	Value float64   `json:"value"`
	At    time.Time `json:"at"`
}

type agentStats struct {
	mu           sync.Mutex
	actions      int
	actionCounts *Counter
	successRate  float64
	latency      float64
	improvements []ImprovementArea
}

func newAgentStats() *agentStats {
	return &agentStats{actionCounts: NewCounter(), successRate: 1}
}

func (a *agentStats) apply(p AgentAction, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.actions++
	action := p.Action
	if action == "" {
		action = "unknown"
	}
	a.actionCounts.Inc(action, 1)
	if p.Success != nil {
		a.successRate = emaKeep*a.successRate + emaBlend*boolScore(*p.Success)
	}
	if p.LatencyMS != nil {
		a.latency = emaKeep*a.latency + emaBlend*(*p.LatencyMS)
	}
	if a.successRate < agentHealthyRate {
		a.improvements = append(a.improvements, ImprovementArea{Area: "success_rate", Value: a.successRate, At: at})
		if n := len(a.improvements); n > maxImprovementAreas {
			a.improvements = append([]ImprovementArea(nil), a.improvements[n-maxImprovementAreas:]...)
		}
	}
}

type codeStats struct {
	mu          sync.Mutex
	changes     int
	changeTypes *Counter
	errorProne  bool
	lastChanged time.Time
}

func newCodeStats() *codeStats {
	return &codeStats{changeTypes: NewCounter()}
}

func (c *codeStats) apply(p CodeChange, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.changes++
	c.lastChanged = at
	changeType := p.ChangeType
	if changeType == "" {
		changeType = "unknown"
	}
	c.changeTypes.Inc(changeType, 1)
	if c.changes > 10 && c.changeTypes.Get("bug_fix") > 5 {
		c.errorProne = true
	}
}

type workflowStats struct {
	mu          sync.Mutex
	executions  int
	avgDuration float64
	successRate float64
	bottlenecks *Counter
}

func newWorkflowStats() *workflowStats {
	return &workflowStats{bottlenecks: NewCounter(), successRate: 1}
}

func (w *workflowStats) apply(p WorkflowExecution) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.executions++
	if p.DurationMS != nil {
		w.avgDuration = emaKeep*w.avgDuration + emaBlend*(*p.DurationMS)
	}
	if p.Success != nil {
		w.successRate = emaKeep*w.successRate + emaBlend*boolScore(*p.Success)
	}
	for _, step := range p.Steps {
		if step.DurationMS > w.avgDuration*0.3 {
			w.bottlenecks.Inc(step.Name, 1)
		}
	}
}

type ErrorContext struct {
	Message string    `json:"message,omitempty"`
	Stack   string    `json:"stack,omitempty"`
	At      time.Time `json:"at"`
}

type errorStats struct {
	mu           sync.Mutex
	occurrences  int
	contexts     []ErrorContext
	solutions    *Counter
	lastOccurred time.Time
}

func newErrorStats() *errorStats {
	return &errorStats{solutions: NewCounter()}
}

// apply records one occurrence and returns the new occurrence count.
func (e *errorStats) apply(obs Observation, p ErrorEvent) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.occurrences++
	e.lastOccurred = obs.At
	e.contexts = append(e.contexts, ErrorContext{Message: obs.Message, Stack: p.Stack, At: obs.At})
	if n := len(e.contexts); n > maxErrorContexts {
		e.contexts = append([]ErrorContext(nil), e.contexts[n-maxErrorContexts:]...)
	}
	if p.Solution != "" {
		e.solutions.Inc(p.Solution, 1)
	}
	return e.occurrences
}

func boolScore(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}
