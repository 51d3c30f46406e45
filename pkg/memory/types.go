package memory

import (
	"strings"
	"time"
)

// Kind tags the category an observation belongs to.
type Kind string

const (
	KindUserMessage       Kind = "user_message"
	KindAgentAction       Kind = "agent_action"
	KindCodeChange        Kind = "code_change"
	KindWorkflowExecution Kind = "workflow_execution"
	KindError             Kind = "error"
)

// Kinds lists every observation kind the detectors understand.
var Kinds = []Kind{KindUserMessage, KindAgentAction, KindCodeChange, KindWorkflowExecution, KindError}

func (k Kind) Valid() bool {
	switch k {
	case KindUserMessage, KindAgentAction, KindCodeChange, KindWorkflowExecution, KindError:
		return true
	default:
		return false
	}
}

// Payload is the kind-specific part of an observation. The set of
// implementations is closed: UserMessage, AgentAction, CodeChange,
// WorkflowExecution and ErrorEvent.
type Payload interface {
	Kind() Kind
	// Fields flattens the payload into comparable scalars. Absent optional
	// values are omitted.
	Fields() map[string]any
	isPayload()
}

type UserMessage struct {
	Language string `json:"language,omitempty"`
}

func (UserMessage) Kind() Kind { return KindUserMessage }
func (UserMessage) isPayload() {}
func (p UserMessage) Fields() map[string]any {
	out := map[string]any{}
	if p.Language != "" {
		out["language"] = p.Language
	}
	return out
}

type AgentAction struct {
	Action    string   `json:"action,omitempty"`
	Success   *bool    `json:"success,omitempty"`
	LatencyMS *float64 `json:"latency_ms,omitempty"`
}

func (AgentAction) Kind() Kind { return KindAgentAction }
func (AgentAction) isPayload() {}
func (p AgentAction) Fields() map[string]any {
	out := map[string]any{}
	if p.Action != "" {
		out["action"] = p.Action
	}
	if p.Success != nil {
		out["success"] = *p.Success
	}
	if p.LatencyMS != nil {
		out["latency_ms"] = *p.LatencyMS
	}
	return out
}

type CodeChange struct {
	File       string `json:"file,omitempty"`
	ChangeType string `json:"change_type,omitempty"`
}

func (CodeChange) Kind() Kind { return KindCodeChange }
func (CodeChange) isPayload() {}
func (p CodeChange) Fields() map[string]any {
	out := map[string]any{}
	if p.File != "" {
		out["file"] = p.File
	}
	if p.ChangeType != "" {
		out["change_type"] = p.ChangeType
	}
	return out
}

type WorkflowStep struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
}

type WorkflowExecution struct {
	DurationMS *float64       `json:"duration_ms,omitempty"`
	Success    *bool          `json:"success,omitempty"`
	Steps      []WorkflowStep `json:"steps,omitempty"`
}

func (WorkflowExecution) Kind() Kind { return KindWorkflowExecution }
func (WorkflowExecution) isPayload() {}
func (p WorkflowExecution) Fields() map[string]any {
	out := map[string]any{}
	if p.DurationMS != nil {
		out["duration_ms"] = *p.DurationMS
	}
	if p.Success != nil {
		out["success"] = *p.Success
	}
	if len(p.Steps) > 0 {
		names := make([]string, 0, len(p.Steps))
		for _, s := range p.Steps {
			names = append(names, s.Name)
		}
		out["steps"] = strings.Join(names, ">")
	}
	return out
}

type ErrorEvent struct {
	ErrorType string `json:"error_type,omitempty"`
	Stack     string `json:"stack,omitempty"`
	Solution  string `json:"solution,omitempty"`
}

func (ErrorEvent) Kind() Kind { return KindError }
func (ErrorEvent) isPayload() {}
func (p ErrorEvent) Fields() map[string]any {
	out := map[string]any{}
	if p.ErrorType != "" {
		out["error_type"] = p.ErrorType
	}
	if p.Stack != "" {
		out["stack"] = p.Stack
	}
	if p.Solution != "" {
		out["solution"] = p.Solution
	}
	return out
}

// Observation is one ingested interaction event. It is not modified after
// Observe returns.
type Observation struct {
	ID       string
	EntityID string
	Message  string
	Payload  Payload
	At       time.Time
}

// Kind returns the payload kind, or "" when the observation has no payload.
func (o Observation) Kind() Kind {
	if o.Payload == nil {
		return ""
	}
	return o.Payload.Kind()
}

// fields is the bag the similarity evaluator compares. ID and At are
// bookkeeping and never part of it.
func (o Observation) fields() map[string]any {
	out := map[string]any{"type": string(o.Kind())}
	if o.EntityID != "" {
		out["entity_id"] = o.EntityID
	}
	if o.Message != "" {
		out["message"] = o.Message
	}
	if o.Payload != nil {
		for k, v := range o.Payload.Fields() {
			out[k] = v
		}
	}
	return out
}

// Pattern is a consolidated unit of learned structure in long-term memory.
// Representative is the seed observation and EntityID is its entity; both
// stay fixed when other observations reinforce the pattern.
type Pattern struct {
	ID             string      `json:"id"`
	Kind           Kind        `json:"kind"`
	EntityID       string      `json:"entity_id,omitempty"`
	Representative Observation `json:"representative"`
	Strength       float64     `json:"strength"`
	Occurrences    int         `json:"occurrences"`
	CreatedAt      time.Time   `json:"created_at"`
	LastSeenAt     time.Time   `json:"last_seen_at"`
}

// Episode is one entry of the episodic audit log.
type Episode struct {
	At          time.Time   `json:"at"`
	Kind        Kind        `json:"kind"`
	Observation Observation `json:"observation"`
}

// Knowledge is a semantic-tier entry derived from a strong pattern.
type Knowledge struct {
	ID             string    `json:"id"`
	PatternID      string    `json:"pattern_id"`
	Kind           Kind      `json:"kind"`
	EntityID       string    `json:"entity_id,omitempty"`
	Confidence     float64   `json:"confidence"`
	Occurrences    int       `json:"occurrences"`
	Insight        string    `json:"insight"`
	Recommendation string    `json:"recommendation"`
	LearnedAt      time.Time `json:"learned_at"`
}

// Preferences is the per-entity preference snapshot derived from user messages.
type Preferences struct {
	BudgetRange []int  `json:"budget_range,omitempty"`
	Style       string `json:"style,omitempty"`
	Language    string `json:"language,omitempty"`
	GroupSize   string `json:"group_size,omitempty"`
}

// SubCategory is one of the fine-grained travel counters tracked per entity.
type SubCategory string

const (
	SubDestination   SubCategory = "destination"
	SubBudget        SubCategory = "budget"
	SubSeason        SubCategory = "season"
	SubCultural      SubCategory = "cultural"
	SubAccommodation SubCategory = "accommodation"
	SubActivity      SubCategory = "activity"
)

// TravelCategories is the fixed evaluation order for insights.
var TravelCategories = []SubCategory{SubDestination, SubBudget, SubSeason, SubCultural, SubAccommodation, SubActivity}

// BucketCount is one labeled bucket of a CategoryCounter.
type BucketCount struct {
	Bucket string `json:"bucket"`
	Count  int    `json:"count"`
}

// CategorySummary is the insight view of one sub-category counter.
type CategorySummary struct {
	Category SubCategory   `json:"category"`
	Top      string        `json:"top,omitempty"`
	TopCount int           `json:"top_count"`
	Buckets  []BucketCount `json:"buckets"`
}

type BudgetSummary struct {
	Category    string  `json:"category"`
	Latest      string  `json:"latest,omitempty"`
	Flexibility float64 `json:"flexibility"`
	AvgAmount   float64 `json:"avg_amount"`
	MinAmount   float64 `json:"min_amount"`
	MaxAmount   float64 `json:"max_amount"`
}

type PatternSummary struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Strength    float64   `json:"strength"`
	Occurrences int       `json:"occurrences"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

type Recommendation struct {
	Type       string         `json:"type"`
	Confidence float64        `json:"confidence"`
	Message    string         `json:"message"`
	Action     string         `json:"action"`
	Data       map[string]any `json:"data"`
}

// Insight is an on-demand projection of one entity's counters and patterns.
type Insight struct {
	EntityID        string            `json:"entity_id"`
	GeneratedAt     time.Time         `json:"generated_at"`
	Observations    int               `json:"observations"`
	Categories      []CategorySummary `json:"categories"`
	Budget          BudgetSummary     `json:"budget"`
	Patterns        []PatternSummary  `json:"patterns"`
	Recommendations []Recommendation  `json:"recommendations"`
	Confidence      float64           `json:"confidence"`
}

// Category returns the summary for c, or an empty summary.
func (in Insight) Category(c SubCategory) CategorySummary {
	for _, s := range in.Categories {
		if s.Category == c {
			return s
		}
	}
	return CategorySummary{Category: c, Buckets: []BucketCount{}}
}

type MemoryUsage struct {
	ShortTerm int `json:"short_term"`
	LongTerm  int `json:"long_term"`
	Episodic  int `json:"episodic"`
	Semantic  int `json:"semantic"`
}

// Stats aggregates engine counters.
type Stats struct {
	Observations     int64               `json:"observations"`
	Dropped          int64               `json:"dropped"`
	PatternsDetected int64               `json:"patterns_detected"`
	TravelInsights   int64               `json:"travel_insights"`
	KnowledgeItems   int                 `json:"knowledge_items"`
	Entities         int                 `json:"entities"`
	Memory           MemoryUsage         `json:"memory"`
	TravelPatterns   map[SubCategory]int `json:"travel_patterns"`
	LastConsolidated time.Time           `json:"last_consolidated"`
}

// ConsolidationResult summarizes one consolidation cycle.
type ConsolidationResult struct {
	Processed  int      `json:"processed"`
	Reinforced int      `json:"reinforced"`
	Created    int      `json:"created"`
	Absorbed   int      `json:"absorbed"`
	Evicted    int      `json:"evicted"`
	EvictedIDs []string `json:"evicted_ids,omitempty"`
}
