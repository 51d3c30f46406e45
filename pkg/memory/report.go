package memory

import (
	"fmt"
	"sort"
	"time"
)

const (
	reportedImprovements = 3
	activeFileChanges    = 5
)

// Report summarizes every category the detectors track.
type Report struct {
	Users     []UserReport     `json:"users"`
	Agents    []AgentReport    `json:"agents"`
	Code      []CodeReport     `json:"code"`
	Workflows []WorkflowReport `json:"workflows"`
	Errors    []ErrorReport    `json:"errors"`
	Travel    []Insight        `json:"travel"`
}

type UserReport struct {
	EntityID         string      `json:"entity_id"`
	Messages         int         `json:"messages"`
	TopQueryType     string      `json:"top_query_type,omitempty"`
	Preferences      Preferences `json:"preferences"`
	InteractionStyle string      `json:"interaction_style"`
	PeakHour         int         `json:"peak_hour"`
	TopDestination   string      `json:"top_destination,omitempty"`
	BudgetCategory   string      `json:"budget_category"`
	PreferredSeason  string      `json:"preferred_season,omitempty"`
	Confidence       float64     `json:"confidence"`
	Recommendation   string      `json:"recommendation"`
}

type AgentReport struct {
	AgentID          string            `json:"agent_id"`
	Actions          int               `json:"actions"`
	SuccessRate      float64           `json:"success_rate"`
	AverageLatencyMS float64           `json:"average_latency_ms"`
	TopAction        string            `json:"top_action,omitempty"`
	ImprovementAreas []ImprovementArea `json:"improvement_areas"`
	Recommendation   string            `json:"recommendation"`
}

type CodeReport struct {
	File           string    `json:"file"`
	Changes        int       `json:"changes"`
	ErrorProne     bool      `json:"error_prone"`
	LastChanged    time.Time `json:"last_changed"`
	Recommendation string    `json:"recommendation"`
}

type WorkflowReport struct {
	WorkflowID        string  `json:"workflow_id"`
	Executions        int     `json:"executions"`
	AverageDurationMS float64 `json:"average_duration_ms"`
	SuccessRate       float64 `json:"success_rate"`
	Bottleneck        string  `json:"bottleneck,omitempty"`
	Recommendation    string  `json:"recommendation"`
}

type ErrorReport struct {
	ErrorType      string         `json:"error_type"`
	Occurrences    int            `json:"occurrences"`
	TopSolution    string         `json:"top_solution,omitempty"`
	RecentContexts []ErrorContext `json:"recent_contexts"`
	LastOccurred   time.Time      `json:"last_occurred"`
	Recommendation string         `json:"recommendation"`
}

func (d *detectors) agentReports() []AgentReport {
	out := []AgentReport{}
	for _, id := range d.agents.keys() {
		a, ok := d.agents.get(id)
		if !ok {
			continue
		}
		a.mu.Lock()
		top, _, _ := a.actionCounts.Top()
		areas := a.improvements
		if n := len(areas); n > reportedImprovements {
			areas = areas[n-reportedImprovements:]
		}
		r := AgentReport{
			AgentID:          id,
			Actions:          a.actions,
			SuccessRate:      a.successRate,
			AverageLatencyMS: a.latency,
			TopAction:        top,
			ImprovementAreas: append([]ImprovementArea{}, areas...),
			Recommendation:   "Performance is good",
		}
		a.mu.Unlock()
		if r.SuccessRate < agentHealthyRate {
			r.Recommendation = "Review and optimize agent logic"
		}
		out = append(out, r)
	}
	return out
}

// codeReports lists files that are error-prone or changed often.
func (d *detectors) codeReports() []CodeReport {
	out := []CodeReport{}
	for _, file := range d.files.keys() {
		c, ok := d.files.get(file)
		if !ok {
			continue
		}
		c.mu.Lock()
		r := CodeReport{
			File:           file,
			Changes:        c.changes,
			ErrorProne:     c.errorProne,
			LastChanged:    c.lastChanged,
			Recommendation: "File is stable",
		}
		c.mu.Unlock()
		if r.ErrorProne {
			r.Recommendation = "Add more tests and error handling"
		}
		if r.ErrorProne || r.Changes > activeFileChanges {
			out = append(out, r)
		}
	}
	return out
}

func (d *detectors) workflowReports() []WorkflowReport {
	out := []WorkflowReport{}
	for _, id := range d.workflows.keys() {
		w, ok := d.workflows.get(id)
		if !ok {
			continue
		}
		w.mu.Lock()
		bottleneck, _, _ := w.bottlenecks.Top()
		r := WorkflowReport{
			WorkflowID:        id,
			Executions:        w.executions,
			AverageDurationMS: w.avgDuration,
			SuccessRate:       w.successRate,
			Bottleneck:        bottleneck,
			Recommendation:    "Workflow is efficient",
		}
		w.mu.Unlock()
		if bottleneck != "" {
			r.Recommendation = fmt.Sprintf("Optimize step: %s", bottleneck)
		}
		out = append(out, r)
	}
	return out
}

// errorReports lists error types that reached the recurrence threshold.
func (d *detectors) errorReports() []ErrorReport {
	out := []ErrorReport{}
	for _, errorType := range d.errors.keys() {
		e, ok := d.errors.get(errorType)
		if !ok {
			continue
		}
		e.mu.Lock()
		solution, _, _ := e.solutions.Top()
		r := ErrorReport{
			ErrorType:      errorType,
			Occurrences:    e.occurrences,
			TopSolution:    solution,
			RecentContexts: append([]ErrorContext{}, e.contexts...),
			LastOccurred:   e.lastOccurred,
			Recommendation: "Investigate root cause",
		}
		e.mu.Unlock()
		if r.Occurrences < d.minOccurrences {
			continue
		}
		if solution != "" {
			r.Recommendation = fmt.Sprintf("Apply solution: %s", solution)
		}
		out = append(out, r)
	}
	return out
}

func userReport(entityID string, user *userView, in Insight) UserReport {
	r := UserReport{
		EntityID:         entityID,
		Messages:         user.Messages,
		TopQueryType:     user.TopQuery,
		Preferences:      user.Preferences,
		InteractionStyle: user.Style,
		PeakHour:         user.PeakHour,
		TopDestination:   in.Category(SubDestination).Top,
		BudgetCategory:   in.Budget.Category,
		PreferredSeason:  in.Category(SubSeason).Top,
		Confidence:       in.Confidence,
	}
	r.Recommendation = fmt.Sprintf("Focus on %s responses", r.TopQueryType)
	return r
}

func sortUserReports(reports []UserReport) {
	sort.SliceStable(reports, func(i, j int) bool { return reports[i].Confidence > reports[j].Confidence })
}
