package memory

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dotsetgreg/patternd/pkg/logger"
)

// detectors owns the per-category counter stores. Each store is keyed by the
// identifier that category is tracked under: entity id for users, agents and
// workflows, file path for code changes, error type for errors.
type detectors struct {
	entities       *registry[entityProfile]
	agents         *registry[agentStats]
	files          *registry[codeStats]
	workflows      *registry[workflowStats]
	errors         *registry[errorStats]
	minOccurrences int
}

func newDetectors(minOccurrences int) *detectors {
	return &detectors{
		entities:       newRegistry(newEntityProfile),
		agents:         newRegistry(newAgentStats),
		files:          newRegistry(newCodeStats),
		workflows:      newRegistry(newWorkflowStats),
		errors:         newRegistry(newErrorStats),
		minOccurrences: minOccurrences,
	}
}

// detection reports the side effects of one detect call that feed the
// engine's counters.
type detection struct {
	travel bool
	// recurring is set once per error type, on the observation that brings
	// it to the recurrence threshold.
	recurring bool
}

// detect updates every counter the observation touches. Missing entity ids
// skip the entity-scoped stores only.
func (d *detectors) detect(obs Observation) detection {
	var out detection

	var userMsg *userDelta
	var travel *travelDelta

	switch p := obs.Payload.(type) {
	case UserMessage:
		if obs.EntityID != "" {
			delta := analyzeUserMessage(obs, p)
			userMsg = &delta
		}
	case AgentAction:
		if obs.EntityID != "" {
			d.agents.acquire(obs.EntityID).apply(p, obs.At)
		}
	case CodeChange:
		if p.File != "" {
			d.files.acquire(p.File).apply(p, obs.At)
		}
	case WorkflowExecution:
		if obs.EntityID != "" {
			d.workflows.acquire(obs.EntityID).apply(p)
		}
	case ErrorEvent:
		errorType := p.ErrorType
		if errorType == "" {
			errorType = "unknown"
		}
		occurrences := d.errors.acquire(errorType).apply(obs, p)
		if occurrences >= d.minOccurrences {
			out.recurring = occurrences == d.minOccurrences
			logger.WarnCF("detector", "Recurring error pattern detected", map[string]interface{}{
				"error_type":  errorType,
				"occurrences": occurrences,
			})
		}
	}

	if obs.EntityID == "" {
		return out
	}
	if IsTravelRelated(obs.Message) {
		delta := analyzeTravel(obs.Message)
		travel = &delta
		out.travel = true
	}

	profile := d.entities.acquire(obs.EntityID)
	profile.mu.Lock()
	profile.observations++
	profile.lastSeen = obs.At
	if userMsg != nil {
		profile.applyUser(*userMsg)
	}
	if travel != nil {
		profile.applyTravel(*travel)
	}
	profile.mu.Unlock()

	return out
}

// userDelta is the pure analysis of one user message.
type userDelta struct {
	query       string
	hour        int
	budgetRange []int
	style       string
	groupSize   string
	language    string
	interaction string
	concepts    []string
}

func analyzeUserMessage(obs Observation, p UserMessage) userDelta {
	lower := strings.ToLower(obs.Message)
	delta := userDelta{
		query:       ClassifyQuery(lower),
		hour:        obs.At.Hour(),
		language:    p.Language,
		interaction: interactionStyle(lower),
		concepts:    extractConcepts(lower),
	}
	delta.budgetRange = dollarAmounts(lower)
	delta.style = travelStyle(lower)
	delta.groupSize = groupSize(lower)
	return delta
}

var queryClasses = []struct {
	label    string
	keywords []string
}{
	{"budget_question", []string{"budget", "cost", "price"}},
	{"destination_inquiry", []string{"destination", "where", "recommend"}},
	{"planning_request", []string{"plan", "itinerary", "schedule"}},
	{"cultural_question", []string{"culture", "tradition", "custom"}},
	{"documentation_question", []string{"visa", "passport", "requirement"}},
	{"accommodation_question", []string{"hotel", "accommodation", "stay"}},
	{"dining_question", []string{"food", "restaurant", "eat"}},
	{"help_request", []string{"help", "how"}},
}

// ClassifyQuery labels a message with the first matching query class, or
// "general".
func ClassifyQuery(message string) string {
	lower := strings.ToLower(message)
	for _, class := range queryClasses {
		for _, kw := range class.keywords {
			if strings.Contains(lower, kw) {
				return class.label
			}
		}
	}
	return "general"
}

var dollarPattern = regexp.MustCompile(`\$(\d+(?:,\d{3})*)`)

func dollarAmounts(lower string) []int {
	matches := dollarPattern.FindAllStringSubmatch(lower, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]int, 0, len(matches))
	for _, m := range matches {
		v, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func travelStyle(lower string) string {
	switch {
	case containsAny(lower, "luxury", "upscale"):
		return "luxury"
	case containsAny(lower, "budget", "cheap", "affordable"):
		return "budget"
	case containsAny(lower, "adventure", "active"):
		return "adventure"
	case containsAny(lower, "relax", "peaceful"):
		return "relaxation"
	case containsAny(lower, "family", "kids"):
		return "family"
	case containsAny(lower, "romantic", "couple"):
		return "romantic"
	}
	return ""
}

func groupSize(lower string) string {
	switch {
	case containsAny(lower, "solo", "alone"):
		return "solo"
	case containsAny(lower, "couple", "two"):
		return "couple"
	case containsAny(lower, "family", "group"):
		return "group"
	}
	return ""
}

var (
	casualIndicators = []string{"hey", "yeah", "cool", "awesome", "lol", "!"}
	formalIndicators = []string{"please", "kindly", "would you", "could you", "thank you"}
)

func interactionStyle(lower string) string {
	casual, formal := 0, 0
	for _, ind := range casualIndicators {
		if strings.Contains(lower, ind) {
			casual++
		}
	}
	for _, ind := range formalIndicators {
		if strings.Contains(lower, ind) {
			formal++
		}
	}
	switch {
	case casual > formal*2:
		return "casual"
	case formal > casual*2:
		return "formal"
	default:
		return "neutral"
	}
}

var conceptStopWords = map[string]struct{}{
	"about": {}, "would": {}, "could": {}, "should": {}, "there": {}, "where": {}, "which": {},
}

func extractConcepts(lower string) []string {
	var out []string
	for _, word := range strings.Fields(lower) {
		if utf8.RuneCountInString(word) <= 4 {
			continue
		}
		if _, stop := conceptStopWords[word]; stop {
			continue
		}
		out = append(out, word)
	}
	return out
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
