package memory

import (
	"sort"
	"time"
)

var knowledgeText = map[Kind][2]string{
	KindUserMessage:       {"Users frequently ask about this", "Prepare quick response"},
	KindAgentAction:       {"This action is common", "Optimize for speed"},
	KindCodeChange:        {"This change recurs", "Review the file for refactoring"},
	KindWorkflowExecution: {"This workflow runs often", "Cache or parallelize its steps"},
	KindError:             {"This error recurs", "Add prevention logic"},
}

// refresh rebuilds the semantic tier from the current long-term patterns.
// Patterns at or above threshold upsert their entry; entries whose pattern
// dropped below threshold or was evicted are removed. It returns the number
// of newly learned entries.
func (k *knowledgeBase) refresh(patterns []Pattern, threshold float64, now time.Time) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	live := make(map[string]struct{}, len(patterns))
	learned := 0
	for _, p := range patterns {
		if p.Strength < threshold {
			continue
		}
		live[p.ID] = struct{}{}
		text := knowledgeText[p.Kind]
		entry, ok := k.byPattern[p.ID]
		if !ok {
			entry = Knowledge{ID: "kn-" + p.ID, PatternID: p.ID, LearnedAt: now}
			learned++
		}
		entry.Kind = p.Kind
		entry.EntityID = p.EntityID
		entry.Confidence = clamp01(p.Strength)
		entry.Occurrences = p.Occurrences
		entry.Insight = text[0]
		entry.Recommendation = text[1]
		k.byPattern[p.ID] = entry
	}
	for id := range k.byPattern {
		if _, ok := live[id]; !ok {
			delete(k.byPattern, id)
		}
	}
	return learned
}

// list returns knowledge of the given kind, or all knowledge when kind is
// empty, highest confidence first.
func (k *knowledgeBase) list(kind Kind) []Knowledge {
	k.mu.RLock()
	out := make([]Knowledge, 0, len(k.byPattern))
	for _, entry := range k.byPattern {
		if kind != "" && entry.Kind != kind {
			continue
		}
		out = append(out, entry)
	}
	k.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
