package memory

import (
	"time"

	"github.com/google/uuid"

	"github.com/dotsetgreg/patternd/pkg/logger"
)

// consolidator moves pending short-term entries into long-term memory. It is
// the only writer of the long-term store.
type consolidator struct {
	shortTerm *shortTermBuffer
	longTerm  *longTermStore

	similarityThreshold float64
	minOccurrences      int
	learningRate        float64
	bestMatch           bool
}

// consolidate processes every unprocessed short-term entry once. Entries are
// visited in insertion order; each one either reinforces an existing
// pattern, seeds a new one together with enough similar peers, or is
// dropped from further consideration.
func (c *consolidator) consolidate(now time.Time) ConsolidationResult {
	pending := c.shortTerm.pending()
	res := ConsolidationResult{}
	if len(pending) == 0 {
		return res
	}

	done := make([]bool, len(pending))

	c.longTerm.mu.Lock()
	for i, entry := range pending {
		if done[i] {
			continue
		}
		done[i] = true
		res.Processed++

		if p := c.longTerm.matchLocked(entry.obs, c.similarityThreshold, c.bestMatch); p != nil {
			p.Strength += c.learningRate
			p.Occurrences++
			p.LastSeenAt = now
			res.Reinforced++
			continue
		}

		peers := c.similarPeers(pending, done, i)
		if len(peers) < c.minOccurrences {
			continue
		}
		p := &Pattern{
			ID:             "pat-" + uuid.NewString(),
			Kind:           entry.obs.Kind(),
			EntityID:       entry.obs.EntityID,
			Representative: entry.obs,
			Strength:       1.0,
			Occurrences:    1,
			CreatedAt:      now,
			LastSeenAt:     now,
		}
		c.longTerm.insertLocked(p)
		for _, j := range peers {
			done[j] = true
		}
		res.Created++
		res.Absorbed += len(peers)
		res.Processed += len(peers)

		logger.InfoCF("consolidation", "New pattern created", map[string]interface{}{
			"pattern_id": p.ID,
			"kind":       string(p.Kind),
			"entity_id":  p.EntityID,
			"support":    len(peers) + 1,
		})
	}
	c.longTerm.mu.Unlock()

	c.shortTerm.markProcessed(pending)
	return res
}

// similarPeers lists the other still-pending entries similar to pending[i].
func (c *consolidator) similarPeers(pending []*shortTermEntry, done []bool, i int) []int {
	var peers []int
	for j, other := range pending {
		if j == i || done[j] {
			continue
		}
		if Similarity(pending[i].obs, other.obs) > c.similarityThreshold {
			peers = append(peers, j)
		}
	}
	return peers
}
