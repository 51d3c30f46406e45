package memory

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// DecayFactor is rate^(age in days). Ages at or below zero do not decay.
func DecayFactor(rate float64, age time.Duration) float64 {
	if age <= 0 {
		return 1
	}
	return math.Pow(rate, float64(age)/float64(day))
}

// decay scales every pattern by its decay factor and evicts those that fall
// below floor in the same pass. It returns the evicted ids.
func (s *longTermStore) decay(now time.Time, rate, floor float64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	kept := s.order[:0]
	for _, id := range s.order {
		p := s.byID[id]
		p.Strength *= DecayFactor(rate, now.Sub(p.LastSeenAt))
		if p.Strength < floor {
			delete(s.byID, id)
			evicted = append(evicted, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return evicted
}
