package memory

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// fifo is a fixed-capacity ring that drops the oldest element on overflow.
type fifo[T any] struct {
	items []T
	head  int
	size  int
}

func newFIFO[T any](capacity int) *fifo[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &fifo[T]{items: make([]T, capacity)}
}

func (f *fifo[T]) push(v T) (evicted T, ok bool) {
	capacity := len(f.items)
	if f.size == capacity {
		evicted = f.items[f.head]
		f.items[f.head] = v
		f.head = (f.head + 1) % capacity
		return evicted, true
	}
	f.items[(f.head+f.size)%capacity] = v
	f.size++
	return evicted, false
}

// each visits elements oldest first until fn returns false.
func (f *fifo[T]) each(fn func(T) bool) {
	for i := 0; i < f.size; i++ {
		if !fn(f.items[(f.head+i)%len(f.items)]) {
			return
		}
	}
}

func (f *fifo[T]) len() int { return f.size }

type shortTermEntry struct {
	key       string
	obs       Observation
	processed bool
}

// shortTermBuffer is the bounded recency buffer. Eviction is by insertion
// order only.
type shortTermBuffer struct {
	mu   sync.Mutex
	ring *fifo[*shortTermEntry]
}

func newShortTermBuffer(capacity int) *shortTermBuffer {
	return &shortTermBuffer{ring: newFIFO[*shortTermEntry](capacity)}
}

func (b *shortTermBuffer) append(obs Observation) string {
	entry := &shortTermEntry{key: "stm-" + uuid.NewString(), obs: obs}
	b.mu.Lock()
	b.ring.push(entry)
	b.mu.Unlock()
	return entry.key
}

// pending returns unprocessed entries oldest first.
func (b *shortTermBuffer) pending() []*shortTermEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []*shortTermEntry{}
	b.ring.each(func(e *shortTermEntry) bool {
		if !e.processed {
			out = append(out, e)
		}
		return true
	})
	return out
}

func (b *shortTermBuffer) markProcessed(entries []*shortTermEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range entries {
		e.processed = true
	}
}

func (b *shortTermBuffer) contains(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	found := false
	b.ring.each(func(e *shortTermEntry) bool {
		if e.key == key {
			found = true
			return false
		}
		return true
	})
	return found
}

func (b *shortTermBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ring.len()
}

// episodicLog is the append-only audit trail. It is never consulted for
// matching.
type episodicLog struct {
	mu   sync.Mutex
	ring *fifo[Episode]
}

func newEpisodicLog(capacity int) *episodicLog {
	return &episodicLog{ring: newFIFO[Episode](capacity)}
}

func (l *episodicLog) append(ep Episode) {
	l.mu.Lock()
	l.ring.push(ep)
	l.mu.Unlock()
}

// recent returns up to limit episodes, newest last. limit <= 0 returns all.
func (l *episodicLog) recent(limit int) []Episode {
	l.mu.Lock()
	defer l.mu.Unlock()
	all := make([]Episode, 0, l.ring.len())
	l.ring.each(func(ep Episode) bool {
		all = append(all, ep)
		return true
	})
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all
}

func (l *episodicLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.len()
}

// longTermStore holds consolidated patterns. Iteration follows insertion
// order so the first-match search is deterministic.
type longTermStore struct {
	mu    sync.RWMutex
	byID  map[string]*Pattern
	order []string
}

func newLongTermStore() *longTermStore {
	return &longTermStore{byID: map[string]*Pattern{}}
}

// insertLocked adds p unless its id is already present. Caller holds mu.
func (s *longTermStore) insertLocked(p *Pattern) bool {
	if _, ok := s.byID[p.ID]; ok {
		return false
	}
	s.byID[p.ID] = p
	s.order = append(s.order, p.ID)
	return true
}

func (s *longTermStore) insert(p *Pattern) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(p)
}

// matchLocked finds the pattern obs reinforces: the first one above threshold,
// or the highest scoring one when best is set. Caller holds mu.
func (s *longTermStore) matchLocked(obs Observation, threshold float64, best bool) *Pattern {
	var found *Pattern
	bestScore := threshold
	for _, id := range s.order {
		p := s.byID[id]
		score := Similarity(obs, p.Representative)
		if score <= threshold {
			continue
		}
		if !best {
			return p
		}
		if found == nil || score > bestScore {
			found, bestScore = p, score
		}
	}
	return found
}

func (s *longTermStore) get(id string) (Pattern, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return Pattern{}, false
	}
	return *p, true
}

// snapshot copies every pattern in insertion order.
func (s *longTermStore) snapshot() []Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Pattern, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byID[id])
	}
	return out
}

// forEntity returns the entity's patterns, strongest first.
func (s *longTermStore) forEntity(entityID string) []Pattern {
	s.mu.RLock()
	out := []Pattern{}
	for _, id := range s.order {
		if p := s.byID[id]; p.EntityID == entityID {
			out = append(out, *p)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Strength > out[j].Strength })
	return out
}

func (s *longTermStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// knowledgeBase is the semantic tier, keyed by source pattern id.
type knowledgeBase struct {
	mu        sync.RWMutex
	byPattern map[string]Knowledge
}

func newKnowledgeBase() *knowledgeBase {
	return &knowledgeBase{byPattern: map[string]Knowledge{}}
}

func (k *knowledgeBase) len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.byPattern)
}
