package memory

import (
	"sort"
	"sync"
)

// Counter tallies labeled buckets and remembers the order in which buckets
// first appeared, which decides ties.
type Counter struct {
	order  []string
	counts map[string]int
}

func NewCounter() *Counter {
	return &Counter{counts: map[string]int{}}
}

func (c *Counter) Inc(bucket string, n int) {
	if _, ok := c.counts[bucket]; !ok {
		c.order = append(c.order, bucket)
	}
	c.counts[bucket] += n
}

func (c *Counter) Get(bucket string) int { return c.counts[bucket] }

func (c *Counter) Len() int { return len(c.order) }

// Top returns the bucket with the highest count; the earliest inserted
// bucket wins a tie.
func (c *Counter) Top() (string, int, bool) {
	best, max := "", 0
	for _, b := range c.order {
		if n := c.counts[b]; n > max {
			best, max = b, n
		}
	}
	return best, max, max > 0
}

// Sorted lists buckets by descending count, insertion order within ties.
func (c *Counter) Sorted() []BucketCount {
	out := make([]BucketCount, 0, len(c.order))
	for _, b := range c.order {
		out = append(out, BucketCount{Bucket: b, Count: c.counts[b]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// registry is a lazily populated keyed store. The registry lock only guards
// the key set; each value carries its own lock so unrelated keys never
// serialize on each other.
type registry[T any] struct {
	mu    sync.RWMutex
	items map[string]*T
	order []string
	newFn func() *T
}

func newRegistry[T any](newFn func() *T) *registry[T] {
	return &registry[T]{items: map[string]*T{}, newFn: newFn}
}

func (r *registry[T]) acquire(key string) *T {
	r.mu.RLock()
	v, ok := r.items[key]
	r.mu.RUnlock()
	if ok {
		return v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.items[key]; ok {
		return v
	}
	v = r.newFn()
	r.items[key] = v
	r.order = append(r.order, key)
	return v
}

func (r *registry[T]) get(key string) (*T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[key]
	return v, ok
}

func (r *registry[T]) keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *registry[T]) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
