package memory

import (
	"testing"
	"time"
)

func TestShortTermBuffer_FIFOBound(t *testing.T) {
	buf := newShortTermBuffer(3)

	first := buf.append(userMsg("u1", "first"))
	for i := 0; i < 3; i++ {
		buf.append(userMsg("u1", "next"))
	}

	if buf.len() != 3 {
		t.Fatalf("expected buffer to stay at capacity 3, got %d", buf.len())
	}
	if buf.contains(first) {
		t.Fatal("expected first-inserted entry to be evicted")
	}
}

func TestShortTermBuffer_EvictsByInsertionNotAccess(t *testing.T) {
	buf := newShortTermBuffer(2)
	a := buf.append(userMsg("u1", "a"))
	b := buf.append(userMsg("u1", "b"))

	// Reading pending entries must not refresh their position.
	_ = buf.pending()
	if !buf.contains(a) {
		t.Fatal("a should still be present before overflow")
	}
	buf.append(userMsg("u1", "c"))

	if buf.contains(a) {
		t.Fatal("a should be evicted first")
	}
	if !buf.contains(b) {
		t.Fatal("b should survive")
	}
}

func TestShortTermBuffer_PendingSkipsProcessed(t *testing.T) {
	buf := newShortTermBuffer(10)
	buf.append(userMsg("u1", "one"))
	buf.append(userMsg("u1", "two"))

	pending := buf.pending()
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
	buf.markProcessed(pending[:1])

	rest := buf.pending()
	if len(rest) != 1 || rest[0].obs.Message != "two" {
		t.Fatalf("unexpected pending entries after marking: %#v", rest)
	}
}

func TestEpisodicLog_BoundedAndOrdered(t *testing.T) {
	log := newEpisodicLog(3)
	clock := newFakeClock()
	for i := 0; i < 5; i++ {
		log.append(Episode{At: clock.Now(), Kind: KindUserMessage, Observation: userMsg("u1", string(rune('a'+i)))})
		clock.Advance(time.Second)
	}

	all := log.recent(0)
	if len(all) != 3 {
		t.Fatalf("expected 3 episodes, got %d", len(all))
	}
	if all[0].Observation.Message != "c" || all[2].Observation.Message != "e" {
		t.Fatalf("unexpected episode order: %q .. %q", all[0].Observation.Message, all[2].Observation.Message)
	}
	if last := log.recent(1); len(last) != 1 || last[0].Observation.Message != "e" {
		t.Fatalf("recent(1) should return the newest episode, got %#v", last)
	}
}

func TestLongTermStore_FirstMatchFollowsCreationOrder(t *testing.T) {
	store := newLongTermStore()
	older := &Pattern{ID: "pat-older", Kind: KindUserMessage, Representative: userMsg("u1", "paris museum tour ideas")}
	newer := &Pattern{ID: "pat-newer", Kind: KindUserMessage, Representative: userMsg("u1", "paris museum tour")}
	store.insert(older)
	store.insert(newer)

	probe := userMsg("u1", "paris museum tour")

	store.mu.Lock()
	first := store.matchLocked(probe, 0.5, false)
	best := store.matchLocked(probe, 0.5, true)
	store.mu.Unlock()

	if first == nil || first.ID != "pat-older" {
		t.Fatalf("expected first match pat-older, got %#v", first)
	}
	if best == nil || best.ID != "pat-newer" {
		t.Fatalf("expected best match pat-newer, got %#v", best)
	}
}

func TestLongTermStore_InsertRejectsDuplicateID(t *testing.T) {
	store := newLongTermStore()
	if !store.insert(&Pattern{ID: "pat-1"}) {
		t.Fatal("first insert should succeed")
	}
	if store.insert(&Pattern{ID: "pat-1"}) {
		t.Fatal("duplicate insert should be rejected")
	}
	if store.len() != 1 {
		t.Fatalf("expected 1 pattern, got %d", store.len())
	}
}
