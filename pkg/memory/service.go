package memory

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dotsetgreg/patternd/pkg/logger"
)

// Config configures the learning engine.
type Config struct {
	ShortTermCapacity   int
	EpisodicCapacity    int
	SimilarityThreshold float64
	MinOccurrences      int
	LearningRate        float64
	DecayRate           float64
	EvictionStrength    float64
	KnowledgeThreshold  float64
	ReinforceBestMatch  bool

	// ConsolidateInterval is the period of the background loop. Every cycle
	// decays each pattern by DecayRate^(days since last seen), so the factor
	// compounds per cycle: at the 30s default an idle pattern at strength 1
	// is evicted within hours, not weeks. Raise the interval to slow decay.
	ConsolidateInterval time.Duration
	// SnapshotSchedule is a cron expression for entity insight snapshots.
	// Empty disables scheduled snapshots.
	SnapshotSchedule string
	PersistTimeout   time.Duration
	LoadMinStrength  float64
	LoadLimit        int

	Now        func() time.Time
	Registerer prometheus.Registerer
}

func (c Config) withDefaults() Config {
	if c.ShortTermCapacity <= 0 {
		c.ShortTermCapacity = 500
	}
	if c.EpisodicCapacity <= 0 {
		c.EpisodicCapacity = 1000
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = 0.5
	}
	if c.MinOccurrences <= 0 {
		c.MinOccurrences = 2
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 0.1
	}
	if c.DecayRate <= 0 || c.DecayRate > 1 {
		c.DecayRate = 0.95
	}
	if c.EvictionStrength <= 0 {
		c.EvictionStrength = 0.1
	}
	if c.KnowledgeThreshold <= 0 {
		c.KnowledgeThreshold = 0.6
	}
	if c.ConsolidateInterval <= 0 {
		c.ConsolidateInterval = 30 * time.Second
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 5 * time.Second
	}
	if c.LoadMinStrength <= 0 {
		c.LoadMinStrength = c.EvictionStrength
	}
	if c.LoadLimit <= 0 {
		c.LoadLimit = defaultLoadLimit
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Engine ingests observations, consolidates them into long-term patterns
// and answers insight queries.
type Engine struct {
	cfg     Config
	gateway Gateway
	metrics *Metrics

	shortTerm    *shortTermBuffer
	episodic     *episodicLog
	longTerm     *longTermStore
	knowledge    *knowledgeBase
	detectors    *detectors
	consolidator *consolidator

	observations     atomic.Int64
	dropped          atomic.Int64
	patternsDetected atomic.Int64
	travelInsights   atomic.Int64
	lastConsolidated atomic.Int64

	// cycleMu serializes consolidation and persistence passes.
	cycleMu        sync.Mutex
	pendingDeletes []string
	snapshots      *cache.Cache

	stopCh    chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
	closeErr  error
}

// NewEngine builds an engine. gateway may be nil for a purely in-memory
// engine.
func NewEngine(cfg Config, gateway Gateway) (*Engine, error) {
	cfg = cfg.withDefaults()
	cfg.SnapshotSchedule = strings.TrimSpace(cfg.SnapshotSchedule)
	if cfg.SnapshotSchedule != "" && !gronx.New().IsValid(cfg.SnapshotSchedule) {
		return nil, fmt.Errorf("invalid snapshot schedule %q", cfg.SnapshotSchedule)
	}

	shortTerm := newShortTermBuffer(cfg.ShortTermCapacity)
	longTerm := newLongTermStore()
	e := &Engine{
		cfg:       cfg,
		gateway:   gateway,
		metrics:   NewMetrics(cfg.Registerer),
		shortTerm: shortTerm,
		episodic:  newEpisodicLog(cfg.EpisodicCapacity),
		longTerm:  longTerm,
		knowledge: newKnowledgeBase(),
		detectors: newDetectors(cfg.MinOccurrences),
		consolidator: &consolidator{
			shortTerm:           shortTerm,
			longTerm:            longTerm,
			similarityThreshold: cfg.SimilarityThreshold,
			minOccurrences:      cfg.MinOccurrences,
			learningRate:        cfg.LearningRate,
			bestMatch:           cfg.ReinforceBestMatch,
		},
		snapshots: cache.New(6*time.Hour, 30*time.Minute),
		stopCh:    make(chan struct{}),
	}
	return e, nil
}

// Metrics exposes the engine's Prometheus instruments.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// Warm loads persisted patterns into long-term memory. It returns the number
// of patterns added.
func (e *Engine) Warm(ctx context.Context) (int, error) {
	if e.gateway == nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.PersistTimeout)
	defer cancel()

	patterns, err := e.gateway.LoadPatterns(ctx, e.cfg.LoadMinStrength, e.cfg.LoadLimit)
	if err != nil {
		e.metrics.PersistFailures.WithLabelValues("load").Inc()
		return 0, fmt.Errorf("warm long-term memory: %w", err)
	}

	added := 0
	for i := range patterns {
		p := patterns[i]
		if e.longTerm.insert(&p) {
			added++
		}
	}
	e.knowledge.refresh(e.longTerm.snapshot(), e.cfg.KnowledgeThreshold, e.cfg.Now())
	e.metrics.LongTermPatterns.Set(float64(e.longTerm.len()))
	e.metrics.KnowledgeItems.Set(float64(e.knowledge.len()))

	logger.InfoCF("engine", "Long-term memory warmed", map[string]interface{}{
		"loaded": added,
	})
	return added, nil
}

// Start launches the background consolidation loop. Calling it more than
// once has no effect.
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		e.wg.Add(1)
		go e.runWorker()
	})
}

func (e *Engine) runWorker() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.ConsolidateInterval)
	defer ticker.Stop()

	nextSnapshot := e.nextSnapshotAfter(e.cfg.Now())
	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.ConsolidateNow()

			now := e.cfg.Now()
			if !nextSnapshot.IsZero() && !now.Before(nextSnapshot) {
				ctx, cancel := context.WithTimeout(context.Background(), e.cfg.PersistTimeout)
				_, _ = e.SnapshotEntities(ctx)
				cancel()
				nextSnapshot = e.nextSnapshotAfter(now)
			}
		}
	}
}

func (e *Engine) nextSnapshotAfter(t time.Time) time.Time {
	if e.cfg.SnapshotSchedule == "" || e.gateway == nil {
		return time.Time{}
	}
	next, err := gronx.NextTickAfter(e.cfg.SnapshotSchedule, t, false)
	if err != nil {
		logger.WarnCF("engine", "Snapshot schedule evaluation failed", map[string]interface{}{
			"schedule": e.cfg.SnapshotSchedule,
			"error":    err.Error(),
		})
		return time.Time{}
	}
	return next
}

// Observe ingests one observation. Malformed observations are logged and
// dropped; Observe never blocks on consolidation or persistence.
func (e *Engine) Observe(obs Observation) {
	if obs.Payload == nil || !obs.Kind().Valid() {
		e.drop("missing_kind", ErrMalformedObservation)
		return
	}
	if obs.ID == "" {
		obs.ID = "obs-" + uuid.NewString()
	}
	if obs.At.IsZero() {
		obs.At = e.cfg.Now()
	}

	e.observations.Add(1)
	e.metrics.Observations.WithLabelValues(string(obs.Kind())).Inc()

	e.shortTerm.append(obs)
	det := e.detectors.detect(obs)
	if det.travel {
		e.travelInsights.Add(1)
	}
	if det.recurring {
		e.patternsDetected.Add(1)
		e.metrics.RecurringErrors.Inc()
	}
	e.episodic.append(Episode{At: obs.At, Kind: obs.Kind(), Observation: obs})

	logger.DebugCF("engine", "Observation ingested", map[string]interface{}{
		"kind":      string(obs.Kind()),
		"entity_id": obs.EntityID,
		"travel":    det.travel,
	})
}

// ObserveJSON decodes a wire observation and ingests it. Undecodable input
// is logged and dropped.
func (e *Engine) ObserveJSON(raw []byte) {
	obs, err := ParseObservation(raw)
	if err != nil {
		reason := "malformed"
		if isUnknownKind(err) {
			reason = "unknown_kind"
		}
		e.drop(reason, err)
		return
	}
	e.Observe(obs)
}

func (e *Engine) drop(reason string, err error) {
	e.dropped.Add(1)
	e.metrics.Dropped.WithLabelValues(reason).Inc()
	logger.WarnCF("engine", "Observation dropped", map[string]interface{}{
		"reason": reason,
		"error":  err.Error(),
	})
}

// ConsolidateNow runs one consolidation cycle: reinforce or create patterns,
// decay and evict, refresh the semantic tier, then persist.
func (e *Engine) ConsolidateNow() ConsolidationResult {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	started := time.Now()
	now := e.cfg.Now()

	res := e.consolidator.consolidate(now)
	res.EvictedIDs = e.longTerm.decay(now, e.cfg.DecayRate, e.cfg.EvictionStrength)
	res.Evicted = len(res.EvictedIDs)

	snapshot := e.longTerm.snapshot()
	learned := e.knowledge.refresh(snapshot, e.cfg.KnowledgeThreshold, now)

	e.patternsDetected.Add(int64(res.Created))
	e.lastConsolidated.Store(now.UnixMilli())
	e.metrics.PatternsCreated.Add(float64(res.Created))
	e.metrics.PatternsReinforced.Add(float64(res.Reinforced))
	e.metrics.PatternsEvicted.Add(float64(res.Evicted))
	e.metrics.LongTermPatterns.Set(float64(len(snapshot)))
	e.metrics.KnowledgeItems.Set(float64(e.knowledge.len()))

	e.persistLocked(snapshot, res.EvictedIDs)
	e.metrics.ConsolidateDuration.Observe(time.Since(started).Seconds())

	if res.Processed > 0 || res.Evicted > 0 {
		logger.DebugCF("consolidation", "Memory consolidated", map[string]interface{}{
			"processed":  res.Processed,
			"reinforced": res.Reinforced,
			"created":    res.Created,
			"evicted":    res.Evicted,
			"learned":    learned,
			"long_term":  len(snapshot),
		})
	}
	return res
}

// persistLocked writes the pattern snapshot. Failed deletes are retried on
// the next cycle. Caller holds cycleMu.
func (e *Engine) persistLocked(snapshot []Pattern, evicted []string) {
	if e.gateway == nil {
		return
	}
	e.pendingDeletes = append(e.pendingDeletes, evicted...)

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.PersistTimeout)
	defer cancel()

	if len(e.pendingDeletes) > 0 {
		if err := e.gateway.DeletePatterns(ctx, e.pendingDeletes); err != nil {
			e.persistFailed("delete", err)
		} else {
			e.pendingDeletes = nil
		}
	}
	if err := e.gateway.SavePatterns(ctx, snapshot); err != nil {
		e.persistFailed("save", err)
	}
}

func (e *Engine) persistFailed(op string, err error) {
	e.metrics.PersistFailures.WithLabelValues(op).Inc()
	logger.ErrorCF("persistence", "Persistence gateway call failed", map[string]interface{}{
		"op":    op,
		"error": err.Error(),
	})
}

// Insights synthesizes the current insight for entityID. Unknown entities
// get a zero-confidence insight.
func (e *Engine) Insights(entityID string) Insight {
	view := e.entityView(entityID)
	return synthesize(entityID, view, e.longTerm.forEntity(entityID), e.cfg.Now())
}

func (e *Engine) entityView(entityID string) profileView {
	if profile, ok := e.detectors.entities.get(entityID); ok {
		return profile.view()
	}
	return newEntityProfile().view()
}

// AllInsights returns an insight per known entity, highest confidence first.
func (e *Engine) AllInsights() []Insight {
	ids := e.detectors.entities.keys()
	out := make([]Insight, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.Insights(id))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// Stats returns aggregate engine counters.
func (e *Engine) Stats() Stats {
	st := Stats{
		Observations:     e.observations.Load(),
		Dropped:          e.dropped.Load(),
		PatternsDetected: e.patternsDetected.Load(),
		TravelInsights:   e.travelInsights.Load(),
		KnowledgeItems:   e.knowledge.len(),
		Entities:         e.detectors.entities.len(),
		Memory: MemoryUsage{
			ShortTerm: e.shortTerm.len(),
			LongTerm:  e.longTerm.len(),
			Episodic:  e.episodic.len(),
			Semantic:  e.knowledge.len(),
		},
		TravelPatterns: make(map[SubCategory]int, len(TravelCategories)),
	}
	for _, c := range TravelCategories {
		st.TravelPatterns[c] = 0
	}
	for _, id := range e.detectors.entities.keys() {
		profile, ok := e.detectors.entities.get(id)
		if !ok {
			continue
		}
		profile.mu.Lock()
		for c, ctr := range profile.travel {
			if ctr.Len() > 0 {
				st.TravelPatterns[c]++
			}
		}
		profile.mu.Unlock()
	}
	if ms := e.lastConsolidated.Load(); ms > 0 {
		st.LastConsolidated = time.UnixMilli(ms)
	}
	return st
}

// Report summarizes every detector category.
func (e *Engine) Report() Report {
	r := Report{
		Users:     []UserReport{},
		Agents:    e.detectors.agentReports(),
		Code:      e.detectors.codeReports(),
		Workflows: e.detectors.workflowReports(),
		Errors:    e.detectors.errorReports(),
		Travel:    e.AllInsights(),
	}
	now := e.cfg.Now()
	for _, id := range e.detectors.entities.keys() {
		view := e.entityView(id)
		if view.user == nil {
			continue
		}
		in := synthesize(id, view, e.longTerm.forEntity(id), now)
		r.Users = append(r.Users, userReport(id, view.user, in))
	}
	sortUserReports(r.Users)
	return r
}

// Knowledge lists semantic-tier entries of kind, or all of them when kind
// is empty.
func (e *Engine) Knowledge(kind Kind) []Knowledge {
	return e.knowledge.list(kind)
}

// Patterns returns a copy of long-term memory in creation order.
func (e *Engine) Patterns() []Pattern {
	return e.longTerm.snapshot()
}

func (e *Engine) Pattern(id string) (Pattern, bool) {
	return e.longTerm.get(id)
}

// Episodes returns the most recent episodic entries, oldest first.
func (e *Engine) Episodes(limit int) []Episode {
	return e.episodic.recent(limit)
}

// ExportForTransfer builds the AIX transfer record for entityID.
func (e *Engine) ExportForTransfer(entityID string) TransferRecord {
	view := e.entityView(entityID)
	in := synthesize(entityID, view, e.longTerm.forEntity(entityID), e.cfg.Now())
	return buildTransfer(in, view.user, e.Stats(), in.GeneratedAt)
}

// SnapshotEntities writes the insight and preferences of every entity whose
// insight changed since its last snapshot. It returns the number of entities
// written.
func (e *Engine) SnapshotEntities(ctx context.Context) (int, error) {
	if e.gateway == nil {
		return 0, nil
	}
	written := 0
	for _, id := range e.detectors.entities.keys() {
		view := e.entityView(id)
		in := synthesize(id, view, e.longTerm.forEntity(id), e.cfg.Now())
		fp := insightFingerprint(in)
		if prev, ok := e.snapshots.Get(id); ok && prev.(string) == fp {
			continue
		}
		if err := e.gateway.SaveEntityInsight(ctx, id, in); err != nil {
			e.persistFailed("insight", err)
			return written, err
		}
		if view.user != nil {
			if err := e.gateway.SaveEntityPreferences(ctx, id, view.user.Preferences); err != nil {
				e.persistFailed("preferences", err)
				return written, err
			}
		}
		e.snapshots.Set(id, fp, cache.DefaultExpiration)
		written++
	}
	if written > 0 {
		logger.InfoCF("persistence", "Entity snapshots saved", map[string]interface{}{
			"entities": written,
		})
	}
	return written, nil
}

func insightFingerprint(in Insight) string {
	in.GeneratedAt = time.Time{}
	raw, err := json.Marshal(in)
	if err != nil {
		return ""
	}
	sum := sha1.Sum(raw)
	return hex.EncodeToString(sum[:])
}

// Close stops the background loop, runs a final consolidation and flush,
// then closes the gateway. It is safe to call more than once.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		close(e.stopCh)
		e.wg.Wait()

		e.ConsolidateNow()
		if e.gateway == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.PersistTimeout)
		_, _ = e.SnapshotEntities(ctx)
		cancel()
		e.closeErr = e.gateway.Close()
	})
	return e.closeErr
}
