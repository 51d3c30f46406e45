package memory

import "context"

// Gateway persists long-term patterns and per-entity snapshots. The engine
// never holds its own locks while calling it.
type Gateway interface {
	Close() error

	// SavePatterns upserts every pattern by id. Saving an unchanged set twice
	// leaves the stored rows unchanged.
	SavePatterns(ctx context.Context, patterns []Pattern) error
	DeletePatterns(ctx context.Context, ids []string) error
	// LoadPatterns returns patterns with strength above minStrength, most
	// recently seen first, at most limit rows.
	LoadPatterns(ctx context.Context, minStrength float64, limit int) ([]Pattern, error)

	SaveEntityInsight(ctx context.Context, entityID string, insight Insight) error
	SaveEntityPreferences(ctx context.Context, entityID string, prefs Preferences) error
	LatestEntityInsight(ctx context.Context, entityID string) (Insight, bool, error)
	EntityPreferences(ctx context.Context, entityID string) (Preferences, bool, error)
}
