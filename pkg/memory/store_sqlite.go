package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	defaultLoadLimit = 1000
	deleteBatchSize  = 500
)

// SQLiteStore is the Gateway backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates/opens the pattern database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create pattern db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One shared connection avoids writer lock contention between the
	// consolidation loop and snapshot writes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA temp_store=MEMORY;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS patterns (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			entity_id TEXT NOT NULL DEFAULT '',
			representative_json TEXT NOT NULL,
			strength REAL NOT NULL,
			occurrences INTEGER NOT NULL,
			created_at_ms INTEGER NOT NULL,
			last_seen_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS patterns_recent_idx ON patterns(last_seen_at_ms DESC);`,
		`CREATE INDEX IF NOT EXISTS patterns_entity_idx ON patterns(entity_id, strength DESC);`,
		`CREATE TABLE IF NOT EXISTS entity_insights (
			id TEXT PRIMARY KEY,
			entity_id TEXT NOT NULL,
			top_destination TEXT NOT NULL DEFAULT '',
			budget_category TEXT NOT NULL DEFAULT '',
			top_season TEXT NOT NULL DEFAULT '',
			confidence REAL NOT NULL DEFAULT 0,
			insight_json TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS entity_insights_entity_idx ON entity_insights(entity_id, created_at_ms DESC);`,
		`CREATE TABLE IF NOT EXISTS entity_preferences (
			entity_id TEXT PRIMARY KEY,
			preferences_json TEXT NOT NULL,
			updated_at_ms INTEGER NOT NULL
		);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init sqlite schema failed on %q: %w", trimSQL(stmt), err)
		}
	}
	return nil
}

func trimSQL(sql string) string {
	line := strings.TrimSpace(sql)
	if len(line) > 96 {
		return line[:96] + "..."
	}
	return line
}

func nowMS() int64 { return time.Now().UnixMilli() }

func fromMS(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (s *SQLiteStore) SavePatterns(ctx context.Context, patterns []Pattern) error {
	if len(patterns) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save patterns begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO patterns(id, kind, entity_id, representative_json, strength, occurrences, created_at_ms, last_seen_at_ms)
VALUES(?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	kind = excluded.kind,
	entity_id = excluded.entity_id,
	representative_json = excluded.representative_json,
	strength = excluded.strength,
	occurrences = excluded.occurrences,
	created_at_ms = excluded.created_at_ms,
	last_seen_at_ms = excluded.last_seen_at_ms`)
	if err != nil {
		return fmt.Errorf("save patterns prepare: %w", err)
	}
	defer stmt.Close()

	for _, p := range patterns {
		rep, err := json.Marshal(p.Representative)
		if err != nil {
			return fmt.Errorf("encode pattern %s: %w", p.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			p.ID,
			string(p.Kind),
			p.EntityID,
			string(rep),
			p.Strength,
			p.Occurrences,
			p.CreatedAt.UnixMilli(),
			p.LastSeenAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("save pattern %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save patterns commit: %w", err)
	}
	return nil
}

// DeletePatterns removes the given ids in batches of deleteBatchSize so
// long retry backlogs stay under SQLite's bound-parameter limit.
func (s *SQLiteStore) DeletePatterns(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete patterns: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < len(ids); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		args := make([]interface{}, 0, len(batch))
		for _, id := range batch {
			args = append(args, id)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM patterns WHERE id IN (`+placeholders+`)`, args...); err != nil {
			return fmt.Errorf("delete patterns: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete patterns: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadPatterns(ctx context.Context, minStrength float64, limit int) ([]Pattern, error) {
	if limit <= 0 {
		limit = defaultLoadLimit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, kind, entity_id, representative_json, strength, occurrences, created_at_ms, last_seen_at_ms
FROM patterns
WHERE strength > ?
ORDER BY last_seen_at_ms DESC, id ASC
LIMIT ?`, minStrength, limit)
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	defer rows.Close()

	out := make([]Pattern, 0, 64)
	for rows.Next() {
		var (
			p         Pattern
			kind      string
			repRaw    string
			createdMS int64
			seenMS    int64
		)
		if err := rows.Scan(&p.ID, &kind, &p.EntityID, &repRaw, &p.Strength, &p.Occurrences, &createdMS, &seenMS); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		if err := json.Unmarshal([]byte(repRaw), &p.Representative); err != nil {
			return nil, fmt.Errorf("decode pattern %s: %w", p.ID, err)
		}
		p.Kind = Kind(kind)
		p.CreatedAt = fromMS(createdMS)
		p.LastSeenAt = fromMS(seenMS)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patterns: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) SaveEntityInsight(ctx context.Context, entityID string, insight Insight) error {
	raw, err := json.Marshal(insight)
	if err != nil {
		return fmt.Errorf("encode insight: %w", err)
	}
	created := insight.GeneratedAt.UnixMilli()
	if insight.GeneratedAt.IsZero() {
		created = nowMS()
	}
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO entity_insights(id, entity_id, top_destination, budget_category, top_season, confidence, insight_json, created_at_ms)
VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		"ins-"+uuid.NewString(),
		entityID,
		insight.Category(SubDestination).Top,
		insight.Budget.Category,
		insight.Category(SubSeason).Top,
		insight.Confidence,
		string(raw),
		created,
	); err != nil {
		return fmt.Errorf("save entity insight: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveEntityPreferences(ctx context.Context, entityID string, prefs Preferences) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO entity_preferences(entity_id, preferences_json, updated_at_ms)
VALUES(?, ?, ?)
ON CONFLICT(entity_id) DO UPDATE SET
	preferences_json = excluded.preferences_json,
	updated_at_ms = excluded.updated_at_ms`, entityID, string(raw), nowMS()); err != nil {
		return fmt.Errorf("save entity preferences: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LatestEntityInsight(ctx context.Context, entityID string) (Insight, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
SELECT insight_json
FROM entity_insights
WHERE entity_id = ?
ORDER BY created_at_ms DESC, rowid DESC
LIMIT 1`, entityID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Insight{}, false, nil
	}
	if err != nil {
		return Insight{}, false, fmt.Errorf("latest entity insight: %w", err)
	}
	var out Insight
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Insight{}, false, fmt.Errorf("decode entity insight: %w", err)
	}
	return out, true, nil
}

func (s *SQLiteStore) EntityPreferences(ctx context.Context, entityID string) (Preferences, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT preferences_json FROM entity_preferences WHERE entity_id = ?`, entityID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Preferences{}, false, nil
	}
	if err != nil {
		return Preferences{}, false, fmt.Errorf("entity preferences: %w", err)
	}
	var out Preferences
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Preferences{}, false, fmt.Errorf("decode entity preferences: %w", err)
	}
	return out, true, nil
}
