package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS performance_samples (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT NOT NULL,
    measured_at INTEGER NOT NULL,
    lcp REAL NOT NULL,
    cls REAL NOT NULL,
    fid REAL NOT NULL,
    ttfb REAL NOT NULL,
    bundle_size REAL NOT NULL,
    image_optimized INTEGER NOT NULL,
    score INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_samples_url ON performance_samples(url, measured_at);

CREATE TABLE IF NOT EXISTS ab_tests (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT UNIQUE NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    traffic_split REAL NOT NULL DEFAULT 0,
    duration_days INTEGER NOT NULL DEFAULT 0,
    start_date INTEGER NOT NULL,
    end_date INTEGER,
    active INTEGER NOT NULL DEFAULT 1,
    metrics TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS ab_variants (
    test_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    changes TEXT NOT NULL DEFAULT '[]',
    impressions INTEGER NOT NULL DEFAULT 0,
    clicks INTEGER NOT NULL DEFAULT 0,
    conversions INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (test_id, id),
    FOREIGN KEY (test_id) REFERENCES ab_tests(id)
);

CREATE TABLE IF NOT EXISTS keywords (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    keyword TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS rankings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    keyword TEXT NOT NULL,
    position INTEGER NOT NULL,
    previous_position INTEGER NOT NULL,
    change INTEGER NOT NULL,
    search_volume INTEGER NOT NULL,
    cpc REAL NOT NULL,
    url TEXT NOT NULL,
    tracked_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rankings_keyword ON rankings(keyword, tracked_at);
CREATE INDEX IF NOT EXISTS idx_rankings_date ON rankings(tracked_at);
`

// OpenSQLite opens or creates the database at dbPath and applies the schema.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps modernc from returning SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Name() string { return "sqlite" }

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) AppendSample(ctx context.Context, p PerformanceSample) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO performance_samples (url, measured_at, lcp, cls, fid, ttfb, bundle_size, image_optimized, score)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.URL, p.Timestamp.UnixNano(), p.LCP, p.CLS, p.FID, p.TTFB, p.BundleSize, boolToInt(p.ImageOptimized), p.Score,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sample: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Samples(ctx context.Context, url string, since time.Time) ([]PerformanceSample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, measured_at, lcp, cls, fid, ttfb, bundle_size, image_optimized, score
		 FROM performance_samples WHERE url = ? AND measured_at > ? ORDER BY id`,
		url, sinceNanos(since),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var out []PerformanceSample
	for rows.Next() {
		var p PerformanceSample
		var ts int64
		var optimized int
		if err := rows.Scan(&p.URL, &ts, &p.LCP, &p.CLS, &p.FID, &p.TTFB, &p.BundleSize, &optimized, &p.Score); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		p.Timestamp = time.Unix(0, ts)
		p.ImageOptimized = optimized != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateTest(ctx context.Context, t *ABTest) error {
	metricsJSON, err := json.Marshal(t.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var endDate sql.NullInt64
	if t.EndDate != nil {
		endDate = sql.NullInt64{Int64: t.EndDate.UnixNano(), Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ab_tests (id, name, description, traffic_split, duration_days, start_date, end_date, active, metrics)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Description, t.TrafficSplit, t.DurationDays, t.StartDate.UnixNano(), endDate, boolToInt(t.Active), string(metricsJSON),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("test %s: %w", t.ID, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert test: %w", err)
	}

	for i, v := range t.Variants {
		changesJSON, err := json.Marshal(v.Changes)
		if err != nil {
			return fmt.Errorf("failed to marshal changes: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO ab_variants (test_id, position, id, name, changes, impressions, clicks, conversions)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, i, v.ID, v.Name, string(changesJSON), v.Impressions, v.Clicks, v.Conversions,
		)
		if err != nil {
			return fmt.Errorf("failed to insert variant %s: %w", v.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetTest(ctx context.Context, id string) (*ABTest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, traffic_split, duration_days, start_date, end_date, active, metrics
		 FROM ab_tests WHERE id = ?`, id)
	t, err := scanTest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get test: %w", err)
	}
	if t.Variants, err = s.variants(ctx, t.ID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLiteStore) ListTests(ctx context.Context) ([]*ABTest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, traffic_split, duration_days, start_date, end_date, active, metrics
		 FROM ab_tests ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}

	var tests []*ABTest
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan test: %w", err)
		}
		tests = append(tests, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Variants are loaded after the cursor is closed: the pool has a single connection.
	for _, t := range tests {
		if t.Variants, err = s.variants(ctx, t.ID); err != nil {
			return nil, err
		}
	}
	return tests, nil
}

func (s *SQLiteStore) SetTestActive(ctx context.Context, id string, active bool, endDate *time.Time) error {
	var result sql.Result
	var err error

	if endDate != nil {
		result, err = s.db.ExecContext(ctx,
			`UPDATE ab_tests SET active = ?, end_date = ? WHERE id = ?`,
			boolToInt(active), endDate.UnixNano(), id,
		)
	} else {
		result, err = s.db.ExecContext(ctx,
			`UPDATE ab_tests SET active = ? WHERE id = ?`,
			boolToInt(active), id,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to update test state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) IncrementVariant(ctx context.Context, testID, variantID string, c Counter) (*Variant, error) {
	var column string
	switch c {
	case CounterImpressions:
		column = "impressions"
	case CounterClicks:
		column = "clicks"
	case CounterConversions:
		column = "conversions"
	default:
		return nil, fmt.Errorf("unknown counter %q", c)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE ab_variants SET `+column+` = `+column+` + 1 WHERE test_id = ? AND id = ?`,
		testID, variantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to increment %s: %w", column, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	var v Variant
	var changesJSON string
	err = s.db.QueryRowContext(ctx,
		`SELECT id, name, changes, impressions, clicks, conversions FROM ab_variants WHERE test_id = ? AND id = ?`,
		testID, variantID,
	).Scan(&v.ID, &v.Name, &changesJSON, &v.Impressions, &v.Clicks, &v.Conversions)
	if err != nil {
		return nil, fmt.Errorf("failed to read variant: %w", err)
	}
	if err := json.Unmarshal([]byte(changesJSON), &v.Changes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal changes: %w", err)
	}
	v.RecomputeCTR()
	return &v, nil
}

func (s *SQLiteStore) AddKeyword(ctx context.Context, keyword string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO keywords (keyword) VALUES (?)`, keyword)
	if err != nil {
		return fmt.Errorf("failed to add keyword: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Keywords(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT keyword FROM keywords ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list keywords: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var kw string
		if err := rows.Scan(&kw); err != nil {
			return nil, fmt.Errorf("failed to scan keyword: %w", err)
		}
		out = append(out, kw)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendRanking(ctx context.Context, r RankTrackingData) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rankings (keyword, position, previous_position, change, search_volume, cpc, url, tracked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Keyword, r.Position, r.PreviousPosition, r.Change, r.SearchVolume, r.CPC, r.URL, r.Date.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert ranking: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LatestRanking(ctx context.Context, keyword string) (*RankTrackingData, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT keyword, position, previous_position, change, search_volume, cpc, url, tracked_at
		 FROM rankings WHERE keyword = ? ORDER BY id DESC LIMIT 1`, keyword)
	r, err := scanRanking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest ranking: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) Rankings(ctx context.Context, keyword string, since time.Time) ([]RankTrackingData, error) {
	query := `SELECT keyword, position, previous_position, change, search_volume, cpc, url, tracked_at
		 FROM rankings WHERE tracked_at > ?`
	args := []any{sinceNanos(since)}
	if keyword != "" {
		query += ` AND keyword = ?`
		args = append(args, keyword)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rankings: %w", err)
	}
	defer rows.Close()

	var out []RankTrackingData
	for rows.Next() {
		r, err := scanRanking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ranking: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) variants(ctx context.Context, testID string) ([]Variant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, changes, impressions, clicks, conversions
		 FROM ab_variants WHERE test_id = ? ORDER BY position`, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to get variants: %w", err)
	}
	defer rows.Close()

	var out []Variant
	for rows.Next() {
		var v Variant
		var changesJSON string
		if err := rows.Scan(&v.ID, &v.Name, &changesJSON, &v.Impressions, &v.Clicks, &v.Conversions); err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		if err := json.Unmarshal([]byte(changesJSON), &v.Changes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal changes: %w", err)
		}
		v.RecomputeCTR()
		out = append(out, v)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTest(row scanner) (*ABTest, error) {
	var t ABTest
	var start int64
	var end sql.NullInt64
	var active int
	var metricsJSON string
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.TrafficSplit, &t.DurationDays, &start, &end, &active, &metricsJSON); err != nil {
		return nil, err
	}
	t.StartDate = time.Unix(0, start)
	if end.Valid {
		e := time.Unix(0, end.Int64)
		t.EndDate = &e
	}
	t.Active = active != 0
	if err := json.Unmarshal([]byte(metricsJSON), &t.Metrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}
	return &t, nil
}

func scanRanking(row scanner) (*RankTrackingData, error) {
	var r RankTrackingData
	var ts int64
	if err := row.Scan(&r.Keyword, &r.Position, &r.PreviousPosition, &r.Change, &r.SearchVolume, &r.CPC, &r.URL, &ts); err != nil {
		return nil, err
	}
	r.Date = time.Unix(0, ts)
	return &r, nil
}

func sinceNanos(since time.Time) int64 {
	if since.IsZero() {
		return -1 << 63
	}
	return since.UnixNano()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
