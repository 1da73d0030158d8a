package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"callrecon/internal"
)

type DB struct {
	conn *sql.DB
}

// MergeOutcome reports what an enrichment merge actually did to the row.
type MergeOutcome string

const (
	MergeUpdated MergeOutcome = "updated"
	MergeSkipped MergeOutcome = "skipped_already_enriched"
	MergeMissing MergeOutcome = "target_missing"
)

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS origin_calls (
  external_id TEXT PRIMARY KEY,
  caller_phone TEXT,
  caller_phone_norm TEXT,
  category TEXT NOT NULL,
  call_time_raw TEXT,
  call_time_utc TEXT,
  payout REAL NOT NULL DEFAULT 0,
  revenue REAL NOT NULL DEFAULT 0,
  duration_seconds INTEGER NOT NULL DEFAULT 0,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_origin_calls_time ON origin_calls(call_time_utc);
CREATE INDEX IF NOT EXISTS idx_origin_calls_phone ON origin_calls(caller_phone_norm);

CREATE TABLE IF NOT EXISTS target_calls (
  id TEXT PRIMARY KEY,
  caller_phone TEXT,
  caller_phone_norm TEXT,
  category TEXT NOT NULL,
  call_time_raw TEXT,
  call_time_utc TEXT,
  payout REAL NOT NULL DEFAULT 0,
  revenue REAL NOT NULL DEFAULT 0,
  duration_seconds INTEGER NOT NULL DEFAULT 0,
  enriched_payout REAL,
  enriched_revenue REAL,
  link_id TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_target_calls_time ON target_calls(call_time_utc);
CREATE INDEX IF NOT EXISTS idx_target_calls_phone ON target_calls(caller_phone_norm);

CREATE TABLE IF NOT EXISTS sync_runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  window_start TEXT NOT NULL,
  window_end TEXT NOT NULL,
  category TEXT,
  countsJson TEXT NOT NULL,
  durationMs REAL NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// UpsertOriginCall mirrors one origin-feed row keyed by its external id.
// The mirror table carries no merge semantics: every mutable field is
// overwritten on conflict, so re-running the same fetch never duplicates
// rows and never diverges from the feed.
func (d *DB) UpsertOriginCall(rec internal.CallRecord) error {
	_, err := d.conn.Exec(`
INSERT INTO origin_calls (
  external_id, caller_phone, caller_phone_norm, category,
  call_time_raw, call_time_utc, payout, revenue, duration_seconds
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(external_id) DO UPDATE SET
  caller_phone=excluded.caller_phone,
  caller_phone_norm=excluded.caller_phone_norm,
  category=excluded.category,
  call_time_raw=excluded.call_time_raw,
  call_time_utc=excluded.call_time_utc,
  payout=excluded.payout,
  revenue=excluded.revenue,
  duration_seconds=excluded.duration_seconds,
  updatedAt=CURRENT_TIMESTAMP
`,
		rec.ExternalID, rec.CallerPhone, rec.CallerPhoneNorm, string(rec.Category),
		rec.TimestampRaw, timestampColumn(rec.Timestamp),
		rec.Payout.InexactFloat64(), rec.Revenue.InexactFloat64(), rec.DurationSeconds,
	)
	return err
}

// UpsertTargetCalls loads or refreshes canonical call rows. Enrichment
// columns are deliberately absent from the conflict clause: a re-import of
// the platform export must never blank what a previous sync wrote.
func (d *DB) UpsertTargetCalls(recs []internal.CallRecord) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO target_calls (
  id, caller_phone, caller_phone_norm, category,
  call_time_raw, call_time_utc, payout, revenue, duration_seconds
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  caller_phone=excluded.caller_phone,
  caller_phone_norm=excluded.caller_phone_norm,
  category=excluded.category,
  call_time_raw=excluded.call_time_raw,
  call_time_utc=excluded.call_time_utc,
  payout=excluded.payout,
  revenue=excluded.revenue,
  duration_seconds=excluded.duration_seconds,
  updatedAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err := stmt.Exec(
			rec.ExternalID, rec.CallerPhone, rec.CallerPhoneNorm, string(rec.Category),
			rec.TimestampRaw, timestampColumn(rec.Timestamp),
			rec.Payout.InexactFloat64(), rec.Revenue.InexactFloat64(), rec.DurationSeconds,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListTargetCalls is the range query the orchestrator issues once per sync
// window. Rows whose timestamp never parsed have no call_time_utc and are
// not returned; they cannot participate in matching anyway.
func (d *DB) ListTargetCalls(start, end time.Time, category *internal.Category) ([]internal.CallRecord, error) {
	query := `
SELECT id, caller_phone, caller_phone_norm, category,
       call_time_raw, call_time_utc, payout, revenue, duration_seconds,
       enriched_payout, enriched_revenue, link_id
FROM target_calls
WHERE call_time_utc >= ? AND call_time_utc < ?`
	args := []any{start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339)}
	if category != nil {
		query += ` AND category = ?`
		args = append(args, string(*category))
	}
	query += ` ORDER BY call_time_utc ASC, id ASC`

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.CallRecord
	for rows.Next() {
		rec, err := scanTargetCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (d *DB) GetTargetCall(id string) (*internal.CallRecord, error) {
	row := d.conn.QueryRow(`
SELECT id, caller_phone, caller_phone_norm, category,
       call_time_raw, call_time_utc, payout, revenue, duration_seconds,
       enriched_payout, enriched_revenue, link_id
FROM target_calls WHERE id = ?`, id)

	rec, err := scanTargetCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// MergeEnrichment fills payout/revenue/link onto a target row only where
// currently absent or zero. A row that already carries a non-zero enrichment
// is left untouched apart from backfilling a missing link id; the caller
// counts that as skipped, not updated, which is what makes overlapping
// re-syncs idempotent.
func (d *DB) MergeEnrichment(targetID string, payout, revenue decimal.Decimal, linkID string) (MergeOutcome, error) {
	existing, err := d.GetTargetCall(targetID)
	if err != nil {
		return MergeMissing, err
	}
	if existing == nil {
		return MergeMissing, nil
	}

	alreadyEnriched := existing.HasEnrichment()

	_, err = d.conn.Exec(`
UPDATE target_calls SET
  enriched_payout  = CASE WHEN enriched_payout  IS NULL OR enriched_payout  = 0 THEN ? ELSE enriched_payout  END,
  enriched_revenue = CASE WHEN enriched_revenue IS NULL OR enriched_revenue = 0 THEN ? ELSE enriched_revenue END,
  link_id = COALESCE(link_id, ?),
  updatedAt = CURRENT_TIMESTAMP
WHERE id = ?
`, payout.InexactFloat64(), revenue.InexactFloat64(), linkID, targetID)
	if err != nil {
		return MergeMissing, err
	}

	if alreadyEnriched {
		return MergeSkipped, nil
	}
	return MergeUpdated, nil
}

func (d *DB) InsertSyncRun(traceID string, window internal.SyncWindow, category *internal.Category, summary internal.SyncSummary, durationMs float64) error {
	countsJSON, _ := json.Marshal(summary)
	var cat *string
	if category != nil {
		s := string(*category)
		cat = &s
	}
	_, err := d.conn.Exec(`
INSERT INTO sync_runs (traceId, window_start, window_end, category, countsJson, durationMs)
VALUES (?, ?, ?, ?, ?, ?)
`, traceID, window.Start.Format("2006-01-02"), window.End.Format("2006-01-02"), cat, string(countsJSON), durationMs)
	return err
}

// GetReportRows joins the target window onto the origin mirror through the
// persisted link for the review export. Unlinked target calls come back
// with nil origin columns.
func (d *DB) GetReportRows(start, end time.Time, category *internal.Category) ([]internal.ReportRow, error) {
	query := `
SELECT
  t.id, t.caller_phone, t.category, t.call_time_utc, t.payout,
  t.enriched_payout, t.enriched_revenue, t.link_id,
  o.call_time_utc, o.payout, o.revenue
FROM target_calls t
LEFT JOIN origin_calls o ON o.external_id = t.link_id
WHERE t.call_time_utc >= ? AND t.call_time_utc < ?`
	args := []any{start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339)}
	if category != nil {
		query += ` AND t.category = ?`
		args = append(args, string(*category))
	}
	query += ` ORDER BY (t.link_id IS NOT NULL), t.call_time_utc ASC`

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ReportRow
	for rows.Next() {
		var row internal.ReportRow
		var targetTime sql.NullString
		var enrichedPayout, enrichedRevenue sql.NullFloat64
		var linkID, originTime sql.NullString
		var originPayout, originRevenue sql.NullFloat64
		if err := rows.Scan(
			&row.TargetID, &row.TargetPhone, &row.Category, &targetTime, &row.TargetPayout,
			&enrichedPayout, &enrichedRevenue, &linkID,
			&originTime, &originPayout, &originRevenue,
		); err != nil {
			return nil, err
		}
		row.TargetTime = targetTime.String
		if enrichedPayout.Valid {
			row.EnrichedPayout = &enrichedPayout.Float64
		}
		if enrichedRevenue.Valid {
			row.EnrichedRevenue = &enrichedRevenue.Float64
		}
		if linkID.Valid {
			row.LinkID = &linkID.String
		}
		if originTime.Valid {
			row.OriginTime = &originTime.String
		}
		if originPayout.Valid {
			row.OriginPayout = &originPayout.Float64
		}
		if originRevenue.Valid {
			row.OriginRevenue = &originRevenue.Float64
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) CountOriginCalls() (int, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM origin_calls`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTargetCall(row rowScanner) (internal.CallRecord, error) {
	var rec internal.CallRecord
	var category string
	var callTimeRaw, callTimeUTC sql.NullString
	var payout, revenue float64
	var enrichedPayout, enrichedRevenue sql.NullFloat64
	var linkID sql.NullString

	if err := row.Scan(
		&rec.ExternalID, &rec.CallerPhone, &rec.CallerPhoneNorm, &category,
		&callTimeRaw, &callTimeUTC, &payout, &revenue, &rec.DurationSeconds,
		&enrichedPayout, &enrichedRevenue, &linkID,
	); err != nil {
		return internal.CallRecord{}, err
	}

	rec.Category = internal.Category(category)
	rec.TimestampRaw = callTimeRaw.String
	if callTimeUTC.Valid && callTimeUTC.String != "" {
		if parsed, err := time.Parse(time.RFC3339, callTimeUTC.String); err == nil {
			utc := parsed.UTC()
			rec.Timestamp = &utc
		}
	}
	rec.Payout = decimal.NewFromFloat(payout)
	rec.Revenue = decimal.NewFromFloat(revenue)
	if enrichedPayout.Valid {
		v := decimal.NewFromFloat(enrichedPayout.Float64)
		rec.EnrichedPayout = &v
	}
	if enrichedRevenue.Valid {
		v := decimal.NewFromFloat(enrichedRevenue.Float64)
		rec.EnrichedRevenue = &v
	}
	if linkID.Valid {
		rec.LinkID = &linkID.String
	}
	return rec, nil
}

func timestampColumn(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
