package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"callrecon/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "callrecon.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func targetCall(id, phone, instant string, payout float64, category internal.Category) internal.CallRecord {
	ts, _ := time.Parse(time.RFC3339, instant)
	return internal.CallRecord{
		ExternalID:      id,
		CallerPhone:     phone,
		CallerPhoneNorm: phone,
		Category:        category,
		TimestampRaw:    instant,
		Timestamp:       &ts,
		Payout:          decimal.NewFromFloat(payout),
	}
}

func TestUpsertOriginCallOverwrites(t *testing.T) {
	db := openTestDB(t)

	rec := targetCall("or-1", "+15551234567", "2026-02-03T18:00:00Z", 10, internal.CategoryStatic)
	if err := db.UpsertOriginCall(rec); err != nil {
		t.Fatal(err)
	}

	rec.Payout = decimal.NewFromFloat(12.5)
	if err := db.UpsertOriginCall(rec); err != nil {
		t.Fatal(err)
	}

	count, err := db.CountOriginCalls()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("rows=%d want 1", count)
	}
}

func TestListTargetCallsWindowAndCategory(t *testing.T) {
	db := openTestDB(t)

	err := db.UpsertTargetCalls([]internal.CallRecord{
		targetCall("tg-1", "+15551111111", "2026-02-03T12:00:00Z", 0, internal.CategoryStatic),
		targetCall("tg-2", "+15552222222", "2026-02-03T13:00:00Z", 0, internal.CategoryDynamic),
		targetCall("tg-3", "+15553333333", "2026-02-09T12:00:00Z", 0, internal.CategoryStatic),
	})
	if err != nil {
		t.Fatal(err)
	}

	start, _ := time.Parse(time.RFC3339, "2026-02-03T00:00:00Z")
	end, _ := time.Parse(time.RFC3339, "2026-02-04T00:00:00Z")

	all, err := db.ListTargetCalls(start, end, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("len=%d want 2", len(all))
	}

	cat := internal.CategoryStatic
	onlyStatic, err := db.ListTargetCalls(start, end, &cat)
	if err != nil {
		t.Fatal(err)
	}
	if len(onlyStatic) != 1 || onlyStatic[0].ExternalID != "tg-1" {
		t.Fatalf("static filter: %+v", onlyStatic)
	}
	if onlyStatic[0].Timestamp == nil {
		t.Fatal("timestamp not round-tripped")
	}
}

func TestMergeEnrichmentFillsThenSkips(t *testing.T) {
	db := openTestDB(t)

	if err := db.UpsertTargetCalls([]internal.CallRecord{
		targetCall("tg-1", "+15551234567", "2026-02-03T18:05:00Z", 12, internal.CategoryStatic),
	}); err != nil {
		t.Fatal(err)
	}

	outcome, err := db.MergeEnrichment("tg-1", decimal.NewFromFloat(12), decimal.NewFromFloat(20), "or-1")
	if err != nil {
		t.Fatal(err)
	}
	if outcome != MergeUpdated {
		t.Fatalf("outcome=%s", outcome)
	}

	// A later run deriving a different origin must not overwrite.
	outcome, err = db.MergeEnrichment("tg-1", decimal.NewFromFloat(99), decimal.NewFromFloat(99), "or-2")
	if err != nil {
		t.Fatal(err)
	}
	if outcome != MergeSkipped {
		t.Fatalf("outcome=%s", outcome)
	}

	row, err := db.GetTargetCall("tg-1")
	if err != nil {
		t.Fatal(err)
	}
	if row.EnrichedPayout.InexactFloat64() != 12 || row.EnrichedRevenue.InexactFloat64() != 20 {
		t.Fatalf("enrichment overwritten: %+v", row)
	}
	if *row.LinkID != "or-1" {
		t.Fatalf("link overwritten: %v", *row.LinkID)
	}
}

func TestMergeEnrichmentBackfillsMissingLink(t *testing.T) {
	db := openTestDB(t)

	rec := targetCall("tg-1", "+15551234567", "2026-02-03T18:05:00Z", 12, internal.CategoryStatic)
	if err := db.UpsertTargetCalls([]internal.CallRecord{rec}); err != nil {
		t.Fatal(err)
	}
	// A row enriched out-of-band may carry payout but no link.
	if _, err := db.conn.Exec(`UPDATE target_calls SET enriched_payout = 12 WHERE id = 'tg-1'`); err != nil {
		t.Fatal(err)
	}

	outcome, err := db.MergeEnrichment("tg-1", decimal.NewFromFloat(12), decimal.Zero, "or-1")
	if err != nil {
		t.Fatal(err)
	}
	if outcome != MergeSkipped {
		t.Fatalf("outcome=%s", outcome)
	}

	row, err := db.GetTargetCall("tg-1")
	if err != nil {
		t.Fatal(err)
	}
	if row.LinkID == nil || *row.LinkID != "or-1" {
		t.Fatalf("link not backfilled: %+v", row)
	}
}

func TestMergeEnrichmentMissingTarget(t *testing.T) {
	db := openTestDB(t)
	outcome, err := db.MergeEnrichment("nope", decimal.NewFromFloat(1), decimal.Zero, "or-1")
	if err != nil {
		t.Fatal(err)
	}
	if outcome != MergeMissing {
		t.Fatalf("outcome=%s", outcome)
	}
}

func TestTargetReimportPreservesEnrichment(t *testing.T) {
	db := openTestDB(t)

	rec := targetCall("tg-1", "+15551234567", "2026-02-03T18:05:00Z", 12, internal.CategoryStatic)
	if err := db.UpsertTargetCalls([]internal.CallRecord{rec}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.MergeEnrichment("tg-1", decimal.NewFromFloat(12), decimal.NewFromFloat(20), "or-1"); err != nil {
		t.Fatal(err)
	}

	rec.Payout = decimal.NewFromFloat(13)
	if err := db.UpsertTargetCalls([]internal.CallRecord{rec}); err != nil {
		t.Fatal(err)
	}

	row, err := db.GetTargetCall("tg-1")
	if err != nil {
		t.Fatal(err)
	}
	if row.Payout.InexactFloat64() != 13 {
		t.Fatalf("mirror fields should refresh: %+v", row)
	}
	if row.EnrichedPayout == nil || row.EnrichedPayout.InexactFloat64() != 12 {
		t.Fatalf("re-import blanked enrichment: %+v", row)
	}
}

func TestGetReportRowsJoinsOrigin(t *testing.T) {
	db := openTestDB(t)

	if err := db.UpsertTargetCalls([]internal.CallRecord{
		targetCall("tg-1", "+15551234567", "2026-02-03T18:05:00Z", 12, internal.CategoryStatic),
		targetCall("tg-2", "+15559876543", "2026-02-03T19:00:00Z", 5, internal.CategoryDynamic),
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertOriginCall(targetCall("or-1", "+15551234567", "2026-02-03T18:00:00Z", 12, internal.CategoryStatic)); err != nil {
		t.Fatal(err)
	}
	if _, err := db.MergeEnrichment("tg-1", decimal.NewFromFloat(12), decimal.NewFromFloat(20), "or-1"); err != nil {
		t.Fatal(err)
	}

	start, _ := time.Parse(time.RFC3339, "2026-02-03T00:00:00Z")
	end, _ := time.Parse(time.RFC3339, "2026-02-04T00:00:00Z")
	rows, err := db.GetReportRows(start, end, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d", len(rows))
	}

	// Unlinked rows sort first for review.
	if rows[0].TargetID != "tg-2" || rows[0].LinkID != nil {
		t.Fatalf("first row: %+v", rows[0])
	}
	linked := rows[1]
	if linked.TargetID != "tg-1" || linked.LinkID == nil || *linked.LinkID != "or-1" {
		t.Fatalf("linked row: %+v", linked)
	}
	if linked.OriginPayout == nil || *linked.OriginPayout != 12 {
		t.Fatalf("origin join missing: %+v", linked)
	}
}

func TestInsertSyncRun(t *testing.T) {
	db := openTestDB(t)
	start, _ := time.Parse("2006-01-02", "2026-02-03")
	window := internal.SyncWindow{Start: start, End: start}
	cat := internal.CategoryStatic
	if err := db.InsertSyncRun("trace-1", window, &cat, internal.SyncSummary{Fetched: 3, Matched: 2}, 125); err != nil {
		t.Fatal(err)
	}
}
