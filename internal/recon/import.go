package recon

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"callrecon/internal"
	"callrecon/internal/storage"
	"callrecon/internal/util"
)

// ImportTargetCSV loads the canonical call table from a platform CSV export.
// Rows are upserted by id, so re-importing an overlapping export is safe and
// never disturbs enrichment written by earlier syncs.
func ImportTargetCSV(db *storage.DB, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	records, err := ParseTargetCSV(f)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := db.UpsertTargetCalls(records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// ParseTargetCSV reads a header-addressed CSV of target calls. Unparseable
// money or duration fields degrade to zero; a missing id skips the row.
func ParseTargetCSV(r io.Reader) ([]internal.CallRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	col := map[string]int{}
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"id", "caller_number", "call_time"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("target csv missing column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []internal.CallRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		id := field(row, "id")
		if id == "" {
			continue
		}

		rec := internal.CallRecord{
			ExternalID:   id,
			CallerPhone:  field(row, "caller_number"),
			Category:     util.TargetCategory(field(row, "category")),
			TimestampRaw: field(row, "call_time"),
			Payout:       parseMoney(field(row, "payout")),
			Revenue:      parseMoney(field(row, "revenue")),
		}
		if secs, err := strconv.Atoi(field(row, "duration_seconds")); err == nil {
			rec.DurationSeconds = secs
		}
		out = append(out, rec)
	}

	return NormalizeCalls(out), nil
}

func parseMoney(v string) decimal.Decimal {
	if v == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(v, "$"))
	if err != nil {
		return decimal.Zero
	}
	return d
}
