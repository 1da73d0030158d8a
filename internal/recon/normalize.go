package recon

import (
	"callrecon/internal"
	"callrecon/internal/calendar"
	"callrecon/internal/util"
)

// NormalizeCalls fills the derived identity fields on records from either
// feed: canonical phone form and parsed timestamp. Raw fields are kept
// untouched for storage.
func NormalizeCalls(calls []internal.CallRecord) []internal.CallRecord {
	out := make([]internal.CallRecord, 0, len(calls))
	for _, rec := range calls {
		if rec.CallerPhoneNorm == "" {
			rec.CallerPhoneNorm = util.NormalizePhone(rec.CallerPhone)
		}
		if rec.Timestamp == nil {
			if parsed, ok := calendar.ParseTimestamp(rec.TimestampRaw); ok {
				t := parsed
				rec.Timestamp = &t
			}
		}
		out = append(out, rec)
	}
	return out
}
