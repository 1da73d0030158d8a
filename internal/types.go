package internal

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryStatic  Category = "static"
	CategoryDynamic Category = "dynamic"
)

// CallRecord is the shared shape both feeds are normalized into. Origin-feed
// records carry the tracking platform's id in ExternalID; target records
// carry the canonical table id plus the nullable enrichment fields.
type CallRecord struct {
	ExternalID      string
	CallerPhone     string
	CallerPhoneNorm string
	Category        Category
	TimestampRaw    string
	Timestamp       *time.Time
	Payout          decimal.Decimal
	Revenue         decimal.Decimal
	DurationSeconds int

	EnrichedPayout  *decimal.Decimal
	EnrichedRevenue *decimal.Decimal
	LinkID          *string
}

// HasEnrichment reports whether a target row already carries a non-zero
// payout or revenue written by an earlier run.
func (c CallRecord) HasEnrichment() bool {
	if c.EnrichedPayout != nil && !c.EnrichedPayout.IsZero() {
		return true
	}
	if c.EnrichedRevenue != nil && !c.EnrichedRevenue.IsZero() {
		return true
	}
	return false
}

type MatchStatus string

type UnmatchReason string

const (
	MatchOK        MatchStatus = "OK"
	MatchUnmatched MatchStatus = "UNMATCHED"

	ReasonNone         UnmatchReason = "NONE"
	ReasonNoIdentity   UnmatchReason = "NO_IDENTITY"
	ReasonBadTimestamp UnmatchReason = "BAD_TIMESTAMP"
	ReasonNoCandidate  UnmatchReason = "NO_CANDIDATE"
	ReasonDayWindow    UnmatchReason = "DAY_WINDOW"
	ReasonTimeWindow   UnmatchReason = "TIME_WINDOW"
)

type MatchAssignment struct {
	Origin          CallRecord
	Target          CallRecord
	Score           float64
	TimeDiffMinutes int
}

// MatchResult is the tagged outcome of matching one origin record: either
// MatchOK with an Assignment, or MatchUnmatched with one of the five reasons.
type MatchResult struct {
	Status     MatchStatus
	Reason     UnmatchReason
	Assignment *MatchAssignment
}

// SyncWindow is a requested date range expressed as civil dates in the
// business timezone. Start and End are date-only values, both inclusive.
type SyncWindow struct {
	Start time.Time
	End   time.Time
}

type SyncSummary struct {
	Fetched         int
	Upserted        int
	Matched         int
	SkippedEnriched int

	UnmatchedNoIdentity   int
	UnmatchedBadTimestamp int
	UnmatchedNoCandidate  int
	UnmatchedDayWindow    int
	UnmatchedTimeWindow   int

	FailedWrites int
	FailedFetch  int
}

func (s SyncSummary) Unmatched() int {
	return s.UnmatchedNoIdentity + s.UnmatchedBadTimestamp + s.UnmatchedNoCandidate + s.UnmatchedDayWindow + s.UnmatchedTimeWindow
}

func (s *SyncSummary) CountUnmatched(reason UnmatchReason) {
	switch reason {
	case ReasonNoIdentity:
		s.UnmatchedNoIdentity++
	case ReasonBadTimestamp:
		s.UnmatchedBadTimestamp++
	case ReasonNoCandidate:
		s.UnmatchedNoCandidate++
	case ReasonDayWindow:
		s.UnmatchedDayWindow++
	case ReasonTimeWindow:
		s.UnmatchedTimeWindow++
	}
}

// ReportRow is one line of the reconciliation review export: a target call
// joined with the origin-mirror row it was linked to, if any.
type ReportRow struct {
	TargetID        string
	TargetPhone     string
	Category        string
	TargetTime      string
	TargetPayout    float64
	EnrichedPayout  *float64
	EnrichedRevenue *float64
	LinkID          *string
	OriginTime      *string
	OriginPayout    *float64
	OriginRevenue   *float64
}
