package recon

import (
	"callrecon/internal"
	"callrecon/internal/calendar"
	"callrecon/internal/config"
)

// Matcher assigns origin-feed records to target candidates greedily, in
// input order. Buckets almost always hold one to three calls, so no global
// bipartite assignment is attempted.
type Matcher struct {
	cfg   config.Config
	index *Index
}

func NewMatcher(cfg config.Config, targets []internal.CallRecord) *Matcher {
	return &Matcher{cfg: cfg, index: BuildIndex(targets)}
}

// Match scores every unconsumed candidate in the origin record's bucket and
// consumes the cheapest one. Candidates more than one Eastern calendar day
// away are out; same-day candidates must land within the same-day window,
// adjacent-day candidates within the adjacent-day window. Payout agreement
// within tolerance scales the time-based score down; disagreement adds a
// scaled penalty. Lower score wins, earliest input order breaks ties.
func (m *Matcher) Match(origin internal.CallRecord) internal.MatchResult {
	if origin.CallerPhoneNorm == "" || origin.Category == "" {
		return unmatched(internal.ReasonNoIdentity)
	}
	if origin.Timestamp == nil {
		return unmatched(internal.ReasonBadTimestamp)
	}

	bucket := m.index.Candidates(origin.Category, origin.CallerPhoneNorm)
	if len(bucket) == 0 {
		return unmatched(internal.ReasonNoCandidate)
	}

	var best *internal.MatchAssignment
	sawAdjacent := false
	for _, cand := range bucket {
		if cand.Timestamp == nil {
			continue
		}

		daysDiff := calendar.CivilDayDiff(*origin.Timestamp, *cand.Timestamp)
		if daysDiff > 1 {
			continue
		}
		sawAdjacent = true

		window := m.cfg.SameDayWindowMin
		if daysDiff == 1 {
			window = m.cfg.AdjacentDayWindowMin
		}
		minutes := calendar.MinuteDiff(*origin.Timestamp, *cand.Timestamp)
		if minutes > window {
			continue
		}

		score := m.score(origin, cand, minutes)
		if best == nil || score < best.Score {
			best = &internal.MatchAssignment{
				Origin:          origin,
				Target:          cand,
				Score:           score,
				TimeDiffMinutes: minutes,
			}
		}
	}

	if best == nil {
		if sawAdjacent {
			return unmatched(internal.ReasonTimeWindow)
		}
		return unmatched(internal.ReasonDayWindow)
	}

	m.index.Consume(origin.Category, origin.CallerPhoneNorm, best.Target.ExternalID)
	return internal.MatchResult{Status: internal.MatchOK, Reason: internal.ReasonNone, Assignment: best}
}

// MatchAll runs every origin record through Match, collecting assignments
// and tallying unmatch reasons into the summary.
func (m *Matcher) MatchAll(origins []internal.CallRecord, summary *internal.SyncSummary) []internal.MatchAssignment {
	assignments := make([]internal.MatchAssignment, 0, len(origins))
	for _, origin := range origins {
		result := m.Match(origin)
		if result.Status == internal.MatchOK {
			assignments = append(assignments, *result.Assignment)
			continue
		}
		summary.CountUnmatched(result.Reason)
	}
	return assignments
}

// score starts from the minute difference. Payout disagreement penalizes
// but never rejects; origin-side payouts can settle after the call lands.
func (m *Matcher) score(origin, cand internal.CallRecord, minutes int) float64 {
	score := float64(minutes)
	diff := origin.Payout.Sub(cand.Payout).Abs()
	payoutsAgree := !origin.Payout.IsZero() && !cand.Payout.IsZero() &&
		diff.InexactFloat64() <= m.cfg.PayoutTolerance
	if payoutsAgree {
		return score * m.cfg.PayoutMatchBoost
	}
	return score + diff.InexactFloat64()*m.cfg.PayoutPenaltyScale
}

func unmatched(reason internal.UnmatchReason) internal.MatchResult {
	return internal.MatchResult{Status: internal.MatchUnmatched, Reason: reason}
}
