package recon

import (
	"testing"

	"github.com/shopspring/decimal"

	"callrecon/internal"
	"callrecon/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func call(id, phone, instant string, payout float64, category internal.Category) internal.CallRecord {
	rec := internal.CallRecord{
		ExternalID:  id,
		CallerPhone: phone,
		Category:    category,
		Payout:      decimal.NewFromFloat(payout),
	}
	if instant != "" {
		rec.TimestampRaw = instant
	}
	return NormalizeCalls([]internal.CallRecord{rec})[0]
}

func TestMatchSameDayWithinWindow(t *testing.T) {
	origin := call("or-1", "+15551234567", "2026-02-03T18:00:00Z", 12.00, internal.CategoryStatic)
	target := call("tg-1", "+15551234567", "2026-02-03T18:05:00Z", 12.00, internal.CategoryStatic)

	m := NewMatcher(testConfig(t), []internal.CallRecord{target})
	res := m.Match(origin)
	if res.Status != internal.MatchOK || res.Assignment == nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Assignment.Target.ExternalID != "tg-1" {
		t.Fatalf("target=%s", res.Assignment.Target.ExternalID)
	}
	if res.Assignment.TimeDiffMinutes != 5 {
		t.Fatalf("timeDiff=%d", res.Assignment.TimeDiffMinutes)
	}
}

func TestMatchAcrossMidnightEastern(t *testing.T) {
	// 23:55 Eastern vs 00:10 Eastern the next day: adjacent civil days,
	// 15 minutes apart, must match under the adjacent-day window.
	origin := call("or-1", "5551234567", "2026-02-04T04:55:00Z", 0, internal.CategoryStatic)
	target := call("tg-1", "15551234567", "2026-02-04T05:10:00Z", 0, internal.CategoryStatic)

	m := NewMatcher(testConfig(t), []internal.CallRecord{target})
	res := m.Match(origin)
	if res.Status != internal.MatchOK {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Assignment.TimeDiffMinutes != 15 {
		t.Fatalf("timeDiff=%d", res.Assignment.TimeDiffMinutes)
	}
}

func TestMatchRejectsSameDayOutsideWindow(t *testing.T) {
	origin := call("or-1", "+15551234567", "2026-02-03T14:00:00Z", 0, internal.CategoryStatic)
	target := call("tg-1", "+15551234567", "2026-02-03T17:20:00Z", 0, internal.CategoryStatic) // 200 min

	m := NewMatcher(testConfig(t), []internal.CallRecord{target})
	res := m.Match(origin)
	if res.Status != internal.MatchUnmatched || res.Reason != internal.ReasonTimeWindow {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestMatchRejectsBeyondOneDay(t *testing.T) {
	origin := call("or-1", "+15551234567", "2026-02-03T18:00:00Z", 0, internal.CategoryStatic)
	target := call("tg-1", "+15551234567", "2026-02-06T18:00:00Z", 0, internal.CategoryStatic)

	m := NewMatcher(testConfig(t), []internal.CallRecord{target})
	res := m.Match(origin)
	if res.Status != internal.MatchUnmatched || res.Reason != internal.ReasonDayWindow {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestMatchUnmatchReasons(t *testing.T) {
	target := call("tg-1", "+15551234567", "2026-02-03T18:00:00Z", 0, internal.CategoryStatic)
	m := NewMatcher(testConfig(t), []internal.CallRecord{target})

	noPhone := call("or-1", "", "2026-02-03T18:00:00Z", 0, internal.CategoryStatic)
	if res := m.Match(noPhone); res.Reason != internal.ReasonNoIdentity {
		t.Fatalf("no phone: %+v", res)
	}

	badTime := call("or-2", "+15551234567", "yesterday-ish", 0, internal.CategoryStatic)
	if res := m.Match(badTime); res.Reason != internal.ReasonBadTimestamp {
		t.Fatalf("bad timestamp: %+v", res)
	}

	otherPhone := call("or-3", "+15550000000", "2026-02-03T18:00:00Z", 0, internal.CategoryStatic)
	if res := m.Match(otherPhone); res.Reason != internal.ReasonNoCandidate {
		t.Fatalf("other phone: %+v", res)
	}

	otherCategory := call("or-4", "+15551234567", "2026-02-03T18:00:00Z", 0, internal.CategoryDynamic)
	if res := m.Match(otherCategory); res.Reason != internal.ReasonNoCandidate {
		t.Fatalf("other category: %+v", res)
	}
}

func TestMatchPrefersPayoutConfirmedCandidate(t *testing.T) {
	// Closer in time but payout off by $3 vs. further in time with payout
	// agreement: the payout-confirmed candidate must win.
	origin := call("or-1", "+15551234567", "2026-02-03T18:00:00Z", 12.00, internal.CategoryStatic)
	near := call("tg-near", "+15551234567", "2026-02-03T18:02:00Z", 15.00, internal.CategoryStatic)
	confirmed := call("tg-confirmed", "+15551234567", "2026-02-03T18:40:00Z", 12.00, internal.CategoryStatic)

	m := NewMatcher(testConfig(t), []internal.CallRecord{near, confirmed})
	res := m.Match(origin)
	if res.Status != internal.MatchOK {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Assignment.Target.ExternalID != "tg-confirmed" {
		t.Fatalf("picked %s", res.Assignment.Target.ExternalID)
	}
}

func TestMatchTieBreaksByInputOrder(t *testing.T) {
	origin := call("or-1", "+15551234567", "2026-02-03T18:00:00Z", 0, internal.CategoryStatic)
	first := call("tg-first", "+15551234567", "2026-02-03T18:10:00Z", 0, internal.CategoryStatic)
	second := call("tg-second", "+15551234567", "2026-02-03T17:50:00Z", 0, internal.CategoryStatic)

	m := NewMatcher(testConfig(t), []internal.CallRecord{first, second})
	res := m.Match(origin)
	if res.Status != internal.MatchOK {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Assignment.Target.ExternalID != "tg-first" {
		t.Fatalf("tie should keep earliest input order, picked %s", res.Assignment.Target.ExternalID)
	}
}

func TestMatchConsumesCandidateOnce(t *testing.T) {
	target := call("tg-1", "+15551234567", "2026-02-03T18:00:00Z", 0, internal.CategoryStatic)
	m := NewMatcher(testConfig(t), []internal.CallRecord{target})

	originA := call("or-a", "+15551234567", "2026-02-03T18:05:00Z", 0, internal.CategoryStatic)
	originB := call("or-b", "+15551234567", "2026-02-03T18:06:00Z", 0, internal.CategoryStatic)

	if res := m.Match(originA); res.Status != internal.MatchOK {
		t.Fatalf("first match failed: %+v", res)
	}
	if res := m.Match(originB); res.Status != internal.MatchUnmatched || res.Reason != internal.ReasonNoCandidate {
		t.Fatalf("consumed target offered twice: %+v", res)
	}
}

func TestMatchAllCountsReasons(t *testing.T) {
	targets := []internal.CallRecord{
		call("tg-1", "+15551234567", "2026-02-03T18:00:00Z", 0, internal.CategoryStatic),
	}
	origins := []internal.CallRecord{
		call("or-1", "+15551234567", "2026-02-03T18:05:00Z", 0, internal.CategoryStatic),
		call("or-2", "", "2026-02-03T18:00:00Z", 0, internal.CategoryStatic),
		call("or-3", "+15559990000", "2026-02-03T18:00:00Z", 0, internal.CategoryStatic),
	}

	m := NewMatcher(testConfig(t), targets)
	summary := internal.SyncSummary{}
	assignments := m.MatchAll(origins, &summary)

	if len(assignments) != 1 {
		t.Fatalf("assignments=%d", len(assignments))
	}
	if summary.UnmatchedNoIdentity != 1 || summary.UnmatchedNoCandidate != 1 {
		t.Fatalf("summary=%+v", summary)
	}

	seen := map[string]bool{}
	for _, a := range assignments {
		if seen[a.Target.ExternalID] {
			t.Fatalf("target %s consumed twice", a.Target.ExternalID)
		}
		seen[a.Target.ExternalID] = true
	}
}
