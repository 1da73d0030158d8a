package recon

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"callrecon/internal"
	"callrecon/internal/calendar"
	"callrecon/internal/config"
	"callrecon/internal/feed"
	"callrecon/internal/storage"
)

// OriginFetcher is the slice of the feed client the orchestrator consumes.
type OriginFetcher interface {
	FetchCalls(ctx context.Context, targetID string, start, end time.Time, pageSize int) ([]internal.CallRecord, error)
}

// SyncService drives one reconciliation run end to end: fetch the target
// window once, fetch the origin feed day by day, match, persist, summarize.
// It keeps no state between runs; the caller serializes concurrent runs.
type SyncService struct {
	db    *storage.DB
	feed  OriginFetcher
	cfg   config.Config
	sleep func(time.Duration)
}

func NewSyncService(db *storage.DB, cfg config.Config) *SyncService {
	return &SyncService{db: db, feed: feed.NewClient(cfg), cfg: cfg, sleep: time.Sleep}
}

// RunSync reconciles the requested civil-date window, optionally restricted
// to one category. Configuration problems abort before any fetch; a failed
// fetch skips that day/category; a failed write skips that row. Everything
// else lands in the returned summary.
func (s *SyncService) RunSync(ctx context.Context, window internal.SyncWindow, category *internal.Category) (internal.SyncSummary, error) {
	start := time.Now()
	summary := internal.SyncSummary{}

	if err := s.cfg.Require("FEED_API_TOKEN", s.cfg.FeedAPIToken); err != nil {
		return summary, err
	}
	if window.End.Before(window.Start) {
		return summary, fmt.Errorf("window end %s before start %s", window.End.Format("2006-01-02"), window.Start.Format("2006-01-02"))
	}

	categories := []internal.Category{internal.CategoryStatic, internal.CategoryDynamic}
	if category != nil {
		categories = []internal.Category{*category}
	}
	for _, cat := range categories {
		if err := s.cfg.Require("FEED_TARGET_ID_"+string(cat), s.cfg.FeedTargetID(string(cat))); err != nil {
			return summary, err
		}
	}

	// The target query expands one civil day each side so boundary calls
	// that fall outside the window in UTC but inside it in Eastern time
	// are still offered as candidates.
	queryStart := calendar.CivilMidnightUTC(window.Start.AddDate(0, 0, -1))
	queryEnd := calendar.CivilMidnightUTC(window.End.AddDate(0, 0, 2))
	targets, err := s.db.ListTargetCalls(queryStart, queryEnd, category)
	if err != nil {
		return summary, err
	}
	targets = NormalizeCalls(targets)
	matcher := NewMatcher(s.cfg, targets)

	origins := s.fetchOrigins(ctx, window, categories, &summary)
	summary.Fetched = len(origins)
	origins = NormalizeCalls(origins)

	for _, rec := range origins {
		if err := s.db.UpsertOriginCall(rec); err != nil {
			summary.FailedWrites++
			continue
		}
		summary.Upserted++
	}

	assignments := matcher.MatchAll(origins, &summary)
	for _, a := range assignments {
		outcome, err := s.db.MergeEnrichment(a.Target.ExternalID, a.Origin.Payout, a.Origin.Revenue, a.Origin.ExternalID)
		if err != nil {
			summary.FailedWrites++
			continue
		}
		switch outcome {
		case storage.MergeUpdated:
			summary.Matched++
		case storage.MergeSkipped:
			summary.Matched++
			summary.SkippedEnriched++
		case storage.MergeMissing:
			summary.FailedWrites++
		}
	}

	durationMs := float64(time.Since(start).Milliseconds())
	if err := s.db.InsertSyncRun(traceID(), window, category, summary, durationMs); err != nil {
		summary.FailedWrites++
	}

	return summary, nil
}

// fetchOrigins walks the window one civil day at a time, one feed target per
// category, with a fixed delay between calls. A failed day/category is
// logged and counted, not fatal. Records refetched through overlapping day
// boundaries are deduplicated by external id, keeping the first occurrence.
func (s *SyncService) fetchOrigins(ctx context.Context, window internal.SyncWindow, categories []internal.Category, summary *internal.SyncSummary) []internal.CallRecord {
	delay := time.Duration(s.cfg.FetchDelayMs) * time.Millisecond
	seen := map[string]struct{}{}
	var all []internal.CallRecord
	first := true

	for day := window.Start; !day.After(window.End); day = day.AddDate(0, 0, 1) {
		dayStart := calendar.CivilMidnightUTC(day)
		dayEnd := calendar.CivilMidnightUTC(day.AddDate(0, 0, 1))

		for _, cat := range categories {
			if !first && delay > 0 {
				s.sleep(delay)
			}
			first = false

			targetID := s.cfg.FeedTargetID(string(cat))
			calls, err := s.feed.FetchCalls(ctx, targetID, dayStart, dayEnd, s.cfg.FeedPageSize)
			if err != nil {
				fmt.Printf("origin fetch failed day=%s category=%s err=%v\n", day.Format("2006-01-02"), cat, err)
				summary.FailedFetch++
				continue
			}
			for _, rec := range calls {
				if _, ok := seen[rec.ExternalID]; ok {
					continue
				}
				seen[rec.ExternalID] = struct{}{}
				all = append(all, rec)
			}
		}
	}

	return all
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
