package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"callrecon/internal"
	"callrecon/internal/calendar"
	"callrecon/internal/config"
	"callrecon/internal/recon"
	"callrecon/internal/scheduler"
	"callrecon/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "sync:run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		start := fs.String("start", "", "window start date YYYY-MM-DD")
		end := fs.String("end", "", "window end date YYYY-MM-DD (default: start)")
		category := fs.String("category", "", "static|dynamic (default: both)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*start) == "" {
			must(fmt.Errorf("--start is required"))
		}
		if strings.TrimSpace(*end) == "" {
			*end = *start
		}
		window, err := parseWindow(*start, *end)
		must(err)
		cat, err := parseCategory(*category)
		must(err)

		svc := recon.NewSyncService(db, cfg)
		summary, err := svc.RunSync(context.Background(), window, cat)
		must(err)
		printSummary(summary)
	case "sync:listen":
		svc := scheduler.NewService(db, cfg)
		must(svc.Run(context.Background()))
	case "target:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "target platform CSV export")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}
		count, err := recon.ImportTargetCSV(db, *file)
		must(err)
		fmt.Printf("target import done rows=%d\n", count)
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		start := fs.String("start", "", "window start date YYYY-MM-DD")
		end := fs.String("end", "", "window end date YYYY-MM-DD (default: start)")
		category := fs.String("category", "", "static|dynamic (default: both)")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*start) == "" || strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--start and --out are required"))
		}
		if strings.TrimSpace(*end) == "" {
			*end = *start
		}
		window, err := parseWindow(*start, *end)
		must(err)
		cat, err := parseCategory(*category)
		must(err)

		queryStart := calendar.CivilMidnightUTC(window.Start)
		queryEnd := calendar.CivilMidnightUTC(window.End.AddDate(0, 0, 1))
		rows, err := db.GetReportRows(queryStart, queryEnd, cat)
		must(err)
		if len(rows) == 0 {
			must(fmt.Errorf("no target calls between %s and %s", *start, *end))
		}
		must(recon.ExportRowsToXLSX(rows, *out))
		fmt.Printf("exported %d rows to %s\n", len(rows), *out)
	default:
		usage()
		os.Exit(1)
	}
}

func parseWindow(start, end string) (internal.SyncWindow, error) {
	s, err := time.Parse("2006-01-02", start)
	if err != nil {
		return internal.SyncWindow{}, fmt.Errorf("invalid --start: %w", err)
	}
	e, err := time.Parse("2006-01-02", end)
	if err != nil {
		return internal.SyncWindow{}, fmt.Errorf("invalid --end: %w", err)
	}
	return internal.SyncWindow{Start: s, End: e}, nil
}

func parseCategory(v string) (*internal.Category, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "":
		return nil, nil
	case "static":
		c := internal.CategoryStatic
		return &c, nil
	case "dynamic":
		c := internal.CategoryDynamic
		return &c, nil
	default:
		return nil, fmt.Errorf("unsupported category: %s", v)
	}
}

func printSummary(s internal.SyncSummary) {
	fmt.Printf("sync complete fetched=%d upserted=%d matched=%d skipped_enriched=%d unmatched=%d failed_writes=%d failed_fetch=%d\n",
		s.Fetched, s.Upserted, s.Matched, s.SkippedEnriched, s.Unmatched(), s.FailedWrites, s.FailedFetch)
	if s.Unmatched() > 0 {
		fmt.Printf("unmatched breakdown no_identity=%d bad_timestamp=%d no_candidate=%d day_window=%d time_window=%d\n",
			s.UnmatchedNoIdentity, s.UnmatchedBadTimestamp, s.UnmatchedNoCandidate, s.UnmatchedDayWindow, s.UnmatchedTimeWindow)
	}
}

func usage() {
	fmt.Println("usage: callrecon <command>")
	fmt.Println("commands:")
	fmt.Println("  sync:run --start=YYYY-MM-DD [--end=YYYY-MM-DD] [--category=static|dynamic]")
	fmt.Println("  sync:listen")
	fmt.Println("  target:import --file=./calls.csv")
	fmt.Println("  export:xlsx --start=YYYY-MM-DD [--end=YYYY-MM-DD] [--category=...] --out=./out/report.xlsx")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
