package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/RowanDark/wraith/internal/history"
)

func (a *app) openHistory(path string) (*history.Store, bool) {
	if path == "" {
		cfg, ok := a.loadConfig()
		if !ok {
			return nil, false
		}
		path = cfg.HistoryPath
	}
	store, err := history.Open(path)
	if err != nil {
		fmt.Fprintf(a.stderr, "open history: %v\n", err)
		return nil, false
	}
	return store, true
}

func (a *app) runHistoryList(args []string) int {
	fs := a.flagSet("history list")
	dbPath := fs.String("db", "", "history database (defaults to history_path)")
	limit := fs.Int("limit", 20, "maximum runs to show (0 for all)")
	query := fs.String("q", "", "only runs whose image or final flag contains this text")
	if _, err := parse(fs, args); err != nil {
		return 2
	}
	store, ok := a.openHistory(*dbPath)
	if !ok {
		return 1
	}
	defer store.Close()

	ctx, stop := signalContext()
	defer stop()
	runs, err := store.Search(ctx, *query, *limit)
	if err != nil {
		fmt.Fprintf(a.stderr, "list history: %v\n", err)
		return 1
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.stdout, "no runs recorded")
		return 0
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tIMAGE\tWHEN\tMETHOD\tSCORE\tFRAGMENTS\tSIZE\tFLAG")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%d\t%s\t%s\n",
			shortID(r.ID), r.Image, humanize.Time(r.StartedAt), orDash(r.Method), r.Score,
			r.Fragments, humanize.Bytes(uint64(r.StoredSize)), orDash(r.FinalFlag))
	}
	if err := tw.Flush(); err != nil {
		return 1
	}
	return 0
}

func (a *app) runHistoryShow(args []string) int {
	fs := a.flagSet("history show")
	dbPath := fs.String("db", "", "history database (defaults to history_path)")
	positional, err := parse(fs, args)
	if err != nil {
		return 2
	}
	if len(positional) != 1 {
		fmt.Fprintln(a.stderr, "history show requires a run ID or unique prefix")
		return 2
	}
	store, ok := a.openHistory(*dbPath)
	if !ok {
		return 1
	}
	defer store.Close()

	ctx, stop := signalContext()
	defer stop()
	report, err := store.Get(ctx, positional[0])
	if err != nil {
		fmt.Fprintf(a.stderr, "show %s: %v\n", positional[0], err)
		if errors.Is(err, history.ErrNotFound) {
			return 2
		}
		return 1
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintf(a.stderr, "encode report: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) runHistoryDelete(args []string) int {
	fs := a.flagSet("history delete")
	dbPath := fs.String("db", "", "history database (defaults to history_path)")
	positional, err := parse(fs, args)
	if err != nil {
		return 2
	}
	if len(positional) == 0 {
		fmt.Fprintln(a.stderr, "history delete requires at least one run ID")
		return 2
	}
	store, ok := a.openHistory(*dbPath)
	if !ok {
		return 1
	}
	defer store.Close()

	ctx, stop := signalContext()
	defer stop()
	code := 0
	for _, id := range positional {
		if err := store.Delete(ctx, id); err != nil {
			fmt.Fprintf(a.stderr, "delete %s: %v\n", id, err)
			code = 1
			continue
		}
		fmt.Fprintf(a.stdout, "deleted %s\n", id)
	}
	return code
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
