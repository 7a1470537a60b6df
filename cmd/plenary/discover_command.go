package main

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"plenary/internal/discovery"
	"plenary/internal/identity"
	"plenary/internal/records"
	"plenary/internal/services"
)

func newDiscoverCommand(ctx *commandContext) *cobra.Command {
	var feedURL string
	var indexURL string
	var pathMatch string
	var limit int
	var process bool

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find session URLs from a feed or listing page",
		RunE: func(cmd *cobra.Command, args []string) error {
			feedURL = strings.TrimSpace(feedURL)
			indexURL = strings.TrimSpace(indexURL)
			if (feedURL == "") == (indexURL == "") {
				return errors.New("pass exactly one of --feed or --index")
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			store, err := ctx.openStore(signalCtx)
			if err != nil {
				return err
			}
			defer store.Close()

			discoverer := discovery.New()
			var items []discovery.Item
			if feedURL != "" {
				items, err = discoverer.FromFeed(signalCtx, feedURL)
			} else {
				items, err = discoverer.FromIndex(signalCtx, indexURL, pathMatch)
			}
			if err != nil {
				return err
			}
			if limit > 0 && len(items) > limit {
				items = items[:limit]
			}

			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "no sessions discovered")
				return nil
			}

			var fresh []discovery.Item
			rows := make([][]string, 0, len(items))
			for _, item := range items {
				state := "new"
				sessionID, err := identity.Resolve(item.URL)
				if err != nil {
					continue
				}
				if record, err := store.Get(signalCtx, sessionID); err == nil {
					state = string(record.Status)
				} else if !errors.Is(err, records.ErrNotFound) {
					return err
				}
				if state == "new" {
					fresh = append(fresh, item)
				}
				rows = append(rows, []string{
					shortID(sessionID),
					truncate(item.Title, 44),
					truncate(item.URL, 56),
					state,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Session", "Title", "URL", "State"}, rows))

			if !process {
				fmt.Fprintf(out, "%d new of %d discovered (re-run with --process to ingest)\n",
					len(fresh), len(items))
				return nil
			}
			if len(fresh) == 0 {
				fmt.Fprintln(out, "nothing new to process")
				return nil
			}

			rt, err := newRuntime(signalCtx, ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			failed := 0
			for _, item := range fresh {
				runCtx := services.WithRequestID(signalCtx, uuid.NewString())
				record, err := rt.orchestrator.Process(runCtx, item.URL)
				if err != nil {
					fmt.Fprintf(out, "failed %s: %v\n", item.URL, err)
					failed++
					continue
				}
				if record.Status == records.StatusFailed {
					fmt.Fprintf(out, "%s  failed (%s)\n", shortID(record.SessionID), record.ErrorCause)
					failed++
					continue
				}
				fmt.Fprintf(out, "%s  %s  %s\n", shortID(record.SessionID),
					record.Status, truncate(record.Title, 60))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d new sessions did not complete", failed, len(fresh))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&feedURL, "feed", "", "RSS/Atom feed of sessions")
	cmd.Flags().StringVar(&indexURL, "index", "", "Listing page to scrape for session links")
	cmd.Flags().StringVar(&pathMatch, "match", "", "Only keep links whose path contains this fragment")
	cmd.Flags().IntVar(&limit, "limit", 0, "Keep at most this many discovered sessions")
	cmd.Flags().BoolVar(&process, "process", false, "Process newly discovered sessions immediately")
	return cmd
}
