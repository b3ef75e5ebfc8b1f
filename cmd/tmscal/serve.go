package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tmscal/internal/capture"
	"tmscal/internal/ics"
	appLog "tmscal/internal/log"
	"tmscal/internal/source"
	"tmscal/internal/sweep"
	"tmscal/internal/web"
)

var listenFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the calendar and run the scheduled status sweep",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenFlag, "listen", "", "HTTP listen address (overrides config if set)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if listenFlag != "" {
		cfg.Listen = listenFlag
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeDB(db)

	collector := source.New(st, ics.NewFetcher(cfg.CacheDir), cfg)
	srv := web.NewServer(cfg, debug, web.Deps{Events: collector, Store: st})

	snapshots := make(chan struct{}, 1)
	requestSnapshot := func() {
		select {
		case snapshots <- struct{}{}:
		default:
		}
	}

	sched, err := sweep.NewScheduler(cfg.Sweep.Cron, cfg.Location(), st, func([]sweep.Change) {
		srv.Invalidate()
		requestSnapshot()
	})
	if err != nil {
		return err
	}
	if cfg.Snapshot.Enabled {
		err := sched.AddJob("snapshot refresh", cfg.Snapshot.Refresh, func() {
			srv.Invalidate()
			requestSnapshot()
		})
		if err != nil {
			return err
		}
	}
	sched.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sched.Stop(stopCtx)
	}()

	if cfg.Snapshot.Enabled {
		go snapshotLoop(ctx, snapshots)
		requestSnapshot()
	}

	appLog.Info("tmscal starting",
		"version", version,
		"listen", "http://"+cfg.Listen,
		"timezone", cfg.Timezone,
		"ics_count", len(cfg.ICS),
		"sweep_cron", cfg.Sweep.Cron,
		"snapshot", cfg.Snapshot.Enabled,
		"snapshot_refresh", cfg.Snapshot.Refresh,
	)

	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	appLog.Info("tmscal exiting")
	return nil
}

// snapshotLoop captures the current month whenever asked, one at a time.
// The first capture waits briefly so the HTTP listener is up.
func snapshotLoop(ctx context.Context, requests <-chan struct{}) {
	select {
	case <-time.After(2 * time.Second):
	case <-ctx.Done():
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-requests:
			n := now()
			opts := capture.OptionsFromConfig(cfg, n.Year(), n.Month())
			if err := capture.CalendarPNG(ctx, opts); err != nil {
				appLog.Error("snapshot failed", err, "url", opts.URL)
			}
		}
	}
}
