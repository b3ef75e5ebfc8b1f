package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tmscal/internal/config"
	"tmscal/internal/ics"
	appLog "tmscal/internal/log"
	"tmscal/internal/model"
	"tmscal/internal/source"
	"tmscal/internal/store"
)

const version = "0.3.0"

var (
	cfgFile string
	debug   bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tmscal",
	Short: "Training schedule calendar: month layout, conflicts and status sweeps",
	Long: `tmscal lays out training schedules on a month calendar, stacking
overlapping courses into tracks, and keeps their stored status in step with
the date. It serves an HTML calendar, a JSON API and an iCalendar feed.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file (default $TMSCAL_CONFIG or "+config.DefaultPath+")")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	path := config.ResolvePath(cfgFile)
	c, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	cfg = c

	level := appLog.ParseLevel(cfg.LogLevel)
	if debug {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	appLog.Debug("effective config",
		"command", cmd.Name(),
		"config_path", path,
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"week_start", cfg.WeekStart,
		"database", cfg.Database,
		"ics_count", len(cfg.ICS),
		"sweep_cron", cfg.Sweep.Cron,
	)
	return nil
}

// openStore opens the configured SQLite database.
func openStore(ctx context.Context) (*sql.DB, *store.Schedules, error) {
	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return db, store.NewSchedules(db), nil
}

// loadEvents collects stored and feed events. Partial failures are logged;
// only a total failure is returned.
func loadEvents(ctx context.Context, st *store.Schedules) ([]model.ScheduleEvent, error) {
	c := source.New(st, ics.NewFetcher(cfg.CacheDir), cfg)
	events, err := c.Events(ctx)
	if err != nil {
		if len(events) == 0 {
			return nil, err
		}
		appLog.Error("some schedule sources failed", err, "loaded", len(events))
	}
	return events, nil
}

// now is the current instant in the configured timezone.
func now() time.Time {
	return time.Now().In(cfg.Location())
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		appLog.Error("closing database failed", err)
	}
}
