package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"tmscal/internal/ics"
	appLog "tmscal/internal/log"
)

var exportOutput string

var importCmd = &cobra.Command{
	Use:   "import <file.ics>...",
	Short: "Import schedules from iCalendar files into the store",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every schedule as an iCalendar feed",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default stdout)")
	rootCmd.AddCommand(importCmd, exportCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	db, st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeDB(db)

	expand := ics.ExpandConfig{Location: cfg.Location(), HorizonDays: cfg.ExpandHorizonDays}
	var errs []error
	total := 0
	for _, path := range args {
		body, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		src := ics.Source{ID: filepath.Base(path)}
		events, err := ics.ParseICS(src, body, expand)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, e := range events {
			if _, err := st.Save(cmd.Context(), e); err != nil {
				errs = append(errs, err)
				continue
			}
			total++
		}
		appLog.Info("imported file", "path", path, "events", len(events))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d schedule(s) imported\n", total)
	return errors.Join(errs...)
}

func runExport(cmd *cobra.Command, _ []string) error {
	db, st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeDB(db)

	events, err := loadEvents(cmd.Context(), st)
	if err != nil {
		return err
	}
	feed := ics.Export(events, now())

	if exportOutput == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), feed)
		return err
	}
	if err := os.WriteFile(exportOutput, []byte(feed), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", exportOutput, err)
	}
	appLog.Info("exported feed", "path", exportOutput, "events", len(events))
	return nil
}
