package main

import (
	"time"

	"github.com/spf13/cobra"

	"tmscal/internal/capture"
)

var (
	snapshotOutput string
	snapshotURL    string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture the calendar page of a running server as PNG",
	RunE:  runSnapshot,
}

func init() {
	snapshotCmd.Flags().StringVarP(&snapshotOutput, "output", "o", "", "PNG path (default snapshot.output from config)")
	snapshotCmd.Flags().StringVar(&snapshotURL, "url", "", "Page to capture (default the local /calendar)")
	snapshotCmd.Flags().IntVar(&yearFlag, "year", 0, "Year to capture (default current)")
	snapshotCmd.Flags().IntVar(&monthFlag, "month", 0, "Month 1-12 to capture (default current)")
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	opts := capture.OptionsFromConfig(cfg, yearFlag, time.Month(monthFlag))
	if snapshotURL != "" {
		opts.URL = snapshotURL
	}
	if snapshotOutput != "" {
		opts.OutputPath = snapshotOutput
	}
	return capture.CalendarPNG(cmd.Context(), opts)
}
