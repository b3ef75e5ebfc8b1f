package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tmscal/internal/model"
	"tmscal/internal/sweep"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Recalculate stored schedule statuses once and exit",
	Long: `Sets each stored schedule to planned, ongoing or finished according to
today's date. Cancelled schedules are never touched.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	db, st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeDB(db)

	today := model.DayOf(now())
	changes, err := sweep.Run(cmd.Context(), st, today)
	for _, c := range changes {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", c.ID, c.Old, c.New)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d schedule(s) updated for %s\n", len(changes), today)
	return nil
}
