package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tmscal/internal/layout"
	"tmscal/internal/model"
	"tmscal/internal/render"
)

var (
	yearFlag  int
	monthFlag int
)

var monthCmd = &cobra.Command{
	Use:   "month",
	Short: "Print the month calendar with stacked tracks",
	RunE:  runMonth,
}

var yearCmd = &cobra.Command{
	Use:   "year",
	Short: "Print the year list grouped by course",
	RunE:  runYear,
}

func init() {
	monthCmd.Flags().IntVar(&yearFlag, "year", 0, "Year to show (default current)")
	monthCmd.Flags().IntVar(&monthFlag, "month", 0, "Month 1-12 to show (default current)")
	yearCmd.Flags().IntVar(&yearFlag, "year", 0, "Year to show (default current)")
	rootCmd.AddCommand(monthCmd, yearCmd)
}

func runMonth(cmd *cobra.Command, _ []string) error {
	n := now()
	year, month := n.Year(), n.Month()
	if yearFlag > 0 {
		year = yearFlag
	}
	if monthFlag != 0 {
		if monthFlag < 1 || monthFlag > 12 {
			return fmt.Errorf("month must be 1-12, got %d", monthFlag)
		}
		month = time.Month(monthFlag)
	}

	db, st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeDB(db)

	events, err := loadEvents(cmd.Context(), st)
	if err != nil {
		return err
	}

	m := layout.Compute(events, year, month, n)
	styles := render.DefaultStyles(cfg.Palette)
	fmt.Fprintln(cmd.OutOrStdout(), render.Month(m, cfg.FirstWeekday(), model.DayOf(n), styles))

	for _, e := range m.Events {
		d := m.Statuses[e.ID]
		track, _ := m.Tracks.Track(e.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "  [%d] %s  %s  %s..%s  %s\n",
			track, styles.Status[d.Severity].Render(string(d.Label)), e.Course, e.Start(), e.End(), e.Branch)
	}
	return nil
}

func runYear(cmd *cobra.Command, _ []string) error {
	n := now()
	year := n.Year()
	if yearFlag > 0 {
		year = yearFlag
	}

	db, st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeDB(db)

	events, err := loadEvents(cmd.Context(), st)
	if err != nil {
		return err
	}

	rows := layout.YearView(events, year, n)
	if len(rows) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No schedules in %d.\n", year)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), render.Year(rows, year, render.DefaultStyles(cfg.Palette)))
	return nil
}
