// Package render draws month and year layouts for the terminal.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/reflow/truncate"

	"tmscal/internal/config"
	"tmscal/internal/layout"
	"tmscal/internal/model"
)

const cellWidth = 14

type Styles struct {
	Header  lipgloss.Style
	Weekday lipgloss.Style
	Day     lipgloss.Style
	Today   lipgloss.Style
	Cell    lipgloss.Style
	Border  lipgloss.Style
	Status  map[layout.Severity]lipgloss.Style
}

// DefaultStyles builds styles whose status colors come from the palette.
func DefaultStyles(p config.Palette) Styles {
	status := func(hex string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("235")).Background(lipgloss.Color(hex))
	}
	return Styles{
		Header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")).
			Bold(true).
			Underline(true),
		Weekday: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(cellWidth),
		Day: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		Today: lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")).
			Bold(true),
		Cell: lipgloss.NewStyle().
			Width(cellWidth),
		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")),
		Status: map[layout.Severity]lipgloss.Style{
			layout.SeveritySuccess: status(p.Upcoming),
			layout.SeverityWarning: status(p.Ongoing),
			layout.SeverityMuted:   status(p.Finished),
			layout.SeverityDanger:  status(p.Cancelled),
		},
	}
}

// Month renders m as a week grid. Each day shows one line per track; an
// event's title appears on its start day and a bar on continuing days.
func Month(m layout.MonthLayout, weekStart time.Weekday, today model.Day, st Styles) string {
	lines := []string{st.Header.Render(fmt.Sprintf("%s %d", m.Month, m.Year))}

	var head []string
	for i := range 7 {
		head = append(head, st.Weekday.Render(time.Weekday((int(weekStart) + i) % 7).String()[:3]))
	}
	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, head...))

	rows := 1
	if len(m.Events) > 0 {
		rows += m.MaxTrack + 1
	}
	for _, week := range m.Weeks(weekStart) {
		cols := make([]string, 0, 7)
		for _, d := range week {
			cols = append(cols, st.Cell.Render(dayCell(m, d, today, rows, st)))
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	}

	return st.Border.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func dayCell(m layout.MonthLayout, d, today model.Day, rows int, st Styles) string {
	out := make([]string, rows)
	if d.IsZero() {
		return strings.Join(out, "\n")
	}

	num := fmt.Sprintf("%2d", d.Day)
	if d == today {
		out[0] = st.Today.Render(num)
	} else {
		out[0] = st.Day.Render(num)
	}

	for _, slot := range m.Days[d] {
		if slot.Empty() {
			continue
		}
		text := strings.Repeat("─", cellWidth-1)
		if slot.IsStart {
			text = truncate.StringWithTail(slot.Event.Course, cellWidth-1, "…")
		}
		style := st.Status[m.Statuses[slot.Event.ID].Severity]
		out[slot.Track+1] = style.Render(text)
	}
	return strings.Join(out, "\n")
}

// Year renders the year view as a table: one row per course, one column per
// month, entries stacked inside a cell.
func Year(rows []layout.CourseRow, year int, st Styles) string {
	headers := []string{"Course"}
	for m := time.January; m <= time.December; m++ {
		headers = append(headers, m.String()[:3])
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(st.Border.GetBorderTopForeground())).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return st.Weekday.UnsetWidth().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})

	for _, r := range rows {
		cells := []string{truncate.StringWithTail(r.Course, 24, "…")}
		for _, entries := range r.Months {
			var parts []string
			for _, e := range entries {
				parts = append(parts, st.Status[e.Display.Severity].Render(e.Days))
			}
			cells = append(cells, strings.Join(parts, "\n"))
		}
		t.Row(cells...)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		st.Header.Render(fmt.Sprintf("Training calendar %d", year)),
		t.String(),
	)
}
