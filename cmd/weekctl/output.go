package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/rpggio/weekly/internal/domain/week"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
}

func printWeek(w io.Writer, rec week.Record) {
	fmt.Fprintf(w, "Week %s to %s  overall %.2f%%\n",
		rec.WeekStartDate.Format("2006-01-02"), rec.WeekEndDate.Format("2006-01-02"), rec.OverallCompletionRate)

	headers := []string{"Activity", "Time"}
	for d := range week.DaysPerWeek {
		headers = append(headers, week.DayName(d)[:3])
	}
	headers = append(headers, "%")

	t := newTable(headers...)
	for _, act := range rec.Activities {
		row := []string{act.Activity.Name, act.Activity.Time}
		for _, done := range act.DailyStatus {
			row = append(row, mark(done))
		}
		row = append(row, fmt.Sprintf("%.2f", act.CompletionRate))
		t.Row(row...)
	}
	fmt.Fprintln(w, t.String())

	if strings.TrimSpace(rec.Notes) != "" {
		fmt.Fprintf(w, "Notes: %s\n", rec.Notes)
	}
}

func mark(done bool) string {
	if done {
		return "x"
	}
	return "."
}
