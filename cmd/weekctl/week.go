package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rpggio/weekly/internal/domain/timetable"
	"github.com/rpggio/weekly/internal/domain/week"
)

func showCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current week",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rec, err := opts.client().ActiveWeek(cmd.Context(), opts.timetable)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(opts.out, rec)
			}
			printWeek(opts.out, rec)
			return nil
		},
	}
}

func toggleCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <activity> <day>",
		Short: "Flip one day of an activity",
		Long: `Flip one day of an activity in the current week.

The activity is its id or name. The day is an index (0 is Monday) or a
weekday name such as "wed".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := week.ParseDay(args[1])
			if err != nil {
				return err
			}
			rec, err := opts.client().Toggle(cmd.Context(), opts.timetable, args[0], day)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(opts.out, rec)
			}
			printWeek(opts.out, rec)
			return nil
		},
	}
}

func notesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "notes <text>",
		Short: "Replace the current week's notes",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := opts.client().UpdateNotes(cmd.Context(), opts.timetable, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(opts.out, rec)
			}
			fmt.Fprintf(opts.out, "Notes saved for week of %s\n", rec.WeekStartDate.Format("2006-01-02"))
			return nil
		},
	}
}

func rolloverCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rollover",
		Short: "Archive the current week if it has ended",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := opts.client().EvaluateRollover(cmd.Context(), opts.timetable)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(opts.out, res)
			}
			switch {
			case !res.RolledOver:
				fmt.Fprintln(opts.out, "Current week has not ended")
			case res.Archived != nil:
				fmt.Fprintf(opts.out, "Archived week of %s (%.2f%%), started week of %s\n",
					res.Archived.WeekStartDate.Format("2006-01-02"), res.Archived.OverallCompletionRate,
					res.Week.WeekStartDate.Format("2006-01-02"))
			default:
				fmt.Fprintf(opts.out, "Started week of %s\n", res.Week.WeekStartDate.Format("2006-01-02"))
			}
			return nil
		},
	}
}

func historyCmd(opts *globalOptions) *cobra.Command {
	var (
		page     int
		pageSize int
		oldest   bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived weeks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := timetable.HistoryRequest{Page: page, PageSize: pageSize}
			if oldest {
				req.Order = timetable.OldestFirst
			}
			res, err := opts.client().History(cmd.Context(), opts.timetable, req)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(opts.out, res)
			}
			t := newTable("Week", "Completion", "Activities")
			for _, w := range res.Weeks {
				t.Row(w.WeekStartDate.Format("2006-01-02"), fmt.Sprintf("%.2f%%", w.OverallCompletionRate), fmt.Sprint(len(w.Activities)))
			}
			fmt.Fprintln(opts.out, t.String())
			fmt.Fprintf(opts.out, "Page %d, %d of %d weeks\n", res.Page, len(res.Weeks), res.Total)
			return nil
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 0, "page number, starting at 1")
	cmd.Flags().IntVarP(&pageSize, "size", "n", 0, "weeks per page")
	cmd.Flags().BoolVar(&oldest, "oldest-first", false, "list the oldest week first")
	return cmd
}

func statsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show completion statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.client().Stats(cmd.Context(), opts.timetable)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(opts.out, s)
			}
			fmt.Fprintf(opts.out, "Weeks tracked:    %d\n", s.WeeksTracked)
			fmt.Fprintf(opts.out, "Average:          %.2f%%\n", s.AverageCompletion)
			fmt.Fprintf(opts.out, "Best:             %.2f%%\n", s.BestCompletion)
			fmt.Fprintf(opts.out, "Current week:     %.2f%%\n", s.CurrentWeekCompletion)
			fmt.Fprintf(opts.out, "Streak (>=%.0f%%): %d\n", s.StreakThreshold, s.CurrentStreak)
			if len(s.Activities) > 0 {
				t := newTable("Activity", "Category", "Average", "Weeks")
				for _, a := range s.Activities {
					t.Row(a.Name, a.Category, fmt.Sprintf("%.2f%%", a.AverageRate), fmt.Sprint(a.WeeksTracked))
				}
				fmt.Fprintln(opts.out, t.String())
			}
			return nil
		},
	}
}

func logCmd(opts *globalOptions) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the change log of a timetable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := opts.client().ActivityLog(cmd.Context(), opts.timetable, limit, offset)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(opts.out, entries)
			}
			t := newTable("When", "Type", "Summary", "Session")
			for _, e := range entries {
				session := ""
				if e.ClientSessionID != nil {
					session = *e.ClientSessionID
				}
				t.Row(e.CreatedAt.Local().Format("2006-01-02 15:04"), string(e.ActivityType), e.Summary, session)
			}
			fmt.Fprintln(opts.out, t.String())
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")
	return cmd
}
