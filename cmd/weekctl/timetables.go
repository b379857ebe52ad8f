package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rpggio/weekly/internal/domain/timetable"
	"github.com/rpggio/weekly/internal/domain/week"
)

// activitiesFile is the YAML layout accepted by "activities set" and
// "timetables create --file".
type activitiesFile struct {
	Activities []week.ActivityDefinition `yaml:"activities"`
}

func readActivities(path string) ([]week.ActivityDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f activitiesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return f.Activities, nil
}

func timetablesCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "timetables",
		Aliases: []string{"tt"},
		Short:   "List, inspect or create timetables",
	}
	cmd.AddCommand(timetablesListCmd(opts), timetablesGetCmd(opts), timetablesCreateCmd(opts))
	return cmd
}

func timetablesListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List timetables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := opts.client().ListTimetables(cmd.Context())
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(opts.out, list)
			}
			t := newTable("ID", "Name", "Active", "Activities", "Weeks", "This week")
			for _, s := range list {
				active := ""
				if s.IsActive {
					active = "*"
				}
				t.Row(s.ID, s.Name, active, fmt.Sprint(s.ActivityCount), fmt.Sprint(s.HistoryCount),
					fmt.Sprintf("%.2f%%", s.OverallCompletionRate))
			}
			fmt.Fprintln(opts.out, t.String())
			return nil
		},
	}
}

func timetablesGetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get [id]",
		Short: "Show a timetable summary",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := opts.timetable
			if len(args) == 1 {
				id = args[0]
			}
			s, err := opts.client().Timetable(cmd.Context(), id)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(opts.out, s)
			}
			t := newTable("Field", "Value")
			t.Row("ID", s.ID)
			t.Row("Name", s.Name)
			if s.Description != "" {
				t.Row("Description", s.Description)
			}
			t.Row("Active", fmt.Sprint(s.IsActive))
			t.Row("Week of", s.CurrentWeekStart.Format("Mon Jan 2, 2006"))
			t.Row("Activities", fmt.Sprint(s.ActivityCount))
			t.Row("Archived weeks", fmt.Sprint(s.HistoryCount))
			t.Row("This week", fmt.Sprintf("%.2f%%", s.OverallCompletionRate))
			t.Row("Version", fmt.Sprint(s.Version))
			fmt.Fprintln(opts.out, t.String())
			return nil
		},
	}
}

func timetablesCreateCmd(opts *globalOptions) *cobra.Command {
	var (
		description string
		file        string
		inactive    bool
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a timetable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := timetable.CreateRequest{Name: args[0], Description: description, IsActive: !inactive}
			if file != "" {
				defs, err := readActivities(file)
				if err != nil {
					return err
				}
				req.Activities = defs
			}
			created, err := opts.client().CreateTimetable(cmd.Context(), req)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(opts.out, created.Summarize())
			}
			fmt.Fprintf(opts.out, "Created %s (%s)\n", created.Name, created.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "description")
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with the activity list")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "do not mark the timetable active")
	return cmd
}

func activitiesCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activities",
		Short: "Show or replace the activity list",
	}
	cmd.AddCommand(activitiesListCmd(opts), activitiesSetCmd(opts))
	return cmd
}

func activitiesListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the activities of the current week",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rec, err := opts.client().ActiveWeek(cmd.Context(), opts.timetable)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(opts.out, rec.Activities)
			}
			t := newTable("ID", "Name", "Time", "Category")
			for _, p := range rec.Activities {
				t.Row(p.Activity.ID, p.Activity.Name, p.Activity.Time, p.Activity.Category)
			}
			fmt.Fprintln(opts.out, t.String())
			return nil
		},
	}
}

func activitiesSetCmd(opts *globalOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace the default activities used from the next week on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defs, err := readActivities(file)
			if err != nil {
				return err
			}
			saved, err := opts.client().ReplaceActivities(cmd.Context(), opts.timetable, defs)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(opts.out, saved)
			}
			fmt.Fprintf(opts.out, "Saved %d activities; they apply from the next week\n", len(saved))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with the activity list")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
