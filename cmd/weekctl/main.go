// Command weekctl is a terminal client for a weekly server.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rpggio/weekly/internal/client"
	"github.com/rpggio/weekly/internal/domain/timetable"
)

var Version = "dev"

type globalOptions struct {
	server    string
	token     string
	timetable string
	session   string
	json      bool
	out       io.Writer
}

func (o *globalOptions) client() *client.Client {
	return client.New(o.server,
		client.WithToken(o.token),
		client.WithClientSession(o.session),
	)
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &globalOptions{out: out}

	root := &cobra.Command{
		Use:           "weekctl",
		Short:         "Track weekly recurring activities",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.server, "server", envOr("WEEKLY_SERVER", "http://localhost:8080"), "server base URL")
	flags.StringVar(&opts.token, "token", os.Getenv("WEEKLY_TOKEN"), "API key or JWT")
	flags.StringVarP(&opts.timetable, "timetable", "t", envOr("WEEKLY_TIMETABLE", timetable.ActiveID), "timetable id")
	flags.StringVar(&opts.session, "session", envOr("WEEKLY_SESSION", uuid.NewString()), "client session id recorded in the activity log")
	flags.BoolVar(&opts.json, "json", false, "output as JSON")

	root.AddCommand(
		showCmd(opts),
		toggleCmd(opts),
		notesCmd(opts),
		rolloverCmd(opts),
		historyCmd(opts),
		statsCmd(opts),
		logCmd(opts),
		timetablesCmd(opts),
		activitiesCmd(opts),
		watchCmd(opts),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
