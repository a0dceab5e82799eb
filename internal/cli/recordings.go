package cli

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// RecordingsOptions holds flags for the recordings command.
type RecordingsOptions struct {
	*RootOptions
	Database string
}

// RecordingView is one recording in command output.
type RecordingView struct {
	ID        string    `json:"id"`
	Team      string    `json:"team"`
	Arena     string    `json:"arena"`
	StartedAt time.Time `json:"started_at"`
	Events    int       `json:"events"`
}

// NewRecordingsCommand creates the recordings command.
func NewRecordingsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordingsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "recordings",
		Short: "List recorded team battles",
		Long: `List the recordings in a database, most recent first.

Examples:
  tba recordings --db ./recordings.db
  tba recordings --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecordings(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the recording database (default $TBA_RECORD_DB)")

	return cmd
}

func runRecordings(opts *RecordingsOptions, cmd *cobra.Command) error {
	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	db := opts.Database
	if db == "" {
		db = a.cfg.RecordDB
	}
	if db == "" {
		return NewExitError(ExitCommandError, "no recording database: use --db or set TBA_RECORD_DB")
	}
	if err := a.openStore(db); err != nil {
		return err
	}

	recs, err := a.store.ListRecordings(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list recordings", err)
	}

	views := make([]RecordingView, 0, len(recs))
	for _, r := range recs {
		views = append(views, RecordingView{ID: r.ID, Team: r.Team, Arena: r.Arena, StartedAt: r.StartedAt, Events: r.Events})
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	return out.Success(views, recordingsTable(views))
}

func recordingsTable(views []RecordingView) string {
	if len(views) == 0 {
		return "No recordings found.\n"
	}
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTEAM\tARENA\tSTARTED\tEVENTS")
	for _, v := range views {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", v.ID, v.Team, v.Arena, v.StartedAt.Format(time.RFC3339), v.Events)
	}
	w.Flush()
	return buf.String()
}
