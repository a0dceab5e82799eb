package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/tba/internal/pipeline"
	"github.com/roach88/tba/internal/providers"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	outputFlags
	Database string
	Speedup  bool
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <recording|latest>",
		Short: "Replay a recorded team battle",
		Long: `Play back the announcements of a recorded tour with their original timing.

Recordings are made by "tba watch" when TBA_RECORD_DB is set. With --speedup
(the default) no pause between two announcements is longer than 5 seconds.

Exit codes:
  0 - Playback finished or interrupted
  1 - Playback failed
  2 - Command error (database or recording not found, etc.)

Examples:
  tba replay latest --db ./recordings.db
  tba replay 0190b2c4-9f1e-7c3a-8d4e-2f6a1b3c5d7e --speedup=false --lang sv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the recording database (default $TBA_RECORD_DB)")
	cmd.Flags().BoolVar(&opts.Speedup, "speedup", true, "cap pauses between announcements at 5s")
	opts.outputFlags.bind(cmd)

	return cmd
}

func runReplay(opts *ReplayOptions, recording string, cmd *cobra.Command) error {
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

	ctx, cancel := signalContext(cmd)
	defer cancel()

	src := pipeline.ProviderConfig{Provider: providers.SourceReplay, Config: map[string]string{
		"recording": recording,
		"speedup":   strconv.FormatBool(opts.Speedup),
	}}
	configs := []pipeline.Config{opts.pipelineConfig("replay", opts.Format, src)}
	return runPipelines(ctx, opts.RootOptions, a, a.providers(cmd.OutOrStdout()), configs, nil, cmd)
}
