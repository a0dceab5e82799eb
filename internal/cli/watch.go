package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tba/internal/pipeline"
	"github.com/roach88/tba/internal/providers"
)

// outputFlags choose how announcements are rendered and where they go when
// a command builds its own pipeline.
type outputFlags struct {
	Lang       string
	Sink       string
	SinkConfig map[string]string
}

func (o *outputFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Lang, "lang", "en", "announcement language (en|sv)")
	cmd.Flags().StringVar(&o.Sink, "sink", providers.SinkConsole, "sink provider (console|file|websocket)")
	cmd.Flags().StringToStringVar(&o.SinkConfig, "sink-opt", nil, "sink setting as key=value, e.g. path=out.log or addr=:8080")
}

// pipelineConfig builds a single pipeline from src. JSON output skips the text
// rendering and delivers event envelopes.
func (o *outputFlags) pipelineConfig(name, format string, src pipeline.ProviderConfig) pipeline.Config {
	render := pipeline.ProviderConfig{Provider: providers.TransformerText, Config: map[string]string{"lang": o.Lang}}
	if format == "json" {
		render = pipeline.ProviderConfig{Provider: providers.TransformerJSON}
	}
	return pipeline.Config{
		Name:         name,
		Source:       src,
		Transformers: []pipeline.ProviderConfig{render},
		Sink:         pipeline.ProviderConfig{Provider: o.Sink, Config: o.SinkConfig},
	}
}

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	outputFlags
	Pipelines string
	Team      string
	Arena     string
	NoRecord  bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Announce a live team battle",
		Long: `Follow a team in a team battle arena and announce what happens until the
arena ends or the command is interrupted.

Either name the team and arena on the command line, or give a pipelines file
to run several sources, transformers and sinks at once.

When TBA_RECORD_DB is set, every announcement is also recorded for replay.

Exit codes:
  0 - Arena ended or interrupted
  1 - Monitoring failed
  2 - Command error (bad flags, invalid pipelines file, nothing runnable)

Examples:
  tba watch --team knights --arena spring24
  tba watch --team knights --arena spring24 --lang sv --sink file --sink-opt path=battle.log
  tba watch --pipelines pipelines.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Pipelines, "pipelines", "", "pipelines file (YAML)")
	cmd.Flags().StringVar(&opts.Team, "team", "", "team id")
	cmd.Flags().StringVar(&opts.Arena, "arena", "", "arena id")
	cmd.Flags().BoolVar(&opts.NoRecord, "no-record", false, "do not record even when TBA_RECORD_DB is set")
	opts.outputFlags.bind(cmd)
	cmd.MarkFlagsMutuallyExclusive("pipelines", "team")
	cmd.MarkFlagsMutuallyExclusive("pipelines", "arena")

	return cmd
}

// configs returns the pipelines to run and the pipelines of the file that
// were rejected.
func (opts *WatchOptions) configs() ([]pipeline.Config, []error, error) {
	if opts.Pipelines != "" {
		configs, skipped, err := pipeline.LoadConfig(opts.Pipelines)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to load pipelines", err)
		}
		return configs, skipped, nil
	}

	if opts.Team == "" || opts.Arena == "" {
		return nil, nil, NewExitError(ExitCommandError, "either --pipelines or both --team and --arena are required")
	}
	src := pipeline.ProviderConfig{Provider: providers.SourceTeamBattle, Config: map[string]string{
		"team":   opts.Team,
		"arena":  opts.Arena,
		"record": fmt.Sprint(!opts.NoRecord),
	}}
	return []pipeline.Config{opts.pipelineConfig(opts.Team, opts.Format, src)}, nil, nil
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	configs, skipped, err := opts.configs()
	if err != nil {
		return err
	}

	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.openStore(a.cfg.RecordDB); err != nil {
		return err
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := signalContext(cmd)
	defer cancel()

	wait, err := a.serveMetrics(ctx)
	if err != nil {
		return err
	}
	defer func() {
		cancel()
		wait()
	}()

	return runPipelines(ctx, opts.RootOptions, a, a.providers(cmd.OutOrStdout()), configs, skipped, cmd)
}

// runPipelines resolves and runs configs. Pipelines that were rejected
// earlier (skipped) or cannot be built are reported; the command only fails
// when none is left.
func runPipelines(ctx context.Context, opts *RootOptions, a *app, reg *pipeline.Registry, configs []pipeline.Config, skipped []error, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: "text", Writer: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	pipelines, errs := reg.Resolve(ctx, configs)
	errs = append(skipped, errs...)
	for _, err := range errs {
		a.logger.Warn("pipeline skipped", "error", err)
	}
	if len(pipelines) == 0 {
		return WrapExitError(ExitCommandError, "no runnable pipelines", errors.Join(errs...))
	}
	for _, p := range pipelines {
		out.VerboseLog("running pipeline %s", p.Name)
	}

	if err := pipeline.Run(ctx, pipelines, pipeline.WithLogger(a.logger)); err != nil {
		return WrapExitError(ExitFailure, "pipeline failed", err)
	}
	a.logger.Info("pipelines finished")
	return nil
}
