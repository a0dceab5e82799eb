package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tba/internal/pipeline"
	"github.com/roach88/tba/internal/providers"
)

// NewProvidersCommand creates the providers command.
func NewProvidersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the providers usable in a pipelines file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := pipeline.NewRegistry()
			providers.Register(reg, providers.Deps{})
			names := reg.Names()

			text := fmt.Sprintf("sources:      %s\ntransformers: %s\nsinks:        %s\n",
				strings.Join(names.Sources, ", "),
				strings.Join(names.Transformers, ", "),
				strings.Join(names.Sinks, ", "),
			)
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}
			return out.Success(names, text)
		},
	}
}
