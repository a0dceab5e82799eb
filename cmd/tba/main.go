// Command tba follows a team in a team battle arena and announces what
// happens.
package main

import (
	"os"

	"github.com/roach88/tba/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		format, _ := cmd.PersistentFlags().GetString("format")
		out := &cli.OutputFormatter{Format: format, Writer: os.Stderr}
		_ = out.Error(err)
		os.Exit(cli.GetExitCode(err))
	}
}
