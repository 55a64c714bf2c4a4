package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"habraterm/internal/repl"
)

func newExecCmd(opts *rootOptions) *cobra.Command {
	var echo bool
	cmd := &cobra.Command{
		Use:   "exec <command...>",
		Short: "Run a single command through the backend and exit with its status",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			rt, err := startRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			line := strings.Join(args, " ")
			res, err := repl.RunLines(cmd.Context(), repl.LineOptions{
				Gateway:       rt.gateway,
				In:            strings.NewReader(line + "\n"),
				Out:           cmd.OutOrStdout(),
				Prompt:        rt.prompt(),
				Routing:       rt.routing(),
				MaxBlockLines: cfg.MaxBlockLines,
				NoColor:       opts.noColor || !isTerminal(os.Stdout),
				Quiet:         !echo,
			})
			if err != nil {
				return err
			}
			if res.ExitCode != 0 {
				return exitError{code: res.ExitCode}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&echo, "echo", false, "print the prompt and command before its output")
	return cmd
}
