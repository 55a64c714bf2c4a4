package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"habraterm/internal/repl"
)

var version = "dev"

// rootOptions 是所有子命令共享的持久化参数。
type rootOptions struct {
	configPath string
	overrides  []string
	routing    string
	inline     bool
	lineMode   bool
	quiet      bool
	noColor    bool
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "habraterm",
		Short: "A terminal front end with a scrollback session view",
		Long: `habraterm keeps a scrollback of submitted commands and their output
under a single active prompt line. Commands run on a background shell
backend; output and working-directory changes arrive as events.

With a terminal attached it starts the full-screen interface, otherwise
it reads commands line by line from stdin.`,
		Args:          cobra.NoArgs,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRoot(cmd, opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.habraterm/config.toml)")
	flags.StringArrayVarP(&opts.overrides, "config-override", "c", nil, "override a config value (key=value), repeatable")
	flags.StringVar(&opts.routing, "routing", "", "output routing policy: latest or owner")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored line-mode output")
	root.Flags().BoolVar(&opts.inline, "inline", false, "render inline instead of using the alternate screen")
	root.Flags().BoolVar(&opts.lineMode, "lines", false, "force line mode even on a terminal")
	root.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "line mode: do not echo prompts and input")

	root.AddCommand(newExecCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

func runRoot(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	rt, err := startRuntime(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if !opts.lineMode && isTerminal(os.Stdin) && isTerminal(os.Stdout) {
		res, err := repl.RunUI(cmd.Context(), repl.UIOptions{
			Gateway:       rt.gateway,
			Prompt:        rt.prompt(),
			Routing:       rt.routing(),
			MaxBlockLines: cfg.MaxBlockLines,
			Inline:        opts.inline,
			History:       historyStore(cfg),
		})
		if err != nil {
			return err
		}
		log.Infof("session closed after %d commands", res.Submitted)
		return nil
	}

	res, err := repl.RunLines(cmd.Context(), repl.LineOptions{
		Gateway:       rt.gateway,
		In:            cmd.InOrStdin(),
		Out:           cmd.OutOrStdout(),
		Prompt:        rt.prompt(),
		Routing:       rt.routing(),
		MaxBlockLines: cfg.MaxBlockLines,
		NoColor:       opts.noColor || !isTerminal(os.Stdout),
		Quiet:         opts.quiet,
	})
	if err != nil && cmd.Context().Err() == nil {
		return err
	}
	log.Infof("line mode finished: %d commands, last exit %d", res.Commands, res.ExitCode)
	return nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
