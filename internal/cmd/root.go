// Package cmd implements the nchat command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/nchat/internal/config"
	"github.com/Iron-Ham/nchat/internal/errors"
	"github.com/Iron-Ham/nchat/internal/orchestrator"
	"github.com/Iron-Ham/nchat/internal/tui/keymap"
	"github.com/Iron-Ham/nchat/internal/version"
)

// RunFunc runs one session. Production code passes orchestrator.Run.
type RunFunc func(ctx context.Context, opts orchestrator.Options) error

// Flag names, also used as viper keys. NCHAT_CONFIGDIR and friends override
// the defaults when the flag is not given.
const (
	flagConfigDir = "configdir"
	flagVerbose   = "verbose"
	flagSetup     = "setup"
	flagVersion   = "version"
)

// NewRootCommand builds the nchat command. Settings are resolved through v so
// flags take precedence over NCHAT_* environment variables.
func NewRootCommand(v *viper.Viper, run RunFunc) *cobra.Command {
	root := &cobra.Command{
		Use:           "nchat",
		Short:         "Terminal chat client",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(c *cobra.Command, _ []string) error {
			if v.GetBool(flagVersion) {
				fmt.Fprint(c.OutOrStdout(), version.Banner())
				return nil
			}
			return run(c.Context(), orchestrator.Options{
				ConfigDir: v.GetString(flagConfigDir),
				Verbose:   v.GetBool(flagVerbose),
				Setup:     v.GetBool(flagSetup),
				Stdout:    c.OutOrStdout(),
			})
		},
	}

	flags := root.Flags()
	flags.StringP(flagConfigDir, "d", config.DefaultDir(), "use a different directory than ~/.nchat")
	flags.BoolP(flagVerbose, "e", false, "enable verbose logging")
	flags.BoolP(flagSetup, "s", false, "set up chat protocol account")
	flags.BoolP(flagVersion, "v", false, "output version information")
	for _, name := range []string{flagConfigDir, flagVerbose, flagSetup, flagVersion} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	v.SetEnvPrefix("NCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root.SetHelpFunc(func(c *cobra.Command, _ []string) {
		fmt.Fprint(c.OutOrStdout(), helpText(c))
	})
	return root
}

func helpText(c *cobra.Command) string {
	var b strings.Builder
	b.WriteString("nchat is a minimalistic terminal-based chat client.\n\n")
	b.WriteString("Usage: nchat [OPTION]\n\n")
	b.WriteString("Command-line Options:\n")
	b.WriteString(c.Flags().FlagUsages())
	b.WriteByte('\n')
	b.WriteString("Interactive Commands:\n")
	for _, line := range keymap.DefaultKeymap().HelpLines() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("\nReport bugs at https://github.com/d99kris/nchat\n")
	return b.String()
}

// Execute runs nchat with the process arguments and returns the exit code.
// SIGINT, SIGTERM and SIGHUP end the session through its context.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()
	return ExecuteContext(ctx, os.Args[1:], os.Stdout, os.Stderr, orchestrator.Run)
}

// ExecuteContext runs nchat with args and returns the exit code. Errors are
// printed to stderr as a single diagnostic line.
func ExecuteContext(ctx context.Context, args []string, stdout, stderr io.Writer, run RunFunc) int {
	ran := false
	root := NewRootCommand(viper.New(), func(ctx context.Context, opts orchestrator.Options) error {
		ran = true
		return run(ctx, opts)
	})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return errors.ExitOK
	}
	fmt.Fprintln(stderr, errors.UserMessage(err))
	if !ran {
		fmt.Fprintln(stderr, "Try 'nchat --help' for more information.")
	}
	return errors.ExitCode(err)
}
