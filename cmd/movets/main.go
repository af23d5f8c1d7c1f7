package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "movets",
		Short: "Move TypeScript files and folders and keep every import pointing at them.",
		Long: `Move TypeScript and JavaScript files or folders. Every relative, tsconfig
alias and workspace package specifier that reaches a moved path, or leaves
it, is rewritten.

Example: movets move src/utils/date.ts src/lib/date.ts`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.root, "root", "r", ".", "Workspace root")
	flags.StringVarP(&opts.configPath, "config", "c", "", "Settings file (default <root>/.movets.yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format: text or json")
	flags.BoolVarP(&opts.dryRun, "dry-run", "n", false, "Print the changes instead of writing them")
	flags.BoolVarP(&opts.yes, "yes", "y", false, "Do not ask for confirmation")

	rootCmd.AddCommand(
		newMoveCmd(opts),
		newBatchCmd(opts),
		newSiblingsCmd(opts),
		newComponentizeCmd(opts),
		newRefsCmd(opts),
		newSpecifiersCmd(opts),
		newWatchCmd(opts),
		newServeCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "movets %s\n", version)
			},
		},
	)
	return rootCmd
}
