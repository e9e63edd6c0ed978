package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/valuekit/internal/logger"
)

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	verbose  bool
	quiet    bool
	jsonOut  bool
	lang     string
	logLevel string

	out     io.Writer
	printer *message.Printer
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:   "valuectl",
		Short: "Exercise polymorphic value containers and their allocators",
		Long: `valuectl runs small scenarios against valueptr containers: building a
shape, reassigning it to another concrete type, copying it, and reporting what the
chosen allocator did along the way.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&g.quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&g.jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&g.lang, "lang", "en", "Language tag for number formatting")
	rootCmd.PersistentFlags().
		StringVar(&g.logLevel, "log-level", "", "Log to stderr at this level (debug, info, warn, error)")

	rootCmd.AddCommand(newDemoCmd(g), newStatsCmd(g), newVersionCmd())
	return rootCmd
}

func (g *globals) setup(cmd *cobra.Command) error {
	g.out = cmd.OutOrStdout()

	tag, err := language.Parse(g.lang)
	if err != nil {
		return fmt.Errorf("invalid --lang %q: %w", g.lang, err)
	}
	g.printer = message.NewPrinter(tag)

	opts := logger.Options{Writer: cmd.ErrOrStderr(), Level: slog.LevelInfo}
	if g.logLevel != "" {
		opts.Enabled = true
		opts.Level = logger.ParseLevel(g.logLevel)
	}
	logger.Init(logger.FromEnv(opts))
	return nil
}

func execute() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Error("valuectl failed", "err", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Helper functions for output

// printInfo prints a localized message unless quiet or emitting JSON
func (g *globals) printInfo(format string, args ...any) {
	if !g.quiet && !g.jsonOut {
		g.printer.Fprintf(g.out, format, args...)
	}
}

// printVerbose prints a localized message if verbose mode is enabled
func (g *globals) printVerbose(format string, args ...any) {
	if g.verbose && !g.quiet && !g.jsonOut {
		g.printer.Fprintf(g.out, format, args...)
	}
}

// printJSON outputs data as JSON
func (g *globals) printJSON(v any) error {
	encoder := json.NewEncoder(g.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
