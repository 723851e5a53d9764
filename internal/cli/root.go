// Package cli defines the tixctl commands. Each invocation builds the core
// in-process, restores the stored session, runs one operation and exits.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tixly/tixly/internal/app"
	"github.com/tixly/tixly/internal/config"
	"github.com/tixly/tixly/internal/logger"
)

var version = "dev" // set via ldflags at build time

// Options controls where the CLI reads and writes. Zero values use the
// process stdio and config.Load.
type Options struct {
	In         io.Reader
	Out        io.Writer
	Err        io.Writer
	LoadConfig func(path string) (*config.Config, error)
}

type cli struct {
	opts       Options
	configPath string
	jsonOut    bool
	verbose    bool
	reader     *bufio.Reader
}

// NewRootCommand assembles the command tree
func NewRootCommand(opts Options) *cobra.Command {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.LoadConfig == nil {
		opts.LoadConfig = config.Load
	}
	c := &cli{opts: opts}

	root := &cobra.Command{
		Use:   "tixctl",
		Short: "Tixly wallet session and ticketing client",
		Long: `tixctl drives the Tixly session manager and ticketing contracts from the
terminal. The local-key session is stored between runs; a mock session lasts
for a single command.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetIn(opts.In)
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	root.PersistentFlags().StringVar(&c.configPath, "config", os.Getenv("TIXLY_CONFIG"), "path to a YAML config file")
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "print JSON instead of text")
	root.PersistentFlags().BoolVar(&c.verbose, "verbose", false, "log to stderr")

	root.AddCommand(
		c.statusCmd(),
		c.connectCmd(),
		c.importCmd(),
		c.disconnectCmd(),
		c.balanceCmd(),
		c.eventsCmd(),
		c.eventCmd(),
		c.createEventCmd(),
		c.buyCmd(),
		c.transferCmd(),
		c.favoriteCmd(true),
		c.favoriteCmd(false),
		c.ticketsCmd(),
		c.confirmCmd(),
		c.profileCmd(),
	)
	return root
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := NewRootCommand(Options{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// withCore loads config, builds the core and restores the stored session
// before calling fn.
func (c *cli) withCore(cmd *cobra.Command, fn func(ctx context.Context, core *app.App) error) error {
	cfg, err := c.opts.LoadConfig(c.configPath)
	if err != nil {
		return err
	}

	logOut := io.Discard
	if c.verbose {
		logOut = c.opts.Err
	}
	if err := logger.InitWriter(logOut, "text", cfg.Log.Level); err != nil {
		return err
	}

	if err := c.ensurePassphrase(cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	core, err := app.New(ctx, cfg, app.Options{Out: c.opts.Err})
	if err != nil {
		return err
	}
	defer core.Close()

	core.Sessions.Initialize(ctx)
	return fn(ctx, core)
}

func (c *cli) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.opts.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.opts.Out, format, args...)
}
