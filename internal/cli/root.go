// Package cli implements the lms-cache command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/lms-tenant-cache/internal/app"
	"github.com/Sternrassler/lms-tenant-cache/internal/config"
	"github.com/Sternrassler/lms-tenant-cache/pkg/logging"
)

// Version is set at build time.
var Version = "dev"

// opener builds the application for one command run.
type opener func(ctx context.Context, cfg *config.Config) (*app.App, error)

type cli struct {
	configPath string
	open       opener
	stdout     io.Writer
	stderr     io.Writer
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(os.Stdout, os.Stderr, openApp)
}

func openApp(ctx context.Context, cfg *config.Config) (*app.App, error) {
	logger := logging.Setup(cfg.LoggingConfig())
	return app.Open(ctx, cfg, logger)
}

func newRootCommand(out, errOut io.Writer, open opener) *cobra.Command {
	c := &cli{open: open, stdout: out, stderr: errOut}

	cmd := &cobra.Command{
		Use:           "lms-cache",
		Short:         "Tenant-scoped cache for the LMS",
		Long:          "lms-cache administers the LMS read-through cache: tenant clears, warm-ups, raw key access and the admin HTTP server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "path to the config file (default: lms-cache.yaml in /etc/lms-cache, $HOME/.lms-cache or .)")

	cmd.AddCommand(newCacheCmd(c), newServeCmd(c))
	return cmd
}

// withApp loads the configuration, opens the application and runs fn.
func (c *cli) withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	a, err := c.open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(c.stderr, "warning: close: %v\n", err)
		}
		_ = logging.Close()
	}()
	return fn(a)
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
