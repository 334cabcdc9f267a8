package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jirevwe/threadpool/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "threadpool",
		Short:        "Run work items on a fixed size worker pool",
		SilenceUsage: true,
	}

	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit a batch of work items, wait, then shut the pool down",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			if configFile != "" {
				loaded, err := config.LoadFile(configFile)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			if err := applyFlags(cmd.Flags(), cfg); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			s, err := run(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "path to a YAML or JSON config file")
	flags.Int("workers", 0, "number of workers in the pool")
	flags.Bool("lock-os-thread", false, "pin every worker to its own OS thread")
	flags.Int("tasks", 0, "number of work items to submit")
	flags.Int("submitters", 0, "number of goroutines submitting work items")
	flags.Duration("wait", 0, "how long to let the pool work before shutting it down")
	flags.String("journal", "", "sqlite database to journal pool events to")
	flags.String("metrics-addr", "", "address to serve prometheus metrics on")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("log-format", "", "text or json")

	return cmd
}

// applyFlags copies the flags that were set on the command line over cfg
func applyFlags(flags *pflag.FlagSet, cfg *config.File) error {
	var err error
	set := func(name string, apply func() error) {
		if err == nil && flags.Changed(name) {
			err = apply()
		}
	}

	set("workers", func() (e error) { cfg.Pool.Workers, e = flags.GetInt("workers"); return })
	set("lock-os-thread", func() (e error) { cfg.Pool.LockOSThread, e = flags.GetBool("lock-os-thread"); return })
	set("tasks", func() (e error) { cfg.Run.Tasks, e = flags.GetInt("tasks"); return })
	set("submitters", func() (e error) { cfg.Run.Submitters, e = flags.GetInt("submitters"); return })
	set("wait", func() error {
		d, e := flags.GetDuration("wait")
		cfg.Run.Wait = d.String()
		return e
	})
	set("journal", func() (e error) { cfg.Journal.Path, e = flags.GetString("journal"); return })
	set("metrics-addr", func() (e error) { cfg.Metrics.Addr, e = flags.GetString("metrics-addr"); return })
	set("log-level", func() (e error) { cfg.Logging.Level, e = flags.GetString("log-level"); return })
	set("log-format", func() (e error) { cfg.Logging.Format, e = flags.GetString("log-format"); return })

	return err
}
