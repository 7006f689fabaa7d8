package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/socrates-agent/socrates/config"
	"github.com/socrates-agent/socrates/log"
)

var errUnsupportedBackend = errors.New("unsupported backend")

func main() {
	if err := execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "socrates: %v\n", err)
		os.Exit(1)
	}
}

func execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

// cli carries the state shared by every subcommand once the root command
// has loaded the configuration.
type cli struct {
	configPath string
	logLevel   string

	cfg    config.Config
	logger *log.GologLogger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	cmd := &cobra.Command{
		Use:           "socrates",
		Short:         "socrates is a Socratic dialogue agent over a corpus of Platonic texts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level (debug, info, warn, error, none)")

	cmd.AddCommand(
		newChatCmd(c),
		newAskCmd(c),
		newIngestCmd(c),
		newInitDBCmd(c),
		newGraphCmd(c),
	)
	return cmd
}

func (c *cli) load(cmd *cobra.Command) error {
	cfg, err := config.Load(config.LoadOptions{Path: strings.TrimSpace(c.configPath)})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := cfg.LogLevel()
	if strings.TrimSpace(c.logLevel) != "" {
		if level, err = log.ParseLevel(c.logLevel); err != nil {
			return err
		}
	}

	c.cfg = cfg
	c.logger = newLogger(cmd.ErrOrStderr(), level)
	log.SetDefaultLogger(c.logger)
	return nil
}
