package cmd

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/subwatch"
)

type lazyLoader struct {
	conf   *subwatch.Configuration
	engine *subwatch.Engine
}

func newLazyEngineLoader(conf *subwatch.Configuration) *lazyLoader {
	return &lazyLoader{conf: conf}
}

// The configuration is only complete once the root pre-run went through,
// so the engine is built here rather than when the command is made.
func (l *lazyLoader) preRunE(cmd *cobra.Command, args []string) error {
	if err := l.conf.RequireCredentials(); err != nil {
		return err
	}

	n := subwatch.NewNotifier(l.conf.Telegram, l.conf.FS())
	l.engine = subwatch.NewEngine(l.conf, n)
	return nil
}

func (l *lazyLoader) postRun(cmd *cobra.Command, args []string) {
	if l.engine == nil {
		return
	}
	if err := l.engine.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close engine")
	}
}

func engineCommands(conf *subwatch.Configuration) []*cobra.Command {
	lazy := newLazyEngineLoader(conf)
	return []*cobra.Command{
		scanCommand(lazy),
		watchCommand(lazy),
	}
}

func scanCommand(l *lazyLoader) *cobra.Command {
	return &cobra.Command{
		Use:     "scan",
		Short:   "Scan every enabled target once",
		GroupID: "run",
		Args:    cobra.NoArgs,
		PreRunE: l.preRunE,
		PostRun: l.postRun,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := l.engine.Run(cmd.Context())
			return err
		},
	}
}

func watchCommand(l *lazyLoader) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:     "watch [--interval 24h]",
		Short:   "Scan the targets repeatedly",
		GroupID: "run",
		Example: `
		$ subwatch watch --interval 12h
		`,
		Args:    cobra.NoArgs,
		PreRunE: l.preRunE,
		PostRun: l.postRun,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return errors.Errorf("interval must be positive, got %s", interval)
			}
			return l.engine.Watch(cmd.Context(), interval)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 24*time.Hour, "Time between scans")
	return cmd
}
