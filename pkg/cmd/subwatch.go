package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/subwatch"
)

type Flags struct {
	Settings subwatch.Settings
	EnvFile  string
}

func setupLogger(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
}

func rootCommand() *cobra.Command {
	var f Flags
	// filled in by the persistent pre-run, subcommands hold the pointer
	conf := new(subwatch.Configuration)

	com := &cobra.Command{
		Use:          "subwatch",
		Short:        "Periodic subdomain enumeration with change notifications",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// 1. environment from .env, never overriding the process env
			if err := subwatch.LoadDotEnv(f.EnvFile); err != nil {
				return err
			}
			// 2. bind flags, env, config file and defaults
			c, err := subwatch.LoadConfiguration(afero.NewOsFs(), f.Settings)
			if err != nil {
				return err
			}
			*conf = *c
			setupLogger(conf.LogLevel)
			return nil
		},
	}

	// This set of flags propagates
	fl := com.PersistentFlags()
	s := &f.Settings

	pathFlags := pflag.NewFlagSet("Paths", pflag.ExitOnError)
	pathFlags.StringVar(&s.TargetsPath, "targets", "", "Targets file (env TARGETS_JSON)")
	pathFlags.StringVar(&s.OutputDir, "output", "", "Output directory (env OUTPUT_DIR)")
	pathFlags.StringVar(&s.HistoryDB, "history-db", "", "Scan history database, '-' disables it (env SUBWATCH_HISTORY_DB)")
	fl.AddFlagSet(pathFlags)

	chatFlags := pflag.NewFlagSet("Telegram", pflag.ExitOnError)
	chatFlags.StringVar(&s.Telegram.ChatID, "chat-id", "", "Destination chat (env TELEGRAM_CHAT_ID)")
	chatFlags.StringVar(&s.Telegram.APIURL, "api-url", "", "Bot API base url (env TELEGRAM_API_URL)")
	fl.AddFlagSet(chatFlags)

	toolFlags := pflag.NewFlagSet("Tools", pflag.ExitOnError)
	toolFlags.StringVar(&s.Tools.Subfinder, "subfinder", "", "subfinder executable, '-' disables it (env SUBFINDER_PATH)")
	toolFlags.StringVar(&s.Tools.Amass, "amass", "", "amass executable, '-' disables it (env AMASS_PATH)")
	toolFlags.StringVar(&s.Tools.Findomain, "findomain", "", "findomain executable, '-' disables it (env FINDOMAIN_PATH)")
	toolFlags.StringVar(&s.Tools.Bbot, "bbot", "", "bbot executable, '-' disables it (env BBOT_PATH)")
	fl.AddFlagSet(toolFlags)

	cfgFlags := pflag.NewFlagSet("Configuration", pflag.ExitOnError)
	cfgFlags.StringVar(&s.Config, "config", "", "Path to a YAML configuration file (env SUBWATCH_CONFIG)")
	cfgFlags.StringVar(&f.EnvFile, "env-file", ".env", "Dotenv file to load")
	cfgFlags.StringVar(&s.LogLevel, "log-level", "", "Log level (env SUBWATCH_LOG_LEVEL)")
	cfgFlags.StringVar(&s.Resolver, "resolver", "", "DNS server to check new subdomains against (env SUBWATCH_RESOLVER)")
	fl.AddFlagSet(cfgFlags)

	com.AddGroup(
		&cobra.Group{ID: "run", Title: "Scanning and notifications:"},
		&cobra.Group{ID: "manage", Title: "Targets, tools and history:"},
	)

	com.AddCommand(engineCommands(conf)...)
	com.AddCommand(
		notifyCommand(conf),
		targetsCommand(conf),
		toolsCommand(conf),
		historyCommand(conf),
	)
	return com
}

func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCommand().ExecuteContext(ctx)
}
