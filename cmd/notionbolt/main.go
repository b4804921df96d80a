package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/quailyquaily/notionbolt/cmd/notionbolt/githubcmd"
	"github.com/quailyquaily/notionbolt/cmd/notionbolt/reportcmd"
	"github.com/quailyquaily/notionbolt/cmd/notionbolt/servecmd"
	"github.com/quailyquaily/notionbolt/cmd/notionbolt/slackcmd"
	"github.com/quailyquaily/notionbolt/integration"
	"github.com/quailyquaily/notionbolt/internal/logutil"
	"github.com/quailyquaily/notionbolt/minutes"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string
	var rt *integration.Runtime

	root := &cobra.Command{
		Use:           "notionbolt",
		Short:         "Slack bot for weekly reports kept in Notion",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			rt, err = initConfig(configFile)
			return err
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ./notionbolt.yaml or ~/.config/notionbolt/notionbolt.yaml).")
	root.PersistentFlags().String("log-level", "", "Override logging.level.")
	_ = viper.BindPFlag("logging.level", root.PersistentFlags().Lookup("log-level"))

	build := func(logger *slog.Logger, withLLM bool) (*integration.Components, error) {
		if rt == nil {
			return nil, fmt.Errorf("config not initialised")
		}
		return rt.Build(logger, withLLM)
	}
	buildWithLLM := func(logger *slog.Logger) (*integration.Components, error) {
		return build(logger, true)
	}

	root.AddCommand(
		slackcmd.NewCommand(slackcmd.Dependencies{
			LoggerFromViper:    logutil.LoggerFromViper,
			BuildComponents:    buildWithLLM,
			NewDigestScheduler: integration.NewDigestScheduler,
		}),
		servecmd.NewCommand(servecmd.Dependencies{
			LoggerFromViper:    logutil.LoggerFromViper,
			BuildComponents:    buildWithLLM,
			NewDigestScheduler: integration.NewDigestScheduler,
		}),
		reportcmd.NewCommand(reportcmd.Dependencies{
			LoggerFromViper: logutil.LoggerFromViper,
			BuildComponents: build,
			MinutesReader: func(comps *integration.Components) (*minutes.Reader, error) {
				return rt.MinutesReader(comps.Notion)
			},
		}),
		githubcmd.NewCommand(githubcmd.Dependencies{
			LoggerFromViper: logutil.LoggerFromViper,
		}),
	)
	return root
}

func initConfig(configFile string) (*integration.Runtime, error) {
	// .env is optional
	_ = godotenv.Load()

	viper.SetEnvPrefix("NOTIONBOLT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("notionbolt")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home + "/.config/notionbolt")
		}
	}
	rt, err := integration.New(integration.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
		return rt, nil
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		slog.Info("config_changed", "file", e.Name, "op", e.Op.String())
	})
	viper.WatchConfig()
	return rt, nil
}
