package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/huh"
	"github.com/holon-run/prflow/pkg/config"
	"github.com/holon-run/prflow/pkg/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagConfig   = "config"
	flagLogLevel = "log-level"

	envLogLevel = "PRFLOW_LOG_LEVEL"
)

var rootCmd = &cobra.Command{
	Use:   "prflow",
	Short: "Open draft pull requests for Linear issues",
	Long: `prflow turns a Linear issue into a working branch and a draft GitHub pull request.

It resolves the issue, checks out or creates the branch, pushes it and opens a
draft pull request titled type(scope): [ID] title.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging(viper.GetString(flagLogLevel))
	},
}

func init() {
	rootCmd.PersistentFlags().String(flagConfig, "", "Path to config file (env "+config.EnvConfigPath+")")
	rootCmd.PersistentFlags().String(flagLogLevel, string(log.LevelProgress), "Log level: debug, info, progress, minimal, warn, error (env "+envLogLevel+")")

	_ = viper.BindPFlag(flagConfig, rootCmd.PersistentFlags().Lookup(flagConfig))
	_ = viper.BindEnv(flagConfig, config.EnvConfigPath)
	_ = viper.BindPFlag(flagLogLevel, rootCmd.PersistentFlags().Lookup(flagLogLevel))
	_ = viper.BindEnv(flagLogLevel, envLogLevel)
}

func initLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	cfg := log.DefaultConfig()
	cfg.Level = lvl
	return log.Init(cfg)
}

// loadConfig opens the store named by --config, PRFLOW_CONFIG or the default location.
func loadConfig() (*config.Store, error) {
	path := viper.GetString(flagConfig)
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return config.Load(path)
}

func run() int {
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Fprintln(os.Stderr, "Cancelled.")
			return 0
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}
