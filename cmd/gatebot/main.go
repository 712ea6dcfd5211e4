package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/m3rciful/gatebot/core/buildinfo"
	corecmd "github.com/m3rciful/gatebot/core/cmd"
	coredatabase "github.com/m3rciful/gatebot/core/database"
	"github.com/m3rciful/gatebot/core/logger"
	"github.com/m3rciful/gatebot/internal/app"
	"github.com/m3rciful/gatebot/internal/config"
)

var configPath string

func runnerOptions() corecmd.Options {
	return corecmd.Options{
		ConfigPath:        configPath,
		ConfigEnvVar:      "GATEBOT_CONFIG",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			appCfg, ok := cfg.(*config.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", cfg)
			}
			return app.Bootstrap(ctx, appCfg)
		},
	}
}

var rootCmd = &cobra.Command{
	Use:           "gatebot",
	Short:         "Telegram bot that serves categorized videos behind an access gate",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return corecmd.Run(cmd.Context(), runnerOptions())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := corecmd.LoadConfig(runnerOptions())
		if err != nil {
			return err
		}
		cfg := loaded.(*config.Config)
		if err := logger.InitLogger(&cfg.Config); err != nil {
			return err
		}
		defer func() { _ = logger.Shutdown() }()

		db, err := coredatabase.Connect(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		return coredatabase.RunMigrations(db, cfg.Database)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "gatebot %s (commit %s, built %s)\n",
			buildinfo.Version, buildinfo.Commit, buildinfo.Date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config (default $GATEBOT_CONFIG or ./config.yaml)")
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "gatebot:", err)
		os.Exit(1)
	}
}
