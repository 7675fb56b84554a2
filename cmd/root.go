package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/BlagoCuljak/ApiPosture/internal/config"
	"github.com/BlagoCuljak/ApiPosture/internal/core"
	"github.com/BlagoCuljak/ApiPosture/internal/database"
	"github.com/BlagoCuljak/ApiPosture/internal/logger"
	"github.com/BlagoCuljak/ApiPosture/internal/telemetry"
)

var (
	cfg   *config.Config
	log   *logger.Logger
	store core.ResultStore
	tel   core.Telemetry

	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "apiposture",
	Short: "Static endpoint discovery and authorization posture analysis",
	Long: `ApiPosture maps the HTTP surface of an ASP.NET Core style project
without running it: it discovers route handlers declared through attribute
routed controllers and minimal API registrations, reconstructs the effective
authorization posture of each endpoint from its full scope chain, and
evaluates a set of posture rules that flag accidental exposure,
contradictory declarations, and privilege smells.

USAGE:
  apiposture scan ./src            # Analyze a project tree
  apiposture scan ./src -o json    # Machine-readable report
  apiposture rules                 # List rules and effective severities
  apiposture runs                  # Show persisted scan history`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initEverything()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdown()
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default .apiposture.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".apiposture")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("APIPOSTURE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Missing config files are fine; defaults cover everything.
	_ = viper.ReadInConfig()
}

func initEverything() error {
	cfg = config.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logger.Level = logLevel
	}

	var err error
	log, err = logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := context.Background()
	tel, err = telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		// Telemetry never blocks analysis.
		log.Warnw("Telemetry disabled", "error", err)
		tel, _ = telemetry.New(ctx, config.TelemetryConfig{})
	}

	if cfg.Database.Enabled {
		store, err = database.NewStore(cfg.Database, log)
		if err != nil {
			return fmt.Errorf("failed to open result store: %w", err)
		}
	}
	return nil
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if tel != nil {
		if err := tel.Close(ctx); err != nil && log != nil {
			log.Debugw("Telemetry shutdown failed", "error", err)
		}
	}
	if store != nil {
		if err := store.Close(); err != nil && log != nil {
			log.Debugw("Result store close failed", "error", err)
		}
	}
	if log != nil {
		_ = log.Sync()
	}
}

// GetLogger exposes the initialized logger to subcommands.
func GetLogger() *logger.Logger { return log }

// GetStore exposes the result store; nil when persistence is disabled.
func GetStore() core.ResultStore { return store }
