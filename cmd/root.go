// Package cmd implements the market-scheduler command-line interface.
package cmd

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "market-scheduler",
	Short: "Persistent job scheduler for market data ingestion",
	Long: `market-scheduler runs durable collection jobs for stocks, forex,
crypto, bonds, commodities and economic indicators on cron or interval
schedules, persisting schedules, executions and collected rows in
PostgreSQL.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("market-scheduler version %s\n", Version)
		},
	})

	rootCmd.AddCommand(runCmd)
}

// initConfig wires viper to the environment and the optional
// config.yaml.
func initConfig() error {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/market-scheduler")

	// Config file is optional: env vars and defaults cover everything.
	_ = viper.ReadInConfig()

	return bindEnvVars()
}

// bindEnvVars maps the documented environment variables onto config
// keys.
func bindEnvVars() error {
	bindings := map[string]string{
		"database.host":     "DB_HOST",
		"database.port":     "DB_PORT",
		"database.name":     "DB_NAME",
		"database.user":     "DB_USER",
		"database.password": "DB_PASSWORD",

		"api.host":    "API_HOST",
		"api.port":    "API_PORT",
		"api.workers": "API_WORKERS",

		"scheduler.worker_pool_size": "API_WORKERS",
		"scheduler.max_retries":      "DEFAULT_MAX_RETRIES",

		"collector.timeout":             "DEFAULT_TIMEOUT",
		"collector.rate_limit_calls":    "DEFAULT_RATE_LIMIT_CALLS",
		"collector.rate_limit_period":   "DEFAULT_RATE_LIMIT_PERIOD",
		"collector.fred_api_key":        "FRED_API_KEY",
		"collector.coinbase_api_key":    "COINBASE_API_KEY",
		"collector.coinbase_api_secret": "COINBASE_API_SECRET",

		"redis.addr": "REDIS_ADDR",

		"logger.level": "LOG_LEVEL",
	}

	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}
