package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	cfg "github.com/maastricht-university/sincerity-pipeline/config"
	"github.com/maastricht-university/sincerity-pipeline/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "sincerity",
	Short:         "Multi-modal sincerity analysis for recorded statements",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default config/$CONFIG_ENV/config.yaml)")
	rootCmd.AddCommand(newAnalyzeCmd(), newServeCmd())
}

// setup loads configuration and builds the logger shared by all subcommands.
func setup() (*cfg.Root, *logrus.Logger, error) {
	conf, err := cfg.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return conf, logging.New(conf.Log), nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
