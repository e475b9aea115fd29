package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/brbuxton/aeon/internal/config"
)

var cfgFile string
var cfg config.AeonConfig

var rootCmd = &cobra.Command{
	Use:   "aeon",
	Short: "Aeon orchestration core",
	Long: `Aeon drives a request through profile inference, recursive planning,
bounded execution, and adaptive-depth re-evaluation until the result
converges, the time-to-live budget is exhausted, or the pass limit is
reached.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.aeon.yaml)")
	rootCmd.PersistentFlags().String("provider", "", "LM provider (overrides config)")
	rootCmd.PersistentFlags().String("model", "", "LM model id (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text, json")
	rootCmd.PersistentFlags().String("log-file", "", "log file path (stdout if empty)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "aeon: %v\n", err)
		os.Exit(1)
	}
	cfg = loaded

	if v, _ := rootCmd.PersistentFlags().GetString("provider"); v != "" {
		cfg.Provider = v
	}
	if v, _ := rootCmd.PersistentFlags().GetString("model"); v != "" {
		cfg.Model = v
	}
	if v, _ := rootCmd.PersistentFlags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := rootCmd.PersistentFlags().GetString("log-format"); v != "" {
		cfg.LogFormat = v
	}
	if v, _ := rootCmd.PersistentFlags().GetString("log-file"); v != "" {
		cfg.LogFile = v
	}
}
