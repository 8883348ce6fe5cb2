// Package cmd provides the command-line interface for livemd with
// configuration management supporting multiple configuration sources.
//
// Configuration System:
//
//	The CLI supports flexible configuration through multiple sources with clear precedence:
//	1. Command-line flags (--config, --port, etc.) - highest priority
//	2. LIVEMD_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (LIVEMD_SERVER_PORT, etc.)
//	4. Configuration files (.livemd.yml) - lowest priority
//
// Environment Variables:
//
//	LIVEMD_CONFIG_FILE: Path to custom configuration file
//	LIVEMD_SERVER_PORT: Override server port
//	LIVEMD_SERVER_HOST: Override server host
//	LIVEMD_WATCH_DEBOUNCE: Override watcher debounce window
//	And more following the LIVEMD_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "livemd",
	Short: "A live-reloading markdown preview server",
	Long: `Livemd renders a directory of markdown files to HTML and serves the
result on localhost, re-rendering and reloading connected browsers as
files change on disk.

Key Features:
  • Markdown rendering with GitHub-flavored extensions
  • Relative .md links rewritten to their .html outputs
  • Debounced file watching with live browser reload
  • Generated index page listing every document
  • One-shot static export for publishing

Quick Start:
  livemd init                     Scaffold a config and starter document
  livemd serve                    Start the preview server
  livemd list                     List discovered documents
  livemd build                    Render everything to the output directory

Command Aliases (for faster typing):
  serve (s), build (b), list (l)

Documentation: https://github.com/conneroisu/livemd`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .livemd.yml, can also use LIVEMD_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig initializes the configuration system.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: Explicitly specified config file path
//  2. LIVEMD_CONFIG_FILE environment variable: Custom config file path
//  3. Default: .livemd.yml in current directory
//
// Automatic environment variable binding is enabled for all configuration
// values with the LIVEMD_ prefix (e.g., LIVEMD_SERVER_PORT=8080).
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("LIVEMD_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".livemd")
	}

	viper.SetEnvPrefix("LIVEMD")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Missing or malformed config files fall back to defaults without
	// failing the command.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
