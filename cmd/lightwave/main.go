// Lightwave controls LightwaveRF hubs from the command line.
//
// It talks to the LightwaveLink over its UDP text protocol and to the Link
// Plus through the LightwaveRF cloud WebSocket, and can run both as a
// long-lived bridge with an HTTP API and Prometheus metrics.
//
// Usage:
//
//	lightwave [command] [flags]
//
// Settings are read from lightwave.yaml and LIGHTWAVE_* environment
// variables; see 'lightwave --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/lightwave/internal/config"
	"github.com/muurk/lightwave/internal/logging"
	"github.com/muurk/lightwave/internal/version"
)

// Global flags
var (
	configPath string
	logLevel   string
)

// settings is loaded once before any command runs
var settings *config.Settings

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lightwave",
	Short: "LightwaveRF hub bridge",
	Long: `A command line bridge for LightwaveRF home automation hubs.

Controls devices paired with a LightwaveLink (legacy UDP protocol) and a
Link Plus (cloud WebSocket protocol), watches their state live, and serves
both over HTTP with Prometheus metrics.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		settings, err = config.Load(configPath)
		if err != nil {
			return err
		}
		level := logLevel
		if level == "" {
			level = settings.Log.Level
		}
		return logging.Initialize(level)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Settings file (default: ./lightwave.yaml or the config directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("lightwave " + version.Full())
	},
}
