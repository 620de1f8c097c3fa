// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    *Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "owscan",
	Short: "1-Wire bus scanner over a pulse channel",
	Long: `Drive a 1-Wire bus through a pulse channel: enumerate the devices,
read thermometers, and record or render the waveforms exchanged.

Examples:
  owscan scan                              # Enumerate the simulated bus
  owscan scan --alarm                      # Only devices in alarm state
  owscan --config bus.yaml temp            # Read thermometers on a real pin
  owscan trace --out search.cbor --show    # Record a search
  owscan render search.cbor --out search.png`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		var err error
		cfg, err = LoadConfig(configPath)
		return err
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log the raw bus traffic")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
}
