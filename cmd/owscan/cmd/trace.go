// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"os"

	"github.com/GermanBionicSystems/owrmt/pulse"
	"github.com/GermanBionicSystems/owrmt/scope"
	"github.com/spf13/cobra"
)

var (
	traceOut   string
	traceShow  bool
	traceAlarm bool
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Record the waveforms of a bus search",
	Long: `Run a ROM search while recording every pulse train sent and every
capture received. The recording is written as a CBOR stream that the render
command turns into an image.

Examples:
  owscan trace --out search.cbor
  owscan trace --show`,
	Args: cobra.NoArgs,
	RunE: runTrace,
}

func init() {
	rootCmd.AddCommand(traceCmd)

	traceCmd.Flags().StringVarP(&traceOut, "out", "o", "", "CBOR file to write the events to")
	traceCmd.Flags().BoolVarP(&traceShow, "show", "s", false, "print the waveforms on the terminal")
	traceCmd.Flags().BoolVarP(&traceAlarm, "alarm", "a", false, "run an alarm search")
}

func runTrace(cmd *cobra.Command, args []string) error {
	opts := scope.Opts{}
	if traceOut != "" {
		f, err := os.Create(traceOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", traceOut, err)
		}
		defer f.Close()
		opts.Stream = f
	}
	var rec *scope.Recorder
	m, err := openMaster(cfg, func(ch pulse.Channel) pulse.Channel {
		rec = scope.NewRecorder(ch, &opts)
		return rec
	})
	if err != nil {
		return err
	}
	defer m.Halt()

	addrs, err := m.Search(traceAlarm)
	printAddresses(cmd.OutOrStdout(), addrs)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if err := rec.Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", traceOut, err)
	}
	events := rec.Events()
	fmt.Fprintf(cmd.OutOrStdout(), "%d event(s) recorded\n", len(events))
	if traceShow {
		t := scope.NewTerminal(nil)
		defer t.Halt()
		return t.Print(events...)
	}
	return nil
}
