// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/GermanBionicSystems/owrmt/scope"
	"github.com/spf13/cobra"
)

var (
	renderOut        string
	renderResolution time.Duration
	renderWidth      int
)

var renderCmd = &cobra.Command{
	Use:   "render <trace.cbor>",
	Short: "Draw a recorded trace as a PNG image",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "trace.png", "PNG file to write")
	renderCmd.Flags().DurationVar(&renderResolution, "resolution", scope.DefaultRenderOpts.Resolution, "time covered by one pixel")
	renderCmd.Flags().IntVar(&renderWidth, "width", scope.DefaultRenderOpts.MaxWidth, "maximum image width, 0 for none")
}

func runRender(cmd *cobra.Command, args []string) error {
	in, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer in.Close()
	events, err := scope.ReadEvents(in)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	logger.Debug("trace loaded", "events", len(events))

	opts := scope.DefaultRenderOpts
	opts.Resolution = renderResolution
	opts.MaxWidth = renderWidth
	out, err := os.Create(renderOut)
	if err != nil {
		return err
	}
	if err := scope.WritePNG(out, events, &opts); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", renderOut)
	return nil
}
