// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/vigil/pkg/session"
)

var stabilityDuration int

var stabilityCmd = &cobra.Command{
	Use:   "stability [port-label]",
	Short: "Test link stability on one port",
	Long: `Hold one port open for a fixed duration without sending anything and
report once per second how many bytes and frames arrived and how many frames
were corrupted. Useful for debugging serial noise and WebSocket bridge drops.

Exit codes:
  0 - Test completed normally
  1 - Test failed (connection lost)
  2 - Connection error`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStability,
}

func init() {
	rootCmd.AddCommand(stabilityCmd)
	stabilityCmd.Flags().IntVar(&stabilityDuration, "duration", 30, "Test duration in seconds")
}

func runStability(cmd *cobra.Command, args []string) error {
	ports, err := selectPorts(args)
	if err != nil {
		return err
	}
	port := ports[0]

	s := session.New(port.Label, session.Options{Logger: logger})
	if err := s.Open(port.Device, NewOpener(port, cfg.WebSocket)); err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Link Stability Test\n")
	fmt.Printf("Connection: %s\n", port)
	fmt.Printf("Duration: %d seconds\n\n", stabilityDuration)

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(stabilityDuration)*time.Second)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(ctx) }()

	// Drain events; only the counters matter here
	go func() {
		for range s.Events() {
		}
	}()

	start := time.Now()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			st := s.Stats()
			fmt.Printf("[%s] bytes=%d frames=%d bad=%d (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"), st.BytesReceived, st.ValidFrames,
				st.ChecksumErrors+st.ShortFrames, time.Until(start.Add(time.Duration(stabilityDuration)*time.Second)).Seconds())

		case err := <-runErr:
			st := s.Stats()
			s.Shutdown()

			fmt.Printf("\n--- Test Results ---\n")
			fmt.Printf("Duration: %v\n", time.Since(start).Round(time.Millisecond))
			fmt.Print(st.String())

			if ctx.Err() == nil {
				if err == nil {
					err = fmt.Errorf("connection closed by peer")
				}
				fmt.Printf("Result: FAILED (%v)\n", err)
				os.Exit(1)
			}
			fmt.Printf("Result: PASSED (connection stable)\n")
			return nil
		}
	}
}
