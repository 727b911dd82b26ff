// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/vigil/pkg/capture"
	"github.com/Thermoquad/vigil/pkg/session"
)

var (
	replayPorts         []string
	replayStats         bool
	replayTelemetryOnly bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture-file>",
	Short: "Decode a capture file recorded by monitor --capture",
	Long: `Feed the raw chunks of a capture file through fresh port sessions and
print the decoded events, exactly as monitor would have shown them.

Chunk boundaries from the recording are kept, so framing problems seen live
can be reproduced offline.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringSliceVar(&replayPorts, "ports", nil, "Only replay these port labels")
	replayCmd.Flags().BoolVar(&replayStats, "stats", true, "Print per-port statistics at the end")
	replayCmd.Flags().BoolVar(&replayTelemetryOnly, "telemetry-only", false, "Hide diagnostics and unknown commands")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer f.Close()

	records, err := capture.NewReader(f).ReadAll()
	if err != nil {
		return err
	}

	fmt.Printf("Vigil - Replay\n")
	fmt.Printf("Capture: %s (%d chunks)\n\n", args[0], len(records))

	return replayRecords(cmd.Context(), os.Stdout, records, replayPorts, replayStats, replayTelemetryOnly)
}

// replayRecords runs one session per recorded port over its chunks and prints
// the events until every replay reaches the end of its records
func replayRecords(ctx context.Context, out io.Writer, records []capture.Record, only []string, stats, telemetryOnly bool) error {
	byPort := capture.ByPort(records)

	wanted := make(map[string]bool)
	for _, label := range only {
		wanted[label] = true
	}

	var ports []PortConfig
	for label := range byPort {
		if len(wanted) > 0 && !wanted[label] {
			continue
		}
		ports = append(ports, PortConfig{Label: label, Device: "replay:" + label})
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].Label < ports[j].Label })

	if len(ports) == 0 {
		return fmt.Errorf("no recorded chunks to replay")
	}

	wrap := func(p PortConfig, _ session.Opener) session.Opener {
		return func(string) (io.ReadWriteCloser, error) {
			return capture.NewReplay(byPort[p.Label]), nil
		}
	}

	group := newPortGroup(ports, WebSocketConfig{}, session.Options{Logger: logger}, wrap)
	events := group.Events()
	group.Start(ctx)
	go group.Shutdown()

	if err := printEvents(out, events, nil, 0, telemetryOnly); err != nil {
		return err
	}

	if stats {
		for _, s := range group.Sessions() {
			snapshot := s.Stats()
			fmt.Fprintf(out, "\nPort %s\n%s", s.Label(), snapshot.String())
		}
	}
	return nil
}
