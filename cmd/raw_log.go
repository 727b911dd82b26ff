// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/vigil/pkg/mmwave"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log [port-label]",
	Short: "Display every candidate frame in hex with its validation result",
	Long: `Continuously extract frames from one port and print each candidate
frame in hex, followed by its validation result and decoded events.

Unlike monitor, frames that fail the checksum check are shown in full, which
helps diagnose wiring noise and baud rate problems.

Supports both serial and WebSocket connections.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	ports, err := selectPorts(args)
	if err != nil {
		return err
	}
	port := ports[0]

	conn, err := NewOpener(port, cfg.WebSocket)(port.Device)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Vigil - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", port)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	err = logFrames(os.Stdout, conn)
	if errors.Is(err, io.EOF) || errors.Is(err, ErrConnectionClosed) {
		logger.Info("connection closed", zap.String("port", port.Label))
		return nil
	}
	return err
}

// logFrames prints every candidate frame read from r until a read fails
func logFrames(out io.Writer, r io.Reader) error {
	extractor := mmwave.NewExtractor()
	buf := make([]byte, 128)

	for {
		n, err := r.Read(buf)
		for _, frame := range extractor.Feed(buf[:n]) {
			ts := time.Now().Format("15:04:05.000")
			payload, verr := mmwave.ValidateFrame(frame)
			if verr != nil {
				fmt.Fprintf(out, "[%s] [ERROR] %s\n  %v\n", ts, mmwave.FormatHex(frame), verr)
				continue
			}
			fmt.Fprintf(out, "[%s] %s\n", ts, mmwave.FormatHex(frame))
			for _, ev := range mmwave.Decode(payload) {
				fmt.Fprintf(out, "  %s\n", mmwave.FormatEvent(ev))
			}
		}
		if err != nil {
			return err
		}
	}
}
