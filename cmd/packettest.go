// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/vigil/pkg/mmwave"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test [port-label]",
	Short: "Test connection by waiting for a valid radar frame",
	Long: `Wait for a valid radar frame on one port until timeout.

This command opens the labelled port (the first configured port by default)
and waits for any complete frame that passes the checksum check. Garbage
bytes and corrupted frames are skipped.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for checking wiring, baud rate and WebSocket bridge access.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

// frameResult is the first valid frame seen on a connection
type frameResult struct {
	frame    []byte
	payload  []byte
	rejected int
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	ports, err := selectPorts(args)
	if err != nil {
		return err
	}
	port := ports[0]

	conn, err := NewOpener(port, cfg.WebSocket)(port.Device)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Vigil - Packet Test\n")
	fmt.Printf("Connection: %s\n", port)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid radar frame...\n\n")

	frameChan := make(chan frameResult, 1)
	errChan := make(chan error, 1)

	go func() {
		result, err := waitForFrame(conn)
		if err != nil {
			errChan <- err
			return
		}
		frameChan <- result
	}()

	select {
	case result := <-frameChan:
		if result.rejected > 0 {
			fmt.Printf("(skipped %d corrupted frames)\n", result.rejected)
		}
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Frame: %s\n", mmwave.FormatHex(result.frame))
		fmt.Printf("  Command: 0x%02X/0x%02X\n", result.payload[0], result.payload[1])
		fmt.Printf("  Length: %d bytes\n", len(result.frame))
		fmt.Printf("  Checksum: 0x%02X\n", result.frame[len(result.frame)-3])
		for _, ev := range mmwave.Decode(result.payload) {
			fmt.Printf("  Event: %s\n", mmwave.FormatEvent(ev))
		}
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}

	return nil
}

// waitForFrame reads r until a frame passes validation. Frames whose payload
// is too short to carry a command and sub-command are skipped as well.
func waitForFrame(r io.Reader) (frameResult, error) {
	extractor := mmwave.NewExtractor()
	buf := make([]byte, 128)
	rejected := 0

	for {
		n, err := r.Read(buf)
		for _, frame := range extractor.Feed(buf[:n]) {
			payload, verr := mmwave.ValidateFrame(frame)
			if verr != nil || len(payload) < 2 {
				rejected++
				continue
			}
			return frameResult{frame: frame, payload: payload, rejected: rejected}, nil
		}
		if err != nil {
			return frameResult{rejected: rejected}, err
		}
	}
}
