// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/vigil/pkg/mmwave"
)

var frameBody bool

var frameCmd = &cobra.Command{
	Use:   "frame <command> [args...]",
	Short: "Print the frame for a command without opening a port",
	Long: `Build a command frame and print it as hex. No port is opened.

With --body the arguments are hex bytes of a frame body (starting with the
start marker); the checksum and end marker are appended.

Examples:
  vigil frame set-height 250
  vigil frame --body 53 59 80 00 00 01 01`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFrame,
}

func init() {
	rootCmd.AddCommand(frameCmd)
	frameCmd.Flags().BoolVar(&frameBody, "body", false, "Arguments are a raw hex body")
}

func runFrame(cmd *cobra.Command, args []string) error {
	frame, err := buildFrameArgs(args, frameBody)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), mmwave.FormatHex(frame))
	return nil
}

// buildFrameArgs builds a frame from either a named command or a hex body
func buildFrameArgs(args []string, body bool) ([]byte, error) {
	if body {
		b, err := parseHex(strings.Join(args, " "))
		if err != nil {
			return nil, err
		}
		return mmwave.BuildFrame(b), nil
	}

	command, err := mmwave.BuildNamedCommand(args[0], args[1:])
	if err != nil {
		return nil, err
	}
	return command.Frame(), nil
}

// parseHex accepts hex bytes separated by spaces, commas or nothing, with
// optional 0x prefixes
func parseHex(s string) ([]byte, error) {
	clean := strings.NewReplacer(",", " ", "0x", "", "0X", "").Replace(s)
	clean = strings.Join(strings.Fields(clean), "")
	if clean == "" {
		return nil, fmt.Errorf("empty hex body")
	}
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex body %q: %w", s, err)
	}
	return b, nil
}
