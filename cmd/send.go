// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/vigil/pkg/mmwave"
	"github.com/Thermoquad/vigil/pkg/session"
)

var (
	sendWait int
	sendRaw  string
)

var sendCmd = &cobra.Command{
	Use:   "send <port-label> <command> [args...]",
	Short: "Send a configuration command or query to a radar",
	Long: `Build a command frame, write it to the labelled port and print the
events received while waiting for the reply.

Commands:
  product-model, product-id, hardware-model, firmware-version
  init-status, get-angle, get-height, get-fall-duration
  set-angle <x> <y> <z>, set-height <cm>, set-fall-duration <seconds>
  presence|trace-tracking|fall-detection|stand-still <on|off>

With --raw the given hex body (starting with 53 59) is sent with its checksum
and end marker appended instead of a named command.

Examples:
  vigil send A firmware-version
  vigil send B set-height 250 --wait 3
  vigil send A --raw "53 59 01 01 00 01 0F"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().IntVar(&sendWait, "wait", 2, "Seconds to print replies after sending")
	sendCmd.Flags().StringVar(&sendRaw, "raw", "", "Send a raw hex body instead of a named command")
}

func runSend(cmd *cobra.Command, args []string) error {
	ports, err := selectPorts(args[:1])
	if err != nil {
		return err
	}
	port := ports[0]

	var (
		frame []byte
		write func(*session.Session) error
	)
	switch {
	case sendRaw != "":
		body, err := parseHex(sendRaw)
		if err != nil {
			return err
		}
		frame = mmwave.BuildFrame(body)
		write = func(s *session.Session) error { return s.Send(body) }
	case len(args) >= 2:
		command, err := mmwave.BuildNamedCommand(args[1], args[2:])
		if err != nil {
			return err
		}
		frame = command.Frame()
		write = func(s *session.Session) error { return s.SendCommand(command) }
	default:
		return errors.New("a command name or --raw body is required")
	}

	s := session.New(port.Label, session.Options{Logger: logger})
	if err := s.Open(port.Device, NewOpener(port, cfg.WebSocket)); err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(sendWait)*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range s.Events() {
			fmt.Println(formatMessage(msg))
		}
	}()

	go func() {
		_ = s.Run(ctx)
	}()

	fmt.Printf("Sending to %s: %s\n", port, mmwave.FormatHex(frame))
	if err := write(s); err != nil {
		s.Shutdown()
		<-done
		return err
	}

	<-ctx.Done()
	s.Shutdown()
	<-done
	return nil
}
