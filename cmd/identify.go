// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/vigil/pkg/mmwave"
	"github.com/Thermoquad/vigil/pkg/session"
)

var identifyTimeout int

var identifyCmd = &cobra.Command{
	Use:   "identify [port-label...]",
	Short: "Query product information from each radar",
	Long: `Send the product model, product ID, hardware model, firmware version and
initialisation status queries to each port and print the replies.

Examples:
  vigil identify
  vigil identify B --timeout 3

Exit codes:
  0 - Every port answered at least one query
  1 - A port did not answer before the timeout
  2 - Connection error`,
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)
	identifyCmd.Flags().IntVar(&identifyTimeout, "timeout", 5, "Timeout in seconds for replies")
}

// identifyQueries are sent in order to every port
var identifyQueries = []mmwave.Command{
	mmwave.NewQueryProductModel(),
	mmwave.NewQueryProductID(),
	mmwave.NewQueryHardwareModel(),
	mmwave.NewQueryFirmwareVersion(),
	mmwave.NewQueryInitStatus(),
}

// radarIdentity collects the replies from one port
type radarIdentity struct {
	product map[mmwave.ProductField]string
	status  *mmwave.WorkState
}

func (id *radarIdentity) complete() bool {
	return len(id.product) == 4 && id.status != nil
}

func (id *radarIdentity) answered() bool {
	return len(id.product) > 0 || id.status != nil
}

// apply records ev and reports whether it was a reply to an identify query
func (id *radarIdentity) apply(ev mmwave.Event) bool {
	switch e := ev.(type) {
	case mmwave.ProductInfo:
		id.product[e.Field] = e.Value
		return true
	case mmwave.WorkingStatus:
		st := e.State
		id.status = &st
		return true
	}
	return false
}

func runIdentify(cmd *cobra.Command, args []string) error {
	ports, err := selectPorts(args)
	if err != nil {
		return err
	}

	fmt.Printf("Vigil - Radar Identification\n")
	fmt.Printf("Timeout: %d seconds\n\n", identifyTimeout)

	group := newPortGroup(ports, cfg.WebSocket, session.Options{Logger: logger}, nil)
	events := group.Events()

	for i, s := range group.Sessions() {
		if err := s.Open(ports[i].Device, group.openers[i]); err != nil {
			fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
			os.Exit(2)
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(identifyTimeout)*time.Second)
	defer cancel()

	for _, s := range group.Sessions() {
		s := s
		go func() { _ = s.Run(ctx) }()
		for _, q := range identifyQueries {
			if err := s.SendCommand(q); err != nil {
				fmt.Fprintf(os.Stderr, "Send error on %s: %v\n", s.Label(), err)
				os.Exit(2)
			}
		}
	}

	ids := make(map[string]*radarIdentity)
	for _, p := range ports {
		ids[p.Label] = &radarIdentity{product: make(map[mmwave.ProductField]string)}
	}

	collectIdentities(ctx, events, ids)
	cancel()
	group.Shutdown()

	failed := false
	for _, p := range ports {
		id := ids[p.Label]
		fmt.Printf("Port %s\n", p)
		if !id.answered() {
			fmt.Printf("  (no reply)\n\n")
			failed = true
			continue
		}
		for _, field := range []mmwave.ProductField{mmwave.ProductModel, mmwave.ProductID, mmwave.ProductHardwareModel, mmwave.ProductFirmwareVersion} {
			if v, ok := id.product[field]; ok {
				fmt.Printf("  %-16s %s\n", field.String()+":", v)
			}
		}
		if id.status != nil {
			fmt.Printf("  %-16s %s\n", "status:", *id.status)
		}
		fmt.Println()
	}

	if failed {
		os.Exit(1)
	}
	return nil
}

// collectIdentities applies events to ids until every identity is complete
// or ctx expires
func collectIdentities(ctx context.Context, events <-chan session.Message, ids map[string]*radarIdentity) {
	for {
		done := true
		for _, id := range ids {
			if !id.complete() {
				done = false
			}
		}
		if done {
			return
		}

		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			if id, found := ids[msg.Port]; found {
				id.apply(msg.Event)
			}
		}
	}
}
