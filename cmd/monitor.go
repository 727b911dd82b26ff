// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/vigil/pkg/capture"
	"github.com/Thermoquad/vigil/pkg/mmwave"
	"github.com/Thermoquad/vigil/pkg/session"
)

var (
	monitorTUI           bool
	monitorCapture       string
	monitorStatsInterval int
	monitorReconnect     bool
	monitorTelemetryOnly bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor [port-label...]",
	Short: "Monitor radar telemetry from every configured port",
	Long: `Monitor decoded radar events from every configured port (or only the
labelled ones given as arguments).

Each line shows the arrival time, the port label and the decoded event.
Frames with bad checksums are dropped and reported as DEBUG lines; valid
frames after them keep decoding.

With --tui a dashboard shows one panel per port with the latest value of
each telemetry kind, session statistics and a scrolling event log. Commands
can be typed into the dashboard prompt, e.g. "A set-height 250".

With --capture every inbound chunk is recorded to a CBOR file that can be
fed back through the decoder with the replay command.

Press Ctrl+C to exit.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorTUI, "tui", false, "Use terminal UI")
	monitorCmd.Flags().StringVar(&monitorCapture, "capture", "", "Record raw inbound bytes to a CBOR capture file")
	monitorCmd.Flags().IntVar(&monitorStatsInterval, "stats-interval", 0, "Print statistics every N seconds (text mode, 0 disables)")
	monitorCmd.Flags().BoolVar(&monitorReconnect, "reconnect", true, "Reopen ports after transport failures")
	monitorCmd.Flags().BoolVar(&monitorTelemetryOnly, "telemetry-only", false, "Hide diagnostics and unknown commands (text mode)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ports, err := selectPorts(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics, err := startMetrics(ctx)
	if err != nil {
		return err
	}

	sessionLog := logger
	if monitorTUI && !logsToFile(cfg.Logging) {
		// Terminal logs would draw over the dashboard
		sessionLog = zap.NewNop()
	}

	var wrap func(PortConfig, session.Opener) session.Opener
	if monitorCapture != "" {
		f, err := os.Create(monitorCapture)
		if err != nil {
			return fmt.Errorf("failed to create capture file: %w", err)
		}
		w := capture.NewWriter(f)
		defer w.Close()
		wrap = tapOpener(w, sessionLog)
	}

	group := newPortGroup(ports, cfg.WebSocket, session.Options{Logger: sessionLog, Metrics: metrics}, wrap)
	group.reconnect = monitorReconnect
	events := group.Events()

	group.Start(ctx)
	go group.Shutdown()

	if monitorTUI {
		err = runDashboard(ctx, group, events)
	} else {
		fmt.Printf("Vigil - Radar Monitor\n")
		for _, p := range ports {
			fmt.Printf("  %s\n", p)
		}
		if monitorCapture != "" {
			fmt.Printf("Capturing to: %s\n", monitorCapture)
		}
		fmt.Printf("Press Ctrl+C to exit\n\n")

		err = printEvents(os.Stdout, events, group.Sessions(), time.Duration(monitorStatsInterval)*time.Second, monitorTelemetryOnly)
	}

	// Stop the ports before the capture file is closed
	stop()
	group.Wait()
	return err
}

// printEvents writes one line per message until events closes. Statistics
// for every session are printed each interval when interval is positive.
func printEvents(out io.Writer, events <-chan session.Message, sessions []*session.Session, interval time.Duration, telemetryOnly bool) error {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case msg, ok := <-events:
			if !ok {
				return nil
			}
			if telemetryOnly && !mmwave.IsTelemetry(msg.Event) {
				continue
			}
			fmt.Fprintln(out, formatMessage(msg))

		case <-tick:
			for _, s := range sessions {
				stats := s.Stats()
				fmt.Fprintf(out, "\nPort %s (%s)\n%s\n", s.Label(), s.State(), stats.String())
			}
		}
	}
}

// tapOpener wraps openers so every chunk read is recorded under the port
// label. Capture write failures are logged to log and never close the port.
func tapOpener(w *capture.Writer, log *zap.Logger) func(PortConfig, session.Opener) session.Opener {
	return func(p PortConfig, next session.Opener) session.Opener {
		return func(name string) (io.ReadWriteCloser, error) {
			conn, err := next(name)
			if err != nil {
				return nil, err
			}
			return capture.NewTap(conn, p.Label, w, log), nil
		}
	}
}

// startMetrics serves the Prometheus endpoint when an address is configured.
// It returns nil metrics otherwise.
func startMetrics(ctx context.Context) (*session.Metrics, error) {
	if cfg.Metrics.Addr == "" {
		return nil, nil
	}

	reg := session.NewRegistry()
	metrics := session.NewMetrics(reg)

	path := cfg.Metrics.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, session.Handler(reg))

	srv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	go func() {
		logger.Info("metrics endpoint listening", zap.Stringer("addr", ln.Addr()), zap.String("path", path))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics endpoint failed", zap.Error(err))
		}
	}()
	context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})

	return metrics, nil
}

func logsToFile(l LoggingConfig) bool {
	switch strings.ToLower(l.Output) {
	case "", "stderr", "stdout":
		return false
	}
	return true
}
