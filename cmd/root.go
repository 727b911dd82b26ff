// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile string
	portFlags  []string
	baudRate   int

	// Loaded by the root PersistentPreRunE
	cfg       *Config
	logger    = zap.NewNop()
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "mmWave Fall-Detection Radar Monitor",
	Long: `Vigil - A CLI tool for monitoring and configuring 60 GHz mmWave
fall-detection radar modules over their serial protocol.

Two radar ports (A and B) are monitored by default. Ports are taken from the
config file (vigil.yaml in ., $HOME/.config/vigil or /etc/vigil) and may be
overridden with --port, which accepts a device path or label=device:

  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  Labelled:  --port A=/dev/ttyAMA0 --port B=/dev/ttyAMA1
  WebSocket: --port ws://host/path [--username user]

For WebSocket authentication, the password is read from the VIGIL_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&configFile, "config", "", "Config file (default: search for vigil.yaml)")

	// Port flags
	flags.StringArrayVarP(&portFlags, "port", "p", nil, "Radar port: device path, ws:// URL or label=device (repeatable)")
	flags.IntVarP(&baudRate, "baud", "b", defaultBaudRate, "Baud rate for --port serial devices")

	// WebSocket flags
	flags.String("username", "", "Username for HTTP Basic auth")
	flags.Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Logging and metrics
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (console, json)")
	flags.String("log-file", "", "Log to a rotated file instead of stderr")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
}

// flagKeys maps persistent flags to their config keys
var flagKeys = map[string]string{
	"username":      "websocket.username",
	"no-ssl-verify": "websocket.no_ssl_verify",
	"log-level":     "logging.level",
	"log-format":    "logging.format",
	"log-file":      "logging.output",
	"metrics-addr":  "metrics.addr",
}

// setup loads the configuration and builds the logger
func setup(cmd *cobra.Command, args []string) error {
	settings := newViper(configFile)

	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := settings.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	if len(portFlags) > 0 {
		ports, err := parsePortFlags(portFlags, baudRate)
		if err != nil {
			return err
		}
		settings.Set("ports", portMaps(ports))
	}

	loaded, err := loadConfig(settings, configFile != "")
	if err != nil {
		return err
	}
	cfg = loaded

	logger, logCloser = NewLogger(cfg.Logging)
	if used := settings.ConfigFileUsed(); used != "" {
		logger.Debug("config loaded", zap.String("file", used))
	}
	return nil
}

// portMaps converts ports into the map form viper unmarshals from
func portMaps(ports []PortConfig) []map[string]any {
	out := make([]map[string]any, 0, len(ports))
	for _, p := range ports {
		out = append(out, map[string]any{
			"label":     p.Label,
			"device":    p.Device,
			"baud_rate": p.BaudRate,
		})
	}
	return out
}

// selectPorts returns the configured ports, optionally limited to labels
func selectPorts(labels []string) ([]PortConfig, error) {
	if len(labels) == 0 {
		return cfg.Ports, nil
	}
	var out []PortConfig
	for _, label := range labels {
		found := false
		for _, p := range cfg.Ports {
			if p.Label == label {
				out = append(out, p)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown port %q", label)
		}
	}
	return out, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
