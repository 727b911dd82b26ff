// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.bug.st/serial"
)

// Config is the vigil configuration, loaded from vigil.yaml, VIGIL_*
// environment variables and command-line flags
type Config struct {
	Ports     []PortConfig    `mapstructure:"ports"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// PortConfig describes one radar port. Device is a serial device path or a
// ws:// / wss:// URL of a serial bridge.
type PortConfig struct {
	Label    string `mapstructure:"label"`
	Device   string `mapstructure:"device"`
	BaudRate int    `mapstructure:"baud_rate"`
	DataBits int    `mapstructure:"data_bits"`
	StopBits int    `mapstructure:"stop_bits"`
	Parity   string `mapstructure:"parity"`
}

// WebSocketConfig holds bridge credentials. The password is never read from
// config; see GetPassword.
type WebSocketConfig struct {
	Username    string `mapstructure:"username"`
	NoSSLVerify bool   `mapstructure:"no_ssl_verify"`
}

// LoggingConfig configures the diagnostic logger
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"` // stderr, stdout or a file path
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

const defaultBaudRate = 115200

// IsWebSocket reports whether the port is reached through a WebSocket bridge
func (p PortConfig) IsWebSocket() bool {
	return strings.HasPrefix(p.Device, "ws://") || strings.HasPrefix(p.Device, "wss://")
}

// Normalize applies defaults and validates the serial parameters
func (p PortConfig) Normalize() (PortConfig, error) {
	opts := p

	if opts.BaudRate <= 0 {
		opts.BaudRate = defaultBaudRate
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	parity := strings.TrimSpace(strings.ToUpper(opts.Parity))
	switch parity {
	case "", "N", "NONE":
		parity = "N"
	case "E", "EVEN":
		parity = "E"
	case "O", "ODD":
		parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	opts.Parity = parity

	return opts, nil
}

// SerialMode converts the port options into a go.bug.st/serial mode
func (p PortConfig) SerialMode() (*serial.Mode, error) {
	opts, err := p.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	return mode, nil
}

// String describes the port for user output
func (p PortConfig) String() string {
	if p.IsWebSocket() {
		return fmt.Sprintf("%s: WebSocket %s", p.Label, p.Device)
	}
	baud := p.BaudRate
	if baud <= 0 {
		baud = defaultBaudRate
	}
	return fmt.Sprintf("%s: Serial %s @ %d baud", p.Label, p.Device, baud)
}

// newViper creates a viper instance with defaults, config search paths and
// VIGIL_ environment variables
func newViper(configFile string) *viper.Viper {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("vigil")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/vigil")
		v.AddConfigPath("/etc/vigil")
	}

	v.SetEnvPrefix("VIGIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("ports", []map[string]any{
		{"label": "A", "device": "/dev/ttyAMA0", "baud_rate": defaultBaudRate},
		{"label": "B", "device": "/dev/ttyAMA1", "baud_rate": defaultBaudRate},
	})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", false)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.path", "/metrics")
}

// loadConfig reads the config file (if any) and decodes the configuration.
// A missing config file is not an error when no file was named explicitly.
func loadConfig(v *viper.Viper, explicitFile bool) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicitFile || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// validate checks the configuration and fills in port labels
func validate(cfg *Config) error {
	if len(cfg.Ports) == 0 {
		return errors.New("at least one port is required")
	}

	seen := make(map[string]bool)
	for i := range cfg.Ports {
		p := &cfg.Ports[i]
		if p.Device == "" {
			return fmt.Errorf("port %d: device is required", i)
		}
		if p.Label == "" {
			p.Label = string(rune('A' + i))
		}
		if seen[p.Label] {
			return fmt.Errorf("duplicate port label %q", p.Label)
		}
		seen[p.Label] = true

		if !p.IsWebSocket() {
			if _, err := p.Normalize(); err != nil {
				return fmt.Errorf("port %s: %w", p.Label, err)
			}
		}
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("unsupported log format %q", cfg.Logging.Format)
	}
	return nil
}

// parsePortFlags turns --port values ("device" or "label=device") into port
// configs. Unlabelled ports are named A, B, ... in order.
func parsePortFlags(values []string, baud int) ([]PortConfig, error) {
	ports := make([]PortConfig, 0, len(values))
	for i, value := range values {
		label, device, found := strings.Cut(value, "=")
		if !found || strings.Contains(label, "/") || strings.Contains(label, ":") {
			label, device = string(rune('A'+i)), value
		}
		if device == "" {
			return nil, fmt.Errorf("invalid --port value %q", value)
		}
		ports = append(ports, PortConfig{Label: label, Device: device, BaudRate: baud})
	}
	return ports, nil
}
