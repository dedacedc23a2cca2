// Package config loads r10bridge's on-disk configuration: adapter
// selection and device MAC (persisted outside the core per spec §6),
// reconnect timing, the environmental shot-config settings pushed to
// the device at startup, and the sink addresses the normalisation
// adapter feeds. Adapted from the teacher's pkg/config, generalized
// from an in-memory struct with defaults to a YAML-backed file loader.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// AdapterConfig selects the local BLE host controller.
type AdapterConfig struct {
	HCIIndex int    `yaml:"hci_index" default:"0"`
	Address  string `yaml:"address"`
}

// DeviceConfig identifies the R10 peer and bounds connection timing.
type DeviceConfig struct {
	Address        string        `yaml:"address"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"30s"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
}

// ShotConfig mirrors lmproto.ShotConfigRequest: the environmental
// settings pushed to the device at startup so it can correct raw sensor
// readings.
type ShotConfig struct {
	TemperatureF float32 `yaml:"temperature_f" default:"70"`
	Humidity     float32 `yaml:"humidity" default:"50"`
	AltitudeM    float32 `yaml:"altitude_m" default:"0"`
	AirDensity   float32 `yaml:"air_density" default:"1.225"`
	TeeRangeM    float32 `yaml:"tee_range_m" default:"3"`
}

// SinksConfig addresses the downstream collaborators spec §1 treats as
// external: the TCP re-emitter, the text-protocol server, and the
// putting-camera HTTP endpoint.
type SinksConfig struct {
	TCPShotAddr     string `yaml:"tcp_shot_addr" default:"127.0.0.1:9001"`
	TextLineAddr    string `yaml:"text_line_addr" default:"127.0.0.1:9002"`
	PuttingHTTPAddr string `yaml:"putting_http_addr" default:"127.0.0.1:9003"`
}

// Config holds r10bridge's application configuration.
type Config struct {
	LogLevel           string        `yaml:"log_level" default:"info"`
	Adapter            AdapterConfig `yaml:"adapter"`
	Device             DeviceConfig  `yaml:"device"`
	ShotConfig         ShotConfig    `yaml:"shot_config"`
	Sinks              SinksConfig   `yaml:"sinks"`
	AutoWake           bool          `yaml:"auto_wake" default:"true"`
	CalibrateOnStartup bool          `yaml:"calibrate_on_startup" default:"false"`
	ScanTimeout        time.Duration `yaml:"scan_timeout" default:"10s"`
}

// DefaultConfig returns a Config with every `default:` tag applied and
// no device/adapter selected.
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads and parses the YAML file at path, starting from
// DefaultConfig and overlaying whatever the file sets explicitly.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// NewLogger builds a logrus.Logger configured per cfg.LogLevel, using
// the teacher's RFC3339 full-timestamp text formatter.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
