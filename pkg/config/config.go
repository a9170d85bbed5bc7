package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Link      LinkConfig      `yaml:"link"`
	Vehicle   VehicleConfig   `yaml:"vehicle"`
	Navigator NavigatorConfig `yaml:"navigator"`
	Autostart AutostartConfig `yaml:"autostart"`
	Log       LogConfig       `yaml:"log"`
	DB        DBConfig        `yaml:"db"`
	Server    ServerConfig    `yaml:"server"`
}

// LinkConfig holds settings for the vehicle link transport.
type LinkConfig struct {
	Provider         string         `yaml:"provider"` // "mavlink", "mock"
	Address          string         `yaml:"address"`
	SystemID         int            `yaml:"system_id"`
	ComponentID      int            `yaml:"component_id"`
	HeartbeatTimeout Duration       `yaml:"heartbeat_timeout"`
	CommandTimeout   Duration       `yaml:"command_timeout"`
	CommandRetries   int            `yaml:"command_retries"`
	ParamTimeout     Duration       `yaml:"param_timeout"`
	StreamRate       int            `yaml:"stream_rate"`
	Reconnect        BackoffConfig  `yaml:"reconnect"`
	Mock             MockLinkConfig `yaml:"mock"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// MockLinkConfig holds settings for the simulated vehicle.
type MockLinkConfig struct {
	StartLat     float64  `yaml:"start_lat"`
	StartLon     float64  `yaml:"start_lon"`
	ConnectDelay Duration `yaml:"connect_delay"`
	BootDelay    Duration `yaml:"boot_delay"`
	CruiseSpeed  float64  `yaml:"cruise_speed"`
	ClimbRate    float64  `yaml:"climb_rate"`
	TickRate     Duration `yaml:"tick_rate"`
}

// VehicleConfig holds timing of the vehicle link lifecycle.
type VehicleConfig struct {
	CallTimeout    Duration `yaml:"call_timeout"`
	StopTimeout    Duration `yaml:"stop_timeout"`
	NotifyInterval Duration `yaml:"notify_interval"`
}

// NavigatorConfig holds waypoint arrival thresholds.
type NavigatorConfig struct {
	HorizontalTolerance Distance `yaml:"horizontal_tolerance"`
	VerticalTolerance   Distance `yaml:"vertical_tolerance"`
}

// AutostartConfig holds settings for the unattended arm-and-takeoff sequence.
type AutostartConfig struct {
	Enabled         bool     `yaml:"enabled"`
	TakeoffAltitude Distance `yaml:"takeoff_altitude"`
	HeartbeatPoll   Duration `yaml:"heartbeat_poll"`
	ArmedPoll       Duration `yaml:"armed_poll"`
	ArmedTimeout    Duration `yaml:"armed_timeout"` // 0 waits forever
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path       string `yaml:"path"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path         string   `yaml:"path"`
	EventHistory Duration `yaml:"event_history"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Link: LinkConfig{
			Provider:         "mavlink",
			Address:          "udpin://0.0.0.0:14540",
			SystemID:         255,
			ComponentID:      190,
			HeartbeatTimeout: Duration(5 * time.Second),
			CommandTimeout:   Duration(3 * time.Second),
			CommandRetries:   2,
			ParamTimeout:     Duration(2 * time.Second),
			StreamRate:       4,
			Reconnect: BackoffConfig{
				BaseDelay: Duration(1 * time.Second),
				MaxDelay:  Duration(30 * time.Second),
			},
			Mock: MockLinkConfig{
				StartLat:     47.397742,
				StartLon:     8.545594,
				ConnectDelay: Duration(1 * time.Second),
				BootDelay:    Duration(3 * time.Second),
				CruiseSpeed:  5.0,
				ClimbRate:    2.0,
				TickRate:     Duration(100 * time.Millisecond),
			},
		},
		Vehicle: VehicleConfig{
			CallTimeout:    Duration(10 * time.Second),
			StopTimeout:    Duration(5 * time.Second),
			NotifyInterval: Duration(500 * time.Millisecond),
		},
		Navigator: NavigatorConfig{
			HorizontalTolerance: Distance(1.0),
			VerticalTolerance:   Distance(1.0),
		},
		Autostart: AutostartConfig{
			Enabled:         false,
			TakeoffAltitude: Distance(5.0),
			HeartbeatPoll:   Duration(2 * time.Second),
			ArmedPoll:       Duration(1 * time.Second),
			ArmedTimeout:    Duration(30 * time.Second),
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:       "./logs/server.log",
				Level:      "INFO",
				MaxSizeMB:  20,
				MaxBackups: 3,
			},
			Requests: LogSettings{
				Path:       "./logs/requests.log",
				Level:      "INFO",
				MaxSizeMB:  10,
				MaxBackups: 1,
			},
		},
		DB: DBConfig{
			Path:         "./data/groundlink.db",
			EventHistory: Duration(30 * Day),
		},
		Server: ServerConfig{
			Address: "localhost:8314",
		},
	}
}

// Load reads the configuration from path, creating it with defaults when missing.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	// Env overrides apply on top of the file but are never saved back
	if addr := os.Getenv("GROUNDLINK_LINK_ADDRESS"); addr != "" {
		cfg.Link.Address = addr
	}
	if provider := os.Getenv("GROUNDLINK_LINK_PROVIDER"); provider != "" {
		cfg.Link.Provider = provider
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var addressRe = regexp.MustCompile(`^(udp|udpin|udpout|udpbcast|tcp|tcpin|tcpout|serial)://.+$`)

// Validate checks values that would otherwise fail deep inside the link.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Link.Provider) {
	case "mavlink", "mock":
	default:
		return fmt.Errorf("invalid link.provider '%s': must be 'mavlink' or 'mock'", c.Link.Provider)
	}
	if c.Link.Provider == "mavlink" && !addressRe.MatchString(c.Link.Address) {
		return fmt.Errorf("invalid link.address '%s': expected scheme://endpoint (e.g. udpin://0.0.0.0:14540)", c.Link.Address)
	}
	if c.Link.SystemID < 1 || c.Link.SystemID > 255 {
		return fmt.Errorf("invalid link.system_id %d: must be 1-255", c.Link.SystemID)
	}
	if c.Navigator.HorizontalTolerance <= 0 || c.Navigator.VerticalTolerance <= 0 {
		return fmt.Errorf("navigator tolerances must be positive")
	}
	return nil
}

// Save writes cfg to path with a commented header.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# groundlink configuration
# -----------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers), nm (nautical miles), ft (feet)

`)
	data = append(header, data...)

	reProvider := regexp.MustCompile(`(?m)^(\s+)provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: mavlink, mock\n${1}provider:"))

	reAddress := regexp.MustCompile(`(?m)^(\s+)address: (udp|tcp|serial)`)
	data = reAddress.ReplaceAll(data, []byte("${1}# udpin://host:port, udpout://host:port, tcp://host:port, serial:///dev/ttyUSB0:57600\n${1}address: ${2}"))

	reAutostart := regexp.MustCompile(`(?m)^(\s+)takeoff_altitude:`)
	data = reAutostart.ReplaceAll(data, []byte("${1}# Arms and takes off as soon as the vehicle heartbeat is seen\n${1}takeoff_altitude:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
