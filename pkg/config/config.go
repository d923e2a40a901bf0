package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names.
const (
	BusMock   = "mock"
	BusSerial = "serial"
	BusSPI    = "spi"

	DisplayEmulator = "emulator"
	DisplaySPI      = "spi"

	UnitsCelsius    = "celsius"
	UnitsFahrenheit = "fahrenheit"
)

// ErrInvalid is wrapped by every Validate error.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the application configuration.
type Config struct {
	Device   string          `yaml:"device"`
	Interval time.Duration   `yaml:"interval"`
	Units    string          `yaml:"units"`
	Average  int             `yaml:"average_samples"` // Number of readings to average (0 = disabled, default)
	Probes   ProbesConfig    `yaml:"probes"`
	Channels []ChannelConfig `yaml:"channels"`
	Display  DisplayConfig   `yaml:"display"`
	Link     LinkConfig      `yaml:"link"`
	History  HistoryConfig   `yaml:"history"`
	Mock     MockConfig      `yaml:"mock"`
}

// ProbesConfig selects how thermocouple frames are read.
type ProbesConfig struct {
	Bus      string `yaml:"bus"` // mock, serial or spi
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
	SpeedHz  int64  `yaml:"speed_hz"`
}

// ChannelConfig describes one probe slot.
type ChannelConfig struct {
	ID      int    `yaml:"id"`
	Enabled bool   `yaml:"enabled"`
	Select  string `yaml:"select"`         // bus specific chip select
	Page    int    `yaml:"page,omitempty"` // 0 = 2+ID
}

// DisplayConfig contains OLED configuration.
type DisplayConfig struct {
	Transport  string `yaml:"transport"` // emulator or spi
	Port       string `yaml:"port"`
	DCPin      string `yaml:"dc_pin"`
	ResetPin   string `yaml:"reset_pin"`
	SpeedHz    int64  `yaml:"speed_hz"`
	Contrast   uint8  `yaml:"contrast"`
	StatusPage int    `yaml:"status_page"`
	Invert     bool   `yaml:"invert"`
}

// LinkConfig contains uplink configuration.
type LinkConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Server         string        `yaml:"server"` // host:port
	Method         string        `yaml:"method"`
	Resource       string        `yaml:"resource"`
	Token          string        `yaml:"token"`
	BackoffTicks   uint32        `yaml:"backoff_ticks"`
	ConnectTimeout uint32        `yaml:"connect_timeout_ticks"` // 0 = wait forever
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	PushEvery      int           `yaml:"push_every"` // ticks between pushes
}

// HistoryConfig contains trend view configuration.
type HistoryConfig struct {
	Window time.Duration `yaml:"window"`
}

// MockConfig contains simulated probe configuration.
type MockConfig struct {
	Ambient      float64       `yaml:"ambient"`       // Ambient temperature (C)
	Target       float64       `yaml:"target"`        // Heater setpoint (C)
	Noise        float64       `yaml:"noise"`         // Noise amplitude (C)
	TimeConstant time.Duration `yaml:"time_constant"` // Thermal time constant
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Device:   "thermomon",
		Interval: 500 * time.Millisecond,
		Units:    UnitsCelsius,
		Average:  0, // No averaging by default
		Probes: ProbesConfig{
			Bus:      BusMock,
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
			SpeedHz:  4000000,
		},
		Channels: []ChannelConfig{
			{ID: 0, Enabled: true, Select: "0"},
			{ID: 1, Enabled: true, Select: "1"},
			{ID: 2, Enabled: false, Select: "2"},
		},
		Display: DisplayConfig{
			Transport:  DisplayEmulator,
			Port:       "SPI0.1",
			DCPin:      "GPIO24",
			ResetPin:   "GPIO25",
			SpeedHz:    8000000,
			Contrast:   0x80,
			StatusPage: 0,
		},
		Link: LinkConfig{
			Enabled:        false,
			Server:         "localhost:8080",
			Method:         "POST",
			Resource:       "/api/status",
			BackoffTicks:   10,
			ConnectTimeout: 20,
			DialTimeout:    5 * time.Second,
			PushEvery:      1,
		},
		History: HistoryConfig{
			Window: 10 * time.Minute,
		},
		Mock: MockConfig{
			Ambient:      21.0,
			Target:       43.0,
			Noise:        0.1,
			TimeConstant: 60 * time.Second,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks settings that affect the whole appliance. Per channel
// problems are left to the monitor, which disables only the offending channel.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %v", ErrInvalid, c.Interval)
	}
	if c.Average < 0 {
		return fmt.Errorf("%w: average_samples must not be negative", ErrInvalid)
	}
	switch c.Units {
	case UnitsCelsius, UnitsFahrenheit:
	default:
		return fmt.Errorf("%w: unknown units %q", ErrInvalid, c.Units)
	}
	switch c.Probes.Bus {
	case BusMock, BusSerial, BusSPI:
	default:
		return fmt.Errorf("%w: unknown probe bus %q", ErrInvalid, c.Probes.Bus)
	}
	switch c.Display.Transport {
	case DisplayEmulator, DisplaySPI:
	default:
		return fmt.Errorf("%w: unknown display transport %q", ErrInvalid, c.Display.Transport)
	}
	if c.Display.StatusPage < 0 || c.Display.StatusPage > 7 {
		return fmt.Errorf("%w: status_page %d out of range", ErrInvalid, c.Display.StatusPage)
	}
	if c.Link.Enabled && c.Link.Server == "" {
		return fmt.Errorf("%w: link enabled without a server", ErrInvalid)
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Device == "" {
		c.Device = def.Device
	}
	if c.Interval == 0 {
		c.Interval = def.Interval
	}
	if c.Units == "" {
		c.Units = def.Units
	}

	if c.Probes.Bus == "" {
		c.Probes.Bus = def.Probes.Bus
	}
	if c.Probes.BaudRate == 0 {
		c.Probes.BaudRate = def.Probes.BaudRate
	}
	if c.Probes.SpeedHz == 0 {
		c.Probes.SpeedHz = def.Probes.SpeedHz
	}

	if len(c.Channels) == 0 {
		c.Channels = def.Channels
	}

	if c.Display.Transport == "" {
		c.Display.Transport = def.Display.Transport
	}
	if c.Display.SpeedHz == 0 {
		c.Display.SpeedHz = def.Display.SpeedHz
	}
	if c.Display.Contrast == 0 {
		c.Display.Contrast = def.Display.Contrast
	}

	if c.Link.Method == "" {
		c.Link.Method = def.Link.Method
	}
	if c.Link.Resource == "" {
		c.Link.Resource = def.Link.Resource
	}
	if c.Link.BackoffTicks == 0 {
		c.Link.BackoffTicks = def.Link.BackoffTicks
	}
	if c.Link.DialTimeout == 0 {
		c.Link.DialTimeout = def.Link.DialTimeout
	}
	if c.Link.PushEvery == 0 {
		c.Link.PushEvery = def.Link.PushEvery
	}

	if c.History.Window == 0 {
		c.History.Window = def.History.Window
	}

	if c.Mock.TimeConstant == 0 {
		c.Mock.TimeConstant = def.Mock.TimeConstant
	}
}
