package scheduler

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/devskill-org/dusk-lights/lighting"
	"github.com/devskill-org/dusk-lights/mqtt"
	"github.com/devskill-org/dusk-lights/relay"
	"github.com/devskill-org/dusk-lights/sun"
)

// Modes select which lighting policies run
const (
	ModeDirect   = "direct"
	ModeFailSafe = "failsafe"
	ModeBoth     = "both"
)

// Config represents the configuration for the light scheduler
type Config struct {
	// Location of the lights
	Latitude  float64 `json:"latitude"`  // Decimal degrees, positive north
	Longitude float64 `json:"longitude"` // Decimal degrees, positive east

	// Solar calculation
	Strategy         string  `json:"strategy"`          // Strategy for the direct policy: almanac, noaa, suncalc, sunrise-equation
	FailSafeStrategy string  `json:"failsafe_strategy"` // Strategy for the fail-safe policy
	OfficialZenith   float64 `json:"official_zenith"`   // Zenith of sunrise/sunset in degrees
	CivilZenith      float64 `json:"civil_zenith"`      // Zenith of civil dawn/dusk in degrees

	// Policies
	Mode             string        `json:"mode"`               // direct, failsafe or both
	DirectInterval   time.Duration `json:"direct_interval"`    // How often the direct policy runs
	FailSafeInterval time.Duration `json:"failsafe_interval"`  // How often the fail-safe policy runs
	OnOffsetMinutes  int           `json:"on_offset_minutes"`  // Minutes after sunset for the fail-safe on check
	OffOffsetMinutes int           `json:"off_offset_minutes"` // Minutes after sunrise for the fail-safe off check (negative = before)
	DryRun           bool          `json:"dry_run"`            // Run in dry-run mode (log commands without sending them)

	// Relay
	Actuator        relay.Options `json:"actuator"`
	ActuatorTimeout time.Duration `json:"actuator_timeout"` // Timeout for relay calls

	// Logging settings
	LogLevel string `json:"log_level"` // Log level: debug, info, warn, error

	// Advanced settings
	HealthCheckPort    int    `json:"health_check_port"`    // Port for the web server (0 = disabled)
	PostgresConnString string `json:"postgres_conn_string"` // PostgreSQL connection string for the switch log

	// MQTT state publishing
	MQTT mqtt.PublisherConfig `json:"mqtt"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Latitude:         38.7223, // Lisbon, Portugal
		Longitude:        -9.1393, // Lisbon, Portugal
		Strategy:         sun.StrategyAlmanac,
		FailSafeStrategy: sun.StrategyNOAA,
		OfficialZenith:   float64(sun.ZenithOfficial),
		CivilZenith:      float64(sun.ZenithCivil),
		Mode:             ModeDirect,
		DirectInterval:   15 * time.Second,
		FailSafeInterval: 60 * time.Second,
		OnOffsetMinutes:  15,
		OffOffsetMinutes: -15,
		DryRun:           false,
		Actuator: relay.Options{
			Type:     relay.TypeShelly,
			Address:  "192.168.33.1",
			SwitchID: 0,
		},
		ActuatorTimeout:    5 * time.Second,
		LogLevel:           "info",
		HealthCheckPort:    0,
		PostgresConnString: "",
		MQTT: mqtt.PublisherConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "dusk-lights",
			TopicPrefix: "dusk-lights",
			Enabled:     false,
		},
	}
}

// LoadConfig loads configuration from a JSON file
func LoadConfig(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	config := DefaultConfig()

	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config JSON: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to a JSON file
func (c *Config) SaveConfig(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	return c.SaveConfigToWriter(file)
}

// SaveConfigToWriter saves the configuration to an io.Writer
func (c *Config) SaveConfigToWriter(writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config JSON: %w", err)
	}

	return nil
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if err := c.Location().Validate(); err != nil {
		return err
	}

	for key, name := range map[string]string{"strategy": c.Strategy, "failsafe_strategy": c.FailSafeStrategy} {
		calc, err := sun.NewCalculator(name, nil)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if !sun.Supports(calc, sun.Zenith(c.OfficialZenith)) {
			return fmt.Errorf("%s %s does not support official_zenith %v", key, name, c.OfficialZenith)
		}
		if key == "strategy" && !sun.Supports(calc, sun.Zenith(c.CivilZenith)) {
			return fmt.Errorf("strategy %s does not support civil_zenith %v", name, c.CivilZenith)
		}
	}

	if c.OfficialZenith <= 0 || c.OfficialZenith >= 180 {
		return fmt.Errorf("official_zenith must be between 0 and 180, got: %f", c.OfficialZenith)
	}

	if c.CivilZenith < c.OfficialZenith || c.CivilZenith >= 180 {
		return fmt.Errorf("civil_zenith must be between official_zenith and 180, got: %f", c.CivilZenith)
	}

	validModes := map[string]bool{
		ModeDirect:   true,
		ModeFailSafe: true,
		ModeBoth:     true,
	}
	if !validModes[c.Mode] {
		return fmt.Errorf("invalid mode: %s, must be one of: direct, failsafe, both", c.Mode)
	}

	if c.DirectInterval <= 0 {
		return fmt.Errorf("direct_interval must be greater than 0, got: %s", c.DirectInterval)
	}

	if c.FailSafeInterval <= 0 || c.FailSafeInterval > time.Minute {
		return fmt.Errorf("failsafe_interval must be between 0 and 1m, got: %s", c.FailSafeInterval)
	}

	if c.OnOffsetMinutes <= -24*60 || c.OnOffsetMinutes >= 24*60 {
		return fmt.Errorf("on_offset_minutes must be within a day, got: %d", c.OnOffsetMinutes)
	}

	if c.OffOffsetMinutes <= -24*60 || c.OffOffsetMinutes >= 24*60 {
		return fmt.Errorf("off_offset_minutes must be within a day, got: %d", c.OffOffsetMinutes)
	}

	if err := c.Actuator.Validate(); err != nil {
		return fmt.Errorf("invalid actuator: %w", err)
	}

	if c.ActuatorTimeout <= 0 {
		return fmt.Errorf("actuator_timeout must be greater than 0, got: %s", c.ActuatorTimeout)
	}

	if c.HealthCheckPort < 0 || c.HealthCheckPort > 65535 {
		return fmt.Errorf("health_check_port must be between 0 and 65535, got: %d", c.HealthCheckPort)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level: %s, must be one of: debug, info, warn, error", c.LogLevel)
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker cannot be empty when mqtt is enabled")
	}

	return nil
}

// Location returns the configured coordinates
func (c *Config) Location() sun.Location {
	return sun.Location{Latitude: c.Latitude, Longitude: c.Longitude}
}

// Zeniths returns the configured zeniths
func (c *Config) Zeniths() sun.Zeniths {
	return sun.Zeniths{Official: sun.Zenith(c.OfficialZenith), Civil: sun.Zenith(c.CivilZenith)}
}

// ControllerConfig returns the lighting controller configuration
func (c *Config) ControllerConfig() lighting.Config {
	return lighting.Config{
		Location:         c.Location(),
		Zeniths:          c.Zeniths(),
		OnOffsetMinutes:  c.OnOffsetMinutes,
		OffOffsetMinutes: c.OffOffsetMinutes,
		ActuatorTimeout:  c.ActuatorTimeout,
		DryRun:           c.DryRun,
	}
}

// RelayOptions returns the relay options including the call timeout
func (c *Config) RelayOptions() relay.Options {
	opts := c.Actuator
	opts.Timeout = c.ActuatorTimeout
	return opts
}

// RunsDirect reports whether the direct policy is enabled
func (c *Config) RunsDirect() bool {
	return c.Mode == ModeDirect || c.Mode == ModeBoth
}

// RunsFailSafe reports whether the fail-safe policy is enabled
func (c *Config) RunsFailSafe() bool {
	return c.Mode == ModeFailSafe || c.Mode == ModeBoth
}

// MarshalJSON implements custom JSON marshaling to handle durations
func (c *Config) MarshalJSON() ([]byte, error) {
	type Alias Config
	return json.Marshal(&struct {
		*Alias
		DirectInterval   string `json:"direct_interval"`
		FailSafeInterval string `json:"failsafe_interval"`
		ActuatorTimeout  string `json:"actuator_timeout"`
	}{
		Alias:            (*Alias)(c),
		DirectInterval:   c.DirectInterval.String(),
		FailSafeInterval: c.FailSafeInterval.String(),
		ActuatorTimeout:  c.ActuatorTimeout.String(),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling to handle durations
func (c *Config) UnmarshalJSON(data []byte) error {
	type Alias Config
	aux := &struct {
		*Alias
		DirectInterval   string `json:"direct_interval"`
		FailSafeInterval string `json:"failsafe_interval"`
		ActuatorTimeout  string `json:"actuator_timeout"`
	}{
		Alias: (*Alias)(c),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if aux.DirectInterval != "" {
		if c.DirectInterval, err = time.ParseDuration(aux.DirectInterval); err != nil {
			return fmt.Errorf("invalid direct_interval: %w", err)
		}
	}

	if aux.FailSafeInterval != "" {
		if c.FailSafeInterval, err = time.ParseDuration(aux.FailSafeInterval); err != nil {
			return fmt.Errorf("invalid failsafe_interval: %w", err)
		}
	}

	if aux.ActuatorTimeout != "" {
		if c.ActuatorTimeout, err = time.ParseDuration(aux.ActuatorTimeout); err != nil {
			return fmt.Errorf("invalid actuator_timeout: %w", err)
		}
	}

	return nil
}

// String returns a string representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
