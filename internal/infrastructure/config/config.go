package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Verdant Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	IO       IOConfig       `yaml:"io"`
	Engine   EngineConfig   `yaml:"engine"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
//
// The broker carries two flows: inbound sensor samples from the sampling
// subsystem, and outbound actuation telemetry. When disabled the core runs
// standalone with no sensor feed (autopilot falls back to scheduled mode).
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
//
// The API is a read-only snapshot surface. Authentication and mutation are
// handled by external collaborators, so there are no credential settings here.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// IOConfig contains local I/O hardware settings.
type IOConfig struct {
	RelayOutputs RelayOutputConfig `yaml:"relay_outputs"`
}

// RelayOutputConfig describes the bank of relay output channels.
//
// Point IDs are derived as prefix + (start_index + channel), so a bank with
// prefix "ro" and start index 1 exposes ro1..roN. Channel 0 maps to the
// lowest point ID.
type RelayOutputConfig struct {
	Count         int    `yaml:"count"`
	PointIDPrefix string `yaml:"point_id_prefix"`
	StartIndex    int    `yaml:"start_index"`

	// Driver selects the output driver: "shift_register" or "memory".
	// The memory driver exists for bench testing without hardware.
	Driver string `yaml:"driver"`

	// SPIDevice is the spidev character device the shift register bank
	// hangs off. Ignored by the memory driver.
	SPIDevice string `yaml:"spi_device"`
}

// EngineConfig contains control-engine tuning settings.
type EngineConfig struct {
	// TickInterval is the evaluation period in seconds. The minute-edge
	// detection assumes this is well under 60.
	TickInterval int `yaml:"tick_interval"`

	// CommandQueueSize bounds the actuator command queue.
	CommandQueueSize int `yaml:"command_queue_size"`

	// SampleMaxAge is the staleness horizon in seconds for cached sensor
	// samples. Older samples report a stale status and suppress autopilot.
	SampleMaxAge int `yaml:"sample_max_age"`

	// JanitorSpec is a cron expression for the orphaned-instance sweep.
	JanitorSpec string `yaml:"janitor_spec"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: VERDANT_SECTION_KEY
// For example: VERDANT_DATABASE_PATH, VERDANT_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Verdant",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/verdant.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "verdant-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		IO: IOConfig{
			RelayOutputs: RelayOutputConfig{
				Count:         8,
				PointIDPrefix: "ro",
				StartIndex:    1,
				Driver:        "shift_register",
				SPIDevice:     "/dev/spidev0.0",
			},
		},
		Engine: EngineConfig{
			TickInterval:     1,
			CommandQueueSize: 32,
			SampleMaxAge:     300,
			JanitorSpec:      "0 3 * * *",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: VERDANT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("VERDANT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("VERDANT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("VERDANT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("VERDANT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("VERDANT_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("VERDANT_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("VERDANT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Site validation
	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// I/O validation
	if c.IO.RelayOutputs.Count < 1 {
		errs = append(errs, "io.relay_outputs.count must be at least 1")
	}
	if c.IO.RelayOutputs.PointIDPrefix == "" {
		errs = append(errs, "io.relay_outputs.point_id_prefix is required")
	}
	switch c.IO.RelayOutputs.Driver {
	case "shift_register":
		if c.IO.RelayOutputs.SPIDevice == "" {
			errs = append(errs, "io.relay_outputs.spi_device is required for the shift_register driver")
		}
	case "memory":
	default:
		errs = append(errs, "io.relay_outputs.driver must be shift_register or memory")
	}

	// Engine validation
	if c.Engine.TickInterval < 1 || c.Engine.TickInterval >= 60 {
		errs = append(errs, "engine.tick_interval must be between 1 and 59 seconds")
	}
	if c.Engine.CommandQueueSize < 1 {
		errs = append(errs, "engine.command_queue_size must be at least 1")
	}
	if c.Engine.SampleMaxAge < 1 {
		errs = append(errs, "engine.sample_max_age must be at least 1 second")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// TickDuration returns the engine tick interval as a Duration.
func (c *Config) TickDuration() time.Duration {
	return time.Duration(c.Engine.TickInterval) * time.Second
}

// SampleMaxAge returns the sample staleness horizon as a Duration.
func (c *Config) SampleMaxAge() time.Duration {
	return time.Duration(c.Engine.SampleMaxAge) * time.Second
}
