package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for BioStream Core.
// All configuration is loaded from YAML and can be overridden by
// environment variables.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Recorder  RecorderConfig  `yaml:"recorder"`
	Transport TransportConfig `yaml:"transport"`
	Sinks     SinksConfig     `yaml:"sinks"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServiceConfig contains service identity information.
type ServiceConfig struct {
	Name string `yaml:"name"`
}

// RecorderConfig contains the bounded-retry and scheduling policies of
// the recording core. These were compile-time constants in earlier
// revisions; they live in configuration so the components stay free of
// process-wide state and remain testable with different bounds.
type RecorderConfig struct {
	// ReadinessWait is the maximum time to wait after connect for a key
	// feature (device info or online streaming) to become ready.
	ReadinessWait time.Duration `yaml:"readiness_wait"`

	// ReadinessPoll is the interval between readiness checks.
	ReadinessPoll time.Duration `yaml:"readiness_poll"`

	// CapabilityAttempts bounds the primary capability fetch attempts
	// before falling back to the readiness heuristic.
	CapabilityAttempts int `yaml:"capability_attempts"`

	// CapabilityRetryDelay is the fixed delay between capability fetch
	// attempts.
	CapabilityRetryDelay time.Duration `yaml:"capability_retry_delay"`

	// StreamRetries bounds consecutive resubscribe attempts for one
	// (device, signal) stream before it is abandoned.
	StreamRetries int `yaml:"stream_retries"`

	// ScanDuration is the length of one discovery cycle.
	ScanDuration time.Duration `yaml:"scan_duration"`

	// ScanInterval is the period between cycles in periodic mode.
	ScanInterval time.Duration `yaml:"scan_interval"`

	// StopOnDisconnect stops an active recording automatically when no
	// devices remain connected.
	StopOnDisconnect bool `yaml:"stop_on_disconnect"`
}

// TransportConfig selects and configures the radio transport backend.
type TransportConfig struct {
	// Kind names the transport backend. Only "sim" is built in; vendor
	// radio stacks plug in out of tree.
	Kind string `yaml:"kind"`

	Sim SimConfig `yaml:"sim"`
}

// SimConfig configures the simulated transport.
type SimConfig struct {
	// Devices describes the synthetic devices the simulator serves.
	Devices []SimDeviceConfig `yaml:"devices"`

	// SampleInterval is the delay between synthetic sample batches.
	SampleInterval time.Duration `yaml:"sample_interval"`

	// FeatureDelay is the delay between the connected event and feature
	// readiness announcements.
	FeatureDelay time.Duration `yaml:"feature_delay"`
}

// SimDeviceConfig describes one synthetic device.
type SimDeviceConfig struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Signals []string `yaml:"signals"`
	Battery int      `yaml:"battery"`
}

// SinksConfig enables and configures the persistence sinks.
type SinksConfig struct {
	File   FileSinkConfig   `yaml:"file"`
	SQLite SQLiteSinkConfig `yaml:"sqlite"`
	MQTT   MQTTSinkConfig   `yaml:"mqtt"`
	Influx InfluxSinkConfig `yaml:"influx"`
}

// FileSinkConfig configures the JSON-lines file sink.
type FileSinkConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// SQLiteSinkConfig configures the SQLite sink.
type SQLiteSinkConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MQTTSinkConfig configures the MQTT republishing sink.
type MQTTSinkConfig struct {
	Enabled bool `yaml:"enabled"`
}

// InfluxSinkConfig configures the InfluxDB scalar sink.
type InfluxSinkConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
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

// MQTTReconnectConfig contains reconnection backoff settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
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

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	Auth     APIAuthConfig    `yaml:"auth"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// APIAuthConfig contains API authentication settings.
type APIAuthConfig struct {
	// Password is the shared operator password exchanged for a token.
	Password string `yaml:"password"`

	// JWTSecret signs issued tokens. Always override in production.
	JWTSecret string `yaml:"jwt_secret"`

	// TokenTTL is the issued token lifetime in minutes.
	TokenTTL int `yaml:"token_ttl"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: BIOSTREAM_SECTION_KEY
// For example: BIOSTREAM_DATABASE_PATH, BIOSTREAM_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults. The recorder
// bounds match the observed behaviour of supported device firmware;
// change them only with a reason.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name: "biostream",
		},
		Recorder: RecorderConfig{
			ReadinessWait:        5 * time.Second,
			ReadinessPoll:        500 * time.Millisecond,
			CapabilityAttempts:   6,
			CapabilityRetryDelay: 2 * time.Second,
			StreamRetries:        3,
			ScanDuration:         10 * time.Second,
			ScanInterval:         30 * time.Second,
			StopOnDisconnect:     true,
		},
		Transport: TransportConfig{
			Kind: "sim",
			Sim: SimConfig{
				SampleInterval: time.Second,
				FeatureDelay:   200 * time.Millisecond,
			},
		},
		Sinks: SinksConfig{
			File: FileSinkConfig{
				Enabled: true,
				Dir:     "./data/recordings",
			},
			SQLite: SQLiteSinkConfig{
				Enabled: true,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/biostream.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "biostream-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			Auth: APIAuthConfig{
				TokenTTL: 60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables follow the pattern:
// BIOSTREAM_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("BIOSTREAM_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("BIOSTREAM_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BIOSTREAM_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BIOSTREAM_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("BIOSTREAM_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("BIOSTREAM_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("BIOSTREAM_API_PASSWORD"); v != "" {
		cfg.API.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("BIOSTREAM_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("BIOSTREAM_JWT_SECRET"); v != "" {
		cfg.API.Auth.JWTSecret = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Service.Name == "" {
		errs = append(errs, "service.name is required")
	}

	// Recorder bounds: every retry loop must be bounded.
	if c.Recorder.ReadinessWait <= 0 {
		errs = append(errs, "recorder.readiness_wait must be positive")
	}
	if c.Recorder.ReadinessPoll <= 0 {
		errs = append(errs, "recorder.readiness_poll must be positive")
	}
	if c.Recorder.CapabilityAttempts < 1 {
		errs = append(errs, "recorder.capability_attempts must be at least 1")
	}
	if c.Recorder.CapabilityRetryDelay < 0 {
		errs = append(errs, "recorder.capability_retry_delay must not be negative")
	}
	if c.Recorder.StreamRetries < 1 {
		errs = append(errs, "recorder.stream_retries must be at least 1")
	}
	if c.Recorder.ScanDuration <= 0 {
		errs = append(errs, "recorder.scan_duration must be positive")
	}
	if c.Recorder.ScanInterval <= 0 {
		errs = append(errs, "recorder.scan_interval must be positive")
	}

	// Transport validation
	if c.Transport.Kind == "" {
		errs = append(errs, "transport.kind is required")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.Sinks.MQTT.Enabled && !c.MQTT.Enabled {
		errs = append(errs, "sinks.mqtt requires mqtt.enabled")
	}

	// InfluxDB validation
	if c.Sinks.Influx.Enabled && !c.InfluxDB.Enabled {
		errs = append(errs, "sinks.influx requires influxdb.enabled")
	}
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// File sink validation
	if c.Sinks.File.Enabled && c.Sinks.File.Dir == "" {
		errs = append(errs, "sinks.file.dir is required when the file sink is enabled")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.Auth.TokenTTL < 1 {
		errs = append(errs, "api.auth.token_ttl must be at least 1 minute")
	}

	// Logging validation
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, "logging.level must be one of debug, info, warn, error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
