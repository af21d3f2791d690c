package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Link types.
const (
	LinkTCP    = "tcp"
	LinkSerial = "serial"
)

// Config is the root configuration structure.
type Config struct {
	Camera    CameraConfig    `yaml:"camera"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Queue     QueueConfig     `yaml:"queue"`
	Scan      ScanConfig      `yaml:"scan"`
	Presets   PresetsConfig   `yaml:"presets"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CameraConfig describes how to reach the camera.
type CameraConfig struct {
	Link             LinkConfig `yaml:"link"`
	HandshakeCommand string     `yaml:"handshake_command"`
	SettleDelayMS    int        `yaml:"settle_delay_ms"`
}

// LinkConfig selects and configures the byte link to the camera.
type LinkConfig struct {
	// Type is "tcp" for a serial-to-network bridge or "serial" for a local port.
	Type string `yaml:"type"`

	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	SerialDevice string `yaml:"serial_device"`
	BaudRate     int    `yaml:"baud_rate"`

	// Timeouts and reconnect backoff, in seconds.
	ConnectTimeout       int `yaml:"connect_timeout"`
	WriteTimeout         int `yaml:"write_timeout"`
	ReconnectInterval    int `yaml:"reconnect_interval"`
	MaxReconnectInterval int `yaml:"max_reconnect_interval"`
}

// CatalogConfig locates the command catalog.
type CatalogConfig struct {
	// Dir holds *.csv catalog files. Empty uses the bundled catalog.
	Dir string `yaml:"dir"`

	// StrictHexSplit splits values above 0xFF by 256 instead of 255.
	StrictHexSplit bool `yaml:"strict_hex_split"`
}

// QueueConfig holds the transmission queue timings in milliseconds.
type QueueConfig struct {
	MinCommandDelayMS  int         `yaml:"min_command_delay_ms"`
	PostResponseWaitMS int         `yaml:"post_response_wait_ms"`
	AckTimeoutMS       int         `yaml:"ack_timeout_ms"`
	NackBackoffMS      int         `yaml:"nack_backoff_ms"`
	NackCode           int         `yaml:"nack_code"`
	Retry              RetryConfig `yaml:"retry"`
}

// RetryConfig enables resending after NACK or timeout. MaxAttempts 0 keeps
// best-effort delivery.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

// ScanConfig configures the preset tour.
type ScanConfig struct {
	IntervalMS int    `yaml:"interval_ms"`
	MaxPreset  int    `yaml:"max_preset"`
	Command    string `yaml:"command"`
}

// PresetsConfig configures preset labels.
type PresetsConfig struct {
	Count int `yaml:"count"`

	// ImportFile is a legacy presets.json applied to unlabelled presets on start.
	ImportFile string `yaml:"import_file"`
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

// MQTTAuthConfig contains MQTT credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
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
	CORS     CORSConfig       `yaml:"cors"`

	// PanelDir serves the control page from disk instead of the binary.
	PanelDir string `yaml:"panel_dir"`
}

// APITimeoutConfig contains HTTP timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains the response stream settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains rotating log file settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file over the defaults, applies
// environment overrides and validates the result. An empty path skips the
// file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Camera: CameraConfig{
			Link: LinkConfig{
				Type:                 LinkTCP,
				Host:                 "192.168.1.148",
				Port:                 3002,
				SerialDevice:         "/dev/ttyS0",
				BaudRate:             9600,
				ConnectTimeout:       10,
				WriteTimeout:         5,
				ReconnectInterval:    1,
				MaxReconnectInterval: 30,
			},
			HandshakeCommand: "IDENTIFIER",
			SettleDelayMS:    5000,
		},
		Queue: QueueConfig{
			MinCommandDelayMS:  200,
			PostResponseWaitMS: 50,
			AckTimeoutMS:       1000,
			NackBackoffMS:      250,
			NackCode:           0xB4,
		},
		Scan: ScanConfig{
			IntervalMS: 5000,
			MaxPreset:  9,
			Command:    "PRESET_MOVE",
		},
		Presets: PresetsConfig{
			Count: 10,
		},
		Database: DatabaseConfig{
			Path:        "./data/webcamctrl.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "webcamctrl",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Org:           "webcamctrl",
			Bucket:        "camera",
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
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "./logs/webcamctrl.log",
				MaxSize:    50,
				MaxBackups: 5,
				MaxAge:     30,
			},
		},
	}
}

// applyEnvOverrides applies WCC_* environment variables.
func applyEnvOverrides(cfg *Config) error {
	var errs []error

	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not a number", key, v))
			return
		}
		*dst = n
	}

	str("WCC_RS232_NET_HOST", &cfg.Camera.Link.Host)
	num("WCC_RS232_NET_PORT", &cfg.Camera.Link.Port)
	str("WCC_RS232_COMM_PORT", &cfg.Camera.Link.SerialDevice)
	str("WCC_RS232_LINK", &cfg.Camera.Link.Type)
	num("WCC_PRESET_INTERVAL", &cfg.Scan.IntervalMS)
	str("WCC_CATALOG_DIR", &cfg.Catalog.Dir)
	str("WCC_DATABASE_PATH", &cfg.Database.Path)
	str("WCC_MQTT_HOST", &cfg.MQTT.Broker.Host)
	num("WCC_MQTT_PORT", &cfg.MQTT.Broker.Port)
	str("WCC_MQTT_USERNAME", &cfg.MQTT.Auth.Username)
	str("WCC_MQTT_PASSWORD", &cfg.MQTT.Auth.Password)
	str("WCC_INFLUXDB_URL", &cfg.InfluxDB.URL)
	str("WCC_INFLUXDB_TOKEN", &cfg.InfluxDB.Token)
	num("WCC_API_PORT", &cfg.API.Port)
	str("WCC_LOG_LEVEL", &cfg.Logging.Level)

	return errors.Join(errs...)
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []string

	link := c.Camera.Link
	switch link.Type {
	case LinkTCP:
		if link.Host == "" {
			errs = append(errs, "camera.link.host is required for tcp links")
		}
		if link.Port < 1 || link.Port > 65535 {
			errs = append(errs, "camera.link.port must be between 1 and 65535")
		}
	case LinkSerial:
		if link.SerialDevice == "" {
			errs = append(errs, "camera.link.serial_device is required for serial links")
		}
		if link.BaudRate <= 0 {
			errs = append(errs, "camera.link.baud_rate must be positive")
		}
	default:
		errs = append(errs, fmt.Sprintf("camera.link.type %q must be tcp or serial", link.Type))
	}
	if link.ReconnectInterval < 0 || link.MaxReconnectInterval < link.ReconnectInterval {
		errs = append(errs, "camera.link reconnect intervals must satisfy 0 <= reconnect_interval <= max_reconnect_interval")
	}
	if c.Camera.SettleDelayMS < 0 {
		errs = append(errs, "camera.settle_delay_ms must not be negative")
	}

	q := c.Queue
	if q.MinCommandDelayMS < 0 || q.PostResponseWaitMS < 0 || q.AckTimeoutMS < 0 || q.NackBackoffMS < 0 {
		errs = append(errs, "queue timings must not be negative")
	}
	if q.NackCode < 0 || q.NackCode > 0xFF {
		errs = append(errs, "queue.nack_code must fit in one byte")
	}
	if q.Retry.MaxAttempts < 0 {
		errs = append(errs, "queue.retry.max_attempts must not be negative")
	}

	if c.Scan.IntervalMS <= 0 {
		errs = append(errs, "scan.interval_ms must be positive")
	}
	if c.Scan.MaxPreset < 0 || c.Scan.MaxPreset > 0xFF {
		errs = append(errs, "scan.max_preset must be between 0 and 255")
	}
	if c.Presets.Count <= 0 || c.Presets.Count > 0x100 {
		errs = append(errs, "presets.count must be between 1 and 256")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	switch strings.ToLower(c.Logging.Output) {
	case "stdout", "stderr", "":
	case "file":
		if c.Logging.File.Path == "" {
			errs = append(errs, "logging.file.path is required when logging.output is file")
		}
	default:
		errs = append(errs, fmt.Sprintf("logging.output %q must be stdout, stderr or file", c.Logging.Output))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Address returns the dial target: host:port for tcp, the device for serial.
func (l LinkConfig) Address() string {
	if l.Type == LinkSerial {
		return l.SerialDevice
	}
	return net.JoinHostPort(l.Host, strconv.Itoa(l.Port))
}

// SettleDelay returns the post-handshake grace period.
func (c CameraConfig) SettleDelay() time.Duration {
	return ms(c.SettleDelayMS)
}

// MinCommandDelay returns the minimum spacing between dispatches.
func (q QueueConfig) MinCommandDelay() time.Duration { return ms(q.MinCommandDelayMS) }

// PostResponseWait returns the pause owed after a successful response.
func (q QueueConfig) PostResponseWait() time.Duration { return ms(q.PostResponseWaitMS) }

// AckTimeout returns the ack wait ceiling.
func (q QueueConfig) AckTimeout() time.Duration { return ms(q.AckTimeoutMS) }

// NackBackoff returns the settle time after a NACK.
func (q QueueConfig) NackBackoff() time.Duration { return ms(q.NackBackoffMS) }

// Interval returns the time spent at each preset while scanning.
func (s ScanConfig) Interval() time.Duration { return ms(s.IntervalMS) }

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

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
