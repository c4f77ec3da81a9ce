// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Security  SecurityConfig  `mapstructure:"security"`
	Serial    SerialConfig    `mapstructure:"serial"`
	Network   NetworkConfig   `mapstructure:"network"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Recording RecordingConfig `mapstructure:"recording"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SerialConfig describes the motor controller serial line and the handshake timing
type SerialConfig struct {
	BaudRate         int           `mapstructure:"baud_rate"`
	DataBits         int           `mapstructure:"data_bits"`
	StopBits         int           `mapstructure:"stop_bits"`
	Parity           string        `mapstructure:"parity"`
	DTR              bool          `mapstructure:"dtr"`
	RTS              bool          `mapstructure:"rts"`
	ReadInterval     time.Duration `mapstructure:"read_interval"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	ResetPulse       time.Duration `mapstructure:"reset_pulse"`
	SettleDelay      time.Duration `mapstructure:"settle_delay"`
	FirstIndex       int           `mapstructure:"first_index"`
	LastIndex        int           `mapstructure:"last_index"`
	PortPatterns     []string      `mapstructure:"port_patterns"`
	Enumerate        bool          `mapstructure:"enumerate"`
}

// NetworkConfig describes the headset discovery and stream sockets
type NetworkConfig struct {
	DiscoveryPort         int           `mapstructure:"discovery_port"`
	StreamPort            int           `mapstructure:"stream_port"`
	ConnectTimeout        time.Duration `mapstructure:"connect_timeout"`
	DiscoveryPollInterval time.Duration `mapstructure:"discovery_poll_interval"`
	ReceivePollInterval   time.Duration `mapstructure:"receive_poll_interval"`
	ReceiveBufferSize     int           `mapstructure:"receive_buffer_size"`
}

// DiscoveryConfig holds the orchestrator time budgets
type DiscoveryConfig struct {
	AutoOnStart   bool          `mapstructure:"auto_on_start"`
	AutoTimeout   time.Duration `mapstructure:"auto_timeout"`
	ManualTimeout time.Duration `mapstructure:"manual_timeout"`
}

// RecordingConfig holds recording sink settings
type RecordingConfig struct {
	OutputDir       string        `mapstructure:"output_dir"`
	DefaultBaseName string        `mapstructure:"default_base_name"`
	DrainInterval   time.Duration `mapstructure:"drain_interval"`
	MaxSuffix       int           `mapstructure:"max_suffix"`
}

// CatalogConfig represents the recording catalog database
type CatalogConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Driver         string        `mapstructure:"driver"`
	DSN            string        `mapstructure:"dsn"`
	MaxOpenConns   int           `mapstructure:"max_open_conns"`
	MaxIdleConns   int           `mapstructure:"max_idle_conns"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	MigrateOnStart bool          `mapstructure:"migrate_on_start"`
}

// Load loads configuration from file and environment variables.
// A missing config file is not an error; defaults apply.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir := os.Getenv("VRDS_CONFIG_DIR"); dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../../internal/config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFile loads configuration from an explicit file path
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

// Default returns the configuration built from defaults and environment only
func Default() *Config {
	cfg, err := decode(viper.New())
	if err != nil {
		// defaults always validate
		panic(err)
	}
	return cfg
}

func decode(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("VRDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "vr-datastreamer")
	v.SetDefault("app.version", "6.2.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)

	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8086")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Serial defaults
	v.SetDefault("serial.baud_rate", 9600)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.parity", "none")
	v.SetDefault("serial.dtr", true)
	v.SetDefault("serial.rts", true)
	v.SetDefault("serial.read_interval", "50ms")
	v.SetDefault("serial.handshake_timeout", "4s")
	v.SetDefault("serial.reset_pulse", "250ms")
	v.SetDefault("serial.settle_delay", "2s")
	first, last, patterns := defaultPortSpace(runtime.GOOS)
	v.SetDefault("serial.first_index", first)
	v.SetDefault("serial.last_index", last)
	v.SetDefault("serial.port_patterns", patterns)
	v.SetDefault("serial.enumerate", true)

	// Network defaults
	v.SetDefault("network.discovery_port", 55001)
	v.SetDefault("network.stream_port", 55000)
	v.SetDefault("network.connect_timeout", "5s")
	v.SetDefault("network.discovery_poll_interval", "50ms")
	v.SetDefault("network.receive_poll_interval", "10ms")
	v.SetDefault("network.receive_buffer_size", 1024)

	// Discovery defaults
	v.SetDefault("discovery.auto_on_start", true)
	v.SetDefault("discovery.auto_timeout", "20s")
	v.SetDefault("discovery.manual_timeout", "30s")

	// Recording defaults
	v.SetDefault("recording.output_dir", ".")
	v.SetDefault("recording.default_base_name", "experiment_data")
	v.SetDefault("recording.drain_interval", "16ms")
	v.SetDefault("recording.max_suffix", 999)

	// Catalog defaults
	v.SetDefault("catalog.enabled", true)
	v.SetDefault("catalog.driver", "sqlite")
	v.SetDefault("catalog.dsn", "file:recordings.db?_pragma=busy_timeout(5000)")
	v.SetDefault("catalog.max_open_conns", 1)
	v.SetDefault("catalog.max_idle_conns", 1)
	v.SetDefault("catalog.max_lifetime", "0s")
	v.SetDefault("catalog.migrate_on_start", true)
}

// defaultPortSpace returns the fixed serial address space scanned on each platform
func defaultPortSpace(goos string) (int, int, []string) {
	switch goos {
	case "windows":
		return 1, 40, []string{`\\.\COM%d`}
	case "darwin":
		return 0, 19, []string{"/dev/cu.usbmodem%d", "/dev/cu.usbserial-%d"}
	default:
		return 0, 19, []string{"/dev/ttyACM%d", "/dev/ttyUSB%d"}
	}
}

// validate validates the configuration
func validate(config *Config) error {
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	validEnvs := []string{"development", "lab", "production", "test"}
	if !contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	if config.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial.baud_rate must be positive")
	}
	if config.Serial.HandshakeTimeout <= 0 {
		return fmt.Errorf("serial.handshake_timeout must be positive")
	}
	if config.Serial.ReadInterval <= 0 {
		return fmt.Errorf("serial.read_interval must be positive")
	}
	if config.Serial.LastIndex < config.Serial.FirstIndex {
		return fmt.Errorf("serial.last_index must not be lower than serial.first_index")
	}
	for _, pattern := range config.Serial.PortPatterns {
		if !strings.Contains(pattern, "%d") {
			return fmt.Errorf("serial.port_patterns entry %q has no %%d index verb", pattern)
		}
	}

	if !validPort(config.Network.DiscoveryPort) {
		return fmt.Errorf("network.discovery_port out of range: %d", config.Network.DiscoveryPort)
	}
	if !validPort(config.Network.StreamPort) {
		return fmt.Errorf("network.stream_port out of range: %d", config.Network.StreamPort)
	}
	if config.Network.ConnectTimeout <= 0 {
		return fmt.Errorf("network.connect_timeout must be positive")
	}
	if config.Network.ReceiveBufferSize <= 0 {
		return fmt.Errorf("network.receive_buffer_size must be positive")
	}

	if config.Discovery.AutoTimeout <= 0 || config.Discovery.ManualTimeout <= 0 {
		return fmt.Errorf("discovery timeouts must be positive")
	}

	if config.Recording.DrainInterval <= 0 {
		return fmt.Errorf("recording.drain_interval must be positive")
	}
	if config.Recording.MaxSuffix < 1 {
		return fmt.Errorf("recording.max_suffix must be at least 1")
	}

	if config.Catalog.Enabled {
		validDrivers := []string{"sqlite", "postgres"}
		if !contains(validDrivers, config.Catalog.Driver) {
			return fmt.Errorf("catalog.driver must be one of: %v", validDrivers)
		}
		if config.Catalog.DSN == "" {
			return fmt.Errorf("catalog.dsn is required when the catalog is enabled")
		}
	}

	return nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func validPort(port int) bool {
	return port >= 0 && port <= 65535
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.App.Environment == "development"
}
