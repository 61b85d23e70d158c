package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	pkgstrings "truckgate/pkg/platform/strings"
)

// Config is the full process configuration. Defaults are overlaid by the
// YAML file named in TRUCKGATE_CONFIG, then by TRUCKGATE_* variables.
type Config struct {
	Server         Server      `yaml:"server"`
	Storage        Storage     `yaml:"storage"`
	Log            Log         `yaml:"log"`
	Redis          RedisConfig `yaml:"redis"`
	Kafka          KafkaConfig `yaml:"kafka"`
	RecentLogLimit int         `yaml:"recent_log_limit"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// AdminToken guards the log export when set.
	AdminToken string `yaml:"admin_token"`
}

// Storage locates the persisted documents and the generated images.
type Storage struct {
	DataDir   string `yaml:"data_dir"`
	StaticDir string `yaml:"static_dir"`
}

func (s Storage) DriversPath() string   { return filepath.Join(s.DataDir, "drivers.json") }
func (s Storage) EntryJSONPath() string { return filepath.Join(s.DataDir, "entry_logs.json") }
func (s Storage) EntryCSVPath() string  { return filepath.Join(s.DataDir, "entry_logs.csv") }
func (s Storage) LockPath() string      { return filepath.Join(s.DataDir, ".lock") }
func (s Storage) QRDir() string         { return filepath.Join(s.StaticDir, "qr_codes") }

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RedisConfig enables the Redis stream feed when URL is set.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	Stream       string        `yaml:"stream"`
	MaxLen       int64         `yaml:"max_len"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// KafkaConfig enables the Kafka feed when Brokers is non-empty.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"client_id"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8000",
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: Storage{
			DataDir:   "data",
			StaticDir: "static",
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
		Redis: RedisConfig{
			Stream:       "truckgate:entries",
			MaxLen:       10000,
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic:    "truckgate.entries",
			ClientID: "truckgate",
		},
		RecentLogLimit: 50,
	}
}

// FromEnv builds the configuration so main stays lean.
func FromEnv() (Config, error) {
	cfg := Default()
	if path := os.Getenv("TRUCKGATE_CONFIG"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.overlayEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads a YAML file over the defaults without consulting the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := cfg.overlayFile(path); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) overlayEnv() error {
	setString(&c.Server.Addr, "TRUCKGATE_ADDR")
	setString(&c.Server.AdminToken, "TRUCKGATE_ADMIN_TOKEN")
	setString(&c.Storage.DataDir, "TRUCKGATE_DATA_DIR")
	setString(&c.Storage.StaticDir, "TRUCKGATE_STATIC_DIR")
	setString(&c.Log.Level, "TRUCKGATE_LOG_LEVEL")
	setString(&c.Log.Format, "TRUCKGATE_LOG_FORMAT")
	setString(&c.Redis.URL, "TRUCKGATE_REDIS_URL")
	setString(&c.Redis.Stream, "TRUCKGATE_REDIS_STREAM")
	setString(&c.Kafka.Topic, "TRUCKGATE_KAFKA_TOPIC")
	if v := os.Getenv("TRUCKGATE_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = pkgstrings.SplitList(v, ",")
	}
	if err := setDuration(&c.Server.RequestTimeout, "TRUCKGATE_REQUEST_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&c.Server.ShutdownTimeout, "TRUCKGATE_SHUTDOWN_TIMEOUT"); err != nil {
		return err
	}
	if v := os.Getenv("TRUCKGATE_RECENT_LOG_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TRUCKGATE_RECENT_LOG_LIMIT: %w", err)
		}
		c.RecentLogLimit = n
	}
	return nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server addr is required"))
	}
	if c.Storage.DataDir == "" {
		errs = append(errs, errors.New("storage data_dir is required"))
	}
	if c.Storage.StaticDir == "" {
		errs = append(errs, errors.New("storage static_dir is required"))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("server request_timeout must be positive"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server shutdown_timeout must be positive"))
	}
	if c.RecentLogLimit <= 0 {
		errs = append(errs, errors.New("recent_log_limit must be positive"))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log format %q is not json or text", c.Log.Format))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka topic is required when brokers are set"))
	}
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
