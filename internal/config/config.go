package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig           `yaml:"app"`
	Server        ServerConfig        `yaml:"server"`
	Portal        PortalConfig        `yaml:"portal"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Storage       StorageConfig       `yaml:"storage"`
	Workers       WorkersConfig       `yaml:"workers"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Stats         StatsConfig         `yaml:"stats"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Env     string `yaml:"env"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// PortalConfig describes the grade portal. InsecureTLS skips certificate
// verification for BaseURL.
type PortalConfig struct {
	BaseURL     string        `yaml:"base_url"`
	UserAgent   string        `yaml:"user_agent"`
	Timeout     time.Duration `yaml:"timeout"`
	InsecureTLS bool          `yaml:"insecure_tls"`
}

type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	Charset            string        `yaml:"charset"`
	ParseTime          bool          `yaml:"parse_time"`
	Loc                string        `yaml:"loc"`
	MaxConnections     int           `yaml:"max_connections"`
	MaxIdleConnections int           `yaml:"max_idle_connections"`
	ConnectionLifetime time.Duration `yaml:"connection_lifetime"`
}

type RedisConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	PoolSize   int    `yaml:"pool_size"`
	KeyPrefix  string `yaml:"key_prefix"`
	FetchQueue string `yaml:"fetch_queue"`
	DLQSuffix  string `yaml:"dlq_suffix"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled        bool   `yaml:"enabled"`
	Endpoint       string `yaml:"endpoint"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	Bucket         string `yaml:"bucket"`
	Region         string `yaml:"region"`
	UseSSL         bool   `yaml:"use_ssl"`
	SnapshotPrefix string `yaml:"snapshot_prefix"`
}

type WorkersConfig struct {
	SubjectConcurrency int                 `yaml:"subject_concurrency"`
	Fetch              FetchWorkerConfig   `yaml:"fetch"`
	Refresh            RefreshWorkerConfig `yaml:"refresh"`
}

type FetchWorkerConfig struct {
	Count int `yaml:"count"`
}

type RefreshWorkerConfig struct {
	Schedule   string `yaml:"schedule"`
	RunOnStart bool   `yaml:"run_on_start"`
}

type NotificationsConfig struct {
	Hour     int    `yaml:"hour"`
	Timezone string `yaml:"timezone"`
}

type StatsConfig struct {
	ForwardURL string        `yaml:"forward_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the file named by CONFIG_PATH (config.yaml by default). A .env
// file in the working directory is loaded first so ${VAR} references in the
// YAML can resolve against it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	return LoadFile(configPath)
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "netrix"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Portal.BaseURL == "" {
		c.Portal.BaseURL = "https://ocjene.skole.hr"
	}
	if c.Portal.UserAgent == "" {
		c.Portal.UserAgent = "Netrix"
	}
	if c.Portal.Timeout == 0 {
		c.Portal.Timeout = 15 * time.Second
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "netrix:"
	}
	if c.Redis.FetchQueue == "" {
		c.Redis.FetchQueue = "netrix:fetch"
	}
	if c.Redis.DLQSuffix == "" {
		c.Redis.DLQSuffix = ":dlq"
	}
	if c.Storage.S3.SnapshotPrefix == "" {
		c.Storage.S3.SnapshotPrefix = "snapshots/"
	}
	if c.Workers.SubjectConcurrency <= 0 {
		c.Workers.SubjectConcurrency = 4
	}
	if c.Workers.Fetch.Count <= 0 {
		c.Workers.Fetch.Count = 2
	}
	if c.Workers.Refresh.Schedule == "" {
		c.Workers.Refresh.Schedule = "0 */6 * * *"
	}
	if c.Notifications.Hour == 0 {
		c.Notifications.Hour = 7
	}
	if c.Stats.Timeout == 0 {
		c.Stats.Timeout = 5 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) Validate() error {
	if c.Notifications.Hour < 0 || c.Notifications.Hour > 23 {
		return fmt.Errorf("invalid notifications.hour %d", c.Notifications.Hour)
	}
	if c.Notifications.Timezone != "" {
		if _, err := time.LoadLocation(c.Notifications.Timezone); err != nil {
			return fmt.Errorf("invalid notifications.timezone: %w", err)
		}
	}
	if c.Storage.S3.Enabled && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("storage.s3.bucket is required when snapshots are enabled")
	}
	return nil
}

// Location is the zone used for portal dates and reminder times.
func (c *Config) Location() *time.Location {
	if c.Notifications.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Notifications.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// MySQL DSN format: [username[:password]@][protocol[(address)]]/dbname[?param1=value1&...&paramN=valueN]
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=%s",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port,
		c.Database.Name, c.Database.Charset, c.Database.ParseTime, c.Database.Loc)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
