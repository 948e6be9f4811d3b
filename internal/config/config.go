package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers the node can run on. SQLite matches the course
// deployment, Postgres the hosted one.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type AppConfig struct {
	Site    SiteConfig    `yaml:"site"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Redis   RedisConfig   `yaml:"redis"`
	Media   MediaConfig   `yaml:"media"`
	Fanout  FanoutConfig  `yaml:"fanout"`
}

type SiteConfig struct {
	// URL is the public base of this node, e.g. https://node1.com.
	// Every FQID minted here starts with it.
	URL string `yaml:"url"`
	// Realm is sent back in WWW-Authenticate challenges.
	Realm string `yaml:"realm"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`

	// Postgres connection fields; the password comes from the
	// environment, never the file.
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBName     string `yaml:"db_name"`
	DBPassword string `yaml:"-"`

	// SQLite file path.
	Path string `yaml:"path"`
}

type RedisConfig struct {
	// Addr empty disables the entry cache entirely.
	Addr     string `yaml:"addr"`
	Password string `yaml:"-"`
}

type MediaConfig struct {
	Dir string `yaml:"dir"`
}

type FanoutConfig struct {
	// WorkerThreshold caps how many recipients one delivery goroutine
	// handles before the fan-out splits into another.
	WorkerThreshold int `yaml:"worker_threshold"`
	TimeoutSeconds  int `yaml:"timeout_seconds"`
}

// Timeout is the per-request deadline for pushing to remote inboxes.
func (f FanoutConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// Load reads the yaml config at path, then overlays secrets from the
// environment (a .env alongside the process is honored when present).
func Load(path string) (*AppConfig, error) {
	// .env is optional outside local deploys
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Storage.DBPassword = os.Getenv("DB_PASSWORD")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Site.URL = strings.TrimRight(cfg.Site.URL, "/")
	return cfg, nil
}

func defaults() *AppConfig {
	return &AppConfig{
		Site:    SiteConfig{Realm: "golden"},
		Server:  ServerConfig{Host: "0.0.0.0", Port: "8000"},
		Storage: StorageConfig{Driver: DriverSQLite, Path: "golden.db"},
		Media:   MediaConfig{Dir: "media"},
		Fanout:  FanoutConfig{WorkerThreshold: 100, TimeoutSeconds: 5},
	}
}

func (c *AppConfig) validate() error {
	u, err := url.Parse(c.Site.URL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return errors.New("site.url must be an absolute URL")
	}
	switch c.Storage.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Fanout.WorkerThreshold <= 0 {
		return errors.New("fanout.worker_threshold must be positive")
	}
	return nil
}

// PostgresDSN assembles the lib/pq connection string.
func (c *AppConfig) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Storage.DBHost, c.Storage.DBPort, c.Storage.DBUser, c.Storage.DBPassword, c.Storage.DBName)
}
