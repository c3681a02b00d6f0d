package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	JWT       JWTConfig       `yaml:"jwt"`
	Redis     RedisConfig     `yaml:"redis"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test

	// Per-IP rate limit on the credential endpoints.
	AuthRateRPS   float64 `yaml:"auth_rate_rps"`
	AuthRateBurst int     `yaml:"auth_rate_burst"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

// JWTConfig holds the two token secrets and their lifetimes.
// Expire values are duration strings such as "15m" or "7d".
type JWTConfig struct {
	AccessSecret  string `yaml:"access_secret"`
	AccessExpire  string `yaml:"access_expire"`
	RefreshSecret string `yaml:"refresh_secret"`
	RefreshExpire string `yaml:"refresh_expire"`
}

// RedisConfig backs the revocation store, the presence store, the pub/sub
// relay and the durable auto-message queue.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SchedulerConfig controls the auto-message pipeline.
type SchedulerConfig struct {
	PlanningCron string `yaml:"planning_cron"` // pairs active users into future jobs
	DispatchCron string `yaml:"dispatch_cron"` // moves due jobs onto the queue
	SendDelay    string `yaml:"send_delay"`    // how far in the future planned jobs land
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	// File values land on top of the defaults, so a partial config file
	// never zeroes out the settings it does not mention.
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.overrideFromEnv()
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          "8080",
			Mode:          "debug",
			AuthRateRPS:   5,
			AuthRateBurst: 10,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "chatserver.db",
		},
		JWT: JWTConfig{
			AccessSecret:  "chatserver-access-secret-change-in-production",
			AccessExpire:  "15m",
			RefreshSecret: "chatserver-refresh-secret-change-in-production",
			RefreshExpire: "7d",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			DB:   0,
		},
		Scheduler: SchedulerConfig{
			PlanningCron: "0 2 * * *",
			DispatchCron: "* * * * *",
			SendDelay:    "1h",
		},
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if secret := os.Getenv("JWT_ACCESS_SECRET"); secret != "" {
		c.JWT.AccessSecret = secret
	}
	if expire := os.Getenv("JWT_ACCESS_EXPIRE"); expire != "" {
		c.JWT.AccessExpire = expire
	}
	if secret := os.Getenv("JWT_REFRESH_SECRET"); secret != "" {
		c.JWT.RefreshSecret = secret
	}
	if expire := os.Getenv("JWT_REFRESH_EXPIRE"); expire != "" {
		c.JWT.RefreshExpire = expire
	}
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.parseRedisURL(redisURL)
	}
	if expr := os.Getenv("SCHEDULER_PLANNING_CRON"); expr != "" {
		c.Scheduler.PlanningCron = expr
	}
	if expr := os.Getenv("SCHEDULER_DISPATCH_CRON"); expr != "" {
		c.Scheduler.DispatchCron = expr
	}
	if delay := os.Getenv("SCHEDULER_SEND_DELAY"); delay != "" {
		c.Scheduler.SendDelay = delay
	}
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		// Password format: :password or user:password
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
