package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config maps the entire application configuration.
// Values come from configs/config.yaml with environment variable overrides
// (dots replaced by underscores, e.g. SERVER_PORT).
type Config struct {
	Server struct {
		Port    int    `mapstructure:"port"`
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"server"`

	Database struct {
		Name string `mapstructure:"name"`
	} `mapstructure:"database"`

	Cache struct {
		RedisAddr     string `mapstructure:"redis_addr"` // empty = in-memory cache
		RedisPassword string `mapstructure:"redis_password"`
		RedisDB       int    `mapstructure:"redis_db"`
		ListingTTLMin int    `mapstructure:"listing_ttl_minutes"`
	} `mapstructure:"cache"`

	Session struct {
		CookieName string `mapstructure:"cookie_name"`
		TTLHours   int    `mapstructure:"ttl_hours"`
	} `mapstructure:"session"`

	OTP struct {
		TTLMinutes      int `mapstructure:"ttl_minutes"`
		MaxAttempts     int `mapstructure:"max_attempts"`
		ResetTTLMinutes int `mapstructure:"reset_grant_ttl_minutes"`
	} `mapstructure:"otp"`

	Mail struct {
		Host     string `mapstructure:"host"` // empty = mail discarded (NopMailer)
		Port     string `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		From     string `mapstructure:"from"`
	} `mapstructure:"mail"`

	IndexNow struct {
		Key            string `mapstructure:"key"`
		Host           string `mapstructure:"host"`
		Endpoint       string `mapstructure:"endpoint"`
		SitemapURL     string `mapstructure:"sitemap_url"`
		BufferSize     int    `mapstructure:"buffer_size"`
		WorkerCount    int    `mapstructure:"worker_count"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	} `mapstructure:"indexnow"`

	Monitor struct {
		IntervalMinutes int `mapstructure:"interval_minutes"`
	} `mapstructure:"monitor"`

	Logging struct {
		Level  string `mapstructure:"level"`
		Pretty bool   `mapstructure:"pretty"`
	} `mapstructure:"logging"`
}

// LoadConfig loads the application configuration using Viper.
// A missing config file is not fatal; defaults apply.
func LoadConfig() (*Config, error) {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.AddConfigPath("./configs")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.base_url", "http://localhost:8080")
	viper.SetDefault("database.name", "urlkeeper.db")
	viper.SetDefault("cache.redis_addr", "")
	viper.SetDefault("cache.redis_db", 0)
	viper.SetDefault("cache.listing_ttl_minutes", 5)
	viper.SetDefault("session.cookie_name", "urlkeeper_session")
	viper.SetDefault("session.ttl_hours", 720)
	viper.SetDefault("otp.ttl_minutes", 10)
	viper.SetDefault("otp.max_attempts", 5)
	viper.SetDefault("otp.reset_grant_ttl_minutes", 15)
	viper.SetDefault("mail.port", "587")
	viper.SetDefault("indexnow.endpoint", "https://api.indexnow.org/indexnow")
	viper.SetDefault("indexnow.buffer_size", 100)
	viper.SetDefault("indexnow.worker_count", 2)
	viper.SetDefault("indexnow.timeout_seconds", 20)
	viper.SetDefault("monitor.interval_minutes", 5)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.pretty", false)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}
