package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	AWS           AWSConfig           `yaml:"aws"`
	JWT           JWTConfig           `yaml:"jwt"`
	Log           LogConfig           `yaml:"log"`
	APNs          APNsConfig          `yaml:"apns"`
	App           AppConfig           `yaml:"app"`
	Pairing       PairingConfig       `yaml:"pairing"`
	Presence      PresenceConfig      `yaml:"presence"`
	Mood          MoodConfig          `yaml:"mood"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig holds cache and realtime fan-out configuration.
// An empty Addr keeps both in process.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// AWSConfig holds S3 configuration for photo memories
type AWSConfig struct {
	Region    string `yaml:"region"`
	S3Bucket  string `yaml:"s3_bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// APNsConfig holds push delivery configuration. Push is disabled when
// KeyFile is empty.
type APNsConfig struct {
	KeyFile    string `yaml:"key_file"`
	KeyID      string `yaml:"key_id"`
	TeamID     string `yaml:"team_id"`
	Topic      string `yaml:"topic"`
	Production bool   `yaml:"production"`
}

// AppConfig holds product-level settings
type AppConfig struct {
	// Timezone decides where "today" rolls over
	Timezone string `yaml:"timezone"`
}

// PairingConfig holds the fallback polling settings for the pairing wait
type PairingConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	PollMaxInterval time.Duration `yaml:"poll_max_interval"`
	WaitTimeout     time.Duration `yaml:"wait_timeout"`
}

// PresenceConfig holds heartbeat settings
type PresenceConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	OnlineThreshold   time.Duration `yaml:"online_threshold"`
}

// MoodConfig holds mood derivation settings
type MoodConfig struct {
	TickInterval    time.Duration `yaml:"tick_interval"`
	NeglectAfter    time.Duration `yaml:"neglect_after"`
	NightStartHour  int           `yaml:"night_start_hour"`
	NightEndHour    int           `yaml:"night_end_hour"`
	ExcitedTapCount int           `yaml:"excited_tap_count"`
}

// NotificationsConfig holds reminder settings
type NotificationsConfig struct {
	DailyReminderHour int `yaml:"daily_reminder_hour"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used for fields the file leaves out
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8080},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, SSLMode: "disable"},
		Redis:    RedisConfig{KeyPrefix: "hearth:"},
		Log:      LogConfig{Level: "info"},
		App:      AppConfig{Timezone: "UTC"},
		Pairing: PairingConfig{
			PollInterval:    2 * time.Second,
			PollMaxInterval: 30 * time.Second,
			WaitTimeout:     2 * time.Minute,
		},
		Presence: PresenceConfig{
			HeartbeatInterval: 60 * time.Second,
			OnlineThreshold:   3 * time.Minute,
		},
		Mood: MoodConfig{
			TickInterval:    60 * time.Second,
			NeglectAfter:    24 * time.Hour,
			NightStartHour:  21,
			NightEndHour:    6,
			ExcitedTapCount: 20,
		},
		Notifications: NotificationsConfig{DailyReminderHour: 20},
	}
}

// Validate checks values that would otherwise fail at runtime
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid app.timezone %q: %w", c.App.Timezone, err)
	}
	if c.Presence.HeartbeatInterval <= 0 || c.Presence.OnlineThreshold <= c.Presence.HeartbeatInterval {
		return fmt.Errorf("presence.online_threshold must exceed a positive heartbeat_interval")
	}
	for name, h := range map[string]int{
		"mood.night_start_hour":             c.Mood.NightStartHour,
		"mood.night_end_hour":               c.Mood.NightEndHour,
		"notifications.daily_reminder_hour": c.Notifications.DailyReminderHour,
	} {
		if h < 0 || h > 23 {
			return fmt.Errorf("%s must be within 0-23, got %d", name, h)
		}
	}
	return nil
}

// Location returns the timezone that defines calendar days
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.App.Timezone)
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
