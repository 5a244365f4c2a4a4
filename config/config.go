package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "MATCHGAME"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Room    RoomConfig    `mapstructure:"room"`
	Store   StoreConfig   `mapstructure:"store"`
	Events  EventsConfig  `mapstructure:"events"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

type ServerConfig struct {
	HTTPAddress    string   `mapstructure:"http_address"`
	RPCAddress     string   `mapstructure:"rpc_address"`
	GRPCAddress    string   `mapstructure:"grpc_address"`
	PublicURL      string   `mapstructure:"public_url"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	Profile        bool     `mapstructure:"profile"`
}

type RoomConfig struct {
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	ReapInterval time.Duration `mapstructure:"reap_interval"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	Heartbeat    time.Duration `mapstructure:"heartbeat"`
}

type StoreConfig struct {
	Driver     string         `mapstructure:"driver"`
	Postgres   PostgresConfig `mapstructure:"postgres"`
	Redis      RedisConfig    `mapstructure:"redis"`
	QueueSize  int            `mapstructure:"queue_size"`
	ClearStale bool           `mapstructure:"clear_stale"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN renders the key/value connection string understood by both lib/pq and pgx.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type EventsConfig struct {
	AMQPURL   string `mapstructure:"amqp_url"`
	Exchange  string `mapstructure:"exchange"`
	QueueSize int    `mapstructure:"queue_size"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`
}

// Store drivers.
const (
	DriverNone     = "none"
	DriverGorm     = "gorm"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", "")
	v.SetDefault("server.grpc_address", "")
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.profile", false)

	v.SetDefault("room.idle_timeout", 30*time.Minute)
	v.SetDefault("room.reap_interval", time.Minute)
	v.SetDefault("room.send_buffer", 32)
	v.SetDefault("room.heartbeat", 30*time.Second)

	v.SetDefault("store.driver", DriverNone)
	v.SetDefault("store.postgres.host", "localhost")
	v.SetDefault("store.postgres.port", 5432)
	v.SetDefault("store.postgres.user", "postgres")
	v.SetDefault("store.postgres.password", "")
	v.SetDefault("store.postgres.dbname", "matchgame")
	v.SetDefault("store.postgres.sslmode", "disable")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.key_prefix", "matchgame:")
	v.SetDefault("store.queue_size", 256)
	v.SetDefault("store.clear_stale", true)

	v.SetDefault("events.amqp_url", "")
	v.SetDefault("events.exchange", "matchgame")
	v.SetDefault("events.queue_size", 256)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("metrics.namespace", "matchgame")

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "matchgame")
	v.SetDefault("tracing.environment", "development")
}

// LoadConfig reads config.yaml from path (if present), then environment
// variables prefixed with MATCHGAME_, then any flags in fs that were set.
// Only flags listed in flagKeys are bound.
func LoadConfig(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"http-address":   "server.http_address",
	"rpc-address":    "server.rpc_address",
	"grpc-address":   "server.grpc_address",
	"public-url":     "server.public_url",
	"profile":        "server.profile",
	"idle-timeout":   "room.idle_timeout",
	"store-driver":   "store.driver",
	"amqp-url":       "events.amqp_url",
	"log-level":      "log.level",
	"log-format":     "log.format",
	"log-file":       "log.file",
	"trace-endpoint": "tracing.endpoint",
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverNone, DriverGorm, DriverPostgres, DriverRedis:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Room.IdleTimeout < 0 {
		return errors.New("room.idle_timeout must not be negative")
	}
	if c.Room.IdleTimeout > 0 && c.Room.ReapInterval <= 0 {
		return errors.New("room.reap_interval must be positive when idle_timeout is set")
	}
	if c.Room.Heartbeat <= 0 {
		return errors.New("room.heartbeat must be positive")
	}
	if c.Room.SendBuffer <= 0 {
		return fmt.Errorf("room.send_buffer must be positive, got %d", c.Room.SendBuffer)
	}
	if c.Store.QueueSize <= 0 || c.Events.QueueSize <= 0 {
		return errors.New("queue sizes must be positive")
	}
	return nil
}
