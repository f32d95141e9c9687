package config

import (
	"time"

	"github.com/spf13/viper"
	pkgconfig "github.com/weiawesome/wes-io-polls/pkg/config"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Poll      PollConfig
	Chat      ChatConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	TimeZone        string `mapstructure:"time_zone"`
	FilePath        string `mapstructure:"file_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	Prefix   string
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type AuthConfig struct {
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	Issuer   string
}

type RateRule struct {
	Limit  int
	Window time.Duration
}

type RateLimitConfig struct {
	Vote          RateRule
	PollCreate    RateRule      `mapstructure:"poll_create"`
	ChatSend      RateRule      `mapstructure:"chat_send"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type PollConfig struct {
	CreateRequiresAdmin bool `mapstructure:"create_requires_admin"`
}

type ChatConfig struct {
	MaxMessageLength int `mapstructure:"max_message_length"`
	HistorySize      int `mapstructure:"history_size"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load(opts ...pkgconfig.Option) (*Config, error) {
	v, err := pkgconfig.Load("./config", "config", opts...)
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "polls")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.time_zone", "UTC")
	v.SetDefault("database.file_path", "./data/polls.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "polls")
	v.SetDefault("redis.cache_ttl", "30s")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.issuer", "wes-io-polls")
	v.SetDefault("ratelimit.vote.limit", 10)
	v.SetDefault("ratelimit.vote.window", "60s")
	v.SetDefault("ratelimit.poll_create.limit", 3)
	v.SetDefault("ratelimit.poll_create.window", "60s")
	v.SetDefault("ratelimit.chat_send.limit", 5)
	v.SetDefault("ratelimit.chat_send.window", "10s")
	v.SetDefault("ratelimit.sweep_interval", "1m")
	v.SetDefault("poll.create_requires_admin", false)
	v.SetDefault("chat.max_message_length", 500)
	v.SetDefault("chat.history_size", 50)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.sslmode", "DB_SSLMODE")
	v.BindEnv("database.file_path", "DB_FILE_PATH")
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("auth.token_ttl", "TOKEN_TTL")
	v.BindEnv("poll.create_requires_admin", "POLL_CREATE_REQUIRES_ADMIN")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.Server.ShutdownTimeout = parseDuration(v, "server.shutdown_timeout", 10*time.Second)
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Redis.CacheTTL = parseDuration(v, "redis.cache_ttl", 30*time.Second)
	cfg.Auth.TokenTTL = parseDuration(v, "auth.token_ttl", 24*time.Hour)
	cfg.RateLimit.Vote.Window = parseDuration(v, "ratelimit.vote.window", time.Minute)
	cfg.RateLimit.PollCreate.Window = parseDuration(v, "ratelimit.poll_create.window", time.Minute)
	cfg.RateLimit.ChatSend.Window = parseDuration(v, "ratelimit.chat_send.window", 10*time.Second)
	cfg.RateLimit.SweepInterval = parseDuration(v, "ratelimit.sweep_interval", time.Minute)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
