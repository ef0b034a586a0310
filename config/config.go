package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// HTTP server
	Server ServerConfig `mapstructure:"server"`

	// Static API token allow-set
	Auth AuthConfig `mapstructure:"auth"`

	// Upload directory and media limits
	Storage StorageConfig `mapstructure:"storage"`

	// ffmpeg/ffprobe binaries
	FFmpeg FFmpegConfig `mapstructure:"ffmpeg"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type AuthConfig struct {
	// Tokens accepted in the api_token header. A YAML list, or a single
	// comma-separated API_TOKENS env value.
	Tokens []string `mapstructure:"tokens"`
}

type StorageConfig struct {
	Dir                     string  `mapstructure:"dir"`
	MaxUploadBytes          int64   `mapstructure:"max_upload_bytes"`
	MinDurationSec          float64 `mapstructure:"min_duration_sec"`
	MaxDurationSec          float64 `mapstructure:"max_duration_sec"`
	DefaultShareExpirySec   int     `mapstructure:"default_share_expiry_sec"`
	MaxConcurrentTranscodes int64   `mapstructure:"max_concurrent_transcodes"`
}

type FFmpegConfig struct {
	FFmpegPath  string `mapstructure:"ffmpeg_path"`
	FFprobePath string `mapstructure:"ffprobe_path"`
}

type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	Port              int    `mapstructure:"port"`
	SSLMode           string `mapstructure:"sslmode"`
	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	MonitorPort int    `mapstructure:"monitor_port"`
}

type PrometheusConfig struct {
	Port int `mapstructure:"port"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// API_TOKENS arrives as one comma-separated string when set via env.
	if len(cfg.Auth.Tokens) == 1 && strings.Contains(cfg.Auth.Tokens[0], ",") {
		cfg.Auth.Tokens = splitTokens(cfg.Auth.Tokens[0])
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.dir", "uploads")
	v.SetDefault("storage.max_upload_bytes", 25*1024*1024)
	v.SetDefault("storage.min_duration_sec", 1.0)
	v.SetDefault("storage.max_duration_sec", 60.0)
	v.SetDefault("storage.default_share_expiry_sec", 3600)
	v.SetDefault("storage.max_concurrent_transcodes", 2)
	v.SetDefault("ffmpeg.ffmpeg_path", "ffmpeg")
	v.SetDefault("ffmpeg.ffprobe_path", "ffprobe")
}

func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "SERVER_PORT")

	// Auth
	v.BindEnv("auth.tokens", "API_TOKENS")

	// Storage
	v.BindEnv("storage.dir", "STORAGE_DIR")
	v.BindEnv("storage.max_upload_bytes", "STORAGE_MAX_UPLOAD_BYTES")
	v.BindEnv("storage.min_duration_sec", "STORAGE_MIN_DURATION_SEC")
	v.BindEnv("storage.max_duration_sec", "STORAGE_MAX_DURATION_SEC")
	v.BindEnv("storage.default_share_expiry_sec", "STORAGE_DEFAULT_SHARE_EXPIRY_SEC")
	v.BindEnv("storage.max_concurrent_transcodes", "STORAGE_MAX_CONCURRENT_TRANSCODES")

	// FFmpeg
	v.BindEnv("ffmpeg.ffmpeg_path", "FFMPEG_PATH")
	v.BindEnv("ffmpeg.ffprobe_path", "FFPROBE_PATH")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")
	v.BindEnv("nats.monitor_port", "NATS_MONITOR_PORT")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")
}

func splitTokens(s string) []string {
	parts := strings.Split(s, ",")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}
