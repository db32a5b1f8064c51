package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	FFmpeg    FFmpegConfig
	Retention RetentionConfig
	OIDC      OIDCConfig
	Gateway   GatewayConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	ComposePerHour int
	UploadPerHour  int
}

type StorageConfig struct {
	UploadDir   string
	OutputDir   string
	MaxUploadMB int
}

type FFmpegConfig struct {
	BinaryPath string
	ProbePath  string
}

// RetentionConfig holds the two externally observable cleanup constants:
// how long after completion input files are reclaimed, and how old a job
// record or stray file may get before the sweep removes it.
type RetentionConfig struct {
	SweepInterval     time.Duration
	Window            time.Duration
	InputCleanupDelay time.Duration
}

// OIDCConfig points at the identity provider. Issuer drives discovery;
// ClientID, when set, is enforced as the token audience.
type OIDCConfig struct {
	Issuer   string
	ClientID string
}

type GatewayConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("ratelimit.compose_per_hour", "RATE_LIMIT_COMPOSE_PER_HOUR")
	_ = viper.BindEnv("ratelimit.upload_per_hour", "RATE_LIMIT_UPLOAD_PER_HOUR")
	_ = viper.BindEnv("storage.upload_dir", "STORAGE_UPLOAD_DIR")
	_ = viper.BindEnv("storage.output_dir", "STORAGE_OUTPUT_DIR")
	_ = viper.BindEnv("storage.max_upload_mb", "STORAGE_MAX_UPLOAD_MB")
	_ = viper.BindEnv("ffmpeg.path", "FFMPEG_PATH")
	_ = viper.BindEnv("ffmpeg.probe_path", "FFPROBE_PATH")
	_ = viper.BindEnv("retention.sweep_interval", "RETENTION_SWEEP_INTERVAL")
	_ = viper.BindEnv("retention.window", "RETENTION_WINDOW")
	_ = viper.BindEnv("retention.input_cleanup_delay", "RETENTION_INPUT_CLEANUP_DELAY")
	_ = viper.BindEnv("oidc.issuer", "OIDC_ISSUER")
	_ = viper.BindEnv("oidc.client_id", "OIDC_CLIENT_ID")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.compose_per_hour", 20)
	viper.SetDefault("ratelimit.upload_per_hour", 50)

	// Storage defaults
	viper.SetDefault("storage.upload_dir", "./data/uploads")
	viper.SetDefault("storage.output_dir", "./data/outputs")
	viper.SetDefault("storage.max_upload_mb", 512)

	// Engine defaults
	viper.SetDefault("ffmpeg.path", "ffmpeg")
	viper.SetDefault("ffmpeg.probe_path", "ffprobe")

	// Retention defaults
	viper.SetDefault("retention.sweep_interval", "1h")
	viper.SetDefault("retention.window", "24h")
	viper.SetDefault("retention.input_cleanup_delay", "5m")

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			ComposePerHour: viper.GetInt("ratelimit.compose_per_hour"),
			UploadPerHour:  viper.GetInt("ratelimit.upload_per_hour"),
		},
		Storage: StorageConfig{
			UploadDir:   viper.GetString("storage.upload_dir"),
			OutputDir:   viper.GetString("storage.output_dir"),
			MaxUploadMB: viper.GetInt("storage.max_upload_mb"),
		},
		FFmpeg: FFmpegConfig{
			BinaryPath: viper.GetString("ffmpeg.path"),
			ProbePath:  viper.GetString("ffmpeg.probe_path"),
		},
		Retention: RetentionConfig{
			SweepInterval:     viper.GetDuration("retention.sweep_interval"),
			Window:            viper.GetDuration("retention.window"),
			InputCleanupDelay: viper.GetDuration("retention.input_cleanup_delay"),
		},
		OIDC: OIDCConfig{
			Issuer:   viper.GetString("oidc.issuer"),
			ClientID: viper.GetString("oidc.client_id"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
	}

	return cfg, nil
}
