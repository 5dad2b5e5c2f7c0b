// Package config reads ONCOSCAN_* settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"oncoscan/internal/inference"
	"oncoscan/internal/storage"
)

// DevSecretKey is used when ONCOSCAN_SECRET_KEY is unset.
const DevSecretKey = "CHANGE_THIS_TO_A_LONG_RANDOM_SECRET_FOR_DEVELOPMENT"

type Config struct {
	HTTPAddr            string
	SecretKey           string
	TokenTTL            time.Duration
	DatabaseURL         string
	LogLevel            string
	CORSOrigins         []string
	StaticDir           string
	MaxUploadBytes      int64
	UploadDir           string
	S3                  storage.S3Options
	SeedDemoUser        bool
	ReloadRequiresAdmin bool
	UserCacheTTL        time.Duration
}

// InsecureSecret reports whether the development fallback secret is in use.
func (c Config) InsecureSecret() bool { return c.SecretKey == DevSecretKey }

// Loader reads settings lazily so model settings can change between
// reloads.
type Loader struct {
	v *viper.Viper
}

// NewLoader loads .env (if present) into the process environment and binds
// every key.
func NewLoader() *Loader {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ONCOSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("database_url", "ONCOSCAN_DATABASE_URL", "DATABASE_URL")

	v.SetDefault("http_addr", ":8000")
	v.SetDefault("secret_key", DevSecretKey)
	v.SetDefault("token_expire_minutes", 60*24)
	v.SetDefault("database_url", "sqlite://oncoscan.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("cors_origins", "*")
	v.SetDefault("static_dir", "")
	v.SetDefault("max_upload_mb", 64)
	v.SetDefault("upload_dir", "uploads")
	v.SetDefault("upload_s3_bucket", "")
	v.SetDefault("upload_s3_prefix", "oncoscan-uploads")
	v.SetDefault("upload_s3_region", "")
	v.SetDefault("upload_s3_endpoint", "")
	v.SetDefault("seed_demo_user", true)
	v.SetDefault("reload_requires_admin", false)
	v.SetDefault("user_cache_ttl", "30s")
	v.SetDefault("model_backend", inference.BackendSimulate)
	v.SetDefault("model_path", "")
	v.SetDefault("model_device", "cpu")
	v.SetDefault("model_threads", 0)
	v.SetDefault("simulate_delay_sec", 0.0)

	return &Loader{v: v}
}

func (l *Loader) Load() (Config, error) {
	v := l.v
	cfg := Config{
		HTTPAddr:            strings.TrimSpace(v.GetString("http_addr")),
		SecretKey:           strings.TrimSpace(v.GetString("secret_key")),
		DatabaseURL:         strings.TrimSpace(v.GetString("database_url")),
		LogLevel:            v.GetString("log_level"),
		CORSOrigins:         parseCSV(v.GetString("cors_origins")),
		StaticDir:           strings.TrimSpace(v.GetString("static_dir")),
		UploadDir:           strings.TrimSpace(v.GetString("upload_dir")),
		SeedDemoUser:        v.GetBool("seed_demo_user"),
		ReloadRequiresAdmin: v.GetBool("reload_requires_admin"),
		UserCacheTTL:        v.GetDuration("user_cache_ttl"),
		S3: storage.S3Options{
			Bucket:    strings.TrimSpace(v.GetString("upload_s3_bucket")),
			KeyPrefix: strings.TrimSpace(v.GetString("upload_s3_prefix")),
			Region:    strings.TrimSpace(v.GetString("upload_s3_region")),
			Endpoint:  strings.TrimSpace(v.GetString("upload_s3_endpoint")),
		},
	}

	minutes := v.GetInt("token_expire_minutes")
	if minutes <= 0 {
		return Config{}, fmt.Errorf("ONCOSCAN_TOKEN_EXPIRE_MINUTES must be positive, got %d", minutes)
	}
	cfg.TokenTTL = time.Duration(minutes) * time.Minute

	mb := v.GetInt64("max_upload_mb")
	if mb <= 0 {
		return Config{}, fmt.Errorf("ONCOSCAN_MAX_UPLOAD_MB must be positive, got %d", mb)
	}
	cfg.MaxUploadBytes = mb << 20

	if cfg.SecretKey == "" {
		return Config{}, fmt.Errorf("ONCOSCAN_SECRET_KEY is empty")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url is empty")
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8000"
	}
	return cfg, nil
}

// Model returns the current model backend settings. It is read again on
// every reload.
func (l *Loader) Model() inference.Config {
	delay := l.v.GetFloat64("simulate_delay_sec")
	if delay < 0 {
		delay = 0
	}
	return inference.Config{
		Backend:       inference.Normalize(l.v.GetString("model_backend")),
		ModelPath:     strings.TrimSpace(l.v.GetString("model_path")),
		Device:        strings.ToLower(strings.TrimSpace(l.v.GetString("model_device"))),
		Threads:       l.v.GetInt("model_threads"),
		SimulateDelay: time.Duration(delay * float64(time.Second)),
	}
}

func parseCSV(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
