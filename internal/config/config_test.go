package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oncoscan/internal/inference"
)

func TestDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.True(t, cfg.InsecureSecret())
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "sqlite://oncoscan.db", cfg.DatabaseURL)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, int64(64<<20), cfg.MaxUploadBytes)
	assert.True(t, cfg.SeedDemoUser)
	assert.False(t, cfg.ReloadRequiresAdmin)
	assert.Equal(t, 30*time.Second, cfg.UserCacheTTL)
	assert.Equal(t, "oncoscan-uploads", cfg.S3.KeyPrefix)
}

func TestEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ONCOSCAN_SECRET_KEY", "s3cr3t")
	t.Setenv("ONCOSCAN_TOKEN_EXPIRE_MINUTES", "15")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/oncoscan")
	t.Setenv("ONCOSCAN_CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("ONCOSCAN_RELOAD_REQUIRES_ADMIN", "true")
	t.Setenv("ONCOSCAN_UPLOAD_S3_BUCKET", "studies")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.False(t, cfg.InsecureSecret())
	assert.Equal(t, 15*time.Minute, cfg.TokenTTL)
	assert.Equal(t, "postgres://u:p@db/oncoscan", cfg.DatabaseURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.ReloadRequiresAdmin)
	assert.Equal(t, "studies", cfg.S3.Bucket)
}

func TestPrefixedDatabaseURLWins(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://fallback")
	t.Setenv("ONCOSCAN_DATABASE_URL", "sqlite:///primary.db")
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite:///primary.db", cfg.DatabaseURL)
}

func TestInvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ONCOSCAN_TOKEN_EXPIRE_MINUTES", "0")
	_, err := NewLoader().Load()
	assert.Error(t, err)

	t.Setenv("ONCOSCAN_TOKEN_EXPIRE_MINUTES", "10")
	t.Setenv("ONCOSCAN_MAX_UPLOAD_MB", "-1")
	_, err = NewLoader().Load()
	assert.Error(t, err)
}

func TestModelIsReadLive(t *testing.T) {
	t.Chdir(t.TempDir())
	l := NewLoader()
	assert.Equal(t, inference.BackendSimulate, l.Model().Backend)

	t.Setenv("ONCOSCAN_MODEL_BACKEND", "Delegated")
	t.Setenv("ONCOSCAN_MODEL_PATH", "/models/onco.tflite")
	t.Setenv("ONCOSCAN_MODEL_DEVICE", "XNNPACK")
	t.Setenv("ONCOSCAN_SIMULATE_DELAY_SEC", "0.25")

	m := l.Model()
	assert.Equal(t, inference.BackendTFLite, m.Backend)
	assert.Equal(t, "/models/onco.tflite", m.ModelPath)
	assert.Equal(t, "xnnpack", m.Device)
	assert.Equal(t, 250*time.Millisecond, m.SimulateDelay)
}
