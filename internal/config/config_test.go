package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dom/pulse/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RESTBackend(t *testing.T) {
	t.Setenv("PULSE_BACKEND", "rest")
	t.Setenv("SUPABASE_URL", "https://example.supabase.co/")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("SCAN_COOLDOWN_MS", "2000")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.BackendREST, cfg.Backend)
	assert.Equal(t, "https://example.supabase.co", cfg.SupabaseURL)
	assert.Equal(t, 2*time.Second, cfg.ScanCooldown)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "event-covers", cfg.CoverBucket)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "rest without url",
			env:     map[string]string{"PULSE_BACKEND": "rest", "SUPABASE_URL": "", "SUPABASE_ANON_KEY": "anon"},
			wantErr: "SUPABASE_URL",
		},
		{
			name:    "rest without anon key",
			env:     map[string]string{"PULSE_BACKEND": "rest", "SUPABASE_URL": "https://x", "SUPABASE_ANON_KEY": ""},
			wantErr: "SUPABASE_ANON_KEY",
		},
		{
			name:    "postgres without secret",
			env:     map[string]string{"PULSE_BACKEND": "postgres", "JWT_SECRET": ""},
			wantErr: "JWT_SECRET",
		},
		{
			name:    "unknown backend",
			env:     map[string]string{"PULSE_BACKEND": "graphql"},
			wantErr: "unknown PULSE_BACKEND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_PostgresBackend(t *testing.T) {
	t.Setenv("PULSE_BACKEND", "Postgres")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("JWT_EXPIRATION_HOURS", "not-a-number")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.BackendPostgres, cfg.Backend)
	assert.Equal(t, 1, cfg.JWTExpirationHours)
}
