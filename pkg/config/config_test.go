package config_test

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Caja-api/pkg/config"
)

func TestFromViper_ValoresPorDefecto(t *testing.T) {
	cfg, err := config.FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, config.DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 25, cfg.DB.MaxConns)
	assert.Equal(t, "caja:pagos", cfg.Redis.Queue)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Shift.LockTimeout)
	assert.True(t, cfg.Shift.SignedPostings)
	assert.Equal(t, "1", cfg.Shift.WarnPct)
	assert.Equal(t, "5", cfg.Shift.CriticalPct)
	assert.Equal(t, "es-CO", cfg.Display.Locale)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
}

func TestFromViper_LeeValoresComoTexto(t *testing.T) {
	v := viper.New()
	v.Set("STORE_DRIVER", "SQLite")
	v.Set("HTTP_PORT", "9090")
	v.Set("SHIFT_LOCK_TIMEOUT", "250ms")
	v.Set("SHIFT_SIGNED_POSTINGS", "false")
	v.Set("REDIS_ENABLED", "true")
	v.Set("REDIS_WORKERS", "8")

	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, config.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Shift.LockTimeout)
	assert.False(t, cfg.Shift.SignedPostings)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 8, cfg.Redis.Workers)
}

func TestFromViper_TimeoutEnSegundos(t *testing.T) {
	v := viper.New()
	v.Set("SHIFT_LOCK_TIMEOUT", "3")
	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Shift.LockTimeout)
}

func TestFromViper_DriverDesconocido(t *testing.T) {
	v := viper.New()
	v.Set("STORE_DRIVER", "mongo")
	_, err := config.FromViper(v)
	assert.Error(t, err)
}

func TestDBConfig_ConnectionString(t *testing.T) {
	c := config.DBConfig{Host: "db", Port: 5432, User: "caja", Password: "p@ss:1", DBName: "caja", SSLMode: "disable"}
	assert.Equal(t, "postgres://caja:p%40ss%3A1@db:5432/caja?sslmode=disable", c.ConnectionString())

	c.DatabaseURL = "postgres://otro"
	assert.Equal(t, "postgres://otro", c.ConnectionString())
}
