package utils

import (
	"crypto/tls"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_STR", "  value ")
	t.Setenv("X_INT", "12")
	t.Setenv("X_BAD", "abc")
	t.Setenv("X_BOOL", "TRUE")
	t.Setenv("X_SEC", "3")

	assert.Equal(t, "value", EnvString("X_STR", "d"))
	assert.Equal(t, "d", EnvString("X_MISSING", "d"))
	assert.Equal(t, 12, EnvInt("X_INT", 1))
	assert.Equal(t, 1, EnvInt("X_BAD", 1))
	assert.True(t, EnvBool("X_BOOL"))
	assert.False(t, EnvBool("X_MISSING"))
	assert.Equal(t, 3*time.Second, EnvSeconds("X_SEC", time.Minute))
	assert.Equal(t, time.Minute, EnvSeconds("X_BAD", time.Minute))
}

func TestBuildPostgresDSN(t *testing.T) {
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_PORT", "")
	t.Setenv("PG_USER", "oqt")
	t.Setenv("PG_PASSWORD", "secret")
	t.Setenv("PG_DB", "")
	t.Setenv("PG_SSLMODE", "")
	assert.Equal(t, "postgres://oqt:secret@db:5432/oqt?sslmode=disable", BuildPostgresDSNFromEnv())
}

func TestOpenRedisDisabled(t *testing.T) {
	t.Setenv("REDIS_ENABLE", "")
	assert.Nil(t, OpenRedisFromEnv())
	assert.Nil(t, OpenRedis("", ""))
}

func TestEnsureSelfSignedCert(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "tls", "cert.pem")
	key := filepath.Join(dir, "tls", "key.pem")
	require.NoError(t, EnsureSelfSignedCert(cert, key, "oqt.local"))

	pair, err := tls.LoadX509KeyPair(cert, key)
	require.NoError(t, err)
	require.NotEmpty(t, pair.Certificate)

	require.NoError(t, EnsureSelfSignedCert(cert, key, "other"))
	again, err := tls.LoadX509KeyPair(cert, key)
	require.NoError(t, err)
	assert.Equal(t, pair.Certificate[0], again.Certificate[0])
}
