package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/feedlens/feedlens/internal/config"
)

func TestBuildLibsqlDSN(t *testing.T) {
	t.Run("URLUsesRawValue", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://example.turso.io",
			AuthToken: "token123",
		}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://example.turso.io?authToken=token123", dsn)
	})

	t.Run("URLWithExistingQuery", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://example.turso.io?foo=bar",
			AuthToken: "token123",
		}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://example.turso.io?authToken=token123&foo=bar", dsn)
	})

	t.Run("PathWithFilePrefix", func(t *testing.T) {
		cfg := config.StoreConfig{Path: "file:./feedlens.db"}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "file:./feedlens.db", dsn)
	})

	t.Run("PathMissing", func(t *testing.T) {
		cfg := config.StoreConfig{}

		_, err := buildLibsqlDSN(cfg)
		require.Error(t, err)
	})

	t.Run("MemoryPath", func(t *testing.T) {
		cfg := config.StoreConfig{Path: ":memory:"}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, ":memory:", dsn)
	})
}

func TestCosine(t *testing.T) {
	score, ok := cosine([]float64{1, 0}, []float64{1, 0})
	require.True(t, ok)
	require.InDelta(t, 1.0, score, 1e-9)

	score, ok = cosine([]float64{1, 0}, []float64{0, 1})
	require.True(t, ok)
	require.InDelta(t, 0.0, score, 1e-9)

	_, ok = cosine([]float64{1, 0}, []float64{1})
	require.False(t, ok, "dimension mismatch")

	_, ok = cosine([]float64{0, 0}, []float64{1, 0})
	require.False(t, ok, "zero vector")
}
