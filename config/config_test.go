package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "linkrpc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
host: 127.0.0.1
codec: binary
drain_timeout: 30s
call_timeout: 2s
rate_limit: 100
rate_burst: 10
etcd:
  endpoints: ["127.0.0.1:2379"]
  advertise_addr: "10.0.0.5:8080"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", cfg.Host)
	require.Equal(t, "binary", cfg.Codec)
	require.Equal(t, 30*time.Second, cfg.DrainTimeout.Std())
	require.Equal(t, 2*time.Second, cfg.CallTimeout.Std())
	require.Equal(t, float64(100), cfg.RateLimit)
	require.Equal(t, 10, cfg.RateBurst)
	require.Equal(t, []string{"127.0.0.1:2379"}, cfg.Etcd.Endpoints)
	require.Equal(t, "10.0.0.5:8080", cfg.Etcd.AdvertiseAddr)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `host: 0.0.0.0`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "json", cfg.Codec)
	require.Equal(t, 10*time.Second, cfg.DrainTimeout.Std())
	require.Empty(t, cfg.Etcd.Endpoints)
}

func TestLoadBadDuration(t *testing.T) {
	path := writeConfig(t, `drain_timeout: banana`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid duration")
}

func TestLoadBadCodec(t *testing.T) {
	path := writeConfig(t, `codec: xml`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown codec")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
