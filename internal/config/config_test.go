package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadReadsYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte(`
logging:
  level: debug
requester:
  retries: 5
  response_timeout: 250ms
dictionary:
  root: /tmp/dict
`), 0o644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, 5, cfg.Requester.Retries)
	require.Equal(t, 250_000_000, int(cfg.Requester.ResponseTimeout))
	require.Equal(t, "/tmp/dict", cfg.Dictionary.Root)
	// Untouched sections still carry their defaults.
	require.Equal(t, DefaultConfig().Transport.Backend, cfg.Transport.Backend)
}

func TestLoadHonorsEnvironmentOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("requester:\n  retries: 1\n"), 0o644))

	t.Setenv("PLDM_REQUESTER_RETRIES", "9")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9, cfg.Requester.Retries)
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transport.Backend = "carrier-pigeon"
	require.Error(t, Validate(cfg))
}

func TestValidateRejectsInvertedEIDRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transport.MinEID = 200
	cfg.Transport.MaxEID = 10
	require.Error(t, Validate(cfg))
}

func TestValidateRejectsNonPositiveResponseTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Requester.ResponseTimeout = 0
	require.Error(t, Validate(cfg))
}

func TestValidateRejectsEmptyDictionaryRoot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dictionary.Root = ""
	require.Error(t, Validate(cfg))
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, Validate(DefaultConfig()))
}
