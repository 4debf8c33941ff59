package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fhetutor/internal/record"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))

	assert.Equal(t, "sqlite", cfg.Ledger.Driver)
	assert.Equal(t, 30, cfg.Challenge.DurationDays)
	assert.Equal(t, 1500*time.Millisecond, cfg.Decrypt.SettleDelay)
	assert.False(t, cfg.Decrypt.VerifySignatures)
	assert.Equal(t, 8, cfg.Index.MaxRetries)
	assert.Equal(t, 5*time.Millisecond, cfg.Index.RetryInterval)
	assert.Equal(t, record.DefaultSubjects, cfg.Subjects)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel())
}

func TestDefault_SubjectsAreCopied(t *testing.T) {
	cfg := Default()
	cfg.Subjects[0] = "Changed"
	assert.Equal(t, "Mathematics", record.DefaultSubjects[0])
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Loader{LookupEnv: env(nil)}.Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "fhetutor.yaml", `
ledger:
  driver: pebble
  path: /tmp/ledger
decrypt:
  settle_delay: 250ms
  verify_signatures: true
  signer_key: s3cret
subjects: [Art, Music]
log:
  level: debug
`)

	cfg, err := Loader{LookupEnv: env(nil)}.Load(path)
	require.NoError(t, err)

	assert.Equal(t, LedgerConfig{Driver: "pebble", Path: "/tmp/ledger"}, cfg.Ledger)
	assert.Equal(t, 250*time.Millisecond, cfg.Decrypt.SettleDelay)
	assert.True(t, cfg.Decrypt.VerifySignatures)
	assert.Equal(t, "s3cret", cfg.Decrypt.SignerKey)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
	assert.True(t, cfg.Catalogue().Contains("Art"))
	assert.False(t, cfg.Catalogue().Contains("Physics"))

	// untouched sections keep their defaults
	assert.Equal(t, DefaultContractAddress, cfg.Chain.ContractAddress)
	assert.Equal(t, DefaultMaxRetries, cfg.Index.MaxRetries)
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeFile(t, "empty.yaml", "")
	cfg, err := Loader{LookupEnv: env(nil)}.Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_UnknownField(t *testing.T) {
	path := writeFile(t, "bad.yaml", "ledger:\n  drvier: memory\n")
	_, err := Loader{LookupEnv: env(nil)}.Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Loader{LookupEnv: env(nil)}.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_PathFromEnvironment(t *testing.T) {
	path := writeFile(t, "fhetutor.yaml", "ledger:\n  driver: memory\n")
	cfg, err := Loader{LookupEnv: env(map[string]string{EnvConfig: path})}.Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Ledger.Driver)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "fhetutor.yaml", "ledger:\n  driver: memory\nchain:\n  chain_id: 5\n")

	cfg, err := Loader{LookupEnv: env(map[string]string{
		EnvLedgerDriver:     "pebble",
		EnvLedgerPath:       "",
		EnvChainID:          "31337",
		EnvDurationDays:     "7",
		EnvSettleDelay:      "0s",
		EnvVerifySignatures: "true",
		EnvSignerKey:        "k",
		EnvMaxRetries:       "3",
		EnvRetryInterval:    "1ms",
		EnvSubjects:         " Art, ,Music ",
		EnvLogLevel:         "INFO",
	})}.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "pebble", cfg.Ledger.Driver)
	assert.Equal(t, DefaultLedgerPath, cfg.Ledger.Path, "empty variables are ignored")
	assert.Equal(t, int64(31337), cfg.Chain.ChainID)
	assert.Equal(t, 7, cfg.Challenge.DurationDays)
	assert.Equal(t, time.Duration(0), cfg.Decrypt.SettleDelay)
	assert.True(t, cfg.Decrypt.VerifySignatures)
	assert.Equal(t, 3, cfg.Index.MaxRetries)
	assert.Equal(t, time.Millisecond, cfg.Index.RetryInterval)
	assert.Equal(t, []string{"Art", "Music"}, cfg.Subjects)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
}

func TestLoad_BadEnvValue(t *testing.T) {
	for _, key := range []string{EnvChainID, EnvDurationDays, EnvSettleDelay, EnvVerifySignatures, EnvMaxRetries, EnvRetryInterval} {
		t.Run(key, func(t *testing.T) {
			_, err := Loader{LookupEnv: env(map[string]string{key: "nonsense"})}.Load("")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_DotenvUnderProcessEnv(t *testing.T) {
	envFile := writeFile(t, ".env", "FHETUTOR_CHAIN_ID=1\nFHETUTOR_LOG_LEVEL=error\n")

	cfg, err := Loader{
		EnvFile:   envFile,
		LookupEnv: env(map[string]string{EnvLogLevel: "info"}),
	}.Load("")
	require.NoError(t, err)

	assert.Equal(t, int64(1), cfg.Chain.ChainID)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
}

func TestLoad_MissingDotenvIgnored(t *testing.T) {
	_, err := Loader{
		EnvFile:   filepath.Join(t.TempDir(), ".env"),
		LookupEnv: env(nil),
	}.Load("")
	require.NoError(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Ledger.Driver = "redis" }},
		{"sqlite without path", func(c *Config) { c.Ledger.Path = "" }},
		{"contract address", func(c *Config) { c.Chain.ContractAddress = "0x1234" }},
		{"chain id", func(c *Config) { c.Chain.ChainID = 0 }},
		{"duration", func(c *Config) { c.Challenge.DurationDays = 0 }},
		{"verify without key", func(c *Config) { c.Decrypt.VerifySignatures = true }},
		{"max retries", func(c *Config) { c.Index.MaxRetries = 0 }},
		{"retry interval", func(c *Config) { c.Index.RetryInterval = 0 }},
		{"no subjects", func(c *Config) { c.Subjects = nil }},
		{"blank subject", func(c *Config) { c.Subjects = []string{"Art", ""} }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestValidate_Accepts(t *testing.T) {
	cfg := Default()
	cfg.Ledger = LedgerConfig{Driver: "pebble"}
	cfg.Decrypt.SettleDelay = -1
	require.NoError(t, Validate(cfg), "pebble runs in memory without a path; negative delay disables the wait")

	cfg = Default()
	cfg.Ledger = LedgerConfig{Driver: "memory"}
	require.NoError(t, Validate(cfg))
}
