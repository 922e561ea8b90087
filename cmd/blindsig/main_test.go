package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "blindsig.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())

	path := writeConfig(t, `
bits = 1024
hash = "blake3"
signer = "direct"
sessions = 3
audit_dir = "/tmp/audit"
`)
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Bits)
	assert.Equal(t, "blake3", cfg.Hash)
	assert.Equal(t, "direct", cfg.Signer)
	assert.Equal(t, 3, cfg.Sessions)
	assert.Equal(t, "/tmp/audit", cfg.AuditDir)
	// untouched fields keep their default
	assert.Equal(t, DefaultConfig().Concurrency, cfg.Concurrency)
	assert.True(t, cfg.Audit)

	_, err = LoadConfig(writeConfig(t, `bits = "many"`))
	assert.Error(t, err)
	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := map[string]func(c *Config){
		"small key":      func(c *Config) { c.Bits = 512 },
		"unknown hash":   func(c *Config) { c.Hash = "md5" },
		"unknown signer": func(c *Config) { c.Signer = "fast" },
		"no sessions":    func(c *Config) { c.Sessions = 0 },
		"no concurrency": func(c *Config) { c.Concurrency = 0 },
		"negative pool":  func(c *Config) { c.Workers = -1 },
		"bad log level":  func(c *Config) { c.LogLevel = "loud" },
	}
	for name, mutate := range tests {
		cfg := DefaultConfig()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestApplyFlags(t *testing.T) {
	cmd := newDemoCmd()
	cmd.Flags().String("log-level", "info", "")
	require.NoError(t, cmd.Flags().Parse([]string{"--bits", "3072", "--signer", "direct", "--batch", "--log-level", "debug"}))

	cfg := DefaultConfig()
	cfg.Hash = "sm3"
	require.NoError(t, applyFlags(cmd, cfg))
	assert.Equal(t, 3072, cfg.Bits)
	assert.Equal(t, "direct", cfg.Signer)
	assert.True(t, cfg.Batch)
	assert.Equal(t, "debug", cfg.LogLevel)
	// flags left unset do not override the file
	assert.Equal(t, "sm3", cfg.Hash)
}

func TestRunDemo(t *testing.T) {
	tests := map[string]func(c *Config){
		"crt":    func(c *Config) {},
		"direct": func(c *Config) { c.Signer = signerDirect; c.Hash = "sha256" },
		"batch":  func(c *Config) { c.Batch = true; c.Concurrency = 1 },
		"disk":   func(c *Config) { c.AuditDir = t.TempDir(); c.Audit = false },
		"seeded": func(c *Config) { c.Seed = 42; c.Hash = "blake3" },
	}
	for name, mutate := range tests {
		mutate := mutate
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Bits = 1024
			cfg.Sessions = 5
			cfg.Workers = 2
			mutate(cfg)

			report, err := RunDemo(context.Background(), cfg, zerolog.Nop())
			require.NoError(t, err)
			assert.Equal(t, int64(cfg.Sessions), report.Verified)
			if cfg.Audit {
				assert.Equal(t, int64(cfg.Sessions), report.Audited)
			} else {
				assert.Zero(t, report.Audited)
			}
		})
	}
}

func TestRunDemo_Invalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sessions = 0
	_, err := RunDemo(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestHashesCmd(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"hashes"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "sha3-256 (default)")
	assert.Contains(t, out.String(), "sm3")
}
