package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/taurusgroup/blind-sig/pkg/hash"
)

// Config holds the settings of a demo run.
// Values are read from a TOML file, then overridden by command line flags.
type Config struct {
	// Bits is the size of the generated RSA modulus.
	Bits int `toml:"bits"`
	// Hash names the function used to encode messages.
	Hash string `toml:"hash"`
	// Signer is either "crt" or "direct".
	Signer string `toml:"signer"`
	// Sessions is the number of requesters.
	Sessions int `toml:"sessions"`
	// Concurrency bounds the number of requesters running at once.
	Concurrency int `toml:"concurrency"`
	// Workers is the size of the signer's pool, 0 for one per CPU.
	Workers int `toml:"workers"`
	// Batch has the signer answer all requesters with one SignAll call.
	Batch bool `toml:"batch"`
	// Audit makes requesters disclose their blinding factor.
	Audit bool `toml:"audit"`
	// AuditDir stores the signer's records on disk. Empty keeps them in memory.
	AuditDir string `toml:"audit_dir"`
	Message  string `toml:"message"`
	LogLevel string `toml:"log_level"`
	// Seed makes requesters draw their blinding factors from a deterministic
	// source. Zero uses crypto/rand. Never set it outside of testing.
	Seed int64 `toml:"seed"`
}

const (
	signerCRT    = "crt"
	signerDirect = "direct"
	minBits      = 1024
)

// DefaultConfig returns the settings used when neither file nor flag sets a value.
func DefaultConfig() *Config {
	return &Config{
		Bits:        2048,
		Hash:        hash.Default.String(),
		Signer:      signerCRT,
		Sessions:    8,
		Concurrency: 4,
		Workers:     0,
		Audit:       true,
		Message:     "Hello Chaum!",
		LogLevel:    zerolog.InfoLevel.String(),
	}
}

// LoadConfig reads path over the defaults. An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	if c.Bits < minBits {
		return fmt.Errorf("config: bits must be at least %d, got %d", minBits, c.Bits)
	}
	if _, err := hash.Lookup(c.Hash); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch strings.ToLower(c.Signer) {
	case signerCRT, signerDirect:
	default:
		return fmt.Errorf("config: signer must be %q or %q, got %q", signerCRT, signerDirect, c.Signer)
	}
	if c.Sessions <= 0 {
		return errors.New("config: sessions must be positive")
	}
	if c.Concurrency <= 0 {
		return errors.New("config: concurrency must be positive")
	}
	if c.Workers < 0 {
		return errors.New("config: workers must not be negative")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// HashFunction returns the configured hash function.
func (c *Config) HashFunction() hash.Function {
	h, _ := hash.Lookup(c.Hash)
	return h
}

// Logger returns a console logger at the configured level.
func (c *Config) Logger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.NewConsoleWriter()).Level(level).With().Timestamp().Logger()
}

func registerFlags(cmd *cobra.Command) {
	d := DefaultConfig()
	f := cmd.Flags()
	f.Int("bits", d.Bits, "size of the RSA modulus")
	f.String("hash", d.Hash, "hash function: "+strings.Join(hash.Names(), ", "))
	f.String("signer", d.Signer, "signing mode: crt or direct")
	f.Int("sessions", d.Sessions, "number of requesters")
	f.Int("concurrency", d.Concurrency, "requesters running at once")
	f.Int("workers", d.Workers, "signer pool size, 0 for one per CPU")
	f.Bool("batch", d.Batch, "sign every request with a single batch")
	f.Bool("audit", d.Audit, "disclose blinding factors and audit them")
	f.String("audit-dir", d.AuditDir, "directory of the audit database, in memory if empty")
	f.String("message", d.Message, "message prefix signed by each requester")
	f.Int64("seed", d.Seed, "deterministic blinding factors, insecure, 0 for crypto/rand")
}

// applyFlags overrides cfg with the flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *Config) error {
	f := cmd.Flags()
	var err error
	set := func(name string, apply func() error) {
		if err == nil && f.Changed(name) {
			err = apply()
		}
	}
	set("bits", func() (e error) { cfg.Bits, e = f.GetInt("bits"); return })
	set("hash", func() (e error) { cfg.Hash, e = f.GetString("hash"); return })
	set("signer", func() (e error) { cfg.Signer, e = f.GetString("signer"); return })
	set("sessions", func() (e error) { cfg.Sessions, e = f.GetInt("sessions"); return })
	set("concurrency", func() (e error) { cfg.Concurrency, e = f.GetInt("concurrency"); return })
	set("workers", func() (e error) { cfg.Workers, e = f.GetInt("workers"); return })
	set("batch", func() (e error) { cfg.Batch, e = f.GetBool("batch"); return })
	set("audit", func() (e error) { cfg.Audit, e = f.GetBool("audit"); return })
	set("audit-dir", func() (e error) { cfg.AuditDir, e = f.GetString("audit-dir"); return })
	set("message", func() (e error) { cfg.Message, e = f.GetString("message"); return })
	set("seed", func() (e error) { cfg.Seed, e = f.GetInt64("seed"); return })
	set("log-level", func() (e error) { cfg.LogLevel, e = f.GetString("log-level"); return })
	return err
}
