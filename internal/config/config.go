// Package config loads and validates the single JSON document that
// describes every uploader, the core scheduler knobs, the control-plane
// client settings, and the rate-limit substring overrides (spec §6). It is
// read once at startup; nothing in the scheduler mutates it afterward.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/saupload/saupload/internal/constants"
	"github.com/saupload/saupload/internal/core"
)

// ChunkedUploadConfig controls whether a stage is split into file-list
// chunks before invocation (C4).
type ChunkedUploadConfig struct {
	Enabled             bool   `json:"enabled"`
	ChunkSize           int    `json:"chunk_size"`
	GenerateListTimeout string `json:"generate_list_timeout"`
}

// UploaderConfig is one named {source, destination, credential pool} binding.
type UploaderConfig struct {
	LocalPath         string              `json:"local_path"`
	RemotePath        string              `json:"remote_path"`
	CredentialPath    string              `json:"credential_path"`
	EngineExtras      map[string]string   `json:"engine_extras"`
	ChunkedUpload     ChunkedUploadConfig `json:"chunked_upload"`
	RetryPartialStage bool                `json:"retry_partial_stage"`
}

// CoreConfig holds the scheduler-wide knobs spec §6 calls `core.*`.
type CoreConfig struct {
	EngineBinaryPath string `json:"engine_binary_path"`
	QuotaCapBytes    int64  `json:"quota_cap_bytes"`
}

// RCStandaloneConfig describes the optional self-managed `rcd` daemon.
type RCStandaloneConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
	WebGUI  bool   `json:"web_gui"`
	NoAuth  bool   `json:"no_auth"`
	User    string `json:"user"`
	Pass    string `json:"pass"`
}

// RCConfig describes the control-plane client (C6) target.
type RCConfig struct {
	URL        string             `json:"url"`
	User       string             `json:"user"`
	Pass       string             `json:"pass"`
	Standalone RCStandaloneConfig `json:"standalone"`
}

// Config is the top-level JSON document.
type Config struct {
	Uploaders  map[string]UploaderConfig `json:"uploaders"`
	Core       CoreConfig                `json:"core"`
	RC         RCConfig                  `json:"rc"`
	RateLimits map[string]float64        `json:"rate_limits"`

	// StateDir holds the cache files (sa_quota_cache.json, ban_cache.json,
	// learned_sizes_cache.json, session_state.json). Not part of spec §6's
	// required fields, defaulted below.
	StateDir string `json:"state_dir"`
}

// Load reads and parses the JSON document at path. It does not validate;
// call Validate separately so callers can log every structural problem
// before aborting (spec §7 item 7).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", core.ErrConfigInvalid, path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", core.ErrConfigInvalid, path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Core.QuotaCapBytes <= 0 {
		c.Core.QuotaCapBytes = constants.DefaultQuotaCapBytes
	}
	if c.StateDir == "" {
		c.StateDir = "."
	}
	for name, up := range c.Uploaders {
		if up.ChunkedUpload.ChunkSize <= 0 {
			up.ChunkedUpload.ChunkSize = constants.DefaultChunkCount
		}
		c.Uploaders[name] = up
	}
}

// RateLimitDelays converts the raw delay-hours map into durations for
// internal/engine.NewClassifier.
func (c *Config) RateLimitDelays() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.RateLimits))
	for substr, hours := range c.RateLimits {
		out[substr] = time.Duration(hours * float64(time.Hour))
	}
	return out
}

// ParsedGenerateListTimeout parses an uploader's configured timeout, defaulting
// to 600s (spec §4.8) when absent or unparseable.
func (u UploaderConfig) ParsedGenerateListTimeout() time.Duration {
	if u.ChunkedUpload.GenerateListTimeout == "" {
		return 600 * time.Second
	}
	if d, err := time.ParseDuration(u.ChunkedUpload.GenerateListTimeout); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(u.ChunkedUpload.GenerateListTimeout); err == nil {
		return time.Duration(secs) * time.Second
	}
	return 600 * time.Second
}

// Credentials lists the uploader's credential pool: every regular file in
// CredentialPath, in deterministic (lexical) sort order (spec §6).
func (u UploaderConfig) Credentials() ([]core.Credential, error) {
	entries, err := os.ReadDir(u.CredentialPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading credential_path %s: %v", core.ErrConfigInvalid, u.CredentialPath, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	creds := make([]core.Credential, 0, len(names))
	for _, name := range names {
		creds = append(creds, core.Credential{
			ID:   strings.TrimSuffix(name, filepath.Ext(name)),
			Path: filepath.Join(u.CredentialPath, name),
		})
	}
	return creds, nil
}
