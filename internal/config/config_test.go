package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/saupload/saupload/internal/core"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestLoadParsesFullDocument(t *testing.T) {
	dir := t.TempDir()
	credDir := filepath.Join(dir, "creds")
	if err := os.Mkdir(credDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(credDir, "sa1.json"), "{}")

	cfgPath := filepath.Join(dir, "config.json")
	writeFile(t, cfgPath, `{
		"uploaders": {
			"media": {
				"local_path": "/data/media",
				"remote_path": "gdrive:backup",
				"credential_path": "`+credDir+`",
				"engine_extras": {"fast-list": "true"},
				"chunked_upload": {"enabled": true, "chunk_size": 4, "generate_list_timeout": "120s"}
			}
		},
		"core": {"engine_binary_path": "/usr/bin/rclone", "quota_cap_bytes": 1000},
		"rc": {"url": "http://127.0.0.1:5572", "standalone": {"enabled": true, "addr": "127.0.0.1:5572"}},
		"rate_limits": {"customBlock": 2.5}
	}`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	up, ok := cfg.Uploaders["media"]
	if !ok {
		t.Fatal("expected uploader \"media\"")
	}
	if up.RemotePath != "gdrive:backup" {
		t.Errorf("unexpected remote_path %q", up.RemotePath)
	}
	if up.ChunkedUpload.ChunkSize != 4 {
		t.Errorf("expected chunk_size 4, got %d", up.ChunkedUpload.ChunkSize)
	}
	if cfg.Core.QuotaCapBytes != 1000 {
		t.Errorf("expected quota_cap_bytes 1000, got %d", cfg.Core.QuotaCapBytes)
	}
	if delay := cfg.RateLimitDelays()["customBlock"]; delay != 150*time.Minute {
		t.Errorf("expected 150m delay, got %v", delay)
	}
}

func TestLoadMissingFileIsConfigError(t *testing.T) {
	_, err := Load("/nonexistent/path/config.json")
	if !errors.Is(err, core.ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestApplyDefaultsFillsQuotaCapAndChunkSize(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	writeFile(t, cfgPath, `{
		"uploaders": {"x": {"local_path": "a", "remote_path": "b", "credential_path": "c"}},
		"core": {"engine_binary_path": "/bin/true"}
	}`)
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Core.QuotaCapBytes == 0 {
		t.Error("expected default quota cap to be applied")
	}
	if cfg.Uploaders["x"].ChunkedUpload.ChunkSize == 0 {
		t.Error("expected default chunk size to be applied")
	}
}

func TestValidateAggregatesAllProblems(t *testing.T) {
	cfg := &Config{
		Uploaders: map[string]UploaderConfig{
			"bad": {},
		},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"local_path", "remote_path", "credential_path", "engine_binary_path"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected validation error to mention %q, got %q", want, msg)
		}
	}
}

func TestValidatePassesForWellFormedConfig(t *testing.T) {
	dir := t.TempDir()
	credDir := filepath.Join(dir, "creds")
	os.Mkdir(credDir, 0o755)
	writeFile(t, filepath.Join(credDir, "sa1.json"), "{}")
	binPath := filepath.Join(dir, "rclone")
	writeFile(t, binPath, "#!/bin/sh\n")

	cfg := &Config{
		Uploaders: map[string]UploaderConfig{
			"media": {LocalPath: "/data", RemotePath: "remote:x", CredentialPath: credDir},
		},
		Core: CoreConfig{EngineBinaryPath: binPath, QuotaCapBytes: 100},
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected no validation error, got %v", err)
	}
}

func TestCredentialsSortedDeterministically(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"sa3.json", "sa1.json", "sa2.json"} {
		writeFile(t, filepath.Join(dir, name), "{}")
	}
	up := UploaderConfig{CredentialPath: dir}
	creds, err := up.Credentials()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"sa1", "sa2", "sa3"}
	for i, c := range creds {
		if c.ID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], c.ID)
		}
	}
}

func TestParsedGenerateListTimeoutDefaultsTo600s(t *testing.T) {
	up := UploaderConfig{}
	if got := up.ParsedGenerateListTimeout(); got != 600*time.Second {
		t.Errorf("expected 600s default, got %v", got)
	}
}

func TestParsedGenerateListTimeoutParsesDuration(t *testing.T) {
	up := UploaderConfig{ChunkedUpload: ChunkedUploadConfig{GenerateListTimeout: "45s"}}
	if got := up.ParsedGenerateListTimeout(); got != 45*time.Second {
		t.Errorf("expected 45s, got %v", got)
	}
}
