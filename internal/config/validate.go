package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/saupload/saupload/internal/core"
)

// Validate checks structural correctness and returns every problem found,
// joined into a single error (spec §7 item 7: a fatal configuration error
// must abort before any uploader work, so the operator wants the whole list
// at once, not one error per run).
func (c *Config) Validate() error {
	var problems []string

	if len(c.Uploaders) == 0 {
		problems = append(problems, "uploaders: at least one uploader must be configured")
	}
	if c.Core.EngineBinaryPath == "" {
		problems = append(problems, "core.engine_binary_path: required")
	} else if _, err := os.Stat(c.Core.EngineBinaryPath); err != nil {
		problems = append(problems, fmt.Sprintf("core.engine_binary_path %q: %v", c.Core.EngineBinaryPath, err))
	}
	if c.Core.QuotaCapBytes <= 0 {
		problems = append(problems, "core.quota_cap_bytes: must be positive")
	}

	for name, up := range c.Uploaders {
		prefix := fmt.Sprintf("uploaders.%s", name)
		if up.LocalPath == "" {
			problems = append(problems, prefix+".local_path: required")
		}
		if up.RemotePath == "" {
			problems = append(problems, prefix+".remote_path: required")
		}
		if up.CredentialPath == "" {
			problems = append(problems, prefix+".credential_path: required")
		} else if info, err := os.Stat(up.CredentialPath); err != nil {
			problems = append(problems, fmt.Sprintf("%s.credential_path %q: %v", prefix, up.CredentialPath, err))
		} else if !info.IsDir() {
			problems = append(problems, fmt.Sprintf("%s.credential_path %q: not a directory", prefix, up.CredentialPath))
		}
		if up.ChunkedUpload.Enabled && up.ChunkedUpload.ChunkSize <= 0 {
			problems = append(problems, prefix+".chunked_upload.chunk_size: must be positive when enabled")
		}
	}

	if c.RC.Standalone.Enabled && c.RC.Standalone.Addr == "" {
		problems = append(problems, "rc.standalone.addr: required when rc.standalone.enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", core.ErrConfigInvalid, strings.Join(problems, "; "))
	}
	return nil
}
