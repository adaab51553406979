package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteJSONAtomic marshals v and replaces path's contents atomically via a
// temp-file-plus-rename, so a reader (or a crash) never observes a torn
// write. Every persistent cache in this module (quota, ban, distribution,
// session-state) goes through this helper; it is the sole writer of its
// cache file, per component.
func WriteJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: write temp file for %s: %v", ErrPersistenceFailed, filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: rename temp file for %s: %v", ErrPersistenceFailed, filepath.Base(path), err)
	}
	return nil
}

// ReadJSONIfExists reads path into v. A missing file is not an error: it
// leaves v untouched and returns false, so callers treat a fresh cache
// exactly like the reconcile-on-next-write path (spec error class 6).
func ReadJSONIfExists(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", filepath.Base(path), err)
	}
	return true, nil
}
