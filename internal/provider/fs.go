package provider

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SessionPayload is the wire form of a session blob on the instance control
// endpoint. File contents JSON-encode as base64.
type SessionPayload struct {
	SessionName string            `json:"session_name"`
	Files       map[string][]byte `json:"files"`
}

// ReadSessionDir loads every regular file under dir into an opaque blob map
// keyed by slash-separated relative path.
func ReadSessionDir(dir string) (map[string][]byte, error) {
	blobs := make(map[string][]byte)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		blobs[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blobs, nil
}

// WriteSessionDir replaces the contents of dir with the blob map. Paths are
// validated against directory escapes before anything is written.
func WriteSessionDir(dir string, blobs map[string][]byte) error {
	for name := range blobs {
		if strings.Contains(name, "..") || filepath.IsAbs(name) {
			return fmt.Errorf("invalid session file name %q", name)
		}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	for name, data := range blobs {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return err
		}
	}
	return nil
}
