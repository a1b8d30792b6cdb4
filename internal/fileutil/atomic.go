// Package fileutil holds the write-temp-then-rename helpers every
// persisted project file goes through.
package fileutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// TempSuffix is appended to the target path while a write is in flight.
const TempSuffix = ".tmp"

// AtomicWrite writes data to path+".tmp" and renames it over path. On any
// failure the temp file is removed and the original error returned; the
// committed file is never left half written. The parent directory must
// already exist.
func AtomicWrite(path string, data []byte) error {
	tmpPath := path + TempSuffix
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// AtomicWriteJSON encodes v with a two space indent plus trailing newline
// and writes it atomically. Nothing is written if encoding fails.
func AtomicWriteJSON(path string, v any) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return err
	}
	return AtomicWrite(path, data)
}

// MarshalJSON encodes v the way project files are stored on disk: indented,
// with HTML escaping off and a trailing newline.
func MarshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return buf.Bytes(), nil
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
