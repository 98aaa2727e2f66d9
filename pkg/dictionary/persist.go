package dictionary

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Marshal renders d as indented JSON. Keys are sorted, so unchanged input
// always yields identical bytes.
func Marshal(d Dictionary) ([]byte, error) {
	if d == nil {
		d = New()
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", " ")
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes d to path through a temporary file in the same directory, so a
// failed write never leaves a truncated table behind.
func Save(path string, d Dictionary) error {
	data, err := Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal dictionary: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	w := bufio.NewWriter(tmp)
	if _, err := w.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flush %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Load reads a table written by Save.
func Load(path string) (Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := New()
	if err := json.NewDecoder(bufio.NewReader(f)).Decode(&d); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	for _, entries := range d {
		for _, e := range entries {
			if e.Definitions == nil {
				e.Definitions = []string{}
			}
		}
	}
	return d, nil
}
