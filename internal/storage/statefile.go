package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/m-mizutani/goerr/v2"

	"github.com/ObiAU/airwatch/internal/alertstate"
)

// StateFile keeps the alert state as one JSON document, replaced
// atomically on every save.
type StateFile struct {
	path string
	mu   sync.Mutex
}

func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

func (f *StateFile) Path() string { return f.path }

func (f *StateFile) Load(ctx context.Context) (*alertstate.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read state file", goerr.V("path", f.path))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var rec alertstate.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, goerr.Wrap(err, "corrupt state file", goerr.V("path", f.path))
	}
	return &rec, nil
}

func (f *StateFile) Save(ctx context.Context, rec alertstate.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to encode state")
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return goerr.Wrap(err, "failed to create temp state file", goerr.V("dir", dir))
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return goerr.Wrap(err, "failed to write state file", goerr.V("path", tmp.Name()))
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return goerr.Wrap(err, "failed to sync state file", goerr.V("path", tmp.Name()))
	}
	if err := tmp.Close(); err != nil {
		return goerr.Wrap(err, "failed to close state file", goerr.V("path", tmp.Name()))
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return goerr.Wrap(err, "failed to replace state file", goerr.V("path", f.path))
	}
	return nil
}
