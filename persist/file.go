package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/sigrun/signal"
)

const (
	pendingDir   = "signal"
	scheduledDir = "schedule"
)

// FileStore keeps one JSON document per record:
//
//	{root}/signal/{symbol}_{strategy}.json    pending (active) record
//	{root}/schedule/{symbol}_{strategy}.json  scheduled record
//
// Writes go to a temp file in the target directory, fsync, then rename into
// place, so a crash leaves either the old or the new document.
type FileStore struct {
	root string
	log  zerolog.Logger
}

func NewFileStore(root string, log zerolog.Logger) (*FileStore, error) {
	for _, dir := range []string{pendingDir, scheduledDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("persist: create %s dir: %w", dir, err)
		}
	}
	return &FileStore{root: root, log: log}, nil
}

func (s *FileStore) ReadPending(k Key) (*signal.Active, error) {
	var rec signal.Active
	if err := s.read(pendingDir, k, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *FileStore) WritePending(k Key, a *signal.Active) error {
	return s.write(pendingDir, k, a)
}

func (s *FileStore) DeletePending(k Key) error {
	return s.remove(pendingDir, k)
}

func (s *FileStore) ReadScheduled(k Key) (*signal.Scheduled, error) {
	var rec signal.Scheduled
	if err := s.read(scheduledDir, k, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *FileStore) WriteScheduled(k Key, sched *signal.Scheduled) error {
	return s.write(scheduledDir, k, sched)
}

func (s *FileStore) DeleteScheduled(k Key) error {
	return s.remove(scheduledDir, k)
}

func (s *FileStore) path(dir string, k Key) string {
	return filepath.Join(s.root, dir, k.filename())
}

func (s *FileStore) read(dir string, k Key, out any) error {
	path := s.path(dir, k)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("persist: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("persist: decode %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) write(dir string, k Key, v any) error {
	path := s.path(dir, k)
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("persist: encode %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".swap-*")
	if err != nil {
		return fmt.Errorf("persist: stage %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("persist: stage %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("persist: sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("persist: close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("persist: swap %s: %w", path, err)
	}

	s.log.Debug().Str("path", path).Msg("record written")
	return nil
}

func (s *FileStore) remove(dir string, k Key) error {
	path := s.path(dir, k)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("persist: remove %s: %w", path, err)
	}
	return nil
}
