package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"pkt.systems/pslog"
)

// FileStore persists all keys as one JSON object on disk.
// Every read goes to disk so writes from other processes are visible.
type FileStore struct {
	path string
	mu   sync.Mutex
	log  pslog.Logger
}

// NewFileStore constructs a file store at path.
func NewFileStore(path string) (*FileStore, error) {
	return NewFileStoreWithLogger(path, nil)
}

// NewFileStoreWithLogger constructs a file store with logging.
func NewFileStoreWithLogger(path string, logger pslog.Logger) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("storage_file", path)
	}
	return &FileStore{path: path, log: logger}, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the value stored at key.
func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return "", false, err
	}
	value, ok := values[key]
	return value, ok, nil
}

// Set stores value at key.
func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	if err := s.save(values); err != nil {
		return err
	}
	if s.log != nil {
		s.log.Trace("storage set ok", "key", key)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	if err := s.save(values); err != nil {
		return err
	}
	if s.log != nil {
		s.log.Trace("storage delete ok", "key", key)
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}

// Watch calls onChange whenever the backing file is written, replaced or
// removed, until ctx is done.
func (s *FileStore) Watch(ctx context.Context, onChange func()) error {
	if onChange == nil {
		return errors.New("watch callback is required")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Saves rename a temp file over the target, so watch the directory.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return err
	}
	target := filepath.Clean(s.path)
	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				if s.log != nil {
					s.log.Debug("storage file changed", "op", event.Op.String())
				}
				onChange()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if s.log != nil {
					s.log.Warn("storage watch failed", "err", err)
				}
			}
		}
	}()
	if s.log != nil {
		s.log.Debug("storage watch started")
	}
	return nil
}

func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		if s.log != nil {
			s.log.Warn("storage load failed", "err", err)
		}
		return nil, err
	}
	values := map[string]string{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		if s.log != nil {
			s.log.Warn("storage load failed", "err", err)
		}
		return nil, err
	}
	return values, nil
}

func (s *FileStore) save(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		if s.log != nil {
			s.log.Warn("storage save failed", "err", err)
		}
		return err
	}
	tmp, err := os.CreateTemp(dir, "kv-*.json")
	if err != nil {
		if s.log != nil {
			s.log.Warn("storage save failed", "err", err)
		}
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		if s.log != nil {
			s.log.Warn("storage save failed", "err", err)
		}
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		if s.log != nil {
			s.log.Warn("storage save failed", "err", err)
		}
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		if s.log != nil {
			s.log.Warn("storage save failed", "err", err)
		}
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		if s.log != nil {
			s.log.Warn("storage save failed", "err", err)
		}
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		if s.log != nil {
			s.log.Warn("storage save failed", "err", err)
		}
		return err
	}
	return nil
}
