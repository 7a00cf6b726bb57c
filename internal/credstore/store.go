// Package credstore keeps the API bearer token encrypted at rest.
package credstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pkt.systems/kryptograf"
	"pkt.systems/kryptograf/keymgmt"
	"pkt.systems/pslog"
	"pkt.systems/wayfare/schema"
)

const descriptorName = "wayfare:api-token"

// Store manages the encrypted token file.
type Store struct {
	storePath string
	tokenPath string
	log       pslog.Logger
}

// NewStore initializes the key store and ensures the root key exists.
func NewStore(storePath, tokenPath string) (*Store, error) {
	return NewStoreWithLogger(storePath, tokenPath, nil)
}

// NewStoreWithLogger initializes the key store with logging.
func NewStoreWithLogger(storePath, tokenPath string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(storePath) == "" {
		return nil, fmt.Errorf("credentials key store path is required")
	}
	if strings.TrimSpace(tokenPath) == "" {
		return nil, fmt.Errorf("credentials token path is required")
	}
	if err := ensureKeyStore(storePath, logger); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(tokenPath), 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("key_store", storePath, "token_path", tokenPath)
	}
	return &Store{storePath: storePath, tokenPath: tokenPath, log: logger}, nil
}

func ensureKeyStore(path string, logger pslog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	store, err := keymgmt.LoadProto(path)
	if err != nil {
		if logger != nil {
			logger.Warn("credential key store load failed", "err", err)
		}
		return err
	}
	if _, err := store.EnsureRootKey(); err != nil {
		return err
	}
	return store.Commit()
}

// Token implements the API client's token source.
func (s *Store) Token(context.Context) (string, error) {
	return s.Load()
}

// Save encrypts and stores token.
func (s *Store) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: token is empty", schema.ErrInvalidRequest)
	}
	return s.write([]byte(token), false)
}

// Rotate re-encrypts the stored token under a freshly minted data key.
func (s *Store) Rotate() error {
	token, err := s.Load()
	if err != nil {
		return err
	}
	return s.write([]byte(token), true)
}

// Load decrypts the stored token. A missing token returns
// schema.ErrNoCredentials.
func (s *Store) Load() (string, error) {
	file, err := os.Open(s.tokenPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", schema.ErrNoCredentials
		}
		return "", err
	}
	defer func() { _ = file.Close() }()
	material, root, err := s.material(false)
	if err != nil {
		return "", err
	}
	reader, err := kryptograf.New(root).DecryptReader(file, material)
	if err != nil {
		if s.log != nil {
			s.log.Warn("credential load failed", "err", err)
		}
		return "", err
	}
	defer func() { _ = reader.Close() }()
	plain, err := io.ReadAll(reader)
	if err != nil {
		if s.log != nil {
			s.log.Warn("credential load failed", "err", err)
		}
		return "", err
	}
	token := strings.TrimSpace(string(plain))
	if token == "" {
		return "", schema.ErrNoCredentials
	}
	return token, nil
}

// Clear removes the stored token. Clearing a missing token is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.tokenPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		if s.log != nil {
			s.log.Warn("credential clear failed", "err", err)
		}
		return err
	}
	if s.log != nil {
		s.log.Info("credential cleared")
	}
	return nil
}

func (s *Store) write(plain []byte, rotate bool) error {
	material, root, err := s.material(rotate)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.tokenPath), "token-*.enc")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		if s.log != nil {
			s.log.Warn("credential write failed", "err", err)
		}
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		return fail(err)
	}
	writer, err := kryptograf.New(root).EncryptWriter(tmp, material)
	if err != nil {
		return fail(err)
	}
	if _, err := io.Copy(writer, bytes.NewReader(plain)); err != nil {
		_ = writer.Close()
		return fail(err)
	}
	if err := writer.Close(); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.tokenPath); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if s.log != nil {
		s.log.Info("credential saved", "rotated", rotate)
	}
	return nil
}

func (s *Store) material(rotate bool) (keymgmt.Material, keymgmt.RootKey, error) {
	store, err := keymgmt.LoadProto(s.storePath)
	if err != nil {
		return keymgmt.Material{}, keymgmt.RootKey{}, err
	}
	root, err := store.EnsureRootKey()
	if err != nil {
		return keymgmt.Material{}, keymgmt.RootKey{}, err
	}
	contextBytes := []byte(descriptorName)
	var material keymgmt.Material
	if rotate {
		material, err = keymgmt.MintDEK(root, contextBytes)
		if err != nil {
			return keymgmt.Material{}, keymgmt.RootKey{}, err
		}
		if err := store.SetDescriptor(descriptorName, material.Descriptor); err != nil {
			return keymgmt.Material{}, keymgmt.RootKey{}, err
		}
	} else {
		material, err = store.EnsureDescriptor(descriptorName, root, contextBytes)
		if err != nil {
			return keymgmt.Material{}, keymgmt.RootKey{}, err
		}
	}
	if err := store.Commit(); err != nil {
		if s.log != nil {
			s.log.Warn("credential key material commit failed", "err", err)
		}
		return keymgmt.Material{}, keymgmt.RootKey{}, err
	}
	return material, root, nil
}
