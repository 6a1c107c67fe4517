package store

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

const fileMode = 0o600

// FileStore persists the credential slot as a single file.
//
// Writes go to a temporary file in the same directory and are renamed over the slot
// file, so readers in this or other processes see either the old or the new record.
type FileStore struct {
	path  string
	mu    sync.Mutex
	clock func() time.Time
	aead  aeadSealer
}

type aeadSealer interface {
	NonceSize() int
	Overhead() int
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// FileOption configures a FileStore.
type FileOption func(*FileStore) error

// WithSealKey seals records at rest with XChaCha20-Poly1305. key must be 32 bytes.
func WithSealKey(key []byte) FileOption {
	return func(s *FileStore) error {
		if len(key) != chacha20poly1305.KeySize {
			return fmt.Errorf("seal key must be %d bytes", chacha20poly1305.KeySize)
		}
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return err
		}
		s.aead = aead
		return nil
	}
}

// WithFileClock overrides the clock used for StoredAt.
func WithFileClock(clock func() time.Time) FileOption {
	return func(s *FileStore) error {
		if clock != nil {
			s.clock = clock
		}
		return nil
	}
}

// NewFileStore returns a store backed by path. The parent directory is created with
// 0700 permissions when missing.
func NewFileStore(path string, opts ...FileOption) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store path required")
	}
	s := &FileStore{
		path:  filepath.Clean(path),
		clock: time.Now,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s, nil
}

// Path returns the slot file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	plain, err := s.open(data)
	if err != nil {
		return "", false, err
	}
	record, err := Decode(plain)
	if err != nil {
		return "", false, err
	}
	return record.Token, true, nil
}

func (s *FileStore) Set(ctx context.Context, token string, expiresAt time.Time) error {
	if token == "" {
		return ErrEmptyToken
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	record := &Record{Token: token, StoredAt: s.clock().Unix()}
	if !expiresAt.IsZero() {
		record.ExpiresAt = expiresAt.Unix()
	}
	encoded, err := Encode(record)
	if err != nil {
		return err
	}
	sealed, err := s.seal(encoded)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replace(sealed)
}

func (s *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *FileStore) replace(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *FileStore) seal(plain []byte) ([]byte, error) {
	if s.aead == nil {
		return plain, nil
	}
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plain)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plain, []byte(s.path)), nil
}

func (s *FileStore) open(data []byte) ([]byte, error) {
	if s.aead == nil {
		return data, nil
	}
	if len(data) < s.aead.NonceSize()+s.aead.Overhead() {
		return nil, fmt.Errorf("%w: sealed record too short", ErrCorrupt)
	}
	nonce, sealed := data[:s.aead.NonceSize()], data[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, sealed, []byte(s.path))
	if err != nil {
		return nil, fmt.Errorf("%w: unseal failed", ErrCorrupt)
	}
	return plain, nil
}
