// Package datastore is a small durable key-value store backed by a single JSON
// file. Values are kept in memory as raw JSON and flushed to disk atomically,
// either on demand or by a periodic auto-save routine.
//
// In shared mode the file is the source of truth: every operation takes an
// OS lock on "<file>.lock", reloads the file if another process changed it
// and writes mutations through before releasing the lock.
package datastore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("datastore is closed")

// Config holds configuration options for the Store
type Config struct {
	FilePath         string
	AutoSaveInterval time.Duration // 0 disables auto-save
	BackupCount      int           // Number of backup files to keep
	Logger           zerolog.Logger

	// Shared lets several processes open the same file. Auto-save is not
	// used in this mode since every write goes straight to disk.
	Shared bool
}

// DefaultConfig returns a default configuration
func DefaultConfig(filePath string) *Config {
	return &Config{
		FilePath:         filePath,
		AutoSaveInterval: 10 * time.Second,
		BackupCount:      3,
		Logger:           zerolog.Nop(),
	}
}

// UpdateFunc receives the current value of a key (ok reports presence) and
// returns the value to store. Returning a nil value deletes the key.
type UpdateFunc func(current json.RawMessage, ok bool) (json.RawMessage, error)

// Store is a thread-safe JSON file backed key-value store.
type Store struct {
	data         map[string]json.RawMessage
	file         string
	mu           sync.RWMutex
	saveMu       sync.Mutex
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	config       *Config
	lock         *flock.Flock // shared mode only
	lastChecksum string
	closed       bool
}

// New creates a new Store with default configuration
func New(filePath string) (*Store, error) {
	return NewWithConfig(DefaultConfig(filePath))
}

// NewWithConfig creates a new Store with custom configuration
func NewWithConfig(config *Config) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.FilePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	dir := filepath.Dir(config.FilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	s := &Store{
		data:   make(map[string]json.RawMessage),
		file:   config.FilePath,
		config: config,
	}

	if config.Shared {
		s.lock = flock.New(config.FilePath + ".lock")
		// a missing file reads as empty and is created by the first write
		if err := s.shared(func() (bool, error) { return false, nil }); err != nil {
			return nil, fmt.Errorf("failed to load data from file: %w", err)
		}
		return s, nil
	}

	if _, err := os.Stat(config.FilePath); os.IsNotExist(err) {
		if err := s.writeFileAtomic([]byte("{}")); err != nil {
			return nil, fmt.Errorf("failed to create empty JSON file: %w", err)
		}
	} else if err == nil {
		if err := s.loadFromFile(); err != nil {
			return nil, fmt.Errorf("failed to load data from file: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to check file existence: %w", err)
	}

	if config.AutoSaveInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.wg.Add(1)
		go s.autoSave(ctx)
	}

	return s, nil
}

// Get returns a copy of the raw value stored under key.
func (s *Store) Get(key string) (value json.RawMessage, ok bool, err error) {
	err = s.read(func() {
		var current json.RawMessage
		if current, ok = s.data[key]; ok {
			value = append(json.RawMessage(nil), current...)
		}
	})
	return value, ok, err
}

// Put stores value under key.
func (s *Store) Put(key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("value for %q is not valid JSON", key)
	}
	return s.write(func() (bool, error) {
		s.data[key] = append(json.RawMessage(nil), value...)
		return true, nil
	})
}

// Update runs a read-modify-write on key while holding the store's write
// lock, so concurrent updates of the same key never lose writes. In shared
// mode the lock spans processes.
func (s *Store) Update(key string, fn UpdateFunc) error {
	return s.write(func() (bool, error) {
		current, ok := s.data[key]
		next, err := fn(append(json.RawMessage(nil), current...), ok)
		if err != nil {
			return false, err
		}
		if next == nil {
			delete(s.data, key)
			return ok, nil
		}
		if !json.Valid(next) {
			return false, fmt.Errorf("value for %q is not valid JSON", key)
		}
		s.data[key] = append(json.RawMessage(nil), next...)
		return true, nil
	})
}

// Delete removes a key
func (s *Store) Delete(key string) error {
	return s.write(func() (bool, error) {
		_, ok := s.data[key]
		delete(s.data, key)
		return ok, nil
	})
}

// Keys returns all keys in sorted order.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	err := s.read(func() {
		keys = make([]string, 0, len(s.data))
		for k := range s.data {
			keys = append(keys, k)
		}
	})
	sort.Strings(keys)
	return keys, err
}

func (s *Store) read(fn func()) error {
	if s.config.Shared {
		return s.shared(func() (bool, error) {
			fn()
			return false, nil
		})
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	fn()
	return nil
}

// write runs fn, which reports whether it changed the data.
func (s *Store) write(fn func() (bool, error)) error {
	if s.config.Shared {
		return s.shared(fn)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	_, err := fn()
	return err
}

// shared runs fn under the file lock against a fresh copy of the file and
// persists the result if fn changed it.
func (s *Store) shared(fn func() (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock %s: %w", s.lock.Path(), err)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.config.Logger.Error().Err(err).Str("file", s.lock.Path()).Msg("Failed to release file lock")
		}
	}()

	if err := s.refresh(); err != nil {
		return err
	}
	changed, err := fn()
	if err != nil || !changed {
		return err
	}

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		s.lastChecksum = ""
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	if err := s.writeSnapshot(data); err != nil {
		// force the next call to reload what is really on disk
		s.lastChecksum = ""
		return err
	}
	return nil
}

// refresh reloads the file when its content differs from the last load or
// save.
func (s *Store) refresh() error {
	raw, err := os.ReadFile(s.file)
	if errors.Is(err, fs.ErrNotExist) {
		s.data = make(map[string]json.RawMessage)
		s.lastChecksum = ""
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if checksumOf(raw) == s.lastChecksum {
		return nil
	}
	return s.parse(raw)
}

// Flush forces an immediate save to disk. Shared stores have nothing
// pending.
func (s *Store) Flush() error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if s.config.Shared {
		return nil
	}
	return s.saveToFile()
}

// Close stops the auto-save routine and performs a final save.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	if s.config.Shared {
		return nil
	}
	return s.saveToFile()
}

// saveToFile saves data to disk with atomic write and integrity checking
func (s *Store) saveToFile() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	data, err := json.MarshalIndent(s.data, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	return s.writeSnapshot(data)
}

// writeSnapshot backs up the current file and atomically replaces it with
// data. Callers serialize it: saveMu in single-process mode, the store lock
// in shared mode.
func (s *Store) writeSnapshot(data []byte) error {
	checksum := checksumOf(data)
	if checksum == s.lastChecksum {
		return nil
	}

	if s.config.BackupCount > 0 {
		if err := s.createBackup(); err != nil {
			s.config.Logger.Warn().Err(err).Str("file", s.file).Msg("Failed to create backup")
		}
	}

	if err := s.writeFileAtomic(data); err != nil {
		return err
	}
	if err := s.verifyFile(data); err != nil {
		return fmt.Errorf("file verification failed: %w", err)
	}

	s.lastChecksum = checksum
	return nil
}

// loadFromFile loads data from disk with validation
func (s *Store) loadFromFile() error {
	raw, err := os.ReadFile(s.file)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return s.parse(raw)
}

func (s *Store) parse(raw []byte) error {
	var temp map[string]json.RawMessage
	if err := json.Unmarshal(raw, &temp); err != nil {
		return fmt.Errorf("invalid JSON format: %w", err)
	}
	if temp == nil {
		temp = make(map[string]json.RawMessage)
	}

	s.data = temp
	s.lastChecksum = checksumOf(raw)
	return nil
}

// writeFileAtomic writes to a temporary file, syncs it and renames it over
// the target.
func (s *Store) writeFileAtomic(data []byte) error {
	tmpFile := s.file + ".tmp"

	f, err := os.OpenFile(tmpFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpFile)
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpFile)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	f.Close()

	if err := os.Rename(tmpFile, s.file); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (s *Store) verifyFile(expected []byte) error {
	actual, err := os.ReadFile(s.file)
	if err != nil {
		return fmt.Errorf("failed to read file for verification: %w", err)
	}
	if checksumOf(actual) != checksumOf(expected) {
		return fmt.Errorf("file checksum mismatch")
	}
	return nil
}

// createBackup copies the current file to a timestamped backup.
func (s *Store) createBackup() error {
	if _, err := os.Stat(s.file); os.IsNotExist(err) {
		return nil
	}

	backupFile := fmt.Sprintf("%s.backup.%s", s.file, time.Now().Format("20060102_150405.000000000"))

	src, err := os.Open(s.file)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(backupFile)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}

	s.cleanupOldBackups()
	return nil
}

// cleanupOldBackups removes the oldest backups beyond the configured limit.
func (s *Store) cleanupOldBackups() {
	matches, err := filepath.Glob(s.file + ".backup.*")
	if err != nil || len(matches) <= s.config.BackupCount {
		return
	}

	// backup names embed a sortable timestamp
	sort.Strings(matches)
	for _, path := range matches[:len(matches)-s.config.BackupCount] {
		os.Remove(path)
	}
}

func (s *Store) autoSave(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.AutoSaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.saveToFile(); err != nil {
				s.config.Logger.Error().Err(err).Str("file", s.file).Msg("Auto-save failed")
			}
		}
	}
}

func checksumOf(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
