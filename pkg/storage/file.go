package storage

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/MrCodeEU/facelogin/pkg/logging"
)

const (
	// NonceSize is the size of the nonce used for encryption
	NonceSize = 24
	// KeySize is the size of the encryption key
	KeySize = 32
)

// FileStorage stores one JSON document per user under <dataDir>/users.
type FileStorage struct {
	dataDir           string
	encryptionEnabled bool
	encryptionKey     [KeySize]byte
	mu                sync.RWMutex
}

// NewFileStorage creates a new FileStorage instance.
func NewFileStorage(dataDir string, encryptionEnabled bool) (*FileStorage, error) {
	fs := &FileStorage{
		dataDir:           dataDir,
		encryptionEnabled: encryptionEnabled,
	}

	// Derive encryption key from machine-specific information
	if encryptionEnabled {
		fs.encryptionKey = deriveKey()
	}

	if err := os.MkdirAll(fs.usersDir(), 0700); err != nil {
		return nil, fmt.Errorf("failed to create users directory: %w", err)
	}

	return fs, nil
}

// deriveKey ties encrypted records to this machine and user.
func deriveKey() [KeySize]byte {
	var identity strings.Builder

	if machineID, err := os.ReadFile("/etc/machine-id"); err == nil {
		identity.Write(machineID)
	}
	if hostname, err := os.Hostname(); err == nil {
		identity.WriteString(hostname)
	}
	identity.WriteString(fmt.Sprintf("%d", os.Getuid()))
	identity.WriteString("facelogin-v1-salt")

	return sha256.Sum256([]byte(identity.String()))
}

func (fs *FileStorage) usersDir() string {
	return filepath.Join(fs.dataDir, "users")
}

func (fs *FileStorage) extension() string {
	if fs.encryptionEnabled {
		return ".enc"
	}
	return ".json"
}

// userPath returns the file path for a user's record. User ids are
// path-escaped so they can never leave the users directory.
func (fs *FileStorage) userPath(userID string) (string, error) {
	if err := ValidateUserID(userID); err != nil {
		return "", err
	}
	return filepath.Join(fs.usersDir(), url.PathEscape(userID)+fs.extension()), nil
}

// Get loads one user record.
func (fs *FileStorage) Get(_ context.Context, userID string) (*UserRecord, error) {
	path, err := fs.userPath(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.load(path)
}

// Put writes a record, replacing any previous enrollment.
func (fs *FileStorage) Put(_ context.Context, rec UserRecord) error {
	path, err := fs.userPath(rec.UserID)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.save(path, rec); err != nil {
		return err
	}
	logging.Debugf("Saved user data for: %s", rec.UserID)
	return nil
}

// List loads every record. A missing users directory is an empty store.
func (fs *FileStorage) List(_ context.Context) ([]UserRecord, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	entries, err := os.ReadDir(fs.usersDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []UserRecord{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageAccess, err)
	}

	records := make([]UserRecord, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fs.extension()) {
			continue
		}

		rec, err := fs.load(filepath.Join(fs.usersDir(), name))
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", name, err)
		}
		records = append(records, *rec)
	}

	sortRecords(records)
	return records, nil
}

// Update performs load, fn and write under the store lock.
func (fs *FileStorage) Update(_ context.Context, userID string, fn func(*UserRecord) error) (*UserRecord, error) {
	path, err := fs.userPath(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	rec, err := fs.load(path)
	if err != nil {
		return nil, err
	}
	if err := fn(rec); err != nil {
		return nil, err
	}
	rec.UserID = userID

	if err := fs.save(path, *rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes user data from storage.
func (fs *FileStorage) Delete(_ context.Context, userID string) error {
	path, err := fs.userPath(userID)
	if err != nil {
		return ErrUserNotFound
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user data: %w", err)
	}

	logging.Infof("Deleted user data for: %s", userID)
	return nil
}

func (fs *FileStorage) load(path string) (*UserRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to read user data: %w", err)
	}

	if fs.encryptionEnabled {
		data, err = fs.decrypt(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt user data: %w", err)
		}
	}

	var rec UserRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user data: %w", err)
	}
	return &rec, nil
}

// save writes through a temp file and rename so readers never see a partial record.
func (fs *FileStorage) save(path string, rec UserRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user data: %w", err)
	}

	if fs.encryptionEnabled {
		data, err = fs.encrypt(data)
		if err != nil {
			return fmt.Errorf("failed to encrypt user data: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageAccess, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write user data: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write user data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write user data: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to write user data: %w", err)
	}
	return nil
}

// encrypt encrypts data using NaCl secretbox.
func (fs *FileStorage) encrypt(plaintext []byte) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &fs.encryptionKey), nil
}

// decrypt decrypts data using NaCl secretbox.
func (fs *FileStorage) decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize {
		return nil, ErrEncryption
	}

	var nonce [NonceSize]byte
	copy(nonce[:], ciphertext[:NonceSize])

	plaintext, ok := secretbox.Open(nil, ciphertext[NonceSize:], &nonce, &fs.encryptionKey)
	if !ok {
		return nil, ErrEncryption
	}
	return plaintext, nil
}
