// Package keyfile loads or creates the process-wide symmetric key that
// protects stored credentials.
package keyfile

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the length of the derived key in bytes (AES-256).
	KeySize = 32

	// Iterations is the PBKDF2-HMAC-SHA256 work factor used when a new key
	// is generated.
	Iterations = 600_000

	passwordSize = 32
	saltSize     = 16

	// filePerm restricts the key file to its owner.
	filePerm fs.FileMode = 0o600
)

// ErrInvalidKey is returned when an existing key file does not decode to a
// KeySize-byte key.
var ErrInvalidKey = errors.New("key file does not contain a valid key")

// LoadOrCreate returns the key stored at path, generating and persisting a new
// one if the file does not exist. An existing file with permissions wider
// than owner read/write is tightened to 0600.
//
// If the key file is lost, previously stored credentials are unrecoverable.
// Users re-authenticate and their credentials are stored again.
func LoadOrCreate(path string) ([]byte, error) {
	key, err := load(path)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	key, err = Generate(rand.Reader)
	if err != nil {
		return nil, err
	}
	if err := write(path, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Generate derives a fresh key from random password and salt material read
// from r, strengthened with PBKDF2.
func Generate(r io.Reader) ([]byte, error) {
	password := make([]byte, passwordSize)
	if _, err := io.ReadFull(r, password); err != nil {
		return nil, fmt.Errorf("read key password: %w", err)
	}
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(r, salt); err != nil {
		return nil, fmt.Errorf("read key salt: %w", err)
	}
	return pbkdf2.Key(password, salt, Iterations, KeySize, sha256.New), nil
}

func load(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	key, err := base64.URLEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil || len(key) != KeySize {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKey, path)
	}

	if info.Mode().Perm()&^filePerm != 0 {
		if err := os.Chmod(path, filePerm); err != nil {
			return nil, fmt.Errorf("restrict key file permissions: %w", err)
		}
	}
	return key, nil
}

// write persists key with owner-only permissions. The file is created
// exclusively so a concurrently created key is never overwritten.
func write(path string, key []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create key directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return fmt.Errorf("create key file: %w", err)
	}
	if _, err := f.WriteString(base64.URLEncoding.EncodeToString(key)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write key file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close key file: %w", err)
	}
	// OpenFile permissions are filtered by the umask; make them exact.
	if err := os.Chmod(path, filePerm); err != nil {
		return fmt.Errorf("restrict key file permissions: %w", err)
	}
	return nil
}
