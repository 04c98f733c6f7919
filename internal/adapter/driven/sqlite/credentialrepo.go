package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/hkdf"

	"github.com/ericfisherdev/gamehub/internal/domain/model"
	"github.com/ericfisherdev/gamehub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port interface.
// Credential values are encrypted with AES-256-GCM before write and decrypted after read.
// Records are keyed by an HMAC-SHA256 of the account id, so the raw account id
// is never stored in the clear. The encryption key and the HMAC key are
// separate HKDF subkeys of the store key.
type CredentialRepo struct {
	db      *DB
	hashKey []byte
	aead    cipher.AEAD
}

// HKDF info strings for the two subkeys of the store key.
const (
	encryptionKeyInfo = "gamehub credential encryption v1"
	hashKeyInfo       = "gamehub account hash v1"
)

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes.
func NewCredentialRepo(db *DB, key []byte) (*CredentialRepo, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("credential key must be 32 bytes, got %d", len(key))
	}

	encKey, err := deriveSubkey(key, encryptionKeyInfo)
	if err != nil {
		return nil, err
	}
	hashKey, err := deriveSubkey(key, hashKeyInfo)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}

	return &CredentialRepo{db: db, hashKey: hashKey, aead: gcm}, nil
}

// deriveSubkey expands key into a 32-byte subkey bound to info.
func deriveSubkey(key []byte, info string) ([]byte, error) {
	sub := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte(info)), sub); err != nil {
		return nil, fmt.Errorf("derive %q subkey: %w", info, err)
	}
	return sub, nil
}

// DeriveAccountHash returns the hex HMAC-SHA256 of accountID keyed with the hash subkey.
func (r *CredentialRepo) DeriveAccountHash(accountID string) string {
	m := hmac.New(sha256.New, r.hashKey)
	_, _ = m.Write([]byte(accountID))
	return hex.EncodeToString(m.Sum(nil))
}

// Upsert stores or replaces the credential pair for accountID. The conflict
// branch increments login_count in the same statement, so concurrent upserts
// for one account never lose an increment.
func (r *CredentialRepo) Upsert(ctx context.Context, accountID, apiKey string, now time.Time) (model.CredentialRecord, error) {
	encKey, err := r.encrypt(apiKey)
	if err != nil {
		return model.CredentialRecord{}, err
	}
	encAccount, err := r.encrypt(accountID)
	if err != nil {
		return model.CredentialRecord{}, err
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return model.CredentialRecord{}, fmt.Errorf("generate credential id: %w", err)
	}

	const query = `
		INSERT INTO credentials (
			account_hash, id, api_key_encrypted, account_id_encrypted,
			created_at, last_login_at, login_count
		) VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(account_hash) DO UPDATE SET
			api_key_encrypted = excluded.api_key_encrypted,
			account_id_encrypted = excluded.account_id_encrypted,
			last_login_at = excluded.last_login_at,
			login_count = credentials.login_count + 1
		RETURNING id, created_at, last_login_at, login_count
	`

	accountHash := r.DeriveAccountHash(accountID)
	stamp := formatTime(now)

	rec := model.CredentialRecord{AccountHash: accountHash}
	var createdAt, lastLoginAt string
	err = r.db.Writer.QueryRowContext(ctx, query,
		accountHash, id.String(), encKey, encAccount, stamp, stamp,
	).Scan(&rec.ID, &createdAt, &lastLoginAt, &rec.LoginCount)
	if err != nil {
		return model.CredentialRecord{}, fmt.Errorf("upsert credential: %w", err)
	}

	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.CredentialRecord{}, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.LastLoginAt, err = parseTime(lastLoginAt); err != nil {
		return model.CredentialRecord{}, fmt.Errorf("parse last_login_at: %w", err)
	}
	return rec, nil
}

// Resolve retrieves and decrypts the credential pair stored under accountHash.
func (r *CredentialRepo) Resolve(ctx context.Context, accountHash string) (model.CredentialPair, error) {
	const query = `SELECT api_key_encrypted, account_id_encrypted FROM credentials WHERE account_hash = ?`

	var encKey, encAccount []byte
	err := r.db.Reader.QueryRowContext(ctx, query, accountHash).Scan(&encKey, &encAccount)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CredentialPair{}, driven.ErrNotFound
	}
	if err != nil {
		return model.CredentialPair{}, fmt.Errorf("resolve credential: %w", err)
	}

	apiKey, err := r.decrypt(encKey)
	if err != nil {
		return model.CredentialPair{}, fmt.Errorf("decrypt api key: %w", err)
	}
	accountID, err := r.decrypt(encAccount)
	if err != nil {
		return model.CredentialPair{}, fmt.Errorf("decrypt account id: %w", err)
	}

	return model.CredentialPair{AccountID: accountID, APIKey: apiKey}, nil
}

// encrypt seals plaintext with AES-256-GCM and returns nonce || ciphertext || tag.
func (r *CredentialRepo) encrypt(plaintext string) ([]byte, error) {
	nonce := make([]byte, r.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	return r.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// decrypt opens a value produced by encrypt. Any failure means the stored
// value or the key is wrong and is reported as ErrStoreCorruption.
func (r *CredentialRepo) decrypt(data []byte) (string, error) {
	nonceSize := r.aead.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", driven.ErrStoreCorruption)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := r.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", driven.ErrStoreCorruption, err)
	}

	return string(plaintext), nil
}
