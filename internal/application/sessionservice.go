package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/gamehub/internal/domain/model"
	"github.com/ericfisherdev/gamehub/internal/domain/port/driven"
	"github.com/ericfisherdev/gamehub/internal/metrics"
)

// tokenBytes is the amount of randomness in a session token (256 bits).
const tokenBytes = 32

// maxFieldLen bounds every client-supplied credential field.
const maxFieldLen = 256

// SessionConfig configures a SessionService.
type SessionConfig struct {
	TTL            time.Duration
	StoreTimeout   time.Duration
	BindIP         bool // Reject tokens presented from an address other than the one that created them.
	RevokeOnReauth bool // Deactivate an account's older sessions when it authenticates again.
}

// AuthRequest is a credential submission.
type AuthRequest struct {
	AccountID string
	APIKey    string
	ClientIP  string
	UserAgent string
}

// AuthResult is returned on successful authentication. Token is the only
// copy of the bearer token; the store keeps its hash.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
}

// SessionService issues and validates session tokens. It checks credentials
// upstream before anything is persisted and is the single authority on
// whether a token may be trusted.
type SessionService struct {
	creds    driven.CredentialStore
	sessions driven.SessionStore
	upstream driven.UpstreamClient
	limiter  *RateLimiter
	audit    *Auditor
	metrics  *metrics.Metrics
	cfg      SessionConfig
	now      func() time.Time

	accountLocks keyedMutex
}

// NewSessionService creates a SessionService with all required dependencies.
func NewSessionService(
	creds driven.CredentialStore,
	sessions driven.SessionStore,
	upstream driven.UpstreamClient,
	limiter *RateLimiter,
	audit *Auditor,
	cfg SessionConfig,
	m *metrics.Metrics,
) *SessionService {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	return &SessionService{
		creds:    creds,
		sessions: sessions,
		upstream: upstream,
		limiter:  limiter,
		audit:    audit,
		metrics:  m,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *SessionService) SetClock(now func() time.Time) {
	s.now = now
}

// HashToken returns the hex SHA-256 digest under which a token is stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Authenticate verifies a credential pair against the upstream API and, on
// success, stores it and mints a session token. Nothing is persisted when
// the check fails.
//
// Authentications for the same account are serialized so that concurrent
// attempts each count exactly once in login_count.
func (s *SessionService) Authenticate(ctx context.Context, req AuthRequest) (AuthResult, error) {
	accountID := strings.TrimSpace(req.AccountID)
	apiKey := strings.TrimSpace(req.APIKey)
	if err := validateCredentialFields(accountID, apiKey); err != nil {
		return AuthResult{}, err
	}

	entry := auditEntry{ip: req.ClientIP, userAgent: req.UserAgent}

	if err := s.limiter.Check(ctx, req.ClientIP, model.RateActionAuth); err != nil {
		if errors.Is(err, ErrRateLimited) {
			entry.action, entry.details = model.AuditAuthRateLimited, "rate limit exceeded"
			s.audit.record(ctx, entry)
			s.metrics.AuthAttempt("rate_limited")
		}
		return AuthResult{}, err
	}

	accountHash := s.creds.DeriveAccountHash(accountID)
	entry.accountHash = accountHash

	unlock := s.accountLocks.Lock(accountHash)
	defer unlock()

	cred := model.CredentialPair{AccountID: accountID, APIKey: apiKey}
	if _, err := s.upstream.GetProfile(ctx, cred); err != nil {
		slog.Info("credential check rejected", "account_hash", shortHash(accountHash), "error", err)
		entry.action, entry.details = model.AuditAuthFailed, "upstream check failed: "+UpstreamReason(err)
		s.audit.record(ctx, entry)
		s.metrics.AuthAttempt("invalid_credentials")
		return AuthResult{}, &InvalidCredentialsError{Err: err}
	}

	result, loginCount, err := s.persist(ctx, cred, accountHash, req)
	if err != nil {
		slog.Error("authentication failed", "account_hash", shortHash(accountHash), "error", err)
		entry.action, entry.details = model.AuditAuthError, "store failure"
		s.audit.record(ctx, entry)
		s.metrics.AuthAttempt("error")
		return AuthResult{}, err
	}

	entry.action, entry.success = model.AuditAuthSuccess, true
	entry.details = "login_count=" + strconv.FormatInt(loginCount, 10)
	s.audit.record(ctx, entry)
	s.metrics.AuthAttempt("success")

	return result, nil
}

// persist stores the credential pair and a new session. The caller holds the
// account lock.
func (s *SessionService) persist(
	ctx context.Context,
	cred model.CredentialPair,
	accountHash string,
	req AuthRequest,
) (AuthResult, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	now := s.now().UTC()

	rec, err := s.creds.Upsert(ctx, cred.AccountID, cred.APIKey, now)
	if err != nil {
		return AuthResult{}, 0, fmt.Errorf("store credentials: %w", err)
	}

	token, err := newToken()
	if err != nil {
		return AuthResult{}, 0, err
	}
	tokenHash := HashToken(token)

	session := model.Session{
		TokenHash:   tokenHash,
		AccountHash: accountHash,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.TTL),
		LastUsedAt:  now,
		IPAddress:   req.ClientIP,
		UserAgent:   req.UserAgent,
		Active:      true,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return AuthResult{}, 0, fmt.Errorf("create session: %w", err)
	}

	if s.cfg.RevokeOnReauth {
		n, err := s.sessions.DeactivateAccount(ctx, accountHash, tokenHash)
		if err != nil {
			return AuthResult{}, 0, fmt.Errorf("revoke previous sessions: %w", err)
		}
		if n > 0 {
			slog.Info("revoked previous sessions", "account_hash", shortHash(accountHash), "count", n)
		}
	}

	return AuthResult{Token: token, ExpiresAt: session.ExpiresAt}, rec.LoginCount, nil
}

// Validate checks a presented token and returns the account hash it is bound
// to. An expired session is flipped inactive on first detection.
func (s *SessionService) Validate(ctx context.Context, token, clientIP string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrSessionNotFound
	}
	tokenHash := HashToken(token)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	session, err := s.sessions.Get(ctx, tokenHash)
	if errors.Is(err, driven.ErrNotFound) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}

	unlock := s.accountLocks.Lock(session.AccountHash)
	defer unlock()

	now := s.now().UTC()

	switch session.State(now) {
	case model.SessionStateExpired:
		if session.Active {
			if err := s.sessions.Deactivate(ctx, tokenHash); err != nil && !errors.Is(err, driven.ErrNotFound) {
				slog.Warn("failed to deactivate expired session", "error", err)
			}
		}
		return "", ErrSessionExpired
	case model.SessionStateRevoked:
		return "", ErrSessionRevoked
	}

	if s.cfg.BindIP && session.IPAddress != clientIP {
		return "", ErrSessionIPMismatch
	}

	if err := s.sessions.Touch(ctx, tokenHash, now); err != nil {
		return "", fmt.Errorf("touch session: %w", err)
	}

	return session.AccountHash, nil
}

func validateCredentialFields(accountID, apiKey string) error {
	switch {
	case accountID == "":
		return &ValidationError{Field: "account_id", Message: "is required"}
	case apiKey == "":
		return &ValidationError{Field: "api_key", Message: "is required"}
	case len(accountID) > maxFieldLen:
		return &ValidationError{Field: "account_id", Message: "is too long"}
	case len(apiKey) > maxFieldLen:
		return &ValidationError{Field: "api_key", Message: "is too long"}
	}
	return nil
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// shortHash trims an account hash for log lines.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
