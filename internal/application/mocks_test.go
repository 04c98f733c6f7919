package application_test

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/ericfisherdev/gamehub/internal/domain/model"
	"github.com/ericfisherdev/gamehub/internal/domain/port/driven"
)

// --- Mock implementations ---

// memCredentialStore keeps credentials in memory. Upsert reads and writes in
// separate critical sections so that unserialized callers lose updates.
type memCredentialStore struct {
	mu        sync.Mutex
	records   map[string]model.CredentialRecord
	pairs     map[string]model.CredentialPair
	upsertErr error
}

func newMemCredentialStore() *memCredentialStore {
	return &memCredentialStore{
		records: map[string]model.CredentialRecord{},
		pairs:   map[string]model.CredentialPair{},
	}
}

func (m *memCredentialStore) DeriveAccountHash(accountID string) string {
	return "hash-" + accountID
}

func (m *memCredentialStore) Upsert(_ context.Context, accountID, apiKey string, now time.Time) (model.CredentialRecord, error) {
	if m.upsertErr != nil {
		return model.CredentialRecord{}, m.upsertErr
	}
	hash := m.DeriveAccountHash(accountID)

	m.mu.Lock()
	rec, ok := m.records[hash]
	m.mu.Unlock()

	runtime.Gosched()

	if !ok {
		rec = model.CredentialRecord{ID: "cred-" + accountID, AccountHash: hash, CreatedAt: now}
	}
	rec.LastLoginAt = now
	rec.LoginCount++

	m.mu.Lock()
	m.records[hash] = rec
	m.pairs[hash] = model.CredentialPair{AccountID: accountID, APIKey: apiKey}
	m.mu.Unlock()

	return rec, nil
}

func (m *memCredentialStore) Resolve(_ context.Context, accountHash string) (model.CredentialPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pairs[accountHash]
	if !ok {
		return model.CredentialPair{}, driven.ErrNotFound
	}
	return p, nil
}

func (m *memCredentialStore) Get(_ context.Context, accountHash string) (model.CredentialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[accountHash]
	if !ok {
		return model.CredentialRecord{}, driven.ErrNotFound
	}
	return r, nil
}

func (m *memCredentialStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]model.Session
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: map[string]model.Session{}}
}

func (m *memSessionStore) Create(_ context.Context, s model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.TokenHash] = s
	return nil
}

func (m *memSessionStore) Get(_ context.Context, tokenHash string) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[tokenHash]
	if !ok {
		return model.Session{}, driven.ErrNotFound
	}
	return s, nil
}

func (m *memSessionStore) Touch(_ context.Context, tokenHash string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[tokenHash]
	if !ok {
		return driven.ErrNotFound
	}
	s.LastUsedAt = at
	m.sessions[tokenHash] = s
	return nil
}

func (m *memSessionStore) Deactivate(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[tokenHash]
	if !ok {
		return driven.ErrNotFound
	}
	s.Active = false
	m.sessions[tokenHash] = s
	return nil
}

func (m *memSessionStore) DeactivateAccount(_ context.Context, accountHash, keepTokenHash string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, s := range m.sessions {
		if s.AccountHash == accountHash && k != keepTokenHash && s.Active {
			s.Active = false
			m.sessions[k] = s
			n++
		}
	}
	return n, nil
}

func (m *memSessionStore) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, s := range m.sessions {
		if s.Active && !now.Before(s.ExpiresAt) {
			s.Active = false
			m.sessions[k] = s
			n++
		}
	}
	return n, nil
}

func (m *memSessionStore) PurgeInactive(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, s := range m.sessions {
		if !s.Active && s.ExpiresAt.Before(cutoff) {
			delete(m.sessions, k)
			n++
		}
	}
	return n, nil
}

func (m *memSessionStore) all() []model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type rateKey struct {
	ip     string
	action model.RateAction
}

// memRateLimitStore splits Get and Save like a real store would.
type memRateLimitStore struct {
	mu       sync.Mutex
	counters map[rateKey]model.RateLimitCounter
	getErr   error
}

func newMemRateLimitStore() *memRateLimitStore {
	return &memRateLimitStore{counters: map[rateKey]model.RateLimitCounter{}}
}

func (m *memRateLimitStore) Get(_ context.Context, ip string, action model.RateAction) (model.RateLimitCounter, error) {
	if m.getErr != nil {
		return model.RateLimitCounter{}, m.getErr
	}
	m.mu.Lock()
	c, ok := m.counters[rateKey{ip, action}]
	m.mu.Unlock()

	runtime.Gosched()

	if !ok {
		return model.RateLimitCounter{}, driven.ErrNotFound
	}
	return c, nil
}

func (m *memRateLimitStore) Save(_ context.Context, c model.RateLimitCounter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[rateKey{c.IPAddress, c.Action}] = c
	return nil
}

func (m *memRateLimitStore) PurgeIdle(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, c := range m.counters {
		if c.WindowStart.Before(cutoff) && (c.BlockedUntil.IsZero() || c.BlockedUntil.Before(cutoff)) {
			delete(m.counters, k)
			n++
		}
	}
	return n, nil
}

func (m *memRateLimitStore) get(ip string, action model.RateAction) (model.RateLimitCounter, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counters[rateKey{ip, action}]
	return c, ok
}

type memAuditStore struct {
	mu     sync.Mutex
	events []model.AuditEvent
}

func (m *memAuditStore) Record(_ context.Context, e model.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memAuditStore) actions() []model.AuditAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.AuditAction, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Action)
	}
	return out
}

// upstreamErr stands in for the Steam adapter's error type.
type upstreamErr struct {
	reason string
}

func (e *upstreamErr) Error() string          { return "steam: " + e.reason }
func (e *upstreamErr) UpstreamReason() string { return e.reason }

type mockUpstream struct {
	mu           sync.Mutex
	profileCalls int

	profile      func(cred model.CredentialPair) (*model.PlayerSummariesResponse, error)
	owned        func(cred model.CredentialPair) (*model.OwnedGamesResponse, error)
	recent       func(cred model.CredentialPair, limit int) (*model.RecentGamesResponse, error)
	achievements func(cred model.CredentialPair, appID int64) (*model.PlayerAchievementsResponse, error)
}

func (m *mockUpstream) GetProfile(_ context.Context, cred model.CredentialPair) (*model.PlayerSummariesResponse, error) {
	m.mu.Lock()
	m.profileCalls++
	m.mu.Unlock()
	if m.profile == nil {
		return profileResponse(cred.AccountID, "Player"), nil
	}
	return m.profile(cred)
}

func (m *mockUpstream) GetOwnedTitles(_ context.Context, cred model.CredentialPair) (*model.OwnedGamesResponse, error) {
	if m.owned == nil {
		return &model.OwnedGamesResponse{}, nil
	}
	return m.owned(cred)
}

func (m *mockUpstream) GetRecentTitles(_ context.Context, cred model.CredentialPair, limit int) (*model.RecentGamesResponse, error) {
	if m.recent == nil {
		return &model.RecentGamesResponse{}, nil
	}
	return m.recent(cred, limit)
}

func (m *mockUpstream) GetAchievements(_ context.Context, cred model.CredentialPair, appID int64) (*model.PlayerAchievementsResponse, error) {
	if m.achievements == nil {
		return nil, &upstreamErr{reason: "not_found"}
	}
	return m.achievements(cred, appID)
}

func (m *mockUpstream) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profileCalls
}

func profileResponse(steamID, name string) *model.PlayerSummariesResponse {
	var resp model.PlayerSummariesResponse
	resp.Response.Players = []model.PlayerSummary{{
		SteamID:      steamID,
		PersonaName:  name,
		ProfileURL:   "https://steamcommunity.com/profiles/" + steamID,
		AvatarFull:   "https://avatars.example/full.jpg",
		PersonaState: 1,
	}}
	return &resp
}

// fakeClock is a settable time source safe for concurrent use.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
