package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/gamehub/internal/application"
	"github.com/ericfisherdev/gamehub/internal/domain/model"
)

type sessionFixture struct {
	creds    *memCredentialStore
	sessions *memSessionStore
	counters *memRateLimitStore
	audit    *memAuditStore
	upstream *mockUpstream
	clock    *fakeClock
	limiter  *application.RateLimiter
	svc      *application.SessionService
}

func newSessionFixture(t *testing.T, cfg application.SessionConfig, authMax int) *sessionFixture {
	t.Helper()

	f := &sessionFixture{
		creds:    newMemCredentialStore(),
		sessions: newMemSessionStore(),
		counters: newMemRateLimitStore(),
		audit:    &memAuditStore{},
		upstream: &mockUpstream{},
		clock:    newFakeClock(epoch),
	}
	f.limiter = newTestLimiter(f.counters, f.clock, authMax)
	f.svc = application.NewSessionService(
		f.creds, f.sessions, f.upstream, f.limiter,
		application.NewAuditor(f.audit, time.Second), cfg, nil,
	)
	f.svc.SetClock(f.clock.Now)
	return f
}

func authReq(accountID string) application.AuthRequest {
	return application.AuthRequest{
		AccountID: accountID,
		APIKey:    "KEY-" + accountID,
		ClientIP:  "10.0.0.1",
		UserAgent: "test-agent",
	}
}

func TestAuthenticate_Success(t *testing.T) {
	f := newSessionFixture(t, application.SessionConfig{}, 5)
	ctx := context.Background()

	res, err := f.svc.Authenticate(ctx, authReq("76561197960287930"))
	require.NoError(t, err)

	assert.Len(t, res.Token, 43) // 32 bytes, unpadded base64url.
	assert.True(t, epoch.Add(24*time.Hour).Equal(res.ExpiresAt))

	sessions := f.sessions.all()
	require.Len(t, sessions, 1)
	s := sessions[0]
	assert.Equal(t, application.HashToken(res.Token), s.TokenHash)
	assert.NotEqual(t, res.Token, s.TokenHash)
	assert.Equal(t, "hash-76561197960287930", s.AccountHash)
	assert.Equal(t, "10.0.0.1", s.IPAddress)
	assert.Equal(t, "test-agent", s.UserAgent)
	assert.True(t, s.Active)

	pair, err := f.creds.Resolve(ctx, "hash-76561197960287930")
	require.NoError(t, err)
	assert.Equal(t, "KEY-76561197960287930", pair.APIKey)
	assert.Equal(t, "76561197960287930", pair.AccountID)

	assert.Equal(t, []model.AuditAction{model.AuditAuthSuccess}, f.audit.actions())
	for _, e := range f.audit.events {
		assert.NotContains(t, e.Details, "KEY-")
		assert.NotContains(t, e.Details, "76561197960287930")
	}
}

func TestAuthenticate_TokensAreUnique(t *testing.T) {
	f := newSessionFixture(t, application.SessionConfig{}, 100)
	seen := map[string]bool{}

	for i := 0; i < 20; i++ {
		res, err := f.svc.Authenticate(context.Background(), authReq("acct"))
		require.NoError(t, err)
		require.False(t, seen[res.Token])
		seen[res.Token] = true
	}
}

func TestAuthenticate_ProbeFailureStoresNothing(t *testing.T) {
	f := newSessionFixture(t, application.SessionConfig{}, 5)
	f.upstream.profile = func(model.CredentialPair) (*model.PlayerSummariesResponse, error) {
		return nil, &upstreamErr{reason: "unauthorized"}
	}

	_, err := f.svc.Authenticate(context.Background(), authReq("acct"))

	var ice *application.InvalidCredentialsError
	require.ErrorAs(t, err, &ice)
	assert.Equal(t, "unauthorized", application.UpstreamReason(err))

	assert.Equal(t, 0, f.creds.count())
	assert.Empty(t, f.sessions.all())
	assert.Equal(t, []model.AuditAction{model.AuditAuthFailed}, f.audit.actions())
}

func TestAuthenticate_Validation(t *testing.T) {
	tests := []struct {
		name  string
		req   application.AuthRequest
		field string
	}{
		{name: "missing account id", req: application.AuthRequest{APIKey: "k"}, field: "account_id"},
		{name: "blank account id", req: application.AuthRequest{AccountID: "   ", APIKey: "k"}, field: "account_id"},
		{name: "missing api key", req: application.AuthRequest{AccountID: "a"}, field: "api_key"},
		{name: "oversized api key", req: application.AuthRequest{AccountID: "a", APIKey: string(make([]byte, 300))}, field: "api_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSessionFixture(t, application.SessionConfig{}, 5)

			_, err := f.svc.Authenticate(context.Background(), tt.req)

			var ve *application.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Zero(t, f.upstream.calls())
			_, counted := f.counters.get(tt.req.ClientIP, model.RateActionAuth)
			assert.False(t, counted)
		})
	}
}

func TestAuthenticate_RateLimited(t *testing.T) {
	f := newSessionFixture(t, application.SessionConfig{}, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.svc.Authenticate(ctx, authReq("acct"))
		require.NoError(t, err)
	}

	_, err := f.svc.Authenticate(ctx, authReq("acct"))
	require.ErrorIs(t, err, application.ErrRateLimited)
	assert.Equal(t, 5, f.upstream.calls())

	actions := f.audit.actions()
	assert.Equal(t, model.AuditAuthRateLimited, actions[len(actions)-1])
}

func TestAuthenticate_StoreFailure(t *testing.T) {
	f := newSessionFixture(t, application.SessionConfig{}, 5)
	f.creds.upsertErr = errors.New("disk full")

	_, err := f.svc.Authenticate(context.Background(), authReq("acct"))
	require.Error(t, err)

	var ice *application.InvalidCredentialsError
	assert.False(t, errors.As(err, &ice))
	assert.Empty(t, f.sessions.all())
	assert.Equal(t, []model.AuditAction{model.AuditAuthError}, f.audit.actions())
}

func TestAuthenticate_ConcurrentSameAccountCountsEveryLogin(t *testing.T) {
	f := newSessionFixture(t, application.SessionConfig{}, 1000)
	ctx := context.Background()

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Authenticate(ctx, authReq("acct"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := f.creds.Get(ctx, "hash-acct")
	require.NoError(t, err)
	assert.Equal(t, int64(n), rec.LoginCount)
	assert.Len(t, f.sessions.all(), n)
}

func TestValidate_Lifecycle(t *testing.T) {
	f := newSessionFixture(t, application.SessionConfig{}, 5)
	ctx := context.Background()

	res, err := f.svc.Authenticate(ctx, authReq("acct"))
	require.NoError(t, err)

	accountHash, err := f.svc.Validate(ctx, res.Token, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "hash-acct", accountHash)

	f.clock.Advance(time.Hour)
	_, err = f.svc.Validate(ctx, res.Token, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, epoch.Add(time.Hour).Equal(f.sessions.all()[0].LastUsedAt))

	f.clock.Set(res.ExpiresAt.Add(-time.Nanosecond))
	_, err = f.svc.Validate(ctx, res.Token, "10.0.0.1")
	require.NoError(t, err)

	f.clock.Set(res.ExpiresAt)
	_, err = f.svc.Validate(ctx, res.Token, "10.0.0.1")
	require.ErrorIs(t, err, application.ErrSessionExpired)
	assert.False(t, f.sessions.all()[0].Active)

	_, err = f.svc.Validate(ctx, res.Token, "10.0.0.1")
	require.ErrorIs(t, err, application.ErrSessionExpired)
}

func TestValidate_UnknownToken(t *testing.T) {
	f := newSessionFixture(t, application.SessionConfig{}, 5)

	_, err := f.svc.Validate(context.Background(), "not-a-token", "10.0.0.1")
	require.ErrorIs(t, err, application.ErrSessionNotFound)

	_, err = f.svc.Validate(context.Background(), "", "10.0.0.1")
	require.ErrorIs(t, err, application.ErrSessionNotFound)
}

func TestValidate_ReauthKeepsOldSessionsByDefault(t *testing.T) {
	f := newSessionFixture(t, application.SessionConfig{}, 5)
	ctx := context.Background()

	first, err := f.svc.Authenticate(ctx, authReq("acct"))
	require.NoError(t, err)
	second, err := f.svc.Authenticate(ctx, authReq("acct"))
	require.NoError(t, err)

	_, err = f.svc.Validate(ctx, first.Token, "10.0.0.1")
	require.NoError(t, err)
	_, err = f.svc.Validate(ctx, second.Token, "10.0.0.1")
	require.NoError(t, err)
}

func TestValidate_RevokeOnReauth(t *testing.T) {
	f := newSessionFixture(t, application.SessionConfig{RevokeOnReauth: true}, 5)
	ctx := context.Background()

	first, err := f.svc.Authenticate(ctx, authReq("acct"))
	require.NoError(t, err)
	other, err := f.svc.Authenticate(ctx, authReq("other"))
	require.NoError(t, err)
	second, err := f.svc.Authenticate(ctx, authReq("acct"))
	require.NoError(t, err)

	_, err = f.svc.Validate(ctx, first.Token, "10.0.0.1")
	require.ErrorIs(t, err, application.ErrSessionRevoked)

	_, err = f.svc.Validate(ctx, second.Token, "10.0.0.1")
	require.NoError(t, err)
	_, err = f.svc.Validate(ctx, other.Token, "10.0.0.1")
	require.NoError(t, err)
}

func TestValidate_BindIP(t *testing.T) {
	f := newSessionFixture(t, application.SessionConfig{BindIP: true}, 5)
	ctx := context.Background()

	res, err := f.svc.Authenticate(ctx, authReq("acct"))
	require.NoError(t, err)

	_, err = f.svc.Validate(ctx, res.Token, "192.168.1.9")
	require.ErrorIs(t, err, application.ErrSessionIPMismatch)

	_, err = f.svc.Validate(ctx, res.Token, "10.0.0.1")
	require.NoError(t, err)
}

func TestHashToken(t *testing.T) {
	h := application.HashToken("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", h)
}
