// Package steam implements the UpstreamClient port against the Steam Web API.
package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/gamehub/internal/domain/model"
	"github.com/ericfisherdev/gamehub/internal/domain/port/driven"
	"github.com/ericfisherdev/gamehub/internal/metrics"
)

// Compile-time interface satisfaction check.
var _ driven.UpstreamClient = (*Client)(nil)

// DefaultBaseURL is the production Steam Web API host.
const DefaultBaseURL = "https://api.steampowered.com"

const userAgent = "gamehub/1.0"

// maxBodyBytes caps how much of an upstream body is read. Owned-game lists for
// large libraries are the biggest responses and stay well below this.
const maxBodyBytes = 16 << 20

// Operation names, used in errors, logs and metrics.
const (
	OpProfile      = "profile"
	OpOwnedGames   = "owned_games"
	OpRecentGames  = "recent_games"
	OpAchievements = "achievements"
)

const (
	pathPlayerSummaries = "ISteamUser/GetPlayerSummaries/v0002/"
	pathOwnedGames      = "IPlayerService/GetOwnedGames/v0001/"
	pathRecentGames     = "IPlayerService/GetRecentlyPlayedGames/v0001/"
	pathAchievements    = "ISteamUserStats/GetPlayerAchievements/v0001/"
)

// Client implements the driven.UpstreamClient port over plain HTTP GETs.
type Client struct {
	http         *http.Client
	baseURL      *url.URL
	timeout      time.Duration
	ownedTimeout time.Duration
	metrics      *metrics.Metrics
}

// NewClient creates a Steam client with the following transport stack:
//  1. httpcache (honours upstream cache headers for repeated identical GETs),
//     backed by an LRU of DefaultCacheEntries responses of at most
//     DefaultMaxCachedBytes each
//  2. net/http default transport
//
// timeout bounds every call; the owned-games call gets half as long again
// since it returns the whole library.
func NewClient(baseURL string, timeout time.Duration, m *metrics.Metrics) (*Client, error) {
	cache, err := newResponseCache(DefaultCacheEntries, DefaultMaxCachedBytes)
	if err != nil {
		return nil, err
	}
	cacheTransport := httpcache.NewTransport(cache)
	return NewClientWithHTTPClient(cacheTransport.Client(), baseURL, timeout, m)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, timeout time.Duration, m *metrics.Metrics) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parsing base URL: unsupported scheme %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		http:         httpClient,
		baseURL:      u,
		timeout:      timeout,
		ownedTimeout: timeout + timeout/2,
		metrics:      m,
	}, nil
}

// GetProfile fetches the player summary for cred.AccountID. It doubles as the
// credential check: a profile response with no players is reported as
// ReasonNotFound.
func (c *Client) GetProfile(ctx context.Context, cred model.CredentialPair) (*model.PlayerSummariesResponse, error) {
	params := url.Values{"steamids": {cred.AccountID}}

	var out model.PlayerSummariesResponse
	if err := c.get(ctx, OpProfile, pathPlayerSummaries, cred.APIKey, params, c.timeout, &out); err != nil {
		return nil, err
	}
	if len(out.Response.Players) == 0 {
		return nil, &UpstreamError{Op: OpProfile, Reason: ReasonNotFound}
	}
	return &out, nil
}

// GetOwnedTitles fetches the full owned library including app info and
// played free titles.
func (c *Client) GetOwnedTitles(ctx context.Context, cred model.CredentialPair) (*model.OwnedGamesResponse, error) {
	params := url.Values{
		"steamid":                   {cred.AccountID},
		"include_appinfo":           {"1"},
		"include_played_free_games": {"1"},
		"include_free_sub":          {"1"},
	}

	var out model.OwnedGamesResponse
	if err := c.get(ctx, OpOwnedGames, pathOwnedGames, cred.APIKey, params, c.ownedTimeout, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetRecentTitles fetches up to limit titles played in the last two weeks.
func (c *Client) GetRecentTitles(ctx context.Context, cred model.CredentialPair, limit int) (*model.RecentGamesResponse, error) {
	params := url.Values{"steamid": {cred.AccountID}}
	if limit > 0 {
		params.Set("count", strconv.Itoa(limit))
	}

	var out model.RecentGamesResponse
	if err := c.get(ctx, OpRecentGames, pathRecentGames, cred.APIKey, params, c.timeout, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAchievements fetches the player's achievement list for one app. Steam
// answers titles without stats with success=false, reported as ReasonNotFound.
func (c *Client) GetAchievements(ctx context.Context, cred model.CredentialPair, appID int64) (*model.PlayerAchievementsResponse, error) {
	params := url.Values{
		"steamid": {cred.AccountID},
		"appid":   {strconv.FormatInt(appID, 10)},
	}

	var out model.PlayerAchievementsResponse
	if err := c.get(ctx, OpAchievements, pathAchievements, cred.APIKey, params, c.timeout, &out); err != nil {
		return nil, err
	}
	if !out.PlayerStats.Success {
		return nil, &UpstreamError{Op: OpAchievements, Reason: ReasonNotFound}
	}
	return &out, nil
}

// get performs one bounded GET and decodes the JSON body into out.
func (c *Client) get(
	ctx context.Context,
	op, path, apiKey string,
	params url.Values,
	timeout time.Duration,
	out any,
) (err error) {
	start := time.Now()
	defer func() {
		outcome := ReasonOf(err)
		if outcome == "" {
			outcome = "ok"
		}
		c.metrics.ObserveUpstream(op, outcome, time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	params.Set("key", apiKey)
	params.Set("format", "json")
	u := c.baseURL.ResolveReference(&url.URL{Path: path, RawQuery: params.Encode()})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &UpstreamError{Op: op, Reason: ReasonTransport, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// url.Error embeds the request URL, which carries the API key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		reason := ReasonTransport
		if isTimeout(err) {
			reason = ReasonTimeout
		}
		slog.Warn("steam request failed", "op", op, "reason", reason, "error", err)
		return &UpstreamError{Op: op, Reason: reason, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	slog.Debug("steam response",
		"op", op,
		"status", resp.StatusCode,
		"cached", resp.Header.Get(httpcache.XFromCache) == "1",
		"duration", time.Since(start),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return &UpstreamError{Op: op, Reason: ReasonUnauthorized, StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return &UpstreamError{Op: op, Reason: ReasonHTTPStatus, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		reason := ReasonDecode
		if isTimeout(err) {
			reason = ReasonTimeout
		}
		return &UpstreamError{Op: op, Reason: reason, StatusCode: resp.StatusCode, Err: err}
	}

	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
