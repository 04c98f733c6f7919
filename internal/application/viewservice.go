package application

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/gamehub/internal/domain/model"
	"github.com/ericfisherdev/gamehub/internal/domain/port/driven"
)

const (
	topGamesLimit         = 10
	achievementGamesLimit = 3
)

// ViewConfig configures a ViewService.
type ViewConfig struct {
	RecentLimit  int
	StoreTimeout time.Duration
}

// ViewRequest is a request for the view of the account behind Token.
type ViewRequest struct {
	Token     string
	ClientIP  string
	UserAgent string
}

// ViewService assembles the front-end view from upstream data. Only the
// profile is essential; every other section degrades independently.
type ViewService struct {
	sessions *SessionService
	limiter  *RateLimiter
	creds    driven.CredentialStore
	upstream driven.UpstreamClient
	audit    *Auditor
	cfg      ViewConfig
	policy   *bluemonday.Policy
}

// NewViewService creates a ViewService with all required dependencies.
func NewViewService(
	sessions *SessionService,
	limiter *RateLimiter,
	creds driven.CredentialStore,
	upstream driven.UpstreamClient,
	audit *Auditor,
	cfg ViewConfig,
) *ViewService {
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 10
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	return &ViewService{
		sessions: sessions,
		limiter:  limiter,
		creds:    creds,
		upstream: upstream,
		audit:    audit,
		cfg:      cfg,
		policy:   bluemonday.StrictPolicy(),
	}
}

// FetchUserView validates the token, applies the data-call rate limit and
// builds the view for the bound account.
func (v *ViewService) FetchUserView(ctx context.Context, req ViewRequest) (*model.View, error) {
	accountHash, err := v.sessions.Validate(ctx, req.Token, req.ClientIP)
	if err != nil {
		return nil, err
	}

	entry := auditEntry{accountHash: accountHash, ip: req.ClientIP, userAgent: req.UserAgent}

	if err := v.limiter.Check(ctx, req.ClientIP, model.RateActionAPI); err != nil {
		if errors.Is(err, ErrRateLimited) {
			entry.action, entry.details = model.AuditDataRateLimited, "rate limit exceeded"
			v.audit.record(ctx, entry)
		}
		return nil, err
	}

	view, err := v.BuildView(ctx, accountHash)
	if err != nil {
		entry.action, entry.details = model.AuditDataError, dataErrorDetail(err)
		v.audit.record(ctx, entry)
		return nil, err
	}

	entry.action, entry.success = model.AuditDataRetrieved, true
	v.audit.record(ctx, entry)

	return view, nil
}

// BuildView resolves the account's credentials and assembles its view.
// A profile failure fails the whole view; failures of the owned, recent and
// achievement calls leave their sections null or empty.
func (v *ViewService) BuildView(ctx context.Context, accountHash string) (*model.View, error) {
	cred, err := v.resolve(ctx, accountHash)
	if err != nil {
		return nil, err
	}

	var (
		profile *model.PlayerSummariesResponse
		owned   *model.OwnedGamesResponse
		recent  *model.RecentGamesResponse
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = v.upstream.GetProfile(gctx, cred)
		return err
	})
	g.Go(func() error {
		var err error
		if owned, err = v.upstream.GetOwnedTitles(gctx, cred); err != nil {
			slog.Warn("owned titles unavailable", "account_hash", shortHash(accountHash), "error", err)
			owned = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if recent, err = v.upstream.GetRecentTitles(gctx, cred, v.cfg.RecentLimit); err != nil {
			slog.Warn("recent titles unavailable", "account_hash", shortHash(accountHash), "error", err)
			recent = nil
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfileUnavailable, err)
	}
	if profile == nil || len(profile.Response.Players) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrProfileUnavailable, errEmptyProfile)
	}

	view := &model.View{
		Player:       v.playerView(profile.Response.Players[0]),
		RecentGames:  []model.GameView{},
		TopGames:     []model.GameView{},
		Achievements: map[int64]model.AchievementSummary{},
	}

	if recent != nil {
		view.RecentGames = v.gameViews(recent.Response.Games)
	}

	if owned != nil {
		games := owned.Response.Games
		stats := ComputeStats(games)
		stats.MostPlayed = v.clean(stats.MostPlayed)
		view.Stats = &stats

		top := TopPlayed(games, topGamesLimit)
		view.TopGames = v.gameViews(top)
		view.Achievements = v.achievements(ctx, cred, accountHash, TopPlayed(top, achievementGamesLimit))
	}

	return view, nil
}

// errEmptyProfile guards against an upstream client returning no player
// without an error.
var errEmptyProfile = errors.New("profile response has no player")

func (v *ViewService) resolve(ctx context.Context, accountHash string) (model.CredentialPair, error) {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.StoreTimeout)
	defer cancel()

	cred, err := v.creds.Resolve(ctx, accountHash)
	if errors.Is(err, driven.ErrNotFound) {
		return model.CredentialPair{}, ErrSessionCredentialsMissing
	}
	if err != nil {
		if errors.Is(err, driven.ErrStoreCorruption) {
			slog.Error("credential store corrupted", "account_hash", shortHash(accountHash), "error", err)
		}
		return model.CredentialPair{}, fmt.Errorf("resolve credentials: %w", err)
	}
	return cred, nil
}

// achievements fetches summaries for games concurrently. A failed fetch only
// drops that game's entry.
func (v *ViewService) achievements(
	ctx context.Context,
	cred model.CredentialPair,
	accountHash string,
	games []model.SteamGame,
) map[int64]model.AchievementSummary {
	out := make(map[int64]model.AchievementSummary, len(games))
	var mu sync.Mutex

	var g errgroup.Group
	for _, game := range games {
		g.Go(func() error {
			resp, err := v.upstream.GetAchievements(ctx, cred, game.AppID)
			if err != nil {
				slog.Debug("achievements unavailable",
					"account_hash", shortHash(accountHash), "appid", game.AppID, "error", err)
				return nil
			}

			name := resp.PlayerStats.GameName
			if name == "" {
				name = game.Name
			}
			summary := SummarizeAchievements(v.clean(name), resp.PlayerStats.Achievements)

			mu.Lock()
			out[game.AppID] = summary
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (v *ViewService) playerView(p model.PlayerSummary) model.PlayerView {
	return model.PlayerView{
		SteamID:      p.SteamID,
		PersonaName:  v.clean(p.PersonaName),
		ProfileURL:   p.ProfileURL,
		Avatar:       p.Avatar,
		AvatarMedium: p.AvatarMedium,
		AvatarFull:   p.AvatarFull,
		PersonaState: p.PersonaState,
		Status:       PersonaStatus(p.PersonaState),
		CurrentGame:  v.clean(p.GameExtraInfo),
	}
}

func (v *ViewService) gameViews(games []model.SteamGame) []model.GameView {
	out := make([]model.GameView, 0, len(games))
	for _, g := range games {
		name := v.clean(g.Name)
		if name == "" {
			name = "Unknown"
		}
		out = append(out, model.GameView{
			AppID:           g.AppID,
			Name:            name,
			PlaytimeForever: g.PlaytimeForever,
			Playtime2Weeks:  g.Playtime2Weeks,
			Playtime:        FormatPlaytime(g.PlaytimeForever),
			IconURL:         IconURL(g.AppID, g.ImgIconURL),
		})
	}
	return out
}

// clean strips markup from upstream text. Sanitize entity-encodes the text
// it keeps, so the result is unescaped back to plain text for JSON.
func (v *ViewService) clean(s string) string {
	if s == "" {
		return s
	}
	return html.UnescapeString(v.policy.Sanitize(s))
}

// dataErrorDetail names the failure class for the audit log without
// including upstream payloads.
func dataErrorDetail(err error) string {
	switch {
	case errors.Is(err, ErrSessionCredentialsMissing):
		return "credentials missing"
	case errors.Is(err, driven.ErrStoreCorruption):
		return "store corruption"
	default:
		return "upstream: " + UpstreamReason(err)
	}
}
