package driven

import (
	"context"

	"github.com/ericfisherdev/gamehub/internal/domain/model"
)

// UpstreamClient defines the driven port for the read-only Steam Web API calls.
// Implementations return typed upstream shapes unmodified and report every
// transport, HTTP, or decode failure as an error without retrying.
type UpstreamClient interface {
	GetProfile(ctx context.Context, cred model.CredentialPair) (*model.PlayerSummariesResponse, error)
	GetOwnedTitles(ctx context.Context, cred model.CredentialPair) (*model.OwnedGamesResponse, error)
	GetRecentTitles(ctx context.Context, cred model.CredentialPair, limit int) (*model.RecentGamesResponse, error)
	GetAchievements(ctx context.Context, cred model.CredentialPair, appID int64) (*model.PlayerAchievementsResponse, error)
}
