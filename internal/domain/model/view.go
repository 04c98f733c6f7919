package model

// View is the simplified, front-end-facing shape assembled from upstream data.
// Degraded sub-sections are null (Stats) or empty (lists, maps), never absent.
type View struct {
	Player       PlayerView                   `json:"player"`
	Stats        *StatsView                   `json:"stats"`
	RecentGames  []GameView                   `json:"recentGames"`
	TopGames     []GameView                   `json:"topGames"`
	Achievements map[int64]AchievementSummary `json:"achievements"`
}

// PlayerView is the profile section of a View.
type PlayerView struct {
	SteamID      string `json:"steamid"`
	PersonaName  string `json:"personaname"`
	ProfileURL   string `json:"profileurl"`
	Avatar       string `json:"avatar"`
	AvatarMedium string `json:"avatarmedium"`
	AvatarFull   string `json:"avatarfull"`
	PersonaState int    `json:"personastate"`
	Status       string `json:"status"`
	CurrentGame  string `json:"gameextrainfo,omitempty"`
}

// StatsView holds aggregates computed over the owned titles.
type StatsView struct {
	TotalGames             int    `json:"total_games"`
	TotalPlaytimeMinutes   int    `json:"total_playtime_minutes"`
	TotalPlaytime          string `json:"total_playtime"`
	MostPlayed             string `json:"most_played"`
	MostPlayedMinutes      int    `json:"most_played_minutes"`
	AveragePlaytimeMinutes int    `json:"average_playtime_minutes"`
	AveragePlaytime        string `json:"average_playtime"`
	GamesNeverPlayed       int    `json:"games_never_played"`
	GamesPlayedRecently    int    `json:"games_played_recently"`
}

// GameView is a uniformly formatted game entry.
type GameView struct {
	AppID           int64  `json:"appid"`
	Name            string `json:"name"`
	PlaytimeForever int    `json:"playtime_forever"`
	Playtime2Weeks  int    `json:"playtime_2weeks"`
	Playtime        string `json:"playtime"`
	IconURL         string `json:"img_icon_url"`
}

// AchievementSummary condenses a title's achievement list.
type AchievementSummary struct {
	GameName      string             `json:"game_name"`
	Total         int                `json:"total"`
	Unlocked      int                `json:"unlocked"`
	Percentage    float64            `json:"percentage"`
	RecentUnlocks []SteamAchievement `json:"recent_unlocks"`
}
