package model

// The types in this file mirror the Steam Web API response bodies field for
// field. They are decoded at the adapter boundary and never renamed; the
// view layer owns any reshaping.

// PlayerSummariesResponse is the body of ISteamUser/GetPlayerSummaries/v0002.
type PlayerSummariesResponse struct {
	Response struct {
		Players []PlayerSummary `json:"players"`
	} `json:"response"`
}

// PlayerSummary is one entry of a player summaries response.
type PlayerSummary struct {
	SteamID                  string `json:"steamid"`
	CommunityVisibilityState int    `json:"communityvisibilitystate"`
	ProfileState             int    `json:"profilestate"`
	PersonaName              string `json:"personaname"`
	ProfileURL               string `json:"profileurl"`
	Avatar                   string `json:"avatar"`
	AvatarMedium             string `json:"avatarmedium"`
	AvatarFull               string `json:"avatarfull"`
	PersonaState             int    `json:"personastate"`
	LastLogoff               int64  `json:"lastlogoff"`
	TimeCreated              int64  `json:"timecreated"`
	LocCountryCode           string `json:"loccountrycode,omitempty"`
	GameExtraInfo            string `json:"gameextrainfo,omitempty"`
	GameID                   string `json:"gameid,omitempty"`
}

// OwnedGamesResponse is the body of IPlayerService/GetOwnedGames/v0001.
type OwnedGamesResponse struct {
	Response struct {
		GameCount int         `json:"game_count"`
		Games     []SteamGame `json:"games"`
	} `json:"response"`
}

// RecentGamesResponse is the body of IPlayerService/GetRecentlyPlayedGames/v0001.
type RecentGamesResponse struct {
	Response struct {
		TotalCount int         `json:"total_count"`
		Games      []SteamGame `json:"games"`
	} `json:"response"`
}

// SteamGame is a game entry shared by the owned and recently played endpoints.
// Playtimes are in minutes.
type SteamGame struct {
	AppID           int64  `json:"appid"`
	Name            string `json:"name"`
	PlaytimeForever int    `json:"playtime_forever"`
	Playtime2Weeks  int    `json:"playtime_2weeks"`
	ImgIconURL      string `json:"img_icon_url"`
	ImgLogoURL      string `json:"img_logo_url,omitempty"`
	RTimeLastPlayed int64  `json:"rtime_last_played,omitempty"`
}

// PlayerAchievementsResponse is the body of ISteamUserStats/GetPlayerAchievements/v0001.
type PlayerAchievementsResponse struct {
	PlayerStats struct {
		SteamID      string             `json:"steamID"`
		GameName     string             `json:"gameName"`
		Achievements []SteamAchievement `json:"achievements"`
		Success      bool               `json:"success"`
		Error        string             `json:"error,omitempty"`
	} `json:"playerstats"`
}

// SteamAchievement is a single achievement entry. Achieved is 1 when unlocked.
type SteamAchievement struct {
	APIName    string `json:"apiname"`
	Achieved   int    `json:"achieved"`
	UnlockTime int64  `json:"unlocktime"`
}
