package application

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/ericfisherdev/gamehub/internal/domain/model"
)

const iconURLFormat = "https://media.steampowered.com/steamcommunity/public/images/apps/%d/%s.jpg"

// DefaultIconURL is used for titles that have no icon hash.
const DefaultIconURL = "https://community.cloudflare.steamstatic.com/public/images/applications/store/defaultappimage.jpg"

// FormatPlaytime renders a minute count: "45m", "1h 30m", "2d 3h" or "2d".
func FormatPlaytime(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	if minutes < 60 {
		return strconv.Itoa(minutes) + "m"
	}
	if minutes < 24*60 {
		return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
	}

	days := minutes / (24 * 60)
	hours := (minutes % (24 * 60)) / 60
	if hours == 0 {
		return strconv.Itoa(days) + "d"
	}
	return fmt.Sprintf("%dd %dh", days, hours)
}

// TotalPlaytime sums playtime_forever across games.
func TotalPlaytime(games []model.SteamGame) int {
	total := 0
	for _, g := range games {
		total += g.PlaytimeForever
	}
	return total
}

// MostPlayed returns the game with the highest playtime_forever. Ties go to
// the first occurrence. ok is false for an empty list.
func MostPlayed(games []model.SteamGame) (game model.SteamGame, ok bool) {
	if len(games) == 0 {
		return model.SteamGame{}, false
	}
	best := 0
	for i := 1; i < len(games); i++ {
		if games[i].PlaytimeForever > games[best].PlaytimeForever {
			best = i
		}
	}
	return games[best], true
}

// AveragePlaytime is the integer mean of playtime_forever, 0 for no games.
func AveragePlaytime(games []model.SteamGame) int {
	if len(games) == 0 {
		return 0
	}
	return TotalPlaytime(games) / len(games)
}

// TopPlayed returns up to n games ordered by playtime_forever descending.
// Equal playtimes keep their input order. The input is not modified.
func TopPlayed(games []model.SteamGame, n int) []model.SteamGame {
	sorted := make([]model.SteamGame, len(games))
	copy(sorted, games)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PlaytimeForever > sorted[j].PlaytimeForever
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// IconURL builds the community CDN icon URL for a title.
func IconURL(appID int64, hash string) string {
	if hash == "" {
		return DefaultIconURL
	}
	return fmt.Sprintf(iconURLFormat, appID, hash)
}

// ComputeStats derives the aggregate section of a view from the owned library.
func ComputeStats(games []model.SteamGame) model.StatsView {
	total := TotalPlaytime(games)
	avg := AveragePlaytime(games)

	stats := model.StatsView{
		TotalGames:             len(games),
		TotalPlaytimeMinutes:   total,
		TotalPlaytime:          FormatPlaytime(total),
		MostPlayed:             "None",
		AveragePlaytimeMinutes: avg,
		AveragePlaytime:        FormatPlaytime(avg),
	}

	if top, ok := MostPlayed(games); ok {
		stats.MostPlayed = top.Name
		stats.MostPlayedMinutes = top.PlaytimeForever
	}

	for _, g := range games {
		if g.PlaytimeForever == 0 {
			stats.GamesNeverPlayed++
		}
		if g.Playtime2Weeks > 0 {
			stats.GamesPlayedRecently++
		}
	}

	return stats
}

// SummarizeAchievements counts unlocked achievements and keeps the five most
// recent unlocks, newest first.
func SummarizeAchievements(gameName string, list []model.SteamAchievement) model.AchievementSummary {
	summary := model.AchievementSummary{
		GameName:      gameName,
		Total:         len(list),
		RecentUnlocks: []model.SteamAchievement{},
	}

	var unlocked []model.SteamAchievement
	for _, a := range list {
		if a.Achieved != 1 {
			continue
		}
		summary.Unlocked++
		if a.UnlockTime > 0 {
			unlocked = append(unlocked, a)
		}
	}

	if summary.Total > 0 {
		summary.Percentage = float64(summary.Unlocked) / float64(summary.Total) * 100
	}

	sort.SliceStable(unlocked, func(i, j int) bool {
		return unlocked[i].UnlockTime > unlocked[j].UnlockTime
	})
	if len(unlocked) > 5 {
		unlocked = unlocked[:5]
	}
	summary.RecentUnlocks = append(summary.RecentUnlocks, unlocked...)

	return summary
}

var personaStates = map[int]string{
	0: "Offline",
	1: "Online",
	2: "Busy",
	3: "Away",
	4: "Snooze",
	5: "Looking to trade",
	6: "Looking to play",
}

// PersonaStatus names a Steam persona state code.
func PersonaStatus(state int) string {
	if s, ok := personaStates[state]; ok {
		return s
	}
	return "Unknown"
}
