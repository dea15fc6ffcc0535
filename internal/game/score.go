package game

import (
	"math"
	"slices"
)

// LeaderboardEntry is one player's line in the final ranking.
type LeaderboardEntry struct {
	PlayerID   string  `json:"socketId"`
	Name       string  `json:"username"`
	Avatar     string  `json:"emoji"`
	WPM        float64 `json:"wpm"`
	Accuracy   float64 `json:"accuracy"`
	Progress   float64 `json:"progress"`
	Score      int     `json:"score"`
	FinishTime *int64  `json:"finishTime"`
}

// Score combines speed, accuracy and completion:
//
//	round(wpm * accuracy/100 * progress/100)
func Score(p *Player) int {
	return int(math.Round(p.WPM * (p.Accuracy / 100) * (p.Progress / 100)))
}

// Leaderboard ranks all players by Score, highest first. Players with equal
// scores keep their roster order. Players that never finished are included
// with whatever telemetry they last reported.
func Leaderboard(players []*Player) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(players))
	for _, p := range players {
		entries = append(entries, LeaderboardEntry{
			PlayerID:   p.ID,
			Name:       p.Name,
			Avatar:     p.Avatar,
			WPM:        p.WPM,
			Accuracy:   p.Accuracy,
			Progress:   p.Progress,
			Score:      Score(p),
			FinishTime: p.FinishTime,
		})
	}
	slices.SortStableFunc(entries, func(a, b LeaderboardEntry) int {
		return b.Score - a.Score
	})
	return entries
}
