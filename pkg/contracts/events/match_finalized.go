package events

import "time"

// Evento publicado no tópico "match_finalized" quando o resultado de uma partida chega
// Overtime: "none" | "overtime" | "shootout"
type MatchFinalized struct {
	MatchID   int64     `json:"match_id"`
	HomeGoals int       `json:"home_goals"`
	AwayGoals int       `json:"away_goals"`
	Overtime  string    `json:"overtime"`
	Source    string    `json:"source"` // "feed" | "admin"
	Ts        time.Time `json:"ts"`
}
