package events

import "time"

// Payload do canal Redis do ranking; o WS repassa como está para os clientes
type LeaderboardUpdated struct {
	Reason string           `json:"reason"` // "scoring" | "result"
	Rows   []LeaderboardRow `json:"rows"`
	Ts     time.Time        `json:"ts"`
}

// LeaderboardRow espelha ranking.Row sem depender do pacote interno
type LeaderboardRow struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name,omitempty"`
	Goals         int    `json:"goals"`
	Wins          int    `json:"wins"`
	Ties          int    `json:"ties"`
	Corrects      int    `json:"corrects"`
	Total         int    `json:"total"`
	Bets          int    `json:"bets"`
}
