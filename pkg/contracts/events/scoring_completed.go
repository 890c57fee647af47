package events

import "time"

// Evento emitido pelo scoring-worker ao fim de cada passada de pontuação.
type ScoringCompleted struct {
	MatchesScored  int       `json:"matches_scored"`
	EntriesWritten int       `json:"entries_written"`
	EntriesSkipped int       `json:"entries_skipped"`
	FailedMatches  []int64   `json:"failed_matches,omitempty"`
	Ts             time.Time `json:"ts"`
}
