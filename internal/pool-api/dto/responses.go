package dto

import (
	"github.com/radieske/prediction-pool/internal/pool"
	"github.com/radieske/prediction-pool/internal/scoring"
)

type PredictionResponse struct {
	PredictionID string `json:"prediction_id"`
	MatchID      int64  `json:"match_id"`
	HomeGoals    int    `json:"home_goals"`
	AwayGoals    int    `json:"away_goals"`
}

type ResultResponse struct {
	Match  pool.Match         `json:"match"`
	Report scoring.PassReport `json:"report"`
}

type ScoreResponse struct {
	Report scoring.PassReport `json:"report"`
	Error  string             `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
