package dto

import (
	"errors"
	"strings"

	"github.com/radieske/prediction-pool/internal/pool"
)

// MaxGoals limita placares absurdos vindos do cliente
const MaxGoals = 99

var ErrInvalidPayload = errors.New("invalid payload")

// PredictionRequest é o palpite enviado pelo participante
// ParticipantName é opcional: quando vem, registra/atualiza o nome de exibição
type PredictionRequest struct {
	ParticipantID   string `json:"participant_id"`
	ParticipantName string `json:"participant_name,omitempty"`
	HomeGoals       *int   `json:"home_goals"`
	AwayGoals       *int   `json:"away_goals"`
}

func (r PredictionRequest) Validate() error {
	if strings.TrimSpace(r.ParticipantID) == "" {
		return errors.Join(ErrInvalidPayload, errors.New("participant_id required"))
	}
	return validGoals(r.HomeGoals, r.AwayGoals)
}

// ResultRequest é o resultado final lançado manualmente pelo admin
type ResultRequest struct {
	HomeGoals *int   `json:"home_goals"`
	AwayGoals *int   `json:"away_goals"`
	Overtime  string `json:"overtime"` // "none" | "overtime" | "shootout"
}

func (r ResultRequest) Validate() (pool.OvertimeKind, error) {
	if err := validGoals(r.HomeGoals, r.AwayGoals); err != nil {
		return pool.OvertimeNone, err
	}
	ot, err := pool.ParseOvertimeKind(r.Overtime)
	if err != nil {
		return pool.OvertimeNone, errors.Join(ErrInvalidPayload, err)
	}
	return ot, nil
}

func validGoals(home, away *int) error {
	if home == nil || away == nil {
		return errors.Join(ErrInvalidPayload, errors.New("home_goals and away_goals required"))
	}
	if *home < 0 || *away < 0 || *home > MaxGoals || *away > MaxGoals {
		return errors.Join(ErrInvalidPayload, errors.New("goals out of range"))
	}
	return nil
}
