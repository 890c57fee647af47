package repo

import (
	"time"

	"github.com/radieske/prediction-pool/internal/pool"
)

// matchRow é a linha persistida da tabela matches
type matchRow struct {
	ID           int64     `db:"id"`
	MatchTime    time.Time `db:"match_time"`
	HomeTeamID   int64     `db:"home_team_id"`
	AwayTeamID   int64     `db:"away_team_id"`
	HomeGoals    int       `db:"home_goals"`
	AwayGoals    int       `db:"away_goals"`
	OvertimeKind string    `db:"overtime_kind"`
	Played       bool      `db:"played"`
	Scored       bool      `db:"scored"`
}

func (r matchRow) toMatch() (pool.Match, error) {
	ot, err := pool.ParseOvertimeKind(r.OvertimeKind)
	if err != nil {
		return pool.Match{}, err
	}
	return pool.Match{
		ID:         r.ID,
		Time:       r.MatchTime,
		HomeTeamID: r.HomeTeamID,
		AwayTeamID: r.AwayTeamID,
		HomeGoals:  r.HomeGoals,
		AwayGoals:  r.AwayGoals,
		Overtime:   ot,
		Played:     r.Played,
		Scored:     r.Scored,
	}, nil
}

func toMatches(rows []matchRow) ([]pool.Match, error) {
	out := make([]pool.Match, 0, len(rows))
	for _, r := range rows {
		m, err := r.toMatch()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// predictionRow é a linha persistida da tabela predictions
type predictionRow struct {
	ID            string `db:"id"`
	ParticipantID string `db:"participant_id"`
	MatchID       int64  `db:"match_id"`
	HomeGoals     int    `db:"home_goals"`
	AwayGoals     int    `db:"away_goals"`
}

func (r predictionRow) toPrediction() pool.Prediction {
	return pool.Prediction(r)
}

// ledgerRow é a linha persistida da tabela point_ledger
type ledgerRow struct {
	ID            string `db:"id"`
	ParticipantID string `db:"participant_id"`
	MatchID       int64  `db:"match_id"`
	GoalPoints    int    `db:"goal_points"`
	WinPoints     int    `db:"win_points"`
	TiePoints     int    `db:"tie_points"`
	CorrectPoints int    `db:"correct_points"`
	Total         int    `db:"total"`
}

func (r ledgerRow) toEntry() pool.LedgerEntry {
	return pool.LedgerEntry(r)
}

// predictionPointsRow junta palpite, partida e pontos (0 se ainda não pontuado)
type predictionPointsRow struct {
	predictionRow
	MatchTime    time.Time `db:"match_time"`
	HomeTeamID   int64     `db:"home_team_id"`
	AwayTeamID   int64     `db:"away_team_id"`
	MatchHome    int       `db:"match_home_goals"`
	MatchAway    int       `db:"match_away_goals"`
	OvertimeKind string    `db:"overtime_kind"`
	Played       bool      `db:"played"`
	Scored       bool      `db:"scored"`
	Points       int       `db:"points"`
}
