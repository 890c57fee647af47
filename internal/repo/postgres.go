// Package repo persiste times, partidas, palpites e o livro de pontos no Postgres.
package repo

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/radieske/prediction-pool/internal/pool"
	"github.com/radieske/prediction-pool/internal/scoring"
)

// ErrNotFound indica registro inexistente
var ErrNotFound = errors.New("not found")

// Postgres implementa o repositório do bolão em banco Postgres
type Postgres struct{ db *sqlx.DB }

// NewPostgres retorna uma instância do repositório
func NewPostgres(db *sqlx.DB) *Postgres { return &Postgres{db: db} }

// Ping verifica a conexão (usado pelo /healthz)
func (p *Postgres) Ping(ctx context.Context) error {
	return classify(p.db.PingContext(ctx))
}

const matchColumns = `id, match_time, home_team_id, away_team_id, home_goals, away_goals, overtime_kind, played, scored`

// GetPlayableUnscoredMatches lista partidas jogadas e ainda não pontuadas
func (p *Postgres) GetPlayableUnscoredMatches(ctx context.Context) ([]pool.Match, error) {
	var rows []matchRow
	err := p.db.SelectContext(ctx, &rows, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE played AND NOT scored
		ORDER BY match_time, id`)
	if err != nil {
		return nil, classify(err)
	}
	return toMatches(rows)
}

// GetUnscoredPredictions lista os palpites da partida que ainda não têm lançamento
func (p *Postgres) GetUnscoredPredictions(ctx context.Context, matchID int64) ([]pool.Prediction, error) {
	var rows []predictionRow
	err := p.db.SelectContext(ctx, &rows, `
		SELECT p.id, p.participant_id, p.match_id, p.home_goals, p.away_goals
		FROM predictions p
		LEFT JOIN point_ledger l
		  ON l.participant_id = p.participant_id AND l.match_id = p.match_id
		WHERE p.match_id = $1 AND l.id IS NULL
		ORDER BY p.participant_id`, matchID)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]pool.Prediction, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toPrediction())
	}
	return out, nil
}

// GetLedgerEntry busca o lançamento de (partida, participante)
func (p *Postgres) GetLedgerEntry(ctx context.Context, matchID int64, participantID string) (pool.LedgerEntry, bool, error) {
	var r ledgerRow
	err := p.db.GetContext(ctx, &r, `
		SELECT id, participant_id, match_id, goal_points, win_points, tie_points, correct_points, total
		FROM point_ledger
		WHERE match_id = $1 AND participant_id = $2`, matchID, participantID)
	if errors.Is(err, sql.ErrNoRows) {
		return pool.LedgerEntry{}, false, nil
	}
	if err != nil {
		return pool.LedgerEntry{}, false, classify(err)
	}
	return r.toEntry(), true, nil
}

// PutLedgerEntry grava o lançamento uma única vez
// Conflito em (participante, partida) vira scoring.ErrDuplicateEntry
func (p *Postgres) PutLedgerEntry(ctx context.Context, e pool.LedgerEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	res, err := p.db.NamedExecContext(ctx, `
		INSERT INTO point_ledger
		  (id, participant_id, match_id, goal_points, win_points, tie_points, correct_points, total)
		VALUES
		  (:id, :participant_id, :match_id, :goal_points, :win_points, :tie_points, :correct_points, :total)
		ON CONFLICT (participant_id, match_id) DO NOTHING`, ledgerRow(e))
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return scoring.ErrDuplicateEntry
	}
	return nil
}

// MarkMatchScored faz a escrita condicional played AND NOT scored -> scored
func (p *Postgres) MarkMatchScored(ctx context.Context, matchID int64) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE matches SET scored = TRUE, updated_at = NOW()
		WHERE id = $1 AND played AND NOT scored`, matchID)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 1 {
		return nil
	}

	m, err := p.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if m.Scored {
		return scoring.ErrAlreadyScored
	}
	return scoring.ErrMatchNotPlayed
}

// ListAllLedgerEntries devolve o livro de pontos inteiro
func (p *Postgres) ListAllLedgerEntries(ctx context.Context) ([]pool.LedgerEntry, error) {
	var rows []ledgerRow
	err := p.db.SelectContext(ctx, &rows, `
		SELECT id, participant_id, match_id, goal_points, win_points, tie_points, correct_points, total
		FROM point_ledger
		ORDER BY participant_id, match_id`)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]pool.LedgerEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEntry())
	}
	return out, nil
}

// UpsertTeam insere ou renomeia um time vindo do feed
func (p *Postgres) UpsertTeam(ctx context.Context, t pool.Team) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO teams (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, t.ID, t.Name)
	return classify(err)
}

// ListTeams lista os times conhecidos
func (p *Postgres) ListTeams(ctx context.Context) ([]pool.Team, error) {
	var teams []pool.Team
	if err := p.db.SelectContext(ctx, &teams, `SELECT id, name FROM teams ORDER BY name`); err != nil {
		return nil, classify(err)
	}
	return teams, nil
}

// UpsertFixture cria a partida ou atualiza horário/times enquanto ela não foi jogada
func (p *Postgres) UpsertFixture(ctx context.Context, m pool.Match) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO matches (id, match_time, home_team_id, away_team_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
		  match_time   = EXCLUDED.match_time,
		  home_team_id = EXCLUDED.home_team_id,
		  away_team_id = EXCLUDED.away_team_id,
		  updated_at   = NOW()
		WHERE NOT matches.played`,
		m.ID, m.Time, m.HomeTeamID, m.AwayTeamID)
	return classify(err)
}

// RecordResult grava o resultado final e marca a partida como jogada
// Partida pontuada, ou com algum lançamento já gravado, não aceita
// correção: scoring.ErrAlreadyScored
func (p *Postgres) RecordResult(ctx context.Context, matchID int64, home, away int, ot pool.OvertimeKind) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE matches SET
		  home_goals    = $2,
		  away_goals    = $3,
		  overtime_kind = $4,
		  played        = TRUE,
		  updated_at    = NOW()
		WHERE id = $1 AND NOT scored
		  AND NOT EXISTS (SELECT 1 FROM point_ledger WHERE match_id = $1)`,
		matchID, home, away, ot.String())
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 1 {
		return nil
	}
	m, err := p.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if !m.Scored {
		return fmt.Errorf("match %d partially scored: %w", matchID, scoring.ErrAlreadyScored)
	}
	return scoring.ErrAlreadyScored
}

// GetMatch busca uma partida pelo ID
func (p *Postgres) GetMatch(ctx context.Context, id int64) (pool.Match, error) {
	var r matchRow
	err := p.db.GetContext(ctx, &r, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return pool.Match{}, fmt.Errorf("match %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return pool.Match{}, classify(err)
	}
	return r.toMatch()
}

// ListMatches lista partidas; played nil traz todas
func (p *Postgres) ListMatches(ctx context.Context, played *bool) ([]pool.Match, error) {
	var (
		rows []matchRow
		err  error
	)
	if played == nil {
		err = p.db.SelectContext(ctx, &rows, `SELECT `+matchColumns+` FROM matches ORDER BY match_time, id`)
	} else {
		err = p.db.SelectContext(ctx, &rows, `SELECT `+matchColumns+` FROM matches WHERE played = $1 ORDER BY match_time, id`, *played)
	}
	if err != nil {
		return nil, classify(err)
	}
	return toMatches(rows)
}

// ListMatchesByTeam lista as partidas em que o time joga em casa ou fora
func (p *Postgres) ListMatchesByTeam(ctx context.Context, teamID int64) ([]pool.Match, error) {
	var rows []matchRow
	err := p.db.SelectContext(ctx, &rows, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE home_team_id = $1 OR away_team_id = $1
		ORDER BY match_time, id`, teamID)
	if err != nil {
		return nil, classify(err)
	}
	return toMatches(rows)
}

// UpsertPrediction cria ou substitui o palpite do participante e devolve o ID
func (p *Postgres) UpsertPrediction(ctx context.Context, pr pool.Prediction) (string, error) {
	if pr.ID == "" {
		pr.ID = uuid.NewString()
	}
	var id string
	err := p.db.QueryRowxContext(ctx, `
		INSERT INTO predictions (id, participant_id, match_id, home_goals, away_goals)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (participant_id, match_id) DO UPDATE SET
		  home_goals = EXCLUDED.home_goals,
		  away_goals = EXCLUDED.away_goals,
		  updated_at = NOW()
		RETURNING id`,
		pr.ID, pr.ParticipantID, pr.MatchID, pr.HomeGoals, pr.AwayGoals).Scan(&id)
	if err != nil {
		return "", classify(err)
	}
	return id, nil
}

// UpsertParticipant registra o participante ou atualiza o nome
// Nome vazio mantém o nome já gravado
func (p *Postgres) UpsertParticipant(ctx context.Context, pt pool.Participant) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO participants (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = COALESCE(NULLIF(EXCLUDED.name, ''), participants.name)`, pt.ID, pt.Name)
	return classify(err)
}

// ParticipantNames devolve id -> nome de todos os participantes
func (p *Postgres) ParticipantNames(ctx context.Context) (map[string]string, error) {
	var list []pool.Participant
	if err := p.db.SelectContext(ctx, &list, `SELECT id, name FROM participants`); err != nil {
		return nil, classify(err)
	}
	out := make(map[string]string, len(list))
	for _, pt := range list {
		out[pt.ID] = pt.Name
	}
	return out, nil
}

// ListParticipantPredictions lista os palpites do participante com a partida e os pontos obtidos
func (p *Postgres) ListParticipantPredictions(ctx context.Context, participantID string) ([]pool.PredictionWithPoints, error) {
	var rows []predictionPointsRow
	err := p.db.SelectContext(ctx, &rows, `
		SELECT p.id, p.participant_id, p.match_id, p.home_goals, p.away_goals,
		       m.match_time, m.home_team_id, m.away_team_id,
		       m.home_goals AS match_home_goals, m.away_goals AS match_away_goals,
		       m.overtime_kind, m.played, m.scored,
		       COALESCE(l.total, 0) AS points
		FROM predictions p
		JOIN matches m ON m.id = p.match_id
		LEFT JOIN point_ledger l
		  ON l.participant_id = p.participant_id AND l.match_id = p.match_id
		WHERE p.participant_id = $1
		ORDER BY m.match_time, m.id`, participantID)
	if err != nil {
		return nil, classify(err)
	}

	out := make([]pool.PredictionWithPoints, 0, len(rows))
	for _, r := range rows {
		m, err := matchRow{
			ID:           r.MatchID,
			MatchTime:    r.MatchTime,
			HomeTeamID:   r.HomeTeamID,
			AwayTeamID:   r.AwayTeamID,
			HomeGoals:    r.MatchHome,
			AwayGoals:    r.MatchAway,
			OvertimeKind: r.OvertimeKind,
			Played:       r.Played,
			Scored:       r.Scored,
		}.toMatch()
		if err != nil {
			return nil, err
		}
		out = append(out, pool.PredictionWithPoints{
			Prediction: r.predictionRow.toPrediction(),
			Match:      m,
			Points:     r.Points,
		})
	}
	return out, nil
}

// classify marca falhas de conexão como scoring.ErrRepositoryUnavailable
// para o motor interromper a partida em vez de seguir palpite a palpite
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", scoring.ErrRepositoryUnavailable, err)
	}
	// conexão caída no meio da query (lib/pq devolve o erro de rede)
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", scoring.ErrRepositoryUnavailable, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 08: connection exception, 57: operator intervention (shutdown, cancel)
		class := string(pqErr.Code.Class())
		if class == "08" || class == "57" {
			return fmt.Errorf("%w: %v", scoring.ErrRepositoryUnavailable, err)
		}
		if pqErr.Code == "23505" && strings.Contains(pqErr.Constraint, "point_ledger") {
			return scoring.ErrDuplicateEntry
		}
	}
	return err
}
