package repo

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/radieske/prediction-pool/internal/pool"
	"github.com/radieske/prediction-pool/internal/scoring"
)

type PostgresTestSuite struct {
	suite.Suite
	db   *sqlx.DB
	mock sqlmock.Sqlmock
	repo *Postgres
	ctx  context.Context
}

func (s *PostgresTestSuite) SetupTest() {
	mockDB, mock, err := sqlmock.New()
	require.NoError(s.T(), err)

	// "postgres" para o sqlx usar bind $n nas queries nomeadas
	s.db = sqlx.NewDb(mockDB, "postgres")
	s.mock = mock
	s.repo = NewPostgres(s.db)
	s.ctx = context.Background()
}

func (s *PostgresTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
	s.db.Close()
}

var matchCols = []string{"id", "match_time", "home_team_id", "away_team_id", "home_goals", "away_goals", "overtime_kind", "played", "scored"}

func (s *PostgresTestSuite) TestGetPlayableUnscoredMatches() {
	kickoff := time.Date(2024, 3, 2, 18, 30, 0, 0, time.UTC)
	s.mock.ExpectQuery(`SELECT .* FROM matches\s+WHERE played AND NOT scored`).
		WillReturnRows(sqlmock.NewRows(matchCols).
			AddRow(int64(7), kickoff, int64(1), int64(2), 3, 2, "shootout", true, false))

	got, err := s.repo.GetPlayableUnscoredMatches(s.ctx)

	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(int64(7), got[0].ID)
	s.Equal(pool.OvertimeShootout, got[0].Overtime)
	s.True(got[0].Played)
	s.False(got[0].Scored)
}

func (s *PostgresTestSuite) TestGetPlayableUnscoredMatches_BadOvertimeKind() {
	s.mock.ExpectQuery(`FROM matches`).
		WillReturnRows(sqlmock.NewRows(matchCols).
			AddRow(int64(7), time.Now(), int64(1), int64(2), 0, 0, "golden-goal", true, false))

	_, err := s.repo.GetPlayableUnscoredMatches(s.ctx)

	s.Error(err)
}

func (s *PostgresTestSuite) TestGetUnscoredPredictions() {
	s.mock.ExpectQuery(`LEFT JOIN point_ledger l .* WHERE p.match_id = \$1 AND l.id IS NULL`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "participant_id", "match_id", "home_goals", "away_goals"}).
			AddRow("pr-1", "ana", int64(7), 2, 1).
			AddRow("pr-2", "bruno", int64(7), 0, 0))

	got, err := s.repo.GetUnscoredPredictions(s.ctx, 7)

	s.Require().NoError(err)
	s.Equal([]pool.Prediction{
		{ID: "pr-1", ParticipantID: "ana", MatchID: 7, HomeGoals: 2, AwayGoals: 1},
		{ID: "pr-2", ParticipantID: "bruno", MatchID: 7, HomeGoals: 0, AwayGoals: 0},
	}, got)
}

func (s *PostgresTestSuite) TestGetLedgerEntry_NotFound() {
	s.mock.ExpectQuery(`FROM point_ledger\s+WHERE match_id = \$1 AND participant_id = \$2`).
		WithArgs(int64(7), "ana").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, found, err := s.repo.GetLedgerEntry(s.ctx, 7, "ana")

	s.NoError(err)
	s.False(found)
}

func (s *PostgresTestSuite) TestGetLedgerEntry_Found() {
	s.mock.ExpectQuery(`FROM point_ledger`).
		WithArgs(int64(7), "ana").
		WillReturnRows(sqlmock.NewRows([]string{"id", "participant_id", "match_id", "goal_points", "win_points", "tie_points", "correct_points", "total"}).
			AddRow("l-1", "ana", int64(7), 2, 1, 0, 1, 4))

	e, found, err := s.repo.GetLedgerEntry(s.ctx, 7, "ana")

	s.Require().NoError(err)
	s.True(found)
	s.Equal(4, e.Total)
	s.Equal(e.Sum(), e.Total)
}

func (s *PostgresTestSuite) TestGetLedgerEntry_ConnectionLost() {
	s.mock.ExpectQuery(`FROM point_ledger`).
		WithArgs(int64(7), "ana").
		WillReturnError(&pq.Error{Code: "08006"})

	_, _, err := s.repo.GetLedgerEntry(s.ctx, 7, "ana")

	s.ErrorIs(err, scoring.ErrRepositoryUnavailable)
}

func (s *PostgresTestSuite) TestPutLedgerEntry_Inserted() {
	e := pool.LedgerEntry{ID: "l-1", ParticipantID: "ana", MatchID: 7, GoalPoints: 2, WinPoints: 1, CorrectPoints: 1, Total: 4}
	s.mock.ExpectExec(`INSERT INTO point_ledger .* ON CONFLICT \(participant_id, match_id\) DO NOTHING`).
		WithArgs("l-1", "ana", int64(7), 2, 1, 0, 1, 4).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.PutLedgerEntry(s.ctx, e))
}

func (s *PostgresTestSuite) TestPutLedgerEntry_ConflictIsDuplicate() {
	s.mock.ExpectExec(`INSERT INTO point_ledger`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.repo.PutLedgerEntry(s.ctx, pool.LedgerEntry{ID: "l-1", ParticipantID: "ana", MatchID: 7})

	s.ErrorIs(err, scoring.ErrDuplicateEntry)
}

func (s *PostgresTestSuite) TestPutLedgerEntry_UniqueViolationIsDuplicate() {
	s.mock.ExpectExec(`INSERT INTO point_ledger`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "point_ledger_participant_id_match_id_key"})

	err := s.repo.PutLedgerEntry(s.ctx, pool.LedgerEntry{ID: "l-1", ParticipantID: "ana", MatchID: 7})

	s.ErrorIs(err, scoring.ErrDuplicateEntry)
}

func (s *PostgresTestSuite) TestMarkMatchScored() {
	s.mock.ExpectExec(`UPDATE matches SET scored = TRUE.*WHERE id = \$1 AND played AND NOT scored`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.MarkMatchScored(s.ctx, 7))
}

func (s *PostgresTestSuite) TestMarkMatchScored_AlreadyScored() {
	s.mock.ExpectExec(`UPDATE matches SET scored = TRUE`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectQuery(`FROM matches WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(matchCols).
			AddRow(int64(7), time.Now(), int64(1), int64(2), 1, 0, "none", true, true))

	err := s.repo.MarkMatchScored(s.ctx, 7)

	s.ErrorIs(err, scoring.ErrAlreadyScored)
}

func (s *PostgresTestSuite) TestMarkMatchScored_NotPlayed() {
	s.mock.ExpectExec(`UPDATE matches SET scored = TRUE`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectQuery(`FROM matches WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(matchCols).
			AddRow(int64(7), time.Now(), int64(1), int64(2), 0, 0, "none", false, false))

	err := s.repo.MarkMatchScored(s.ctx, 7)

	s.ErrorIs(err, scoring.ErrMatchNotPlayed)
}

func (s *PostgresTestSuite) TestMarkMatchScored_UnknownMatch() {
	s.mock.ExpectExec(`UPDATE matches SET scored = TRUE`).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectQuery(`FROM matches WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(matchCols))

	err := s.repo.MarkMatchScored(s.ctx, 99)

	s.ErrorIs(err, ErrNotFound)
}

func (s *PostgresTestSuite) TestRecordResult_Scored() {
	s.mock.ExpectExec(`UPDATE matches SET .* WHERE id = \$1 AND NOT scored`).
		WithArgs(int64(7), 3, 1, "overtime").
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectQuery(`FROM matches WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(matchCols).
			AddRow(int64(7), time.Now(), int64(1), int64(2), 3, 1, "overtime", true, true))

	err := s.repo.RecordResult(s.ctx, 7, 3, 1, pool.OvertimeExtra)

	s.ErrorIs(err, scoring.ErrAlreadyScored)
}

func (s *PostgresTestSuite) TestRecordResult_PartiallyScoredIsLocked() {
	s.mock.ExpectExec(`UPDATE matches SET .* WHERE id = \$1 AND NOT scored\s+AND NOT EXISTS \(SELECT 1 FROM point_ledger WHERE match_id = \$1\)`).
		WithArgs(int64(7), 4, 1, "none").
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectQuery(`FROM matches WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(matchCols).
			AddRow(int64(7), time.Now(), int64(1), int64(2), 3, 1, "none", true, false))

	err := s.repo.RecordResult(s.ctx, 7, 4, 1, pool.OvertimeNone)

	s.ErrorIs(err, scoring.ErrAlreadyScored)
	s.Contains(err.Error(), "partially scored")
}

func (s *PostgresTestSuite) TestRecordResult_Updated() {
	s.mock.ExpectExec(`UPDATE matches SET`).
		WithArgs(int64(7), 3, 1, "none").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.RecordResult(s.ctx, 7, 3, 1, pool.OvertimeNone))
}

func (s *PostgresTestSuite) TestListMatches_FilterPlayed() {
	played := true
	s.mock.ExpectQuery(`FROM matches WHERE played = \$1`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows(matchCols))

	got, err := s.repo.ListMatches(s.ctx, &played)

	s.NoError(err)
	s.Empty(got)
}

func (s *PostgresTestSuite) TestUpsertPrediction_ReturnsStoredID() {
	s.mock.ExpectQuery(`INSERT INTO predictions .* ON CONFLICT \(participant_id, match_id\) DO UPDATE .* RETURNING id`).
		WithArgs(sqlmock.AnyArg(), "ana", int64(7), 2, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("pr-existing"))

	id, err := s.repo.UpsertPrediction(s.ctx, pool.Prediction{ParticipantID: "ana", MatchID: 7, HomeGoals: 2, AwayGoals: 2})

	s.NoError(err)
	s.Equal("pr-existing", id)
}

func (s *PostgresTestSuite) TestUpsertParticipant_EmptyNameKeepsStored() {
	s.mock.ExpectExec(`INSERT INTO participants .* ON CONFLICT \(id\) DO UPDATE SET name = COALESCE\(NULLIF\(EXCLUDED.name, ''\), participants.name\)`).
		WithArgs("ana", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.UpsertParticipant(s.ctx, pool.Participant{ID: "ana"}))
}

func (s *PostgresTestSuite) TestParticipantNames() {
	s.mock.ExpectQuery(`SELECT id, name FROM participants`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("ana", "Ana").AddRow("bruno", "Bruno"))

	got, err := s.repo.ParticipantNames(s.ctx)

	s.NoError(err)
	s.Equal(map[string]string{"ana": "Ana", "bruno": "Bruno"}, got)
}

func (s *PostgresTestSuite) TestListParticipantPredictions_UnscoredHasZeroPoints() {
	kickoff := time.Date(2024, 3, 2, 18, 30, 0, 0, time.UTC)
	s.mock.ExpectQuery(`COALESCE\(l.total, 0\) AS points`).
		WithArgs("ana").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "participant_id", "match_id", "home_goals", "away_goals",
			"match_time", "home_team_id", "away_team_id", "match_home_goals", "match_away_goals",
			"overtime_kind", "played", "scored", "points",
		}).
			AddRow("pr-1", "ana", int64(7), 2, 1, kickoff, int64(1), int64(2), 2, 1, "none", true, true, 4).
			AddRow("pr-2", "ana", int64(8), 0, 0, kickoff.Add(24*time.Hour), int64(3), int64(1), 0, 0, "none", false, false, 0))

	got, err := s.repo.ListParticipantPredictions(s.ctx, "ana")

	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(4, got[0].Points)
	s.Equal(2, got[0].Match.HomeGoals)
	s.Equal("pr-1", got[0].Prediction.ID)
	s.Equal(0, got[1].Points)
	s.False(got[1].Match.Played)
}

func TestPostgresTestSuite(t *testing.T) {
	suite.Run(t, new(PostgresTestSuite))
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.ErrorIs(t, classify(&pq.Error{Code: "08006"}), scoring.ErrRepositoryUnavailable)
	assert.ErrorIs(t, classify(&pq.Error{Code: "57P01"}), scoring.ErrRepositoryUnavailable)
	assert.ErrorIs(t, classify(driver.ErrBadConn), scoring.ErrRepositoryUnavailable)
	assert.ErrorIs(t, classify(sql.ErrConnDone), scoring.ErrRepositoryUnavailable)
	assert.ErrorIs(t, classify(io.EOF), scoring.ErrRepositoryUnavailable)
	assert.ErrorIs(t, classify(fmt.Errorf("read: %w", io.ErrUnexpectedEOF)), scoring.ErrRepositoryUnavailable)
	assert.ErrorIs(t, classify(&net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}), scoring.ErrRepositoryUnavailable)

	other := &pq.Error{Code: "23503"}
	assert.Same(t, other, classify(other))

	plain := errors.New("boom")
	assert.Equal(t, plain, classify(plain))
}
