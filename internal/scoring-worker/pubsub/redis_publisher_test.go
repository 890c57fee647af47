package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/prediction-pool/internal/ranking"
	"github.com/radieske/prediction-pool/pkg/contracts/events"
)

type stubRanker struct {
	rows []ranking.Row
	err  error
}

func (s stubRanker) Rank(ctx context.Context) ([]ranking.Row, error) { return s.rows, s.err }

type stubNames map[string]string

func (s stubNames) ParticipantNames(ctx context.Context) (map[string]string, error) { return s, nil }

func TestUpdate_MapsRows(t *testing.T) {
	ts := time.Date(2024, 9, 14, 21, 0, 0, 0, time.UTC)
	rows := []ranking.Row{{Rank: 1, ParticipantID: "ana", GoalPoints: 3, WinPoints: 1, TiePoints: 4, Ties: 2, CorrectPoints: 1, Total: 9, Predictions: 3}}

	got := Update("scoring", rows, ts)

	assert.Equal(t, events.LeaderboardUpdated{
		Reason: "scoring",
		Rows:   []events.LeaderboardRow{{Rank: 1, ParticipantID: "ana", Goals: 3, Wins: 1, Ties: 2, Corrects: 1, Total: 9, Bets: 3}},
		Ts:     ts,
	}, got)
}

func TestPayload_DecoratesNames(t *testing.T) {
	b := NewLeaderboardBroadcaster(nil, "leaderboard_broadcast",
		stubRanker{rows: []ranking.Row{{Rank: 1, ParticipantID: "ana", Total: 5}}},
		stubNames{"ana": "Ana"})
	b.now = func() time.Time { return time.Date(2024, 9, 14, 21, 0, 0, 0, time.UTC) }

	raw, err := b.payload(context.Background(), "result")

	require.NoError(t, err)
	var got events.LeaderboardUpdated
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "result", got.Reason)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "Ana", got.Rows[0].Name)
}

func TestPayload_RankError(t *testing.T) {
	boom := errors.New("db down")
	b := NewLeaderboardBroadcaster(nil, "c", stubRanker{err: boom}, nil)

	_, err := b.payload(context.Background(), "scoring")

	assert.ErrorIs(t, err, boom)
}
