package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/prediction-pool/pkg/contracts/events"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishMatchFinalized_KeyedByMatch(t *testing.T) {
	w := &fakeWriter{}
	p := NewWithWriter(w, zap.NewNop())
	ev := events.MatchFinalized{MatchID: 1001, HomeGoals: 3, AwayGoals: 1, Overtime: "none", Source: "feed", Ts: time.Now().UTC()}

	require.NoError(t, p.PublishMatchFinalized(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "1001", string(w.msgs[0].Key))
	var got events.MatchFinalized
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, ev.MatchID, got.MatchID)
	assert.Equal(t, "none", got.Overtime)
}

func TestPublishScoringCompleted(t *testing.T) {
	w := &fakeWriter{}
	p := NewWithWriter(w, zap.NewNop())

	require.NoError(t, p.PublishScoringCompleted(context.Background(), events.ScoringCompleted{MatchesScored: 2, EntriesWritten: 9}))

	require.Len(t, w.msgs, 1)
	assert.JSONEq(t, `{"matches_scored":2,"entries_written":9,"entries_skipped":0,"ts":"0001-01-01T00:00:00Z"}`, string(w.msgs[0].Value))
}

func TestPublish_WriterError(t *testing.T) {
	boom := errors.New("leader not available")
	p := NewWithWriter(&fakeWriter{err: boom}, zap.NewNop())

	err := p.PublishMatchFinalized(context.Background(), events.MatchFinalized{MatchID: 1})

	assert.ErrorIs(t, err, boom)
}

func TestNewKafkaPublisher_NoBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "match_finalized", "prod", zap.NewNop())

	assert.Error(t, err)
}

func TestClose(t *testing.T) {
	w := &fakeWriter{}

	require.NoError(t, NewWithWriter(w, zap.NewNop()).Close())

	assert.True(t, w.closed)
}
