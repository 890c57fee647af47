package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/prediction-pool/internal/ranking"
	"github.com/radieske/prediction-pool/pkg/contracts/events"
)

// NameSource devolve o nome de exibição dos participantes
type NameSource interface {
	ParticipantNames(ctx context.Context) (map[string]string, error)
}

// LeaderboardBroadcaster publica o ranking atual no canal Redis lido pelo WS do pool-api
type LeaderboardBroadcaster struct {
	r       *redis.Client
	channel string
	ranker  ranking.Ranker
	names   NameSource // opcional
	now     func() time.Time
}

func NewLeaderboardBroadcaster(r *redis.Client, channel string, ranker ranking.Ranker, names NameSource) *LeaderboardBroadcaster {
	return &LeaderboardBroadcaster{r: r, channel: channel, ranker: ranker, names: names, now: time.Now}
}

// Broadcast recalcula o ranking e publica no canal
func (b *LeaderboardBroadcaster) Broadcast(ctx context.Context, reason string) error {
	payload, err := b.payload(ctx, reason)
	if err != nil {
		return err
	}
	return b.r.Publish(ctx, b.channel, payload).Err()
}

func (b *LeaderboardBroadcaster) payload(ctx context.Context, reason string) ([]byte, error) {
	rows, err := b.ranker.Rank(ctx)
	if err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}
	if b.names != nil {
		names, err := b.names.ParticipantNames(ctx)
		if err != nil {
			return nil, fmt.Errorf("participant names: %w", err)
		}
		rows = ranking.WithNames(rows, names)
	}
	return json.Marshal(Update(reason, rows, b.now().UTC()))
}

// Update converte as linhas do ranking para o contrato do canal
func Update(reason string, rows []ranking.Row, ts time.Time) events.LeaderboardUpdated {
	out := events.LeaderboardUpdated{Reason: reason, Rows: make([]events.LeaderboardRow, 0, len(rows)), Ts: ts}
	for _, r := range rows {
		out.Rows = append(out.Rows, events.LeaderboardRow{
			Rank:          r.Rank,
			ParticipantID: r.ParticipantID,
			Name:          r.Name,
			Goals:         r.GoalPoints,
			Wins:          r.WinPoints,
			Ties:          r.Ties,
			Corrects:      r.CorrectPoints,
			Total:         r.Total,
			Bets:          r.Predictions,
		})
	}
	return out
}
