package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/prediction-pool/internal/pool"
	"github.com/radieske/prediction-pool/pkg/contracts/events"
)

// MessageReader é o subconjunto do kafka.Reader usado pelo Processor
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Processor consome match_finalized do Kafka e dispara uma passada de pontuação
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log    *zap.Logger
	Reader MessageReader
	Pass   *Pass

	OnConsumed func()       // métricas (counter++)
	OnScored   func()       // métricas
	OnError    func(string) // métricas por fase
}

func (p *Processor) onError(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

// Run inicia o loop principal de consumo e processamento das mensagens Kafka
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.onError("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed() // callback de métrica: mensagem consumida
		}

		if err := p.Handle(ctx, m.Value); err != nil {
			p.Log.Warn("match finalized handling failed", zap.ByteString("key", m.Key), zap.Error(err))
		}
	}
}

// Handle valida o evento e roda a passada. A passada pontua todas as partidas
// pendentes, então eventos repetidos ou fora de ordem não causam pontuação dupla.
func (p *Processor) Handle(ctx context.Context, value []byte) error {
	ev, err := decodeMatchFinalized(value)
	if err != nil {
		p.onError("decode")
		return err
	}

	log := p.Log.With(zap.Int64("match_id", ev.MatchID), zap.String("source", ev.Source))
	rep, err := p.Pass.Run(ctx, "scoring")
	if err != nil {
		return fmt.Errorf("score after match %d: %w", ev.MatchID, err)
	}
	if p.OnScored != nil {
		p.OnScored()
	}
	log.Info("scoring pass after result",
		zap.Int("matches_scored", rep.MatchesScored),
		zap.Int("entries_written", rep.EntriesWritten),
	)
	return nil
}

func decodeMatchFinalized(value []byte) (events.MatchFinalized, error) {
	var ev events.MatchFinalized
	if err := json.Unmarshal(value, &ev); err != nil {
		return ev, fmt.Errorf("decode match finalized: %w", err)
	}
	if ev.MatchID <= 0 {
		return ev, fmt.Errorf("decode match finalized: invalid match id %d", ev.MatchID)
	}
	if ev.HomeGoals < 0 || ev.AwayGoals < 0 {
		return ev, fmt.Errorf("decode match finalized: negative goals for match %d", ev.MatchID)
	}
	if _, err := pool.ParseOvertimeKind(ev.Overtime); err != nil {
		return ev, fmt.Errorf("decode match finalized: %w", err)
	}
	return ev, nil
}
