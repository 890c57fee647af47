package consumer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/prediction-pool/internal/scoring"
	"github.com/radieske/prediction-pool/pkg/contracts/events"
)

// Scorer executa uma passada de "pontuar resultados pendentes"
type Scorer interface {
	ScorePending(ctx context.Context) (scoring.PassReport, error)
}

// Invalidator descarta o ranking em cache
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// CompletionPublisher publica o resumo da passada no Kafka
type CompletionPublisher interface {
	PublishScoringCompleted(ctx context.Context, e events.ScoringCompleted) error
}

// Broadcaster envia o ranking atualizado para os clientes WS
type Broadcaster interface {
	Broadcast(ctx context.Context, reason string) error
}

// Pass roda o motor de pontuação e propaga o resultado (cache, Kafka, WS).
// Cache, Completed e Broadcast são opcionais; falhas neles só geram log.
type Pass struct {
	Log       *zap.Logger
	Engine    Scorer
	Cache     Invalidator
	Completed CompletionPublisher
	Broadcast Broadcaster
	Now       func() time.Time

	OnError func(string) // métricas por fase
}

func (p *Pass) onError(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

// Run pontua tudo o que estiver pendente. O relatório é devolvido mesmo com erro
// (partidas com falha ficam para a próxima passada).
func (p *Pass) Run(ctx context.Context, reason string) (scoring.PassReport, error) {
	rep, err := p.Engine.ScorePending(ctx)
	if err != nil {
		p.Log.Warn("scoring pass finished with failures", zap.String("reason", reason), zap.Error(err))
		p.onError("score")
	}
	if ctx.Err() != nil {
		return rep, err
	}

	changed := rep.EntriesWritten > 0 || rep.MatchesScored > 0
	if changed && p.Cache != nil {
		if cerr := p.Cache.Invalidate(ctx); cerr != nil {
			p.Log.Warn("leaderboard cache invalidate failed", zap.Error(cerr))
			p.onError("cache")
		}
	}

	if p.Completed != nil {
		ev := events.ScoringCompleted{
			MatchesScored:  rep.MatchesScored,
			EntriesWritten: rep.EntriesWritten,
			EntriesSkipped: rep.EntriesSkipped,
			FailedMatches:  rep.FailedMatches,
			Ts:             p.now().UTC(),
		}
		if perr := p.Completed.PublishScoringCompleted(ctx, ev); perr != nil {
			p.Log.Warn("scoring completed publish failed", zap.Error(perr))
			p.onError("publish")
		}
	}

	if changed && p.Broadcast != nil {
		if berr := p.Broadcast.Broadcast(ctx, reason); berr != nil {
			p.Log.Warn("leaderboard broadcast failed", zap.Error(berr))
			p.onError("broadcast")
		}
	}

	return rep, err
}

func (p *Pass) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
