package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/prediction-pool/internal/feed"
	"github.com/radieske/prediction-pool/internal/pool"
	"github.com/radieske/prediction-pool/internal/repo"
	"github.com/radieske/prediction-pool/internal/scoring"
	"github.com/radieske/prediction-pool/pkg/contracts/events"
)

// Source entrega os jogos do feed
type Source interface {
	Games(ctx context.Context) ([]feed.GameRecord, error)
}

// Store é o subconjunto do repositório usado pela sincronização
type Store interface {
	UpsertTeam(ctx context.Context, t pool.Team) error
	UpsertFixture(ctx context.Context, m pool.Match) error
	GetMatch(ctx context.Context, id int64) (pool.Match, error)
	RecordResult(ctx context.Context, matchID int64, home, away int, ot pool.OvertimeKind) error
}

// Publisher avisa o restante do sistema que um resultado chegou
type Publisher interface {
	PublishMatchFinalized(ctx context.Context, e events.MatchFinalized) error
}

// ImportReport resume a importação inicial de times e partidas
type ImportReport struct {
	Teams    int `json:"teams"`
	Fixtures int `json:"fixtures"`
	Invalid  int `json:"invalid"`
}

// SyncReport resume uma sincronização de resultados
type SyncReport struct {
	Recorded  []int64 `json:"recorded"`
	Unchanged int     `json:"unchanged"`
	Unknown   int     `json:"unknown"` // jogos do feed que não estão no banco
	Locked    int     `json:"locked"`  // já pontuados: resultado não muda mais
	Invalid   int     `json:"invalid"`
}

// Syncer importa a agenda e grava os resultados que o feed publicar
type Syncer struct {
	Log       *zap.Logger
	Source    Source
	Store     Store
	Publisher Publisher // opcional
	Location  *time.Location
	Now       func() time.Time

	OnRecorded func()       // métricas (counter++)
	OnError    func(string) // métricas por fase
}

func (s *Syncer) onError(stage string) {
	if s.OnError != nil {
		s.OnError(stage)
	}
}

func (s *Syncer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Import grava todos os times e partidas do feed (sem resultados)
func (s *Syncer) Import(ctx context.Context) (ImportReport, error) {
	var rep ImportReport
	games, err := s.Source.Games(ctx)
	if err != nil {
		s.onError("fetch")
		return rep, fmt.Errorf("fetch games: %w", err)
	}

	teams, err := feed.Teams(games)
	if err != nil {
		s.onError("decode")
		return rep, err
	}
	for _, t := range teams {
		if err := s.Store.UpsertTeam(ctx, t); err != nil {
			s.onError("store")
			return rep, fmt.Errorf("upsert team %d: %w", t.ID, err)
		}
		rep.Teams++
	}

	for _, g := range games {
		m, err := g.ToMatch(s.Location)
		if err != nil {
			s.Log.Warn("skipping invalid game", zap.Error(err))
			s.onError("decode")
			rep.Invalid++
			continue
		}
		if err := s.Store.UpsertFixture(ctx, m); err != nil {
			s.onError("store")
			return rep, fmt.Errorf("upsert fixture %d: %w", m.ID, err)
		}
		rep.Fixtures++
	}

	s.Log.Info("feed imported", zap.Int("teams", rep.Teams), zap.Int("fixtures", rep.Fixtures), zap.Int("invalid", rep.Invalid))
	return rep, nil
}

// SyncResults grava os resultados de jogos encerrados que ainda não estão no banco
// e publica match_finalized para cada um. Partidas já pontuadas não são alteradas.
func (s *Syncer) SyncResults(ctx context.Context) (SyncReport, error) {
	var rep SyncReport
	games, err := s.Source.Games(ctx)
	if err != nil {
		s.onError("fetch")
		return rep, fmt.Errorf("fetch games: %w", err)
	}

	for _, g := range games {
		if !g.Played() {
			continue
		}
		fm, err := g.ToMatch(s.Location)
		if err != nil {
			s.Log.Warn("skipping invalid result", zap.Error(err))
			s.onError("decode")
			rep.Invalid++
			continue
		}

		stored, err := s.Store.GetMatch(ctx, fm.ID)
		if errors.Is(err, repo.ErrNotFound) {
			rep.Unknown++
			continue
		}
		if err != nil {
			s.onError("store")
			return rep, fmt.Errorf("get match %d: %w", fm.ID, err)
		}
		if sameResult(stored, fm) {
			rep.Unchanged++
			continue
		}
		if stored.Scored {
			s.Log.Warn("feed result differs from scored match",
				zap.Int64("match_id", fm.ID),
				zap.String("stored", fmt.Sprintf("%d-%d", stored.HomeGoals, stored.AwayGoals)),
				zap.String("feed", fmt.Sprintf("%d-%d", fm.HomeGoals, fm.AwayGoals)),
			)
			rep.Locked++
			continue
		}

		if err := s.Store.RecordResult(ctx, fm.ID, fm.HomeGoals, fm.AwayGoals, fm.Overtime); err != nil {
			if errors.Is(err, scoring.ErrAlreadyScored) {
				rep.Locked++
				continue
			}
			s.onError("store")
			return rep, fmt.Errorf("record result %d: %w", fm.ID, err)
		}
		rep.Recorded = append(rep.Recorded, fm.ID)
		if s.OnRecorded != nil {
			s.OnRecorded()
		}

		s.publish(ctx, fm)
	}

	s.Log.Info("results synced",
		zap.Int("recorded", len(rep.Recorded)),
		zap.Int("unchanged", rep.Unchanged),
		zap.Int("unknown", rep.Unknown),
		zap.Int("locked", rep.Locked),
		zap.Int("invalid", rep.Invalid),
	)
	return rep, nil
}

// publish não falha a sincronização: o resultado já está gravado e a próxima
// passada de pontuação o encontra de qualquer forma
func (s *Syncer) publish(ctx context.Context, m pool.Match) {
	if s.Publisher == nil {
		return
	}
	ev := events.MatchFinalized{
		MatchID:   m.ID,
		HomeGoals: m.HomeGoals,
		AwayGoals: m.AwayGoals,
		Overtime:  m.Overtime.String(),
		Source:    "feed",
		Ts:        s.now().UTC(),
	}
	if err := s.Publisher.PublishMatchFinalized(ctx, ev); err != nil {
		s.Log.Warn("match finalized publish failed", zap.Int64("match_id", m.ID), zap.Error(err))
		s.onError("publish")
	}
}

// Run sincroniza resultados a cada intervalo até o contexto ser cancelado
func (s *Syncer) Run(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		if _, err := s.SyncResults(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.Log.Warn("result sync failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			s.Log.Info("context canceled, stopping result sync")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func sameResult(stored, fromFeed pool.Match) bool {
	return stored.Played &&
		stored.HomeGoals == fromFeed.HomeGoals &&
		stored.AwayGoals == fromFeed.AwayGoals &&
		stored.Overtime == fromFeed.Overtime
}
