package scoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/radieske/prediction-pool/internal/pool"
)

const tracerName = "github.com/radieske/prediction-pool/internal/scoring"

var (
	// ErrMatchNotPlayed: pontuação pedida para partida sem resultado
	ErrMatchNotPlayed = errors.New("match not played")
	// ErrDuplicateEntry: já existe lançamento para (participante, partida); tratado como já feito
	ErrDuplicateEntry = errors.New("ledger entry already exists")
	// ErrAlreadyScored: a partida já estava marcada como pontuada (escrita condicional falhou)
	ErrAlreadyScored = errors.New("match already scored")
	// ErrRepositoryUnavailable: o repositório não responde; interrompe a partida inteira
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)

// Repository define as operações de persistência usadas pelo motor de pontuação
type Repository interface {
	GetPlayableUnscoredMatches(ctx context.Context) ([]pool.Match, error)
	GetUnscoredPredictions(ctx context.Context, matchID int64) ([]pool.Prediction, error)
	GetLedgerEntry(ctx context.Context, matchID int64, participantID string) (pool.LedgerEntry, bool, error)
	PutLedgerEntry(ctx context.Context, e pool.LedgerEntry) error
	MarkMatchScored(ctx context.Context, matchID int64) error
}

// PredictionFailure registra a falha ao pontuar o palpite de um participante
type PredictionFailure struct {
	ParticipantID string
	Err           error
}

// MatchError agrupa as falhas de uma partida; a partida continua não pontuada
// e pode ser reprocessada sem pontuar em dobro
type MatchError struct {
	MatchID int64
	Failed  []PredictionFailure
}

func (e *MatchError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		parts = append(parts, fmt.Sprintf("%s: %v", f.ParticipantID, f.Err))
	}
	return fmt.Sprintf("match %d: %d prediction(s) failed: %s", e.MatchID, len(e.Failed), strings.Join(parts, "; "))
}

func (e *MatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}

// MatchReport resume a pontuação de uma partida
type MatchReport struct {
	MatchID       int64              `json:"match_id"`
	AlreadyScored bool               `json:"already_scored"`
	Awarded       int                `json:"awarded"`
	Skipped       int                `json:"skipped"`
	Failed        int                `json:"failed"`
	Entries       []pool.LedgerEntry `json:"entries,omitempty"`
}

// PassReport resume uma execução de "pontuar resultados pendentes"
type PassReport struct {
	Matches        []MatchReport `json:"matches"`
	MatchesScored  int           `json:"matches_scored"`
	EntriesWritten int           `json:"entries_written"`
	EntriesSkipped int           `json:"entries_skipped"`
	FailedMatches  []int64       `json:"failed_matches,omitempty"`
}

// Engine transforma palpites de partidas finalizadas em lançamentos de pontos
// Callbacks de métricas são opcionais
type Engine struct {
	Log     *zap.Logger
	Repo    Repository
	Weights Weights
	Locker  Locker
	Tracer  trace.Tracer
	NewID   func() string

	OnAwarded     func()       // métricas (counter++)
	OnSkipped     func()       // métricas
	OnMatchScored func()       // métricas
	OnError       func(string) // métricas por fase

	fallbackOnce sync.Once
	fallback     Locker
}

// NewEngine cria um Engine com lock local, tracer global e IDs uuid
func NewEngine(log *zap.Logger, repo Repository, w Weights) *Engine {
	return &Engine{
		Log:     log,
		Repo:    repo,
		Weights: w,
		Locker:  NewLocalLocker(),
		Tracer:  otel.Tracer(tracerName),
		NewID:   uuid.NewString,
	}
}

func (e *Engine) tracer() trace.Tracer {
	if e.Tracer == nil {
		return otel.Tracer(tracerName)
	}
	return e.Tracer
}

// locker devolve o Locker configurado ou um LocalLocker criado uma única vez
func (e *Engine) locker() Locker {
	if e.Locker != nil {
		return e.Locker
	}
	e.fallbackOnce.Do(func() { e.fallback = NewLocalLocker() })
	return e.fallback
}

func (e *Engine) logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

func (e *Engine) onError(stage string) {
	if e.OnError != nil {
		e.OnError(stage)
	}
}

// ScorePending pontua todas as partidas jogadas e ainda não pontuadas.
// Idempotente: pode ser chamado repetidamente. Falhas de uma partida não
// impedem as demais; o erro retornado junta todas as falhas.
func (e *Engine) ScorePending(ctx context.Context) (PassReport, error) {
	ctx, span := e.tracer().Start(ctx, "scoring.ScorePending")
	defer span.End()

	var pass PassReport
	matches, err := e.Repo.GetPlayableUnscoredMatches(ctx)
	if err != nil {
		e.onError("list_matches")
		span.RecordError(err)
		return pass, fmt.Errorf("list playable unscored matches: %w", err)
	}
	span.SetAttributes(attribute.Int("matches.pending", len(matches)))

	var errs []error
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		rep, err := e.ScoreMatch(ctx, m)
		pass.Matches = append(pass.Matches, rep)
		pass.EntriesWritten += rep.Awarded
		pass.EntriesSkipped += rep.Skipped
		if err != nil {
			errs = append(errs, err)
			pass.FailedMatches = append(pass.FailedMatches, m.ID)
			continue
		}
		if !rep.AlreadyScored {
			pass.MatchesScored++
		}
	}

	e.logger().Info("scoring pass finished",
		zap.Int("matches_pending", len(matches)),
		zap.Int("matches_scored", pass.MatchesScored),
		zap.Int("entries_written", pass.EntriesWritten),
		zap.Int("entries_skipped", pass.EntriesSkipped),
		zap.Int("matches_failed", len(pass.FailedMatches)),
	)

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		span.RecordError(joined)
		return pass, joined
	}
	return pass, nil
}

// ScoreMatch pontua uma partida jogada.
// Partida já pontuada: no-op. Lançamentos existentes são pulados.
// Se algum palpite falhar a partida não é marcada como pontuada.
func (e *Engine) ScoreMatch(ctx context.Context, m pool.Match) (MatchReport, error) {
	rep := MatchReport{MatchID: m.ID}
	log := e.logger().With(zap.Int64("match_id", m.ID))

	switch StateOf(m) {
	case StateUnplayed:
		return rep, fmt.Errorf("score match %d: %w", m.ID, ErrMatchNotPlayed)
	case StateScored:
		rep.AlreadyScored = true
		return rep, nil
	}

	ctx, span := e.tracer().Start(ctx, "scoring.ScoreMatch", trace.WithAttributes(
		attribute.Int64("match_id", m.ID),
		attribute.String("overtime", m.Overtime.String()),
	))
	defer span.End()

	locker := e.locker()
	unlock, err := locker.Lock(ctx, MatchLockKey(m.ID))
	if err != nil {
		e.onError("lock")
		span.RecordError(err)
		return rep, fmt.Errorf("lock match %d: %w", m.ID, err)
	}
	defer unlock()

	preds, err := e.Repo.GetUnscoredPredictions(ctx, m.ID)
	if err != nil {
		e.onError("load_predictions")
		span.RecordError(err)
		return rep, fmt.Errorf("load predictions for match %d: %w", m.ID, err)
	}

	newID := e.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	var failed []PredictionFailure
	for _, p := range preds {
		if err := ctx.Err(); err != nil {
			return rep, fmt.Errorf("score match %d: %w", m.ID, err)
		}

		// Lançamento já existe: já foi pontuado, pula sem sobrescrever
		_, found, err := e.Repo.GetLedgerEntry(ctx, m.ID, p.ParticipantID)
		if err != nil {
			e.onError("lookup")
			if errors.Is(err, ErrRepositoryUnavailable) {
				return rep, fmt.Errorf("score match %d: %w", m.ID, err)
			}
			failed = append(failed, PredictionFailure{ParticipantID: p.ParticipantID, Err: err})
			rep.Failed++
			log.Warn("ledger lookup failed", zap.String("participant_id", p.ParticipantID), zap.Error(err))
			continue
		}
		if found {
			rep.Skipped++
			if e.OnSkipped != nil {
				e.OnSkipped()
			}
			continue
		}

		entry := Award(e.Weights, m, p)
		entry.ID = newID()
		if err := e.Repo.PutLedgerEntry(ctx, entry); err != nil {
			if errors.Is(err, ErrDuplicateEntry) {
				rep.Skipped++
				if e.OnSkipped != nil {
					e.OnSkipped()
				}
				continue
			}
			e.onError("persist")
			if errors.Is(err, ErrRepositoryUnavailable) {
				return rep, fmt.Errorf("score match %d: %w", m.ID, err)
			}
			failed = append(failed, PredictionFailure{ParticipantID: p.ParticipantID, Err: err})
			rep.Failed++
			log.Warn("ledger write failed", zap.String("participant_id", p.ParticipantID), zap.Error(err))
			continue
		}

		rep.Awarded++
		rep.Entries = append(rep.Entries, entry)
		if e.OnAwarded != nil {
			e.OnAwarded()
		}
	}

	if len(failed) > 0 {
		merr := &MatchError{MatchID: m.ID, Failed: failed}
		span.RecordError(merr)
		return rep, merr
	}

	if err := e.Repo.MarkMatchScored(ctx, m.ID); err != nil {
		if errors.Is(err, ErrAlreadyScored) {
			rep.AlreadyScored = true
			log.Info("match scored concurrently")
			return rep, nil
		}
		e.onError("mark_scored")
		span.RecordError(err)
		return rep, fmt.Errorf("mark match %d scored: %w", m.ID, err)
	}
	if e.OnMatchScored != nil {
		e.OnMatchScored()
	}

	log.Info("match scored",
		zap.Int("awarded", rep.Awarded),
		zap.Int("skipped", rep.Skipped),
	)
	return rep, nil
}
