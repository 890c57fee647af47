package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/prediction-pool/internal/pool"
	"github.com/radieske/prediction-pool/internal/pool-api/dto"
	"github.com/radieske/prediction-pool/internal/ranking"
	"github.com/radieske/prediction-pool/internal/repo"
	"github.com/radieske/prediction-pool/internal/scoring"
	"github.com/radieske/prediction-pool/pkg/contracts/events"
)

// Store é o subconjunto do repositório usado pela API
type Store interface {
	GetMatch(ctx context.Context, id int64) (pool.Match, error)
	ListMatches(ctx context.Context, played *bool) ([]pool.Match, error)
	ListMatchesByTeam(ctx context.Context, teamID int64) ([]pool.Match, error)
	RecordResult(ctx context.Context, matchID int64, home, away int, ot pool.OvertimeKind) error
	UpsertPrediction(ctx context.Context, p pool.Prediction) (string, error)
	UpsertParticipant(ctx context.Context, p pool.Participant) error
	ParticipantNames(ctx context.Context) (map[string]string, error)
	ListParticipantPredictions(ctx context.Context, participantID string) ([]pool.PredictionWithPoints, error)
}

// Scorer roda uma passada de pontuação com as notificações (cache, Kafka, WS)
type Scorer interface {
	Run(ctx context.Context, reason string) (scoring.PassReport, error)
}

// ResultPublisher publica match_finalized
type ResultPublisher interface {
	PublishMatchFinalized(ctx context.Context, e events.MatchFinalized) error
}

// API expõe os endpoints REST do bolão
type API struct {
	Log       *zap.Logger
	Store     Store
	Ranker    ranking.Ranker
	Scorer    Scorer
	Publisher ResultPublisher // opcional
	WS        http.Handler    // opcional: GET /ws/leaderboard
	Now       func() time.Time
}

func (a *API) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/v1/leaderboard", a.getLeaderboard)                            // Ranking atual
	r.Get("/v1/matches", a.listMatches)                                   // ?played=true|false
	r.Get("/v1/matches/{id}", a.getMatch)                                 // Uma partida
	r.Put("/v1/matches/{id}/predictions", a.putPrediction)                // Palpite (até o início)
	r.Get("/v1/teams/{id}/matches", a.listTeamMatches)                    // Partidas de um time
	r.Get("/v1/participants/{id}/predictions", a.listParticipantPredicts) // Palpites com pontos

	r.Post("/v1/admin/score", a.scorePending)             // Pontuar resultados pendentes
	r.Post("/v1/admin/matches/{id}/result", a.postResult) // Lançamento manual de resultado

	if a.WS != nil {
		r.Handle("/ws/leaderboard", a.WS)
	}
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, dto.ErrorResponse{Error: err.Error()})
}

// writeStoreError traduz erros do repositório para status HTTP
func (a *API) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, scoring.ErrAlreadyScored), errors.Is(err, pool.ErrPredictionClosed):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, scoring.ErrRepositoryUnavailable):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		a.Log.Error("store failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
	}
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// getLeaderboard retorna o ranking com os nomes dos participantes
func (a *API) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := a.Ranker.Rank(r.Context())
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	names, err := a.Store.ParticipantNames(r.Context())
	if err != nil {
		a.Log.Warn("participant names unavailable", zap.Error(err))
	} else {
		rows = ranking.WithNames(rows, names)
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *API) listMatches(w http.ResponseWriter, r *http.Request) {
	var played *bool
	if v := r.URL.Query().Get("played"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("played must be true or false"))
			return
		}
		played = &b
	}
	ms, err := a.Store.ListMatches(r.Context(), played)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

func (a *API) getMatch(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	m, err := a.Store.GetMatch(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) listTeamMatches(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ms, err := a.Store.ListMatchesByTeam(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

// putPrediction cria ou substitui o palpite; fecha no horário de início da partida
func (a *API) putPrediction(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req dto.PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("bad json"))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	m, err := a.Store.GetMatch(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	if m.Played || !m.Open(a.now()) {
		a.writeStoreError(w, pool.ErrPredictionClosed)
		return
	}

	// Garante o participante antes do palpite; nome vazio não apaga o atual
	if err := a.Store.UpsertParticipant(r.Context(), pool.Participant{ID: req.ParticipantID, Name: req.ParticipantName}); err != nil {
		a.writeStoreError(w, err)
		return
	}

	p := pool.Prediction{
		ParticipantID: req.ParticipantID,
		MatchID:       id,
		HomeGoals:     *req.HomeGoals,
		AwayGoals:     *req.AwayGoals,
	}
	pid, err := a.Store.UpsertPrediction(r.Context(), p)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.PredictionResponse{PredictionID: pid, MatchID: id, HomeGoals: p.HomeGoals, AwayGoals: p.AwayGoals})
}

func (a *API) listParticipantPredicts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ps, err := a.Store.ListParticipantPredictions(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// scorePending dispara "pontuar resultados pendentes"; pode ser chamado quantas vezes quiser
func (a *API) scorePending(w http.ResponseWriter, r *http.Request) {
	rep, err := a.Scorer.Run(r.Context(), "scoring")
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ScoreResponse{Report: rep, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, dto.ScoreResponse{Report: rep})
}

// postResult grava o resultado final informado pelo admin e pontua em seguida
func (a *API) postResult(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req dto.ResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("bad json"))
		return
	}
	ot, err := req.Validate()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := a.Store.RecordResult(r.Context(), id, *req.HomeGoals, *req.AwayGoals, ot); err != nil {
		a.writeStoreError(w, err)
		return
	}

	if a.Publisher != nil {
		ev := events.MatchFinalized{
			MatchID:   id,
			HomeGoals: *req.HomeGoals,
			AwayGoals: *req.AwayGoals,
			Overtime:  ot.String(),
			Source:    "admin",
			Ts:        a.now().UTC(),
		}
		if err := a.Publisher.PublishMatchFinalized(r.Context(), ev); err != nil {
			a.Log.Warn("match finalized publish failed", zap.Int64("match_id", id), zap.Error(err))
		}
	}

	rep, scoreErr := a.Scorer.Run(r.Context(), "result")

	m, err := a.Store.GetMatch(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	if scoreErr != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ScoreResponse{Report: rep, Error: scoreErr.Error()})
		return
	}
	writeJSON(w, http.StatusOK, dto.ResultResponse{Match: m, Report: rep})
}
