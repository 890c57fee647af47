// Package ranking agrega o livro de pontos em um ranking ordenado.
// Não guarda estado: o ranking é sempre recalculado a partir dos lançamentos.
package ranking

import (
	"context"
	"fmt"
	"sort"

	"github.com/radieske/prediction-pool/internal/pool"
	"github.com/radieske/prediction-pool/internal/scoring"
)

// Row é a linha do ranking de um participante
// TiePoints é a soma bruta; Ties é a quantidade de empates acertados (TiePoints / peso TIE)
type Row struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name,omitempty"`
	GoalPoints    int    `json:"goals"`
	WinPoints     int    `json:"wins"`
	TiePoints     int    `json:"tie_points"`
	Ties          int    `json:"ties"`
	CorrectPoints int    `json:"corrects"`
	Total         int    `json:"total"`
	Predictions   int    `json:"bets"`
}

// LedgerReader lê todos os lançamentos do livro de pontos
type LedgerReader interface {
	ListAllLedgerEntries(ctx context.Context) ([]pool.LedgerEntry, error)
}

// Ranker produz o ranking ordenado
type Ranker interface {
	Rank(ctx context.Context) ([]Row, error)
}

// Aggregator calcula o ranking direto do livro de pontos
type Aggregator struct {
	Reader    LedgerReader
	TieWeight int
}

// NewAggregator usa o peso TIE das regras de pontuação para converter empates
func NewAggregator(r LedgerReader, w scoring.Weights) *Aggregator {
	return &Aggregator{Reader: r, TieWeight: w.Tie}
}

// Rank lê o livro inteiro e devolve o ranking
func (a *Aggregator) Rank(ctx context.Context) ([]Row, error) {
	entries, err := a.Reader.ListAllLedgerEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return Aggregate(entries, a.TieWeight), nil
}

// Aggregate agrupa por participante e ordena por total, placares exatos,
// empates, vitórias e gols (todos decrescentes). O ID do participante
// desempata o restante para a ordem ser total e estável.
func Aggregate(entries []pool.LedgerEntry, tieWeight int) []Row {
	if tieWeight <= 0 {
		tieWeight = scoring.DefaultWeights().Tie
	}

	byParticipant := make(map[string]*Row)
	for _, e := range entries {
		r, ok := byParticipant[e.ParticipantID]
		if !ok {
			r = &Row{ParticipantID: e.ParticipantID}
			byParticipant[e.ParticipantID] = r
		}
		r.GoalPoints += e.GoalPoints
		r.WinPoints += e.WinPoints
		r.TiePoints += e.TiePoints
		r.CorrectPoints += e.CorrectPoints
		r.Total += e.Total
		r.Predictions++
	}

	rows := make([]Row, 0, len(byParticipant))
	for _, r := range byParticipant {
		r.Ties = r.TiePoints / tieWeight
		rows = append(rows, *r)
	}

	sort.Slice(rows, func(i, j int) bool { return Less(rows[i], rows[j]) })

	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

// Less informa se a precede b no ranking
func Less(a, b Row) bool {
	if a.Total != b.Total {
		return a.Total > b.Total
	}
	if a.CorrectPoints != b.CorrectPoints {
		return a.CorrectPoints > b.CorrectPoints
	}
	if a.TiePoints != b.TiePoints {
		return a.TiePoints > b.TiePoints
	}
	if a.WinPoints != b.WinPoints {
		return a.WinPoints > b.WinPoints
	}
	if a.GoalPoints != b.GoalPoints {
		return a.GoalPoints > b.GoalPoints
	}
	return a.ParticipantID < b.ParticipantID
}

// WithNames preenche o nome de exibição dos participantes conhecidos
func WithNames(rows []Row, names map[string]string) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)
	for i := range out {
		if n, ok := names[out[i].ParticipantID]; ok {
			out[i].Name = n
		}
	}
	return out
}
