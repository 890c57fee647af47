package scoring

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/radieske/prediction-pool/internal/pool"
)

// fakeRepository é um repositório em memória que registra a sequência de chamadas
// Os campos *Func permitem injetar falhas por operação
type fakeRepository struct {
	mu      sync.Mutex
	trace   []string
	matches map[int64]pool.Match
	preds   map[int64][]pool.Prediction
	ledger  map[string]pool.LedgerEntry

	GetLedgerEntryFunc func(matchID int64, participantID string) error
	PutLedgerEntryFunc func(e pool.LedgerEntry) error
	MarkScoredFunc     func(matchID int64) error
	ListMatchesFunc    func() error
}

var _ Repository = (*fakeRepository)(nil)

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		matches: make(map[int64]pool.Match),
		preds:   make(map[int64][]pool.Prediction),
		ledger:  make(map[string]pool.LedgerEntry),
	}
}

func ledgerKey(matchID int64, participantID string) string {
	return fmt.Sprintf("%d/%s", matchID, participantID)
}

func (f *fakeRepository) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *fakeRepository) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *fakeRepository) addMatch(m pool.Match, preds ...pool.Prediction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matches[m.ID] = m
	f.preds[m.ID] = append(f.preds[m.ID], preds...)
}

func (f *fakeRepository) seedEntry(e pool.LedgerEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ledger[ledgerKey(e.MatchID, e.ParticipantID)] = e
}

func (f *fakeRepository) match(id int64) pool.Match {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.matches[id]
}

// entries retorna os lançamentos ordenados por (partida, participante)
func (f *fakeRepository) entries() []pool.LedgerEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]pool.LedgerEntry, 0, len(f.ledger))
	for _, e := range f.ledger {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MatchID != out[j].MatchID {
			return out[i].MatchID < out[j].MatchID
		}
		return out[i].ParticipantID < out[j].ParticipantID
	})
	return out
}

func (f *fakeRepository) GetPlayableUnscoredMatches(ctx context.Context) ([]pool.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetPlayableUnscoredMatches")
	if f.ListMatchesFunc != nil {
		if err := f.ListMatchesFunc(); err != nil {
			return nil, err
		}
	}
	var out []pool.Match
	for _, m := range f.matches {
		if m.Played && !m.Scored {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepository) GetUnscoredPredictions(ctx context.Context, matchID int64) ([]pool.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetUnscoredPredictions")
	var out []pool.Prediction
	for _, p := range f.preds[matchID] {
		if _, ok := f.ledger[ledgerKey(matchID, p.ParticipantID)]; !ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepository) GetLedgerEntry(ctx context.Context, matchID int64, participantID string) (pool.LedgerEntry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetLedgerEntry")
	if f.GetLedgerEntryFunc != nil {
		if err := f.GetLedgerEntryFunc(matchID, participantID); err != nil {
			return pool.LedgerEntry{}, false, err
		}
	}
	e, ok := f.ledger[ledgerKey(matchID, participantID)]
	return e, ok, nil
}

func (f *fakeRepository) PutLedgerEntry(ctx context.Context, e pool.LedgerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PutLedgerEntry")
	if f.PutLedgerEntryFunc != nil {
		if err := f.PutLedgerEntryFunc(e); err != nil {
			return err
		}
	}
	k := ledgerKey(e.MatchID, e.ParticipantID)
	if _, ok := f.ledger[k]; ok {
		return ErrDuplicateEntry
	}
	f.ledger[k] = e
	return nil
}

func (f *fakeRepository) MarkMatchScored(ctx context.Context, matchID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("MarkMatchScored")
	if f.MarkScoredFunc != nil {
		if err := f.MarkScoredFunc(matchID); err != nil {
			return err
		}
	}
	m := f.matches[matchID]
	if m.Scored {
		return ErrAlreadyScored
	}
	m.Scored = true
	f.matches[matchID] = m
	return nil
}
