package scoring

import "github.com/radieske/prediction-pool/internal/pool"

// State é o estado de processamento de uma partida
// Unplayed -> PlayedUnscored (resultado gravado) -> Scored (terminal, só pelo Engine)
type State int

const (
	StateUnplayed State = iota
	StatePlayedUnscored
	StateScored
)

func (s State) String() string {
	switch s {
	case StateUnplayed:
		return "unplayed"
	case StatePlayedUnscored:
		return "played_unscored"
	case StateScored:
		return "scored"
	}
	return "unknown"
}

// StateOf deriva o estado a partir das flags da partida
func StateOf(m pool.Match) State {
	switch {
	case m.Scored:
		return StateScored
	case m.Played:
		return StatePlayedUnscored
	}
	return StateUnplayed
}
