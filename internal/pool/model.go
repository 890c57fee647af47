package pool

import (
	"errors"
	"fmt"
	"time"
)

// ErrPredictionClosed indica palpite enviado depois do início da partida
var ErrPredictionClosed = errors.New("prediction closed: match already started")

// OvertimeKind indica como a partida terminou
type OvertimeKind int

const (
	OvertimeNone     OvertimeKind = iota // tempo normal
	OvertimeExtra                        // prorrogação
	OvertimeShootout                     // disputa de pênaltis
)

func (k OvertimeKind) String() string {
	switch k {
	case OvertimeNone:
		return "none"
	case OvertimeExtra:
		return "overtime"
	case OvertimeShootout:
		return "shootout"
	default:
		return fmt.Sprintf("OvertimeKind(%d)", int(k))
	}
}

func (k OvertimeKind) MarshalText() ([]byte, error) {
	if k < OvertimeNone || k > OvertimeShootout {
		return nil, fmt.Errorf("invalid overtime kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *OvertimeKind) UnmarshalText(b []byte) error {
	parsed, err := ParseOvertimeKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseOvertimeKind converte o valor persistido/serializado em OvertimeKind
func ParseOvertimeKind(s string) (OvertimeKind, error) {
	switch s {
	case "", "none":
		return OvertimeNone, nil
	case "overtime":
		return OvertimeExtra, nil
	case "shootout":
		return OvertimeShootout, nil
	}
	return OvertimeNone, fmt.Errorf("unknown overtime kind %q", s)
}

// Team é um time importado do feed de partidas
type Team struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Match é a partida com o resultado final (quando já jogada)
// Scored só passa de false para true uma vez, pelo motor de pontuação
type Match struct {
	ID         int64        `json:"id"`
	Time       time.Time    `json:"time"`
	HomeTeamID int64        `json:"home_team_id"`
	AwayTeamID int64        `json:"away_team_id"`
	HomeGoals  int          `json:"home_goals"`
	AwayGoals  int          `json:"away_goals"`
	Overtime   OvertimeKind `json:"overtime"`
	Played     bool         `json:"played"`
	Scored     bool         `json:"scored"`
}

// WentToOvertime informa se a partida foi decidida na prorrogação ou nos pênaltis
func (m Match) WentToOvertime() bool { return m.Overtime != OvertimeNone }

// Open informa se ainda é possível palpitar na partida
func (m Match) Open(now time.Time) bool { return now.Before(m.Time) }

// Prediction é o palpite de um participante para uma partida
// No máximo um por (participante, partida)
type Prediction struct {
	ID            string `json:"id"`
	ParticipantID string `json:"participant_id"`
	MatchID       int64  `json:"match_id"`
	HomeGoals     int    `json:"home_goals"`
	AwayGoals     int    `json:"away_goals"`
}

// LedgerEntry registra os pontos de um participante em uma partida
// Criado uma única vez pelo motor de pontuação e nunca alterado
type LedgerEntry struct {
	ID            string `json:"id"`
	ParticipantID string `json:"participant_id"`
	MatchID       int64  `json:"match_id"`
	GoalPoints    int    `json:"goal_points"`
	WinPoints     int    `json:"win_points"`
	TiePoints     int    `json:"tie_points"`
	CorrectPoints int    `json:"correct_points"`
	Total         int    `json:"total"`
}

// Sum retorna a soma exata dos quatro subtotais
func (e LedgerEntry) Sum() int {
	return e.GoalPoints + e.WinPoints + e.TiePoints + e.CorrectPoints
}

// Participant é referenciado apenas pelo ID; o nome serve para exibição
type Participant struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// PredictionWithPoints é o palpite do participante junto da partida e dos pontos obtidos
// Points é 0 enquanto a partida não foi pontuada
type PredictionWithPoints struct {
	Prediction Prediction `json:"prediction"`
	Match      Match      `json:"match"`
	Points     int        `json:"points"`
}
