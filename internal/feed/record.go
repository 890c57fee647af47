// Package feed lê a agenda e os resultados de partidas do serviço de estatísticas (Mestis)
// e converte os registros do feed para o modelo do bolão.
package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/radieske/prediction-pool/internal/pool"
)

// ErrMalformedRecord indica registro do feed que não pode ser convertido
var ErrMalformedRecord = errors.New("malformed feed record")

// Layout de GameDate + GameTime no feed
const dateTimeLayout = "02.01.2006 15:04:05"

// Códigos do feed
const (
	statusPlayed = "2"

	finishedRegulation = "1"
	finishedShootout   = "3"
)

// flexString aceita valores que o feed manda ora como string ora como número
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// GameRecord é um jogo como vem do feed
type GameRecord struct {
	UniqueID     flexString `json:"UniqueID"`
	HomeTeamID   flexString `json:"HomeTeamID"`
	HomeTeamName string     `json:"HomeTeamName"`
	AwayTeamID   flexString `json:"AwayTeamID"`
	AwayTeamName string     `json:"AwayTeamName"`
	GameDate     string     `json:"GameDate"` // dd.mm.yyyy
	GameTime     string     `json:"GameTime"` // HH:MM:SS
	Result       string     `json:"Result"`   // "3-1" ou "3-1 (1-0, 1-1, 1-0)"
	GameStatus   flexString `json:"GameStatus"`
	FinishedType flexString `json:"FinishedType"`
}

type gamesEnvelope struct {
	Games []GameRecord `json:"games"`
}

// Played informa se o feed considera o jogo encerrado
func (r GameRecord) Played() bool { return string(r.GameStatus) == statusPlayed }

// ToMatch converte o registro; o resultado só é lido quando o jogo foi jogado
func (r GameRecord) ToMatch(loc *time.Location) (pool.Match, error) {
	id, err := parseID("UniqueID", r.UniqueID)
	if err != nil {
		return pool.Match{}, err
	}
	home, err := parseID("HomeTeamID", r.HomeTeamID)
	if err != nil {
		return pool.Match{}, err
	}
	away, err := parseID("AwayTeamID", r.AwayTeamID)
	if err != nil {
		return pool.Match{}, err
	}

	if loc == nil {
		loc = time.UTC
	}
	at, err := time.ParseInLocation(dateTimeLayout, strings.TrimSpace(r.GameDate)+" "+strings.TrimSpace(r.GameTime), loc)
	if err != nil {
		return pool.Match{}, fmt.Errorf("%w: game %d time %q %q: %v", ErrMalformedRecord, id, r.GameDate, r.GameTime, err)
	}

	m := pool.Match{ID: id, Time: at, HomeTeamID: home, AwayTeamID: away}
	if !r.Played() {
		return m, nil
	}

	m.HomeGoals, m.AwayGoals, err = ParseResult(r.Result)
	if err != nil {
		return pool.Match{}, fmt.Errorf("game %d: %w", id, err)
	}
	m.Overtime = parseFinishedType(r.FinishedType)
	m.Played = true
	return m, nil
}

// Teams devolve os times (mandante e visitante) sem repetição, na ordem do feed
func Teams(records []GameRecord) ([]pool.Team, error) {
	seen := make(map[int64]bool)
	var out []pool.Team
	add := func(field string, raw flexString, name string) error {
		id, err := parseID(field, raw)
		if err != nil {
			return err
		}
		if seen[id] || strings.TrimSpace(name) == "" {
			return nil
		}
		seen[id] = true
		out = append(out, pool.Team{ID: id, Name: strings.TrimSpace(name)})
		return nil
	}
	for _, r := range records {
		if err := add("HomeTeamID", r.HomeTeamID, r.HomeTeamName); err != nil {
			return nil, err
		}
		if err := add("AwayTeamID", r.AwayTeamID, r.AwayTeamName); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ParseResult lê o placar final "casa-fora"; o que vier depois do primeiro espaço
// (parciais por período) é ignorado
func ParseResult(s string) (home, away int, err error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, 0, fmt.Errorf("%w: empty result", ErrMalformedRecord)
	}
	parts := strings.Split(fields[0], "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: result %q", ErrMalformedRecord, s)
	}
	home, herr := strconv.Atoi(parts[0])
	away, aerr := strconv.Atoi(parts[1])
	if herr != nil || aerr != nil || home < 0 || away < 0 {
		return 0, 0, fmt.Errorf("%w: result %q", ErrMalformedRecord, s)
	}
	return home, away, nil
}

// parseFinishedType: só "1" é tempo normal; qualquer outro valor (inclusive
// vazio) conta como prorrogação, e "3" identifica os pênaltis
func parseFinishedType(f flexString) pool.OvertimeKind {
	switch strings.TrimSpace(string(f)) {
	case finishedRegulation:
		return pool.OvertimeNone
	case finishedShootout:
		return pool.OvertimeShootout
	}
	return pool.OvertimeExtra
}

func parseID(field string, f flexString) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(string(f)), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s %q", ErrMalformedRecord, field, string(f))
	}
	return id, nil
}
