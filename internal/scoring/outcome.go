package scoring

import "github.com/radieske/prediction-pool/internal/pool"

// Outcome é o placar efetivo usado na comparação com os palpites
type Outcome struct {
	Home int
	Away int
}

// EffectiveResult normaliza o resultado da partida.
// Prorrogação/pênaltis: placar final como veio.
// Tempo normal: os dois lados recebem min(home, away).
// O lado visitante repete o mesmo min do mandante; comportamento herdado e
// mantido até a regra de produto ser confirmada (ver TestEffectiveResult_RegulationUsesMinForBothSides).
func EffectiveResult(m pool.Match) Outcome {
	if m.WentToOvertime() {
		return Outcome{Home: m.HomeGoals, Away: m.AwayGoals}
	}
	low := min(m.HomeGoals, m.AwayGoals)
	return Outcome{Home: low, Away: low}
}

// sign retorna +1 (mandante), -1 (visitante) ou 0 (empate)
func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}

// Award calcula os pontos de um palpite contra o resultado efetivo da partida.
// Função pura: não persiste nada e não gera ID.
func Award(w Weights, m pool.Match, p pool.Prediction) pool.LedgerEntry {
	res := EffectiveResult(m)

	goalHome := p.HomeGoals == res.Home
	goalAway := p.AwayGoals == res.Away
	tieBet := p.HomeGoals == p.AwayGoals
	tieMatch := res.Home == res.Away
	winBet := sign(p.HomeGoals - p.AwayGoals)
	winMatch := sign(res.Home - res.Away)

	e := pool.LedgerEntry{
		ParticipantID: p.ParticipantID,
		MatchID:       m.ID,
	}
	if goalHome {
		e.GoalPoints += w.Goal
	}
	if goalAway {
		e.GoalPoints += w.Goal
	}
	if tieBet && tieMatch {
		e.TiePoints += w.Tie
	} else if winBet != 0 && winBet == winMatch {
		e.WinPoints += w.Win
	}
	if goalHome && goalAway {
		e.CorrectPoints += w.Correct
	}
	e.Total = e.Sum()
	return e
}
