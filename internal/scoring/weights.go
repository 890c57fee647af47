package scoring

import "fmt"

// Weights são os pesos de cada critério de pontuação
// Valor imutável passado ao Engine; permite regras diferentes por temporada
type Weights struct {
	Goal    int `json:"goal"`    // por lado com número de gols exato
	Win     int `json:"win"`     // vencedor correto (sem empate)
	Tie     int `json:"tie"`     // empate palpitado e ocorrido
	Correct int `json:"correct"` // bônus de placar exato
}

// DefaultWeights retorna os pesos padrão do bolão: GOAL=1, WIN=1, TIE=2, CORRECT=1
func DefaultWeights() Weights {
	return Weights{Goal: 1, Win: 1, Tie: 2, Correct: 1}
}

// Validate garante pesos não negativos e TIE positivo (usado na conversão de empates no ranking)
func (w Weights) Validate() error {
	if w.Goal < 0 || w.Win < 0 || w.Tie < 0 || w.Correct < 0 {
		return fmt.Errorf("invalid weights %+v: negative value", w)
	}
	if w.Tie == 0 {
		return fmt.Errorf("invalid weights %+v: tie weight must be positive", w)
	}
	return nil
}
