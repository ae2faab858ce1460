package session

import (
	"math"

	"blackjack-mcp/server/engine"
)

// SeatStats are a player's career counters across games.
type SeatStats struct {
	Hands      int `json:"hands"`
	Wins       int `json:"wins"`
	Losses     int `json:"losses"`
	Pushes     int `json:"pushes"`
	Blackjacks int `json:"blackjacks"`
	Busts      int `json:"busts"`
	Doubles    int `json:"doubles"`
	NetChips   int `json:"net_chips"`
	JudgeGood  int `json:"judge_good"`
	JudgeTotal int `json:"judge_total"`
}

func (s *SeatStats) addResult(r engine.SeatResult) {
	s.Hands++
	s.NetChips += r.Delta
	switch r.Outcome {
	case engine.OutcomeWin:
		s.Wins++
	case engine.OutcomeBlackjack:
		s.Wins++
		s.Blackjacks++
	case engine.OutcomePush:
		s.Pushes++
	case engine.OutcomeBust:
		s.Losses++
		s.Busts++
	default:
		s.Losses++
	}
	if r.Status == engine.StatusDoubled {
		s.Doubles++
	}
}

func (s *SeatStats) addJudgement(top bool) {
	s.JudgeTotal++
	if top {
		s.JudgeGood++
	}
}

// WinRate counts a push as half a win.
func (s SeatStats) WinRate() float64 {
	if s.Hands == 0 {
		return 0
	}
	return (float64(s.Wins) + 0.5*float64(s.Pushes)) / float64(s.Hands)
}

// UnitsPer100 is net chips per hundred hands in units of the minimum bet.
func (s SeatStats) UnitsPer100(unit int) float64 {
	if s.Hands == 0 || unit <= 0 {
		return 0
	}
	return (float64(s.NetChips) / float64(unit)) / (float64(s.Hands) / 100.0)
}

func (s SeatStats) JudgeAccuracy() float64 {
	if s.JudgeTotal <= 0 {
		return 0
	}
	return float64(s.JudgeGood) / float64(s.JudgeTotal)
}

// WilsonCI95 for a Bernoulli win rate, pushes counted as half.
func WilsonCI95(wins, ties, total int) (low, hi float64) {
	if total <= 0 {
		return 0, 1
	}
	z := 1.96
	n := float64(total)
	p := (float64(wins) + 0.5*float64(ties)) / n
	den := 1 + (z*z)/n
	center := p + (z*z)/(2*n)
	half := z * math.Sqrt((p*(1-p))/n+(z*z)/(4*n*n))
	return (center - half) / den, (center + half) / den
}
