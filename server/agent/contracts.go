package agent

import (
	"fmt"
	"strings"

	"blackjack-mcp/server/engine"
)

// Observation is the JSON-friendly view sent to a model.
type Observation struct {
	Round         int      `json:"round"`
	Seat          string   `json:"seat"`
	Hand          []string `json:"hand"` // e.g. ["As","Kd"]
	Score         int      `json:"score"`
	Soft          bool     `json:"soft"`
	DealerUp      string   `json:"dealer_up"`
	DealerUpValue int      `json:"dealer_up_value"`
	Chips         int      `json:"chips"`
	Bet           int      `json:"bet"`
	Legal         []string `json:"legal_actions"` // subset of hit/stand/double_down
}

type ActionOut struct {
	Action  string `json:"action"`
	Comment string `json:"comment,omitempty"` // <=120 chars
}

// BuildObservation converts a seat view into what we send the model.
func BuildObservation(v engine.View) Observation {
	legal := make([]string, 0, len(v.Legal))
	for _, k := range v.Legal {
		legal = append(legal, string(k))
	}
	return Observation{
		Round:         v.Round,
		Seat:          v.Name,
		Hand:          cardsToStr(v.Hand),
		Score:         v.Score.Total,
		Soft:          v.Score.Soft,
		DealerUp:      v.DealerUp.String(),
		DealerUpValue: v.DealerUp.Value(),
		Chips:         v.Chips,
		Bet:           v.Bet,
		Legal:         legal,
	}
}

func cardsToStr(cs []engine.Card) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return out
}

// Prompt renders the observation as the user message.
func (o Observation) Prompt() string {
	words := make([]string, len(o.Legal))
	for i, l := range o.Legal {
		words[i] = promptWord(l)
	}
	soft := ""
	if o.Soft {
		soft = " soft"
	}
	return fmt.Sprintf(
		"My hand: %s (Score:%s %d)\nDealer shows: %s (Value: %d)\nChips behind: %d, bet: %d\nAvailable actions: %s\nWhat should I do? Reply with just ONE word: %s",
		strings.Join(o.Hand, ", "), soft, o.Score,
		o.DealerUp, o.DealerUpValue,
		o.Chips, o.Bet,
		strings.Join(words, ", "), strings.Join(words, ", "),
	)
}

func promptWord(action string) string {
	if action == string(engine.DoubleDown) {
		return "DOUBLE"
	}
	return strings.ToUpper(action)
}

const SystemPrompt = `You are playing blackjack against a dealer. Given the game state, decide your action.
Rules:
- Dealer hits on 16 or less and stands on all 17s
- You can only see one dealer card
- Going over 21 is a bust and loses
- DOUBLE doubles your bet and deals exactly one more card
You MUST respond with EXACTLY ONE WORD from the available actions.`

// Validate the model's action against the observation.
func Validate(o Observation, a ActionOut) error {
	for _, la := range o.Legal {
		if la == a.Action {
			return nil
		}
	}
	return fmt.Errorf("illegal action %q (legals: %v)", a.Action, o.Legal)
}
