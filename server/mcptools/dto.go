package mcptools

import (
	"blackjack-mcp/server/engine"
	"blackjack-mcp/server/session"
)

// Tool results use plain strings for cards so the output schema matches
// what is sent.

type SeatOut struct {
	ID          string   `json:"id" jsonschema:"seat identifier"`
	Name        string   `json:"name" jsonschema:"player name"`
	Chips       int      `json:"chips" jsonschema:"chips behind, excluding the current bet"`
	Bet         int      `json:"bet" jsonschema:"bet this round"`
	Hand        []string `json:"hand" jsonschema:"cards such as As or Td"`
	Score       int      `json:"score" jsonschema:"best hand total"`
	Soft        bool     `json:"soft" jsonschema:"an ace is counted as 11"`
	Status      string   `json:"status" jsonschema:"waiting, active, stood, busted, blackjack or doubled"`
	IsAutomated bool     `json:"is_automated" jsonschema:"seat is played by a decision source"`
	SatOut      bool     `json:"sat_out,omitempty" jsonschema:"seat skips this round"`
}

type DealerOut struct {
	Cards      []string `json:"cards" jsonschema:"visible dealer cards"`
	HoleHidden bool     `json:"hole_hidden" jsonschema:"second card is still face down"`
	Score      int      `json:"score" jsonschema:"total of the visible cards"`
}

type SeatResultOut struct {
	SeatID     string   `json:"seat_id"`
	Name       string   `json:"name"`
	Bet        int      `json:"bet"`
	Hand       []string `json:"hand"`
	Score      int      `json:"score"`
	Outcome    string   `json:"outcome" jsonschema:"win, lose, push, blackjack or bust"`
	Delta      int      `json:"delta" jsonschema:"chips won (positive) or lost (negative)"`
	ChipsAfter int      `json:"chips_after"`
}

type RoundOut struct {
	Round           int             `json:"round"`
	DealerCards     []string        `json:"dealer_cards"`
	DealerScore     int             `json:"dealer_score"`
	DealerBust      bool            `json:"dealer_bust"`
	DealerBlackjack bool            `json:"dealer_blackjack"`
	HouseDelta      int             `json:"house_delta"`
	Seats           []SeatResultOut `json:"seats"`
}

type StateOut struct {
	GameID        string    `json:"game_id"`
	Version       uint64    `json:"version"`
	Phase         string    `json:"phase" jsonschema:"lobby, betting, player_turns, dealer_turn, settlement, round_end or ended"`
	RoundNumber   int       `json:"round_number" jsonschema:"completed rounds"`
	Dealer        DealerOut `json:"dealer"`
	Seats         []SeatOut `json:"seats"`
	CurrentTurn   string    `json:"current_turn_seat_id,omitempty" jsonschema:"seat on turn during player_turns"`
	LegalActions  []string  `json:"legal_actions" jsonschema:"what the seat on turn may do"`
	ShoeRemaining int       `json:"shoe_remaining"`
	LastRound     *RoundOut `json:"last_round,omitempty"`
}

func cards(cs []engine.Card) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return out
}

func actions(as []engine.ActionKind) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = string(a)
	}
	return out
}

func seatOut(s engine.SeatView) SeatOut {
	return SeatOut{
		ID:          s.ID,
		Name:        s.Name,
		Chips:       s.Chips,
		Bet:         s.Bet,
		Hand:        cards(s.Hand),
		Score:       s.Score.Total,
		Soft:        s.Score.Soft,
		Status:      string(s.Status),
		IsAutomated: s.Automated,
		SatOut:      s.SatOut,
	}
}

func roundOut(r *engine.RoundResult) *RoundOut {
	if r == nil {
		return nil
	}
	out := &RoundOut{
		Round:           r.Round,
		DealerCards:     cards(r.Dealer),
		DealerScore:     r.DealerScore,
		DealerBust:      r.DealerBust,
		DealerBlackjack: r.DealerBlackjack,
		HouseDelta:      r.HouseDelta,
		Seats:           []SeatResultOut{},
	}
	for _, s := range r.Seats {
		out.Seats = append(out.Seats, SeatResultOut{
			SeatID:     s.SeatID,
			Name:       s.Name,
			Bet:        s.Bet,
			Hand:       cards(s.Hand),
			Score:      s.Score,
			Outcome:    string(s.Outcome),
			Delta:      s.Delta,
			ChipsAfter: s.ChipsAfter,
		})
	}
	return out
}

func stateOut(st session.State) StateOut {
	out := StateOut{
		GameID:      st.GameID,
		Version:     st.Version,
		Phase:       string(st.Phase),
		RoundNumber: st.Round,
		Dealer: DealerOut{
			Cards:      cards(st.Dealer.Cards),
			HoleHidden: st.Dealer.HoleHidden,
			Score:      st.Dealer.Score.Total,
		},
		Seats:         []SeatOut{},
		LegalActions:  actions(st.Legal),
		ShoeRemaining: st.ShoeRemaining,
		LastRound:     roundOut(st.LastRound),
	}
	for _, s := range st.Seats {
		out.Seats = append(out.Seats, seatOut(s))
	}
	if st.CurrentTurn != nil {
		out.CurrentTurn = *st.CurrentTurn
	}
	return out
}
