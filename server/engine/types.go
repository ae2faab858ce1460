package engine

type Card struct {
	Rank int
	Suit byte
} // e.g. "As" => rank 14, suit 's'

type Phase string

const (
	PhaseLobby       Phase = "lobby"
	PhaseBetting     Phase = "betting"
	PhasePlayerTurns Phase = "player_turns"
	PhaseDealerTurn  Phase = "dealer_turn"
	PhaseSettlement  Phase = "settlement"
	PhaseRoundEnd    Phase = "round_end"
	PhaseEnded       Phase = "ended"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusStood     Status = "stood"
	StatusBusted    Status = "busted"
	StatusBlackjack Status = "blackjack"
	StatusDoubled   Status = "doubled"
)

type ActionKind string

const (
	Hit        ActionKind = "hit"
	Stand      ActionKind = "stand"
	DoubleDown ActionKind = "double_down"
)

type Action struct {
	SeatID string     `json:"seat_id"`
	Kind   ActionKind `json:"action"`
	Auto   bool       `json:"auto,omitempty"`
}

// Op is every externally or internally triggered table operation.
type Op string

const (
	OpJoin       Op = "join"
	OpLeave      Op = "leave"
	OpStart      Op = "start"
	OpBet        Op = "bet"
	OpSitOut     Op = "sit_out"
	OpHit        Op = "hit"
	OpStand      Op = "stand"
	OpDouble     Op = "double_down"
	OpDealerPlay Op = "dealer_play"
	OpSettle     Op = "settle"
	OpNewRound   Op = "new_round"
	OpEnd        Op = "end"
)

var Phases = []Phase{
	PhaseLobby, PhaseBetting, PhasePlayerTurns, PhaseDealerTurn,
	PhaseSettlement, PhaseRoundEnd, PhaseEnded,
}

var Ops = []Op{
	OpJoin, OpLeave, OpStart, OpBet, OpSitOut, OpHit, OpStand, OpDouble,
	OpDealerPlay, OpSettle, OpNewRound, OpEnd,
}

// Transitions lists, for every phase, the ops it accepts and the phase the
// table is in once the op has been applied. A missing entry is an invalid
// action. Ops whose outcome depends on the rest of the table (the last bet
// deals the cards, the last stand hands over to the dealer) name the phase
// they may end in; the table decides which.
var Transitions = map[Phase]map[Op][]Phase{
	PhaseLobby: {
		OpJoin:  {PhaseLobby},
		OpLeave: {PhaseLobby},
		OpStart: {PhaseBetting, PhaseRoundEnd},
		OpEnd:   {PhaseEnded},
	},
	PhaseBetting: {
		OpJoin:   {PhaseBetting},
		OpLeave:  {PhaseBetting, PhasePlayerTurns, PhaseDealerTurn, PhaseRoundEnd},
		OpBet:    {PhaseBetting, PhasePlayerTurns, PhaseDealerTurn},
		OpSitOut: {PhaseBetting, PhasePlayerTurns, PhaseDealerTurn, PhaseRoundEnd},
		OpEnd:    {PhaseEnded},
	},
	PhasePlayerTurns: {
		OpHit:    {PhasePlayerTurns, PhaseDealerTurn},
		OpStand:  {PhasePlayerTurns, PhaseDealerTurn},
		OpDouble: {PhasePlayerTurns, PhaseDealerTurn},
	},
	PhaseDealerTurn: {
		OpDealerPlay: {PhaseSettlement},
	},
	PhaseSettlement: {
		OpSettle: {PhaseRoundEnd},
	},
	PhaseRoundEnd: {
		OpNewRound: {PhaseBetting, PhaseRoundEnd},
		OpEnd:      {PhaseEnded},
	},
	PhaseEnded: {},
}

// Allowed reports whether op is legal in phase p.
func Allowed(p Phase, op Op) bool {
	_, ok := Transitions[p][op]
	return ok
}
