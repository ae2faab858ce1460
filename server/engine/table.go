package engine

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// maxCardsPerHand is the reserve kept per hand before a deal. Eleven is the
// longest hand a single deck allows without busting (four aces, four twos,
// three threes); a multi-deck shoe allows longer ones, so a round can still
// run the shoe dry, and the action that needed the card is then rejected.
const maxCardsPerHand = 11

type Outcome string

const (
	OutcomeWin       Outcome = "win"
	OutcomeLose      Outcome = "lose"
	OutcomePush      Outcome = "push"
	OutcomeBlackjack Outcome = "blackjack"
	OutcomeBust      Outcome = "bust"
)

type SeatResult struct {
	SeatID     string  `json:"seat_id"`
	Name       string  `json:"name"`
	Automated  bool    `json:"automated"`
	Bet        int     `json:"bet"`
	Hand       []Card  `json:"hand"`
	Score      int     `json:"score"`
	Status     Status  `json:"status"`
	Outcome    Outcome `json:"outcome"`
	Delta      int     `json:"delta"`
	ChipsAfter int     `json:"chips_after"`
}

type RoundResult struct {
	Round           int          `json:"round"`
	Dealer          []Card       `json:"dealer"`
	DealerScore     int          `json:"dealer_score"`
	DealerBust      bool         `json:"dealer_bust"`
	DealerBlackjack bool         `json:"dealer_blackjack"`
	Seats           []SeatResult `json:"seats"`
	HouseDelta      int          `json:"house_delta"`
	Actions         []Action     `json:"actions"`
}

type SeatView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Chips     int    `json:"chips"`
	Bet       int    `json:"bet"`
	Hand      []Card `json:"hand"`
	Score     Score  `json:"score"`
	Status    Status `json:"status"`
	Automated bool   `json:"is_automated"`
	SatOut    bool   `json:"sat_out,omitempty"`
}

type DealerView struct {
	Cards      []Card `json:"cards"`
	HoleHidden bool   `json:"hole_hidden"`
	Score      Score  `json:"score"`
}

type Snapshot struct {
	Phase         Phase        `json:"phase"`
	Round         int          `json:"round_number"`
	Dealer        DealerView   `json:"dealer"`
	Seats         []SeatView   `json:"seats"`
	CurrentTurn   *string      `json:"current_turn_seat_id"`
	Legal         []ActionKind `json:"legal_actions"`
	ShoeRemaining int          `json:"shoe_remaining"`
	LastRound     *RoundResult `json:"last_round,omitempty"`
}

type Standing struct {
	SeatID    string `json:"seat_id"`
	Name      string `json:"name"`
	Automated bool   `json:"automated"`
	Chips     int    `json:"chips"`
	Net       int    `json:"net"`
}

type Table struct {
	cfg      Config
	phase    Phase
	seats    []*Seat
	buyIn    map[string]int
	dealer   Dealer
	shoe     *Shoe
	turn     int
	round    int
	nextID   int
	actions  []Action
	last     *RoundResult
	houseNet int
}

// NewTable builds a table with a freshly shuffled shoe of cfg.Decks decks.
func NewTable(cfg Config) (*Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Decks < 2 {
		return nil, fmt.Errorf("table needs at least 2 decks, got %d", cfg.Decks)
	}
	shoe, err := NewShoe(cfg.Decks, cfg.Seed)
	if err != nil {
		return nil, err
	}
	return newTable(cfg, shoe), nil
}

// NewTableWithShoe uses shoe as given. Mostly for tests with stacked shoes.
func NewTableWithShoe(cfg Config, shoe *Shoe) (*Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newTable(cfg, shoe), nil
}

func newTable(cfg Config, shoe *Shoe) *Table {
	return &Table{cfg: cfg, phase: PhaseLobby, shoe: shoe, turn: -1, buyIn: map[string]int{}}
}

func (t *Table) Config() Config { return t.cfg }
func (t *Table) Phase() Phase   { return t.phase }
func (t *Table) Round() int     { return t.round }
func (t *Table) HouseNet() int  { return t.houseNet }

func (t *Table) LastRound() *RoundResult { return t.last }

// ---- phase bookkeeping ----

func (t *Table) check(op Op) error {
	if Allowed(t.phase, op) {
		return nil
	}
	if t.phase == PhaseLobby {
		return fmt.Errorf("%w: %s needs a started game", ErrGameNotStarted, op)
	}
	return fmt.Errorf("%w: %s not allowed during %s", ErrInvalidAction, op, t.phase)
}

func (t *Table) setPhase(op Op, next Phase) {
	if !slices.Contains(Transitions[t.phase][op], next) {
		panic(fmt.Sprintf("engine: %s from %s cannot reach %s", op, t.phase, next))
	}
	t.phase = next
}

func (t *Table) find(ref string) (int, *Seat, error) {
	ref = strings.TrimSpace(ref)
	for i, s := range t.seats {
		if s.ID == ref || strings.EqualFold(s.Name, ref) {
			return i, s, nil
		}
	}
	return -1, nil, fmt.Errorf("%w: %q", ErrUnknownSeat, ref)
}

func (t *Table) current() *Seat {
	if t.turn < 0 || t.turn >= len(t.seats) {
		return nil
	}
	return t.seats[t.turn]
}

func (t *Table) bettors() []*Seat {
	var out []*Seat
	for _, s := range t.seats {
		if s.InRound() {
			out = append(out, s)
		}
	}
	return out
}

// ---- lobby ----

// Join seats a new player. chips <= 0 takes the configured starting stack.
func (t *Table) Join(name string, chips int, automated bool) (string, error) {
	if err := t.check(OpJoin); err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidAction)
	}
	for _, s := range t.seats {
		if strings.EqualFold(s.Name, name) {
			return "", fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
	}
	if len(t.seats) >= t.cfg.MaxSeats {
		return "", fmt.Errorf("%w: %d seats taken", ErrTableFull, len(t.seats))
	}
	if chips <= 0 {
		chips = t.cfg.StartingChips
	}
	t.nextID++
	s := &Seat{
		ID:        fmt.Sprintf("seat-%d", t.nextID),
		Name:      name,
		Chips:     chips,
		Status:    StatusWaiting,
		Automated: automated,
	}
	if t.phase == PhaseBetting && s.Chips < t.cfg.MinBet {
		s.SatOut = true
	}
	t.seats = append(t.seats, s)
	t.buyIn[s.ID] = chips
	t.setPhase(OpJoin, t.phase)
	return s.ID, nil
}

// Leave removes a seat before cards are dealt, refunding any bet.
func (t *Table) Leave(ref string) error {
	if err := t.check(OpLeave); err != nil {
		return err
	}
	i, s, err := t.find(ref)
	if err != nil {
		return err
	}
	s.refund()
	t.seats = slices.Delete(t.seats, i, i+1)
	if t.phase == PhaseLobby {
		t.setPhase(OpLeave, PhaseLobby)
		return nil
	}
	return t.closeBetting(OpLeave)
}

func (t *Table) Start() error {
	if err := t.check(OpStart); err != nil {
		return err
	}
	if len(t.seats) == 0 {
		return fmt.Errorf("%w: no players seated", ErrInvalidAction)
	}
	t.beginBetting()
	return t.closeBetting(OpStart)
}

// ---- betting ----

func (t *Table) beginBetting() {
	t.dealer.reset()
	t.actions = nil
	t.turn = -1
	for _, s := range t.seats {
		s.resetRound()
		if s.Chips < t.cfg.MinBet {
			s.SatOut = true
		}
	}
}

func (t *Table) PlaceBet(ref string, amount int) error {
	if err := t.check(OpBet); err != nil {
		return err
	}
	_, s, err := t.find(ref)
	if err != nil {
		return err
	}
	if err := s.placeBet(amount, t.cfg.MinBet, t.cfg.MaxBet); err != nil {
		return err
	}
	if err := t.closeBetting(OpBet); err != nil {
		if t.phase == PhaseBetting {
			s.refund()
		}
		return err
	}
	return nil
}

func (t *Table) SitOut(ref string) error {
	if err := t.check(OpSitOut); err != nil {
		return err
	}
	_, s, err := t.find(ref)
	if err != nil {
		return err
	}
	if !s.Pending() {
		return fmt.Errorf("%w: %s already bet or sat out", ErrInvalidAction, s.Name)
	}
	s.SatOut = true
	if err := t.closeBetting(OpSitOut); err != nil {
		if t.phase == PhaseBetting {
			s.SatOut = false
		}
		return err
	}
	return nil
}

// closeBetting deals once no seat still owes a bet.
func (t *Table) closeBetting(op Op) error {
	for _, s := range t.seats {
		if s.Pending() {
			t.setPhase(op, PhaseBetting)
			return nil
		}
	}
	bettors := t.bettors()
	if len(bettors) == 0 {
		t.setPhase(op, PhaseRoundEnd)
		t.round++
		t.last = &RoundResult{Round: t.round}
		return nil
	}
	return t.deal(op, bettors)
}

func (t *Table) reshuffleAt(bettors int) int {
	return max(t.shoe.Size()*t.cfg.ReshufflePct/100, maxCardsPerHand*(bettors+1))
}

func (t *Table) deal(op Op, bettors []*Seat) error {
	reshuffle := t.shoe.Remaining() < t.reshuffleAt(len(bettors))
	avail := t.shoe.Remaining()
	if reshuffle {
		avail = t.shoe.Size()
	}
	if need := 2 * (len(bettors) + 1); avail < need {
		return fmt.Errorf("%w: %d cards left, deal needs %d", ErrShoeExhausted, avail, need)
	}
	if reshuffle {
		t.shoe.Reshuffle()
	}
	draw := func() Card {
		c, _ := t.shoe.Draw()
		return c
	}
	for _, s := range bettors {
		s.Hand = []Card{draw(), draw()}
		s.Status = StatusActive
		if s.Score().Blackjack {
			s.Status = StatusBlackjack
		}
	}
	up := draw()
	t.dealer.deal(up, draw())

	// seats keep the status they were dealt; settlement decides
	if t.cfg.DealerPeek && t.dealer.Score().Blackjack {
		t.setPhase(op, PhaseDealerTurn)
		return t.dealerTurn()
	}
	t.turn = -1
	return t.advance(op)
}

// ---- player turns ----

// advance moves the turn to the next active seat in seating order, or hands
// over to the dealer when none is left.
func (t *Table) advance(op Op) error {
	for i := t.turn + 1; i < len(t.seats); i++ {
		if s := t.seats[i]; s.InRound() && s.Status == StatusActive {
			t.turn = i
			t.setPhase(op, PhasePlayerTurns)
			return nil
		}
	}
	t.turn = -1
	t.setPhase(op, PhaseDealerTurn)
	return t.dealerTurn()
}

func (t *Table) onTurn(ref string, op Op) (*Seat, error) {
	if err := t.check(op); err != nil {
		return nil, err
	}
	_, s, err := t.find(ref)
	if err != nil {
		return nil, err
	}
	if cur := t.current(); cur != s {
		return nil, fmt.Errorf("%w: not %s's turn", ErrInvalidAction, s.Name)
	}
	if err := s.checkActive(); err != nil {
		return nil, err
	}
	return s, nil
}

func (t *Table) Hit(ref string) error        { return t.act(ref, Hit, false) }
func (t *Table) Stand(ref string) error      { return t.act(ref, Stand, false) }
func (t *Table) DoubleDown(ref string) error { return t.act(ref, DoubleDown, false) }

// Act applies kind for the seat on turn.
func (t *Table) Act(ref string, kind ActionKind) error { return t.act(ref, kind, false) }

func (t *Table) act(ref string, kind ActionKind, auto bool) error {
	var op Op
	switch kind {
	case Hit:
		op = OpHit
	case Stand:
		op = OpStand
	case DoubleDown:
		op = OpDouble
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidAction, kind)
	}
	s, err := t.onTurn(ref, op)
	if err != nil {
		return err
	}
	undo := t.save(s)
	if err := t.apply(s, op, kind, auto); err != nil {
		t.restore(s, undo)
		return err
	}
	return nil
}

func (t *Table) apply(s *Seat, op Op, kind ActionKind, auto bool) error {
	switch kind {
	case Hit:
		c, err := t.shoe.Draw()
		if err != nil {
			return err
		}
		s.hit(c)
	case Stand:
		s.stand()
	case DoubleDown:
		if !s.canDouble() {
			if s.Chips < s.Bet {
				return fmt.Errorf("%w: %s needs %d more chips to double", ErrInsufficientFunds, s.Name, s.Bet-s.Chips)
			}
			return fmt.Errorf("%w: double only on the first decision", ErrInvalidAction)
		}
		c, err := t.shoe.Draw()
		if err != nil {
			return err
		}
		s.doubleDown(c)
	}
	t.actions = append(t.actions, Action{SeatID: s.ID, Kind: kind, Auto: auto})
	if s.Status == StatusActive {
		t.setPhase(op, PhasePlayerTurns)
		return nil
	}
	return t.advance(op)
}

// saved is what one action can change: the acting seat, the dealer, the
// shoe position and the turn.
type saved struct {
	seat    Seat
	hand    []Card
	dealer  Dealer
	dealt   []Card
	next    int
	phase   Phase
	turn    int
	actions int
}

func (t *Table) save(s *Seat) saved {
	return saved{
		seat:    *s,
		hand:    append([]Card(nil), s.Hand...),
		dealer:  t.dealer,
		dealt:   append([]Card(nil), t.dealer.cards...),
		next:    t.shoe.next,
		phase:   t.phase,
		turn:    t.turn,
		actions: len(t.actions),
	}
}

func (t *Table) restore(s *Seat, v saved) {
	*s = v.seat
	s.Hand = v.hand
	t.dealer = v.dealer
	t.dealer.cards = v.dealt
	t.shoe.next = v.next
	t.phase = v.phase
	t.turn = v.turn
	t.actions = t.actions[:v.actions]
}

// PlayAutomatedTurn asks d for actions until the automated seat on turn has
// finished, applying each through the same checks as a human action.
func (t *Table) PlayAutomatedTurn(ctx context.Context, d Decider) ([]Decision, error) {
	if err := t.check(OpHit); err != nil {
		return nil, err
	}
	s := t.current()
	if s == nil {
		return nil, fmt.Errorf("%w: no seat on turn", ErrInvalidAction)
	}
	if !s.Automated {
		return nil, fmt.Errorf("%w: %s is not automated", ErrInvalidAction, s.Name)
	}
	var out []Decision
	for t.phase == PhasePlayerTurns && t.current() == s {
		v := t.view(s)
		kind, err := d.Decide(ctx, v)
		if err != nil {
			return out, fmt.Errorf("decide for %s: %w", s.Name, err)
		}
		if err := t.act(s.ID, kind, true); err != nil {
			return out, err
		}
		out = append(out, Decision{View: v, Action: kind})
	}
	return out, nil
}

// ---- dealer & settlement ----

func (t *Table) dealerMustDraw() bool {
	for _, s := range t.bettors() {
		switch s.Status {
		case StatusStood, StatusDoubled, StatusActive:
			return true
		}
	}
	return false
}

func (t *Table) dealerTurn() error {
	if t.dealerMustDraw() {
		if err := t.dealer.play(t.shoe.Draw); err != nil {
			return err
		}
	} else {
		t.dealer.reveal()
	}
	t.setPhase(OpDealerPlay, PhaseSettlement)
	t.settle()
	t.setPhase(OpSettle, PhaseRoundEnd)
	return nil
}

func (t *Table) outcome(s *Seat, dealer Score) (Outcome, int) {
	sc := s.Score()
	switch {
	case sc.Bust:
		return OutcomeBust, -s.Bet
	case sc.Blackjack && !dealer.Blackjack:
		return OutcomeBlackjack, t.cfg.BlackjackWin(s.Bet)
	case sc.Blackjack && dealer.Blackjack:
		return OutcomePush, 0
	case dealer.Bust:
		return OutcomeWin, s.Bet
	case sc.Total > dealer.Total:
		return OutcomeWin, s.Bet
	case sc.Total == dealer.Total:
		return OutcomePush, 0
	default:
		return OutcomeLose, -s.Bet
	}
}

func (t *Table) settle() {
	ds := t.dealer.Score()
	res := &RoundResult{
		Round:           t.round + 1,
		Dealer:          append([]Card(nil), t.dealer.cards...),
		DealerScore:     ds.Total,
		DealerBust:      ds.Bust,
		DealerBlackjack: ds.Blackjack,
		Actions:         t.actions,
	}
	for _, s := range t.bettors() {
		out, delta := t.outcome(s, ds)
		s.Chips += s.Bet + delta
		res.HouseDelta -= delta
		res.Seats = append(res.Seats, SeatResult{
			SeatID:     s.ID,
			Name:       s.Name,
			Automated:  s.Automated,
			Bet:        s.Bet,
			Hand:       append([]Card(nil), s.Hand...),
			Score:      s.Score().Total,
			Status:     s.Status,
			Outcome:    out,
			Delta:      delta,
			ChipsAfter: s.Chips,
		})
	}
	t.houseNet += res.HouseDelta
	t.round++
	t.last = res
}

// ---- round end ----

func (t *Table) NewRound() error {
	if err := t.check(OpNewRound); err != nil {
		return err
	}
	t.beginBetting()
	return t.closeBetting(OpNewRound)
}

// End closes the table and returns standings, richest first.
func (t *Table) End() ([]Standing, error) {
	if err := t.check(OpEnd); err != nil {
		return nil, err
	}
	if t.phase == PhaseBetting {
		for _, s := range t.seats {
			s.refund()
		}
	}
	t.setPhase(OpEnd, PhaseEnded)
	return t.Standings(), nil
}

func (t *Table) Standings() []Standing {
	out := make([]Standing, 0, len(t.seats))
	for _, s := range t.seats {
		out = append(out, Standing{
			SeatID:    s.ID,
			Name:      s.Name,
			Automated: s.Automated,
			Chips:     s.Chips,
			Net:       s.Chips - t.buyIn[s.ID],
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Chips > out[j].Chips })
	return out
}

// ---- views ----

func (t *Table) view(s *Seat) View {
	up, _ := t.dealer.UpCard()
	var legal []ActionKind
	if t.phase == PhasePlayerTurns && t.current() == s {
		legal = s.Legal()
	}
	return View{
		SeatID:   s.ID,
		Name:     s.Name,
		Hand:     append([]Card(nil), s.Hand...),
		Score:    s.Score(),
		DealerUp: up,
		Legal:    legal,
		Chips:    s.Chips,
		Bet:      s.Bet,
		Round:    t.round + 1,
	}
}

// View is the observable state for one seat.
func (t *Table) View(ref string) (View, error) {
	_, s, err := t.find(ref)
	if err != nil {
		return View{}, err
	}
	return t.view(s), nil
}

// Seat returns a copy of the referenced seat.
func (t *Table) Seat(ref string) (SeatView, error) {
	_, s, err := t.find(ref)
	if err != nil {
		return SeatView{}, err
	}
	return seatView(s), nil
}

// CurrentSeat is the seat on turn, if any.
func (t *Table) CurrentSeat() (SeatView, bool) {
	s := t.current()
	if s == nil {
		return SeatView{}, false
	}
	return seatView(s), true
}

// LegalActions lists what ref may do right now.
func (t *Table) LegalActions(ref string) []ActionKind {
	_, s, err := t.find(ref)
	if err != nil || t.phase != PhasePlayerTurns || t.current() != s {
		return nil
	}
	return s.Legal()
}

func seatView(s *Seat) SeatView {
	return SeatView{
		ID:        s.ID,
		Name:      s.Name,
		Chips:     s.Chips,
		Bet:       s.Bet,
		Hand:      append([]Card(nil), s.Hand...),
		Score:     s.Score(),
		Status:    s.Status,
		Automated: s.Automated,
		SatOut:    s.SatOut,
	}
}

func (t *Table) Snapshot() Snapshot {
	snap := Snapshot{
		Phase: t.phase,
		Round: t.round,
		Dealer: DealerView{
			Cards:      t.dealer.Visible(),
			HoleHidden: len(t.dealer.cards) > 0 && !t.dealer.IsRevealed(),
			Score:      t.dealer.VisibleScore(),
		},
		ShoeRemaining: t.shoe.Remaining(),
		LastRound:     t.last,
	}
	for _, s := range t.seats {
		snap.Seats = append(snap.Seats, seatView(s))
	}
	if s := t.current(); s != nil && t.phase == PhasePlayerTurns {
		id := s.ID
		snap.CurrentTurn = &id
		snap.Legal = s.Legal()
	}
	return snap
}
