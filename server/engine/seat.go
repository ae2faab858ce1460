package engine

import "fmt"

type Seat struct {
	ID        string
	Name      string
	Chips     int
	Bet       int
	Hand      []Card
	Status    Status
	Automated bool
	SatOut    bool
	hits      int
}

func (s *Seat) Score() Score { return Evaluate(s.Hand) }

// InRound reports whether the seat bet this round.
func (s *Seat) InRound() bool { return s.Bet > 0 }

// Pending reports whether the seat still owes a betting decision.
func (s *Seat) Pending() bool { return !s.SatOut && s.Bet == 0 }

func (s *Seat) resetRound() {
	s.Bet = 0
	s.Hand = nil
	s.Status = StatusWaiting
	s.SatOut = false
	s.hits = 0
}

func (s *Seat) placeBet(amount, minBet, maxBet int) error {
	if s.Status != StatusWaiting || s.Bet > 0 || s.SatOut {
		return fmt.Errorf("%w: %s already bet or sat out", ErrInvalidAction, s.Name)
	}
	if amount <= 0 || amount < minBet {
		return fmt.Errorf("%w: bet %d below minimum %d", ErrInvalidAction, amount, max(minBet, 1))
	}
	if maxBet > 0 && amount > maxBet {
		return fmt.Errorf("%w: bet %d above maximum %d", ErrInvalidAction, amount, maxBet)
	}
	if amount > s.Chips {
		return fmt.Errorf("%w: %s has %d chips, bet %d", ErrInsufficientFunds, s.Name, s.Chips, amount)
	}
	s.Chips -= amount
	s.Bet = amount
	return nil
}

// refund undoes a bet placed this betting phase.
func (s *Seat) refund() {
	s.Chips += s.Bet
	s.Bet = 0
}

func (s *Seat) canDouble() bool {
	return s.Status == StatusActive && s.hits == 0 && len(s.Hand) == 2 && s.Chips >= s.Bet
}

func (s *Seat) checkActive() error {
	if s.Status != StatusActive {
		return fmt.Errorf("%w: %s is %s", ErrInvalidAction, s.Name, s.Status)
	}
	return nil
}

func (s *Seat) hit(c Card) {
	s.Hand = append(s.Hand, c)
	s.hits++
	if Evaluate(s.Hand).Bust {
		s.Status = StatusBusted
	}
}

func (s *Seat) stand() { s.Status = StatusStood }

func (s *Seat) doubleDown(c Card) {
	s.Chips -= s.Bet
	s.Bet *= 2
	s.Hand = append(s.Hand, c)
	if Evaluate(s.Hand).Bust {
		s.Status = StatusBusted
	} else {
		s.Status = StatusDoubled
	}
}

// Legal lists the actions the seat may take when it holds the turn.
func (s *Seat) Legal() []ActionKind {
	if s.Status != StatusActive {
		return nil
	}
	out := []ActionKind{Hit, Stand}
	if s.canDouble() {
		out = append(out, DoubleDown)
	}
	return out
}
