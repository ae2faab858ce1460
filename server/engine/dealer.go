package engine

// HoleCard is either Hidden or Revealed.
type HoleCard interface{ holeCard() }

type Hidden struct{}

type Revealed struct{ Card Card }

func (Hidden) holeCard()   {}
func (Revealed) holeCard() {}

const dealerStandsOn = 17

type Dealer struct {
	cards []Card
	hole  HoleCard
}

func (d *Dealer) reset() {
	d.cards = nil
	d.hole = nil
}

func (d *Dealer) deal(up, hole Card) {
	d.cards = []Card{up, hole}
	d.hole = Hidden{}
}

func (d *Dealer) reveal() {
	if len(d.cards) >= 2 {
		d.hole = Revealed{Card: d.cards[1]}
	}
}

func (d *Dealer) Hole() HoleCard { return d.hole }

func (d *Dealer) IsRevealed() bool {
	_, ok := d.hole.(Revealed)
	return ok
}

// UpCard is the dealer's face-up card; ok is false before the deal.
func (d *Dealer) UpCard() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}
	return d.cards[0], true
}

// Visible is the dealer's hand as players see it.
func (d *Dealer) Visible() []Card {
	if d.IsRevealed() {
		return append([]Card(nil), d.cards...)
	}
	if len(d.cards) == 0 {
		return nil
	}
	return []Card{d.cards[0]}
}

// Score counts the whole hand, hole card included.
func (d *Dealer) Score() Score { return Evaluate(d.cards) }

// VisibleScore counts only what players see.
func (d *Dealer) VisibleScore() Score { return Evaluate(d.Visible()) }

// play reveals the hole card and draws to 17, standing on soft 17.
func (d *Dealer) play(draw func() (Card, error)) error {
	d.reveal()
	for Evaluate(d.cards).Total < dealerStandsOn {
		c, err := draw()
		if err != nil {
			return err
		}
		d.cards = append(d.cards, c)
	}
	return nil
}
