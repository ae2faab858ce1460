package main

import (
	"strings"

	"github.com/pterm/pterm"

	"blackjack-mcp/server/engine"
	"blackjack-mcp/server/session"
)

var suitGlyph = map[byte]string{'s': "♠", 'h': "♥", 'd': "♦", 'c': "♣"}

func cardText(c engine.Card) string {
	s := c.String()
	rank := s[:1]
	if rank == "T" {
		rank = "10"
	}
	g := rank + suitGlyph[c.Suit]
	if c.Suit == 'h' || c.Suit == 'd' {
		return pterm.LightRed(g)
	}
	return pterm.LightCyan(g)
}

func handText(cs []engine.Card, hidden bool) string {
	parts := make([]string, 0, len(cs)+1)
	for _, c := range cs {
		parts = append(parts, cardText(c))
	}
	if hidden {
		parts = append(parts, pterm.FgDarkGray.Sprint("??"))
	}
	return strings.Join(parts, " ")
}

func dealerPanel(d engine.DealerView) pterm.Panel {
	box := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	body := pterm.Sprintfln("%s", handText(d.Cards, d.HoleHidden))
	if len(d.Cards) > 0 {
		body += pterm.Sprintfln("Score: %s", d.Score)
	}
	return pterm.Panel{Data: box.WithTitle(pterm.LightYellow("|DEALER|")).WithTitleTopCenter().Sprint(body)}
}

func seatPanel(s engine.SeatView, onTurn bool) pterm.Panel {
	box := pterm.DefaultBox.WithHorizontalPadding(2)
	title := s.Name
	if s.Automated {
		title += " (ai)"
	}
	if onTurn {
		title = pterm.LightGreen("> " + title)
	}
	body := pterm.Sprintfln("Chips: %d  Bet: %d", s.Chips, s.Bet)
	switch {
	case s.SatOut:
		body += pterm.Sprintfln("%s", pterm.FgDarkGray.Sprint("sitting out"))
	case len(s.Hand) > 0:
		body += pterm.Sprintfln("%s  (%s, %s)", handText(s.Hand, false), s.Score, s.Status)
	}
	return pterm.Panel{Data: box.WithTitle(title).Sprint(body)}
}

func printState(st session.State) {
	turn := ""
	if st.CurrentTurn != nil {
		turn = *st.CurrentTurn
	}
	seats := make([]pterm.Panel, 0, len(st.Seats))
	for _, s := range st.Seats {
		seats = append(seats, seatPanel(s, s.ID == turn))
	}
	_ = pterm.DefaultPanel.WithPanels([][]pterm.Panel{
		{dealerPanel(st.Dealer)},
		seats,
	}).Render()
	pterm.Info.Printfln("Round %d, %s, %d cards left in the shoe", st.Round+1, st.Phase, st.ShoeRemaining)
}

func resultPanel(r *engine.RoundResult) pterm.Panel {
	box := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	var b strings.Builder
	dealer := "Dealer " + handText(r.Dealer, false)
	switch {
	case r.DealerBlackjack:
		dealer += " blackjack"
	case r.DealerBust:
		dealer += " busts"
	default:
		dealer += pterm.Sprintf(" %d", r.DealerScore)
	}
	b.WriteString(pterm.Sprintfln("%s", dealer))
	for _, s := range r.Seats {
		delta := pterm.Sprintf("%+d", s.Delta)
		switch {
		case s.Delta > 0:
			delta = pterm.LightGreen(delta)
		case s.Delta < 0:
			delta = pterm.LightRed(delta)
		}
		b.WriteString(pterm.Sprintfln("%s %s %s, %s (%d chips)", pterm.LightCyan(s.Name), handText(s.Hand, false), s.Outcome, delta, s.ChipsAfter))
	}
	if len(r.Seats) == 0 {
		b.WriteString(pterm.Sprintfln("nobody bet"))
	}
	return pterm.Panel{Data: box.WithTitle(pterm.LightGreen(pterm.Sprintf("|ROUND %d|", r.Round))).WithTitleTopCenter().Sprint(b.String())}
}

func printStandings(final []session.Standing) {
	box := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	var b strings.Builder
	for i, s := range final {
		b.WriteString(pterm.Sprintfln("%d. %s  %d chips (%+d)  elo %.0f  win rate %.2f-%.2f",
			i+1, pterm.LightCyan(s.Name), s.Chips, s.Net, s.Elo, s.WinCI[0], s.WinCI[1]))
	}
	box.WithTitle(pterm.LightYellow("|FINAL STANDINGS|")).WithTitleTopCenter().Println(b.String())
}
