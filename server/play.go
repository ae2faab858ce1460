package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"

	"blackjack-mcp/server/agent"
	"blackjack-mcp/server/engine"
	"blackjack-mcp/server/session"
)

var errSeatGone = errors.New("your seat can no longer bet")

// playTerminal runs one table in the terminal: a human seat against the
// dealer, optionally with automated seats alongside.
func playTerminal(ctx context.Context, reg *session.Registry) error {
	title, err := pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("Black", pterm.FgDarkGray.ToStyle()),
		putils.LettersFromStringWithStyle("jack", pterm.FgRed.ToStyle()),
	).Srender()
	if err == nil {
		pterm.Println(title)
	}
	pterm.DefaultBox.WithTitle("Rules").Println(reg.Rules().Describe())

	name, _ := pterm.DefaultInteractiveTextInput.WithDefaultText("Your name").WithDefaultValue("Player").Show()
	name = strings.TrimSpace(name)
	pterm.Println()
	bots, _ := pterm.DefaultInteractiveSelect.
		WithDefaultText("Automated players at the table").
		WithOptions([]string{"0", "1", "2", "3"}).Show()
	n, _ := strconv.Atoi(bots)

	g, err := reg.Create(ctx)
	if err != nil {
		return err
	}
	me, err := g.AddPlayer(ctx, name, 0)
	if err != nil {
		return err
	}
	for i := 1; i <= n; i++ {
		seat, err := g.AddAIPlayer(ctx, fmt.Sprintf("Bot %d", i), 0, "")
		if err != nil {
			return err
		}
		pterm.Info.Printfln("%s joins (%s)", seat.Name, g.Source(seat.ID))
	}
	if err := g.Start(ctx); err != nil {
		return err
	}

	for ctx.Err() == nil {
		st := g.State()
		switch st.Phase {
		case engine.PhaseBetting:
			err := askBet(ctx, g, me.ID)
			if errors.Is(err, errSeatGone) {
				return err
			}
			if err != nil {
				pterm.Error.Printfln("%v", err)
			}
		case engine.PhasePlayerTurns:
			if err := playTurn(ctx, g, st, me.ID); err != nil {
				pterm.Error.Printfln("%v", err)
			}
		case engine.PhaseRoundEnd:
			printState(st)
			if st.LastRound != nil {
				_ = pterm.DefaultPanel.WithPanels([][]pterm.Panel{{resultPanel(st.LastRound)}}).Render()
			}
			again, _ := pterm.DefaultInteractiveConfirm.WithDefaultText("Play another round?").WithDefaultValue(true).Show()
			if !again {
				final, err := g.End(ctx)
				if err != nil {
					return err
				}
				printStandings(final)
				return nil
			}
			if err := g.NewRound(ctx); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return ctx.Err()
}

func askBet(ctx context.Context, g *session.Game, seatID string) error {
	view, ok := seatView(g.State(), seatID)
	if !ok || view.Bet > 0 || view.SatOut {
		return errSeatGone
	}
	rules := g.Rules()
	suggest := agent.DecideBet(view.Chips, rules.MinBet)
	raw, _ := pterm.DefaultInteractiveTextInput.
		WithDefaultText(fmt.Sprintf("Bet (%d chips, 0 sits out)", view.Chips)).
		WithDefaultValue(strconv.Itoa(suggest)).Show()
	amount, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("not a number: %q", raw)
	}
	if amount == 0 {
		return g.SitOut(ctx, seatID)
	}
	return g.PlaceBet(ctx, seatID, amount)
}

func playTurn(ctx context.Context, g *session.Game, st session.State, seatID string) error {
	if st.CurrentTurn == nil {
		return nil
	}
	if *st.CurrentTurn != seatID {
		spinner, _ := pterm.DefaultSpinner.Start("Waiting for the automated players...")
		decisions, err := g.AIPlayTurn(ctx)
		spinner.Stop()
		for _, d := range decisions {
			pterm.Info.Printfln("%s (%s) %s", d.View.Name, d.View.Score, d.Action)
		}
		return err
	}

	printState(st)
	options := make([]string, 0, len(st.Legal)+1)
	for _, a := range st.Legal {
		options = append(options, string(a))
	}
	options = append(options, "advice")
	for {
		choice, _ := pterm.DefaultInteractiveSelect.WithDefaultText("Your move").WithOptions(options).Show()
		if choice != "advice" {
			return g.Act(ctx, seatID, engine.ActionKind(choice))
		}
		adv, err := g.Advice(seatID)
		if err != nil {
			return err
		}
		pterm.Success.Printfln("%s: %s", adv.Recommended, adv.Reason)
		for _, a := range adv.Legal {
			if ev, ok := adv.EVs[a]; ok {
				pterm.Info.Printfln("%-12s EV %+.3f", a, ev)
			}
		}
	}
}

func seatView(st session.State, id string) (engine.SeatView, bool) {
	for _, s := range st.Seats {
		if s.ID == id {
			return s, true
		}
	}
	return engine.SeatView{}, false
}
