// Package mcptools exposes the blackjack table as MCP tools.
package mcptools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"blackjack-mcp/server/engine"
	"blackjack-mcp/server/session"
)

const (
	serverName    = "blackjack"
	serverVersion = "1.0.0"
)

// NewServer builds an MCP server with every table tool registered.
func NewServer(reg *session.Registry, log *zap.Logger) *mcp.Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	h := handlers{reg: reg, log: log}

	mcp.AddTool(s, &mcp.Tool{Name: "create_game", Description: "Opens a new blackjack table in the lobby and returns its game_id. Later calls may omit game_id to use the newest table."}, h.createGame)
	mcp.AddTool(s, &mcp.Tool{Name: "list_games", Description: "Lists every open table with its phase and round number."}, h.listGames)
	mcp.AddTool(s, &mcp.Tool{Name: "get_rules", Description: "Describes the table rules: decks, bets, blackjack payout, dealer behaviour."}, h.getRules)
	mcp.AddTool(s, &mcp.Tool{Name: "add_player", Description: "Seats a human player (lobby or betting). Returning players keep their bankroll when chips is omitted."}, h.addPlayer)
	mcp.AddTool(s, &mcp.Tool{Name: "add_ai_player", Description: "Seats an automated player. It bets on its own; play its turn with ai_play_turn."}, h.addAIPlayer)
	mcp.AddTool(s, &mcp.Tool{Name: "remove_player", Description: "Removes a seat before cards are dealt, refunding any bet."}, h.removePlayer)
	mcp.AddTool(s, &mcp.Tool{Name: "start_game", Description: "Closes the lobby and opens betting for the first round."}, h.startGame)
	mcp.AddTool(s, &mcp.Tool{Name: "place_bet", Description: "Places a seat's bet. Cards are dealt once every seat has bet or sat out."}, h.placeBet)
	mcp.AddTool(s, &mcp.Tool{Name: "sit_out", Description: "Skips the current round for a seat that has not bet."}, h.sitOut)
	mcp.AddTool(s, &mcp.Tool{Name: "hit", Description: "Takes one more card for the seat on turn."}, h.hit)
	mcp.AddTool(s, &mcp.Tool{Name: "stand", Description: "Ends the turn of the seat on turn."}, h.stand)
	mcp.AddTool(s, &mcp.Tool{Name: "double_down", Description: "Doubles the bet on the first decision and takes exactly one card."}, h.doubleDown)
	mcp.AddTool(s, &mcp.Tool{Name: "ai_play_turn", Description: "Lets the automated seat on turn play its hand."}, h.aiPlayTurn)
	mcp.AddTool(s, &mcp.Tool{Name: "get_advice", Description: "Basic-strategy recommendation and simulated EV per legal action for the seat on turn."}, h.getAdvice)
	mcp.AddTool(s, &mcp.Tool{Name: "get_game_state", Description: "Returns the table: phase, dealer cards (hole card hidden), seats, seat on turn and legal actions."}, h.getGameState)
	mcp.AddTool(s, &mcp.Tool{Name: "new_round", Description: "Clears the last round and opens betting again."}, h.newRound)
	mcp.AddTool(s, &mcp.Tool{Name: "end_game", Description: "Closes the table and returns final standings."}, h.endGame)
	return s
}

type handlers struct {
	reg *session.Registry
	log *zap.Logger
}

// ---- inputs ----

type NoInput struct{}

type GameInput struct {
	GameID string `json:"game_id,omitempty" jsonschema:"table identifier (defaults to the newest table)"`
}

type SeatInput struct {
	GameID string `json:"game_id,omitempty" jsonschema:"table identifier (defaults to the newest table)"`
	Seat   string `json:"seat" jsonschema:"seat id (seat-1) or player name"`
}

type AddPlayerInput struct {
	GameID string `json:"game_id,omitempty" jsonschema:"table identifier (defaults to the newest table)"`
	Name   string `json:"name" jsonschema:"player name, unique at the table"`
	Chips  int    `json:"chips,omitempty" jsonschema:"starting chips (defaults to the stored bankroll or the table default)"`
}

type AddAIPlayerInput struct {
	GameID string `json:"game_id,omitempty" jsonschema:"table identifier (defaults to the newest table)"`
	Name   string `json:"name" jsonschema:"player name, unique at the table"`
	Chips  int    `json:"chips,omitempty" jsonschema:"starting chips (defaults to the stored bankroll or the table default)"`
	Model  string `json:"model,omitempty" jsonschema:"language model to decide with; basic strategy when none is configured"`
}

type BetInput struct {
	GameID string `json:"game_id,omitempty" jsonschema:"table identifier (defaults to the newest table)"`
	Seat   string `json:"seat" jsonschema:"seat id (seat-1) or player name"`
	Amount int    `json:"amount" jsonschema:"chips to bet"`
}

// ---- outputs ----

type ActionResult struct {
	Message string   `json:"message"`
	State   StateOut `json:"state"`
}

type CreateGameResult struct {
	GameID string   `json:"game_id"`
	Rules  string   `json:"rules"`
	State  StateOut `json:"state"`
}

type GameSummary struct {
	GameID      string `json:"game_id"`
	Phase       string `json:"phase"`
	RoundNumber int    `json:"round_number"`
	Seats       int    `json:"seats"`
	CreatedAt   string `json:"created_at"`
}

type ListGamesResult struct {
	Games []GameSummary `json:"games"`
}

type RulesResult struct {
	Rules         string `json:"rules"`
	Decks         int    `json:"decks"`
	MinBet        int    `json:"min_bet"`
	MaxBet        int    `json:"max_bet,omitempty"`
	StartingChips int    `json:"starting_chips"`
	Payout        string `json:"blackjack_payout"`
	DealerPeek    bool   `json:"dealer_peek"`
}

type AddPlayerResult struct {
	Message string   `json:"message"`
	Seat    SeatOut  `json:"seat"`
	Source  string   `json:"decision_source,omitempty"`
	State   StateOut `json:"state"`
}

type DecisionOut struct {
	SeatID string   `json:"seat_id"`
	Hand   []string `json:"hand"`
	Score  int      `json:"score"`
	Action string   `json:"action"`
}

type AITurnResult struct {
	Message   string        `json:"message"`
	Decisions []DecisionOut `json:"decisions"`
	State     StateOut      `json:"state"`
}

type AdviceResult struct {
	SeatID      string             `json:"seat_id"`
	Hand        []string           `json:"hand"`
	Score       int                `json:"score"`
	Soft        bool               `json:"soft"`
	DealerUp    string             `json:"dealer_up"`
	Legal       []string           `json:"legal_actions"`
	Recommended string             `json:"recommended"`
	Reason      string             `json:"reason"`
	EVs         map[string]float64 `json:"evs,omitempty" jsonschema:"simulated expected value per unit bet"`
}

type StandingOut struct {
	SeatID      string     `json:"seat_id"`
	Name        string     `json:"name"`
	IsAutomated bool       `json:"is_automated"`
	Chips       int        `json:"chips"`
	Net         int        `json:"net" jsonschema:"chips won or lost at this table"`
	Elo         float64    `json:"elo"`
	Hands       int        `json:"career_hands"`
	WinCI       [2]float64 `json:"win_rate_ci95"`
}

type EndGameResult struct {
	Message   string        `json:"message"`
	Standings []StandingOut `json:"standings"`
	State     StateOut      `json:"state"`
}

// ---- handlers ----

func (h handlers) game(id string) (*session.Game, error) {
	return h.reg.Get(strings.TrimSpace(id))
}

func (h handlers) createGame(ctx context.Context, _ *mcp.CallToolRequest, _ NoInput) (*mcp.CallToolResult, CreateGameResult, error) {
	g, err := h.reg.Create(ctx)
	if err != nil {
		return nil, CreateGameResult{}, err
	}
	return nil, CreateGameResult{GameID: g.ID, Rules: g.Rules().Describe(), State: stateOut(g.State())}, nil
}

func (h handlers) listGames(_ context.Context, _ *mcp.CallToolRequest, _ NoInput) (*mcp.CallToolResult, ListGamesResult, error) {
	out := ListGamesResult{Games: []GameSummary{}}
	for _, s := range h.reg.List() {
		out.Games = append(out.Games, GameSummary{
			GameID:      s.ID,
			Phase:       string(s.Phase),
			RoundNumber: s.Round,
			Seats:       s.Seats,
			CreatedAt:   s.Created.Format(time.RFC3339),
		})
	}
	return nil, out, nil
}

func (h handlers) getRules(_ context.Context, _ *mcp.CallToolRequest, in GameInput) (*mcp.CallToolResult, RulesResult, error) {
	cfg := h.reg.Rules()
	if g, err := h.game(in.GameID); err == nil {
		cfg = g.Rules()
	}
	return nil, RulesResult{
		Rules:         cfg.Describe(),
		Decks:         cfg.Decks,
		MinBet:        cfg.MinBet,
		MaxBet:        cfg.MaxBet,
		StartingChips: cfg.StartingChips,
		Payout:        cfg.PayoutString(),
		DealerPeek:    cfg.DealerPeek,
	}, nil
}

func (h handlers) addPlayer(ctx context.Context, _ *mcp.CallToolRequest, in AddPlayerInput) (*mcp.CallToolResult, AddPlayerResult, error) {
	g, err := h.game(in.GameID)
	if err != nil {
		return nil, AddPlayerResult{}, err
	}
	seat, err := g.AddPlayer(ctx, in.Name, in.Chips)
	if err != nil {
		return nil, AddPlayerResult{}, err
	}
	return nil, AddPlayerResult{
		Message: fmt.Sprintf("%s joined as %s with %d chips", seat.Name, seat.ID, seat.Chips),
		Seat:    seatOut(seat),
		State:   stateOut(g.State()),
	}, nil
}

func (h handlers) addAIPlayer(ctx context.Context, _ *mcp.CallToolRequest, in AddAIPlayerInput) (*mcp.CallToolResult, AddPlayerResult, error) {
	g, err := h.game(in.GameID)
	if err != nil {
		return nil, AddPlayerResult{}, err
	}
	seat, err := g.AddAIPlayer(ctx, in.Name, in.Chips, in.Model)
	if err != nil {
		return nil, AddPlayerResult{}, err
	}
	src := g.Source(seat.ID)
	return nil, AddPlayerResult{
		Message: fmt.Sprintf("%s joined as %s with %d chips (%s)", seat.Name, seat.ID, seat.Chips, src),
		Seat:    seatOut(seat),
		Source:  src,
		State:   stateOut(g.State()),
	}, nil
}

// act runs a seat operation and reports the resulting state.
func (h handlers) act(gameID, verb string, fn func(*session.Game) error) (*mcp.CallToolResult, ActionResult, error) {
	g, err := h.game(gameID)
	if err != nil {
		return nil, ActionResult{}, err
	}
	if err := fn(g); err != nil {
		h.log.Debug("tool rejected", zap.String("tool", verb), zap.Error(err))
		return nil, ActionResult{}, err
	}
	st := g.State()
	return nil, ActionResult{Message: describe(verb, st), State: stateOut(st)}, nil
}

func describe(verb string, st session.State) string {
	switch {
	case st.Phase == engine.PhasePlayerTurns && st.CurrentTurn != nil:
		return fmt.Sprintf("%s: %s to act", verb, *st.CurrentTurn)
	case st.Phase == engine.PhaseRoundEnd && st.LastRound != nil:
		parts := make([]string, 0, len(st.LastRound.Seats))
		for _, s := range st.LastRound.Seats {
			parts = append(parts, fmt.Sprintf("%s %s %+d", s.Name, s.Outcome, s.Delta))
		}
		if len(parts) == 0 {
			return fmt.Sprintf("%s: round %d had no bets", verb, st.LastRound.Round)
		}
		return fmt.Sprintf("%s: round %d settled, dealer %d; %s", verb, st.LastRound.Round, st.LastRound.DealerScore, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s: %s", verb, st.Phase)
}

func (h handlers) removePlayer(ctx context.Context, _ *mcp.CallToolRequest, in SeatInput) (*mcp.CallToolResult, ActionResult, error) {
	return h.act(in.GameID, "remove_player", func(g *session.Game) error { return g.RemovePlayer(ctx, in.Seat) })
}

func (h handlers) startGame(ctx context.Context, _ *mcp.CallToolRequest, in GameInput) (*mcp.CallToolResult, ActionResult, error) {
	return h.act(in.GameID, "start_game", func(g *session.Game) error { return g.Start(ctx) })
}

func (h handlers) placeBet(ctx context.Context, _ *mcp.CallToolRequest, in BetInput) (*mcp.CallToolResult, ActionResult, error) {
	return h.act(in.GameID, "place_bet", func(g *session.Game) error { return g.PlaceBet(ctx, in.Seat, in.Amount) })
}

func (h handlers) sitOut(ctx context.Context, _ *mcp.CallToolRequest, in SeatInput) (*mcp.CallToolResult, ActionResult, error) {
	return h.act(in.GameID, "sit_out", func(g *session.Game) error { return g.SitOut(ctx, in.Seat) })
}

func (h handlers) hit(ctx context.Context, _ *mcp.CallToolRequest, in SeatInput) (*mcp.CallToolResult, ActionResult, error) {
	return h.act(in.GameID, "hit", func(g *session.Game) error { return g.Hit(ctx, in.Seat) })
}

func (h handlers) stand(ctx context.Context, _ *mcp.CallToolRequest, in SeatInput) (*mcp.CallToolResult, ActionResult, error) {
	return h.act(in.GameID, "stand", func(g *session.Game) error { return g.Stand(ctx, in.Seat) })
}

func (h handlers) doubleDown(ctx context.Context, _ *mcp.CallToolRequest, in SeatInput) (*mcp.CallToolResult, ActionResult, error) {
	return h.act(in.GameID, "double_down", func(g *session.Game) error { return g.DoubleDown(ctx, in.Seat) })
}

func (h handlers) newRound(ctx context.Context, _ *mcp.CallToolRequest, in GameInput) (*mcp.CallToolResult, ActionResult, error) {
	return h.act(in.GameID, "new_round", func(g *session.Game) error { return g.NewRound(ctx) })
}

func (h handlers) aiPlayTurn(ctx context.Context, _ *mcp.CallToolRequest, in GameInput) (*mcp.CallToolResult, AITurnResult, error) {
	g, err := h.game(in.GameID)
	if err != nil {
		return nil, AITurnResult{}, err
	}
	decisions, err := g.AIPlayTurn(ctx)
	if err != nil {
		return nil, AITurnResult{}, err
	}
	out := AITurnResult{Decisions: []DecisionOut{}}
	words := make([]string, 0, len(decisions))
	for _, d := range decisions {
		out.Decisions = append(out.Decisions, DecisionOut{
			SeatID: d.View.SeatID,
			Hand:   cards(d.View.Hand),
			Score:  d.View.Score.Total,
			Action: string(d.Action),
		})
		words = append(words, string(d.Action))
	}
	st := g.State()
	out.State = stateOut(st)
	name := ""
	if len(decisions) > 0 {
		name = decisions[0].View.Name + " "
	}
	out.Message = fmt.Sprintf("%splayed %s; %s", name, strings.Join(words, ", "), describe("ai_play_turn", st))
	return nil, out, nil
}

func (h handlers) getAdvice(_ context.Context, _ *mcp.CallToolRequest, in SeatInput) (*mcp.CallToolResult, AdviceResult, error) {
	g, err := h.game(in.GameID)
	if err != nil {
		return nil, AdviceResult{}, err
	}
	adv, err := g.Advice(in.Seat)
	if err != nil {
		return nil, AdviceResult{}, err
	}
	out := AdviceResult{
		SeatID:      adv.SeatID,
		Hand:        cards(adv.Hand),
		Score:       adv.Score.Total,
		Soft:        adv.Score.Soft,
		DealerUp:    adv.DealerUp.String(),
		Legal:       actions(adv.Legal),
		Recommended: string(adv.Recommended),
		Reason:      adv.Reason,
	}
	if len(adv.EVs) > 0 {
		out.EVs = make(map[string]float64, len(adv.EVs))
		for k, v := range adv.EVs {
			out.EVs[string(k)] = v
		}
	}
	return nil, out, nil
}

func (h handlers) getGameState(_ context.Context, _ *mcp.CallToolRequest, in GameInput) (*mcp.CallToolResult, StateOut, error) {
	g, err := h.game(in.GameID)
	if err != nil {
		return nil, StateOut{}, err
	}
	return nil, stateOut(g.State()), nil
}

func (h handlers) endGame(ctx context.Context, _ *mcp.CallToolRequest, in GameInput) (*mcp.CallToolResult, EndGameResult, error) {
	g, err := h.game(in.GameID)
	if err != nil {
		return nil, EndGameResult{}, err
	}
	final, err := g.End(ctx)
	if err != nil {
		return nil, EndGameResult{}, err
	}
	out := EndGameResult{Standings: []StandingOut{}, State: stateOut(g.State())}
	for _, s := range final {
		out.Standings = append(out.Standings, StandingOut{
			SeatID:      s.SeatID,
			Name:        s.Name,
			IsAutomated: s.Automated,
			Chips:       s.Chips,
			Net:         s.Net,
			Elo:         s.Elo,
			Hands:       s.Stats.Hands,
			WinCI:       s.WinCI,
		})
	}
	if len(final) > 0 {
		out.Message = fmt.Sprintf("game over, %s leads with %d chips", final[0].Name, final[0].Chips)
	} else {
		out.Message = "game over"
	}
	return nil, out, nil
}

// Serve runs the server over stdin/stdout until the client disconnects or
// ctx is cancelled.
func Serve(ctx context.Context, s *mcp.Server) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}
