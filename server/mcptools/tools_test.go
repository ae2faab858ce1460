package mcptools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackjack-mcp/server/engine"
	"blackjack-mcp/server/judge"
	"blackjack-mcp/server/session"
)

func connect(t *testing.T, reg *session.Registry) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	srv := NewServer(reg, nil)
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := srv.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func call[T any](t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) T {
	t.Helper()
	res := callRaw(t, cs, name, args)
	require.False(t, res.IsError, "%s failed: %s", name, errorText(res))
	return decodeStructuredContent[T](t, res.StructuredContent)
}

func callRaw(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	if args == nil {
		args = map[string]any{}
	}
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	return res
}

func decodeStructuredContent[T any](t *testing.T, v any) T {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func errorText(res *mcp.CallToolResult) string {
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestToolsListed(t *testing.T) {
	cs := connect(t, session.NewRegistry(session.Options{Rules: engine.DefaultConfig()}))
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"create_game", "list_games", "get_rules", "add_player", "add_ai_player",
		"remove_player", "start_game", "place_bet", "sit_out", "hit", "stand",
		"double_down", "ai_play_turn", "get_advice", "get_game_state", "new_round", "end_game",
	} {
		assert.True(t, names[want], want)
	}
}

func TestHumanRoundOverTools(t *testing.T) {
	ctx := context.Background()
	reg := session.NewRegistry(session.Options{Rules: engine.DefaultConfig(), Judge: judge.New(200, 6, true, 3)})
	g, err := reg.CreateWithShoe(ctx, engine.NewStackedShoe(engine.MustCards("Th 6c 9d 8s Kh")))
	require.NoError(t, err)
	cs := connect(t, reg)

	joined := call[AddPlayerResult](t, cs, "add_player", map[string]any{"name": "Alice"})
	assert.Equal(t, "seat-1", joined.Seat.ID)
	assert.Equal(t, 100, joined.Seat.Chips)

	call[ActionResult](t, cs, "start_game", nil)
	bet := call[ActionResult](t, cs, "place_bet", map[string]any{"game_id": g.ID, "seat": "alice", "amount": 10})
	assert.Equal(t, "player_turns", bet.State.Phase)
	assert.Equal(t, "seat-1", bet.State.CurrentTurn)
	assert.Contains(t, bet.Message, "seat-1 to act")

	st := call[StateOut](t, cs, "get_game_state", nil)
	assert.Equal(t, []string{"9d"}, st.Dealer.Cards)
	assert.True(t, st.Dealer.HoleHidden)
	assert.Equal(t, []string{"Th", "6c"}, st.Seats[0].Hand)
	assert.Equal(t, 16, st.Seats[0].Score)
	assert.ElementsMatch(t, []string{"hit", "stand", "double_down"}, st.LegalActions)

	adv := call[AdviceResult](t, cs, "get_advice", map[string]any{"seat": "Alice"})
	assert.Equal(t, "hit", adv.Recommended)
	assert.Equal(t, "9d", adv.DealerUp)
	assert.Len(t, adv.EVs, 3)

	hit := call[ActionResult](t, cs, "hit", map[string]any{"seat": "Alice"})
	assert.Equal(t, "round_end", hit.State.Phase)
	require.NotNil(t, hit.State.LastRound)
	assert.Equal(t, "bust", hit.State.LastRound.Seats[0].Outcome)
	assert.Equal(t, -10, hit.State.LastRound.Seats[0].Delta)
	assert.Equal(t, 90, hit.State.Seats[0].Chips)
	assert.False(t, hit.State.Dealer.HoleHidden)

	res := callRaw(t, cs, "stand", map[string]any{"seat": "Alice"})
	assert.True(t, res.IsError)
	assert.Contains(t, errorText(res), "invalid action")

	call[ActionResult](t, cs, "new_round", nil)
	end := call[EndGameResult](t, cs, "end_game", nil)
	assert.Equal(t, "ended", end.State.Phase)
	require.Len(t, end.Standings, 1)
	assert.Equal(t, 90, end.Standings[0].Chips)
	assert.Equal(t, -10, end.Standings[0].Net)
}

func TestAutomatedSeatOverTools(t *testing.T) {
	ctx := context.Background()
	reg := session.NewRegistry(session.Options{Rules: engine.DefaultConfig()})
	_, err := reg.CreateWithShoe(ctx, engine.NewStackedShoe(engine.MustCards("Th 7c 9d 8s")))
	require.NoError(t, err)
	cs := connect(t, reg)

	joined := call[AddPlayerResult](t, cs, "add_ai_player", map[string]any{"name": "Bot"})
	assert.True(t, joined.Seat.IsAutomated)
	assert.Equal(t, "basic", joined.Source)

	started := call[ActionResult](t, cs, "start_game", nil)
	assert.Equal(t, "player_turns", started.State.Phase)

	turn := call[AITurnResult](t, cs, "ai_play_turn", nil)
	require.Len(t, turn.Decisions, 1)
	assert.Equal(t, "stand", turn.Decisions[0].Action)
	assert.Equal(t, 17, turn.Decisions[0].Score)
	assert.Equal(t, "round_end", turn.State.Phase)
	assert.Equal(t, "push", turn.State.LastRound.Seats[0].Outcome)
}

func TestGameLookupErrors(t *testing.T) {
	reg := session.NewRegistry(session.Options{Rules: engine.DefaultConfig()})
	cs := connect(t, reg)

	res := callRaw(t, cs, "get_game_state", nil)
	assert.True(t, res.IsError)
	assert.Contains(t, errorText(res), "game not found")

	created := call[CreateGameResult](t, cs, "create_game", nil)
	assert.NotEmpty(t, created.GameID)
	assert.Equal(t, "lobby", created.State.Phase)
	assert.Contains(t, created.Rules, "3:2")

	res = callRaw(t, cs, "get_game_state", map[string]any{"game_id": "nope"})
	assert.True(t, res.IsError)

	list := call[ListGamesResult](t, cs, "list_games", nil)
	require.Len(t, list.Games, 1)
	assert.Equal(t, created.GameID, list.Games[0].GameID)

	rules := call[RulesResult](t, cs, "get_rules", nil)
	assert.Equal(t, 6, rules.Decks)
	assert.Equal(t, "3:2", rules.Payout)
	assert.True(t, rules.DealerPeek)
}
