package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackjack-mcp/server/engine"
	"blackjack-mcp/server/session"
)

func newTestServer(t *testing.T) (*session.Registry, *httptest.Server) {
	t.Helper()
	reg := session.NewRegistry(session.Options{Rules: engine.DefaultConfig()})
	srv := httptest.NewServer(Router(reg, nil))
	t.Cleanup(srv.Close)
	return reg, srv
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

type stateBody struct {
	GameID      string  `json:"game_id"`
	Version     uint64  `json:"version"`
	Phase       string  `json:"phase"`
	CurrentTurn *string `json:"current_turn_seat_id"`
	Seats       []struct {
		ID    string `json:"id"`
		Chips int    `json:"chips"`
		Bet   int    `json:"bet"`
	} `json:"seats"`
}

func TestHealth(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, true, body["ok"])
}

func TestRoundOverHTTP(t *testing.T) {
	reg, srv := newTestServer(t)
	g, err := reg.CreateWithShoe(context.Background(), engine.NewStackedShoe(engine.MustCards("Th 6c 9d 8s Kh")))
	require.NoError(t, err)
	base := srv.URL + "/api/games/" + g.ID

	resp := post(t, base+"/players", map[string]any{"name": "Alice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = post(t, base+"/bets", map[string]any{"seat": "Alice", "amount": 10})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "bets before start")

	require.Equal(t, http.StatusOK, post(t, base+"/start", nil).StatusCode)

	resp = post(t, base+"/bets", map[string]any{"seat": "Alice", "amount": 500})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = post(t, base+"/bets", map[string]any{"seat": "Alice", "amount": 10})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[stateBody](t, resp)
	assert.Equal(t, "player_turns", st.Phase)
	require.NotNil(t, st.CurrentTurn)
	assert.Equal(t, "seat-1", *st.CurrentTurn)

	resp = post(t, base+"/seats/seat-1/hit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st = decode[stateBody](t, resp)
	assert.Equal(t, "round_end", st.Phase)
	assert.Equal(t, 90, st.Seats[0].Chips)

	resp = post(t, base+"/seats/seat-1/stand", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = post(t, base+"/seats/nobody/stand", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = post(t, base+"/end", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGameErrors(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/games/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = post(t, srv.URL+"/api/games", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[stateBody](t, resp)
	assert.Equal(t, "lobby", created.Phase)

	base := srv.URL + "/api/games/" + created.GameID
	require.Equal(t, http.StatusCreated, post(t, base+"/players", map[string]any{"name": "Alice"}).StatusCode)
	assert.Equal(t, http.StatusConflict, post(t, base+"/players", map[string]any{"name": "alice"}).StatusCode)

	resp, err = http.Post(base+"/players", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(base + "/decisions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(session.ErrGameNotFound))
	assert.Equal(t, http.StatusNotFound, statusFor(engine.ErrUnknownSeat))
	assert.Equal(t, http.StatusConflict, statusFor(engine.ErrTableFull))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(engine.ErrInsufficientFunds))
	assert.Equal(t, http.StatusBadRequest, statusFor(assert.AnError))
}

func TestWebsocketStreamsState(t *testing.T) {
	reg, srv := newTestServer(t)
	g, err := reg.CreateWithShoe(context.Background(), engine.NewStackedShoe(engine.MustCards("Th 6c 9d 8s Kh")))
	require.NoError(t, err)
	_, err = g.AddPlayer(context.Background(), "Alice", 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/games/"+g.ID+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() wsMessage {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var m wsMessage
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	}

	first := read()
	require.Equal(t, "StateSnapshot", first.Type)
	require.NotNil(t, first.State)
	assert.Equal(t, engine.PhaseLobby, first.State.Phase)

	require.NoError(t, g.Start(context.Background()))
	next := read()
	assert.Equal(t, engine.PhaseBetting, next.State.Phase)
	assert.Greater(t, next.State.Version, first.State.Version)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"bet","seat":"Alice","amount":10}`)))
	dealt := read()
	assert.Equal(t, engine.PhasePlayerTurns, dealt.State.Phase)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"fold"}`)))
	bad := read()
	assert.Equal(t, "Error", bad.Type)
}
