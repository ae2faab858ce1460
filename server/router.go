// server/router.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"blackjack-mcp/server/engine"
	"blackjack-mcp/server/session"
	"blackjack-mcp/server/store"
)

// Router serves the same table operations as the MCP tools over JSON, plus
// a websocket that streams every state change of one game.
func Router(reg *session.Registry, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	a := api{reg: reg, log: log}
	r := chi.NewRouter()

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true, "games": len(reg.List())})
	})
	r.Get("/api/rules", func(w http.ResponseWriter, r *http.Request) {
		cfg := reg.Rules()
		writeJSON(w, map[string]any{"config": cfg, "text": cfg.Describe()})
	})
	r.Get("/api/leaderboard", a.leaderboard)

	r.Route("/api/games", func(r chi.Router) {
		r.Post("/", a.createGame)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) { writeJSON(w, reg.List()) })

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.withGame(func(w http.ResponseWriter, r *http.Request, g *session.Game) {
				writeJSON(w, g.State())
			}))
			r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
				if err := reg.Remove(chi.URLParam(r, "id")); err != nil {
					writeError(w, err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})
			r.Post("/players", a.withGame(a.addPlayer(false)))
			r.Post("/ai-players", a.withGame(a.addPlayer(true)))
			r.Delete("/players/{seat}", a.withGame(a.seatOp(func(ctx context.Context, g *session.Game, seat string) error {
				return g.RemovePlayer(ctx, seat)
			})))
			r.Post("/start", a.withGame(a.gameOp((*session.Game).Start)))
			r.Post("/bets", a.withGame(a.placeBet))
			r.Post("/seats/{seat}/{action}", a.withGame(a.seatAction))
			r.Get("/seats/{seat}/advice", a.withGame(a.advice))
			r.Post("/ai-turn", a.withGame(a.aiTurn))
			r.Post("/new-round", a.withGame(a.gameOp((*session.Game).NewRound)))
			r.Post("/end", a.withGame(a.end))
			r.Get("/decisions", a.decisions)
			r.Get("/ws", a.stream)
		})
	})

	r.Get("/ws", a.stream)
	return r
}

type api struct {
	reg *session.Registry
	log *zap.Logger
}

func (a api) withGame(fn func(http.ResponseWriter, *http.Request, *session.Game)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := a.reg.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		fn(w, r, g)
	}
}

func (a api) createGame(w http.ResponseWriter, r *http.Request) {
	g, err := a.reg.Create(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, g.State())
}

type playerReq struct {
	Name  string `json:"name"`
	Chips int    `json:"chips"`
	Model string `json:"model"`
}

func (a api) addPlayer(automated bool) func(http.ResponseWriter, *http.Request, *session.Game) {
	return func(w http.ResponseWriter, r *http.Request, g *session.Game) {
		var req playerReq
		if !readJSON(w, r, &req) {
			return
		}
		var (
			seat engine.SeatView
			err  error
		)
		if automated {
			seat, err = g.AddAIPlayer(r.Context(), req.Name, req.Chips, req.Model)
		} else {
			seat, err = g.AddPlayer(r.Context(), req.Name, req.Chips)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSONStatus(w, http.StatusCreated, map[string]any{"seat": seat, "source": g.Source(seat.ID), "state": g.State()})
	}
}

func (a api) gameOp(op func(*session.Game, context.Context) error) func(http.ResponseWriter, *http.Request, *session.Game) {
	return func(w http.ResponseWriter, r *http.Request, g *session.Game) {
		if err := op(g, r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, g.State())
	}
}

func (a api) seatOp(op func(context.Context, *session.Game, string) error) func(http.ResponseWriter, *http.Request, *session.Game) {
	return func(w http.ResponseWriter, r *http.Request, g *session.Game) {
		if err := op(r.Context(), g, chi.URLParam(r, "seat")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, g.State())
	}
}

type betReq struct {
	Seat   string `json:"seat"`
	Amount int    `json:"amount"`
}

func (a api) placeBet(w http.ResponseWriter, r *http.Request, g *session.Game) {
	var req betReq
	if !readJSON(w, r, &req) {
		return
	}
	if err := g.PlaceBet(r.Context(), req.Seat, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, g.State())
}

func (a api) seatAction(w http.ResponseWriter, r *http.Request, g *session.Game) {
	seat := chi.URLParam(r, "seat")
	var err error
	switch chi.URLParam(r, "action") {
	case "hit":
		err = g.Hit(r.Context(), seat)
	case "stand":
		err = g.Stand(r.Context(), seat)
	case "double", "double-down":
		err = g.DoubleDown(r.Context(), seat)
	case "sit-out":
		err = g.SitOut(r.Context(), seat)
	default:
		http.Error(w, "unknown action", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, g.State())
}

func (a api) advice(w http.ResponseWriter, r *http.Request, g *session.Game) {
	adv, err := g.Advice(chi.URLParam(r, "seat"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, adv)
}

func (a api) aiTurn(w http.ResponseWriter, r *http.Request, g *session.Game) {
	decisions, err := g.AIPlayTurn(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"decisions": decisions, "state": g.State()})
}

func (a api) end(w http.ResponseWriter, r *http.Request, g *session.Game) {
	standings, err := g.End(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"standings": standings, "state": g.State()})
}

func (a api) decisions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context(), 5*time.Second)
	defer cancel()
	ds, err := a.reg.Decisions(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if ds == nil {
		ds = []store.Decision{}
	}
	writeJSON(w, ds)
}

func (a api) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	ctx, cancel := withTimeout(r.Context(), 5*time.Second)
	defer cancel()
	rows, err := a.reg.Leaderboard(ctx, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, rows)
}

// ---- websocket ----

type wsCommand struct {
	Type   string `json:"type"` // hit | stand | double_down | bet | sit_out | ai_turn | new_round
	Seat   string `json:"seat,omitempty"`
	Amount int    `json:"amount,omitempty"`
}

type wsMessage struct {
	Type  string         `json:"type"`
	State *session.State `json:"state,omitempty"`
	Error string         `json:"error,omitempty"`
}

// stream pushes a StateSnapshot on connect and after every change, and
// applies commands the client sends back.
func (a api) stream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		id = r.URL.Query().Get("game")
	}
	g, err := a.reg.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	// subscribe before the handshake completes so no change is missed
	states, cancelSub := g.Subscribe()
	defer cancelSub()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	writeCtx, writeCancel := context.WithCancel(r.Context())
	defer writeCancel()
	go func() {
		for st := range states {
			payload, _ := json.Marshal(wsMessage{Type: "StateSnapshot", State: &st})
			ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
			err := conn.Write(ctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
		}
		// dropped as a slow subscriber, or the game was removed
		conn.Close(websocket.StatusGoingAway, "stream closed")
	}()

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}
		var cmd wsCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			a.wsError(r.Context(), conn, "bad json")
			continue
		}
		if err := a.apply(r.Context(), g, cmd); err != nil {
			a.wsError(r.Context(), conn, err.Error())
		}
	}
}

func (a api) apply(ctx context.Context, g *session.Game, cmd wsCommand) error {
	switch strings.ToLower(cmd.Type) {
	case "hit":
		return g.Hit(ctx, cmd.Seat)
	case "stand":
		return g.Stand(ctx, cmd.Seat)
	case "double_down", "double":
		return g.DoubleDown(ctx, cmd.Seat)
	case "bet":
		return g.PlaceBet(ctx, cmd.Seat, cmd.Amount)
	case "sit_out":
		return g.SitOut(ctx, cmd.Seat)
	case "ai_turn":
		_, err := g.AIPlayTurn(ctx)
		return err
	case "new_round":
		return g.NewRound(ctx)
	}
	return errors.New("unknown type")
}

func (a api) wsError(ctx context.Context, conn *websocket.Conn, msg string) {
	payload, _ := json.Marshal(wsMessage{Type: "Error", Error: msg})
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		a.log.Debug("ws write", zap.Error(err))
	}
}

// ---- helpers ----

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrGameNotFound), errors.Is(err, engine.ErrUnknownSeat):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrInvalidAction), errors.Is(err, engine.ErrGameNotStarted),
		errors.Is(err, engine.ErrTableFull), errors.Is(err, engine.ErrDuplicateName):
		return http.StatusConflict
	case errors.Is(err, store.ErrNoDSN):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadRequest
}

func writeError(w http.ResponseWriter, err error) {
	writeJSONStatus(w, statusFor(err), map[string]string{"error": err.Error()})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) { writeJSONStatus(w, http.StatusOK, v) }

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
