package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrNoDSN    = errors.New("no database configured")
)

// Store is the table's ledger: bankrolls, settled rounds and graded decisions.
type Store interface {
	Ping(ctx context.Context) error
	Close()
	Migrate(ctx context.Context) error

	LoadPlayer(ctx context.Context, name string) (Player, error)
	SavePlayer(ctx context.Context, p Player) error
	Leaderboard(ctx context.Context, limit int) ([]Player, error)

	CreateGame(ctx context.Context, id, rules string) error
	EndGame(ctx context.Context, id string) error
	InsertRound(ctx context.Context, r Round) error
	InsertDecision(ctx context.Context, d Decision) error
	Decisions(ctx context.Context, gameID string) ([]Decision, error)
}

// Open picks the driver from the DSN: postgres:// or postgresql:// go to
// pgx, sqlite:<path> (or a bare *.db path) goes to the embedded driver.
func Open(ctx context.Context, dsn string) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return nil, ErrNoDSN
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		db, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return db, nil
	case strings.HasPrefix(dsn, "sqlite:"):
		dsn = strings.TrimPrefix(dsn, "sqlite:")
	case strings.HasSuffix(dsn, ".db"), strings.HasSuffix(dsn, ".sqlite"):
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL %q", dsn)
	}
	lite, err := OpenSQLite(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return lite, nil
}

// Player is a persisted bankroll plus career counters. Names are unique
// case-insensitively.
type Player struct {
	Name       string  `json:"name"`
	Automated  bool    `json:"automated"`
	Chips      int     `json:"chips"`
	Elo        float64 `json:"elo"`
	Hands      int     `json:"hands"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	Pushes     int     `json:"pushes"`
	Blackjacks int     `json:"blackjacks"`
	Busts      int     `json:"busts"`
	Doubles    int     `json:"doubles"`
	Net        int     `json:"net_chips"`
	JudgeGood  int     `json:"judge_good"`
	JudgeTotal int     `json:"judge_total"`
}

func nameKey(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

type Round struct {
	GameID          string
	Round           int
	DealerCards     string
	DealerScore     int
	DealerBust      bool
	DealerBlackjack bool
	HouseDelta      int
	Seats           []SeatResult
}

type SeatResult struct {
	SeatID     string
	Name       string
	Bet        int
	Cards      string
	Score      int
	Outcome    string
	Delta      int
	ChipsAfter int
}

// Decision is one applied player action. The Eval fields are nil when the
// decision was not graded.
type Decision struct {
	GameID    string   `json:"game_id"`
	Round     int      `json:"round"`
	SeatID    string   `json:"seat_id"`
	Name      string   `json:"name"`
	Hand      string   `json:"hand"`
	DealerUp  string   `json:"dealer_up"`
	Score     int      `json:"score"`
	Action    string   `json:"action"`
	Automated bool     `json:"automated"`
	Solver    *string  `json:"solver,omitempty"`
	Best      *string  `json:"best_action,omitempty"`
	EVChosen  *float64 `json:"ev_chosen,omitempty"`
	EVBest    *float64 `json:"ev_best,omitempty"`
	EVGap     *float64 `json:"ev_gap,omitempty"`
	IsTop     *bool    `json:"is_top_action,omitempty"`
	EVsJSON   *string  `json:"evs,omitempty"`
	ComputeMS *int     `json:"compute_ms,omitempty"`
}

/* -----------------------------
   Driver-neutral queries
------------------------------*/

type row interface {
	Scan(dest ...any) error
}

type rows interface {
	row
	Next() bool
	Err() error
	Close()
}

// conn hides the pgx/database-sql split. Queries use $N placeholders.
type conn interface {
	exec(ctx context.Context, q string, args ...any) error
	queryRow(ctx context.Context, q string, args ...any) row
	query(ctx context.Context, q string, args ...any) (rows, error)
	tx(ctx context.Context, fn func(conn) error) error
}

type ledger struct{ c conn }

func millis(t time.Time) int64 { return t.UTC().UnixMilli() }

const playerCols = `name, automated, chips, elo, hands, wins, losses, pushes,
       blackjacks, busts, doubles, net_chips, judge_good, judge_total`

func scanPlayer(r row) (Player, error) {
	var p Player
	err := r.Scan(&p.Name, &p.Automated, &p.Chips, &p.Elo, &p.Hands, &p.Wins, &p.Losses, &p.Pushes,
		&p.Blackjacks, &p.Busts, &p.Doubles, &p.Net, &p.JudgeGood, &p.JudgeTotal)
	return p, err
}

func (l ledger) LoadPlayer(ctx context.Context, name string) (Player, error) {
	p, err := scanPlayer(l.c.queryRow(ctx, `SELECT `+playerCols+` FROM players WHERE name_key = $1`, nameKey(name)))
	if err != nil {
		return Player{}, err
	}
	return p, nil
}

// SavePlayer upserts by case-insensitive name.
func (l ledger) SavePlayer(ctx context.Context, p Player) error {
	key := nameKey(p.Name)
	if key == "" {
		return errors.New("player name is required")
	}
	return l.c.exec(ctx, `
        INSERT INTO players(
            name, name_key, automated, chips, elo,
            hands, wins, losses, pushes, blackjacks, busts, doubles,
            net_chips, judge_good, judge_total, updated_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
        ON CONFLICT (name_key) DO UPDATE SET
            name = EXCLUDED.name,
            automated = EXCLUDED.automated,
            chips = EXCLUDED.chips,
            elo = EXCLUDED.elo,
            hands = EXCLUDED.hands,
            wins = EXCLUDED.wins,
            losses = EXCLUDED.losses,
            pushes = EXCLUDED.pushes,
            blackjacks = EXCLUDED.blackjacks,
            busts = EXCLUDED.busts,
            doubles = EXCLUDED.doubles,
            net_chips = EXCLUDED.net_chips,
            judge_good = EXCLUDED.judge_good,
            judge_total = EXCLUDED.judge_total,
            updated_at = EXCLUDED.updated_at
    `, strings.TrimSpace(p.Name), key, p.Automated, p.Chips, p.Elo,
		p.Hands, p.Wins, p.Losses, p.Pushes, p.Blackjacks, p.Busts, p.Doubles,
		p.Net, p.JudgeGood, p.JudgeTotal, millis(time.Now()))
}

// Leaderboard lists players by rating, then net chips.
func (l ledger) Leaderboard(ctx context.Context, limit int) ([]Player, error) {
	if limit <= 0 {
		limit = 50
	}
	rs, err := l.c.query(ctx, `SELECT `+playerCols+` FROM players ORDER BY elo DESC, net_chips DESC, name ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	var out []Player
	for rs.Next() {
		p, err := scanPlayer(rs)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rs.Err()
}

func (l ledger) CreateGame(ctx context.Context, id, rules string) error {
	return l.c.exec(ctx, `INSERT INTO games(id, rules, started_at) VALUES ($1,$2,$3) ON CONFLICT (id) DO NOTHING`,
		id, rules, millis(time.Now()))
}

func (l ledger) EndGame(ctx context.Context, id string) error {
	return l.c.exec(ctx, `UPDATE games SET ended_at = $2 WHERE id = $1`, id, millis(time.Now()))
}

// InsertRound writes the round and its seat results atomically.
func (l ledger) InsertRound(ctx context.Context, r Round) error {
	return l.c.tx(ctx, func(c conn) error {
		var id int64
		err := c.queryRow(ctx, `
            INSERT INTO rounds(
                game_id, round_no, dealer_cards, dealer_score,
                dealer_bust, dealer_blackjack, house_delta, created_at
            ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
            RETURNING id
        `, r.GameID, r.Round, r.DealerCards, r.DealerScore,
			r.DealerBust, r.DealerBlackjack, r.HouseDelta, millis(time.Now())).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert round: %w", err)
		}
		for _, s := range r.Seats {
			if err := c.exec(ctx, `
                INSERT INTO seat_results(
                    round_id, seat_id, name, bet, cards, score, outcome, delta, chips_after
                ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
            `, id, s.SeatID, s.Name, s.Bet, s.Cards, s.Score, s.Outcome, s.Delta, s.ChipsAfter); err != nil {
				return fmt.Errorf("insert seat result %s: %w", s.SeatID, err)
			}
		}
		return nil
	})
}

func (l ledger) InsertDecision(ctx context.Context, d Decision) error {
	return l.c.exec(ctx, `
        INSERT INTO decisions(
            game_id, round_no, seat_id, name, hand, dealer_up, score,
            action, automated,
            solver, best_action, ev_chosen, ev_best, ev_gap,
            is_top_action, evs_json, compute_ms, created_at
        ) VALUES (
            $1,$2,$3,$4,$5,$6,$7,
            $8,$9,
            $10,$11,$12,$13,$14,
            $15,$16,$17,$18
        )
    `,
		d.GameID, d.Round, d.SeatID, d.Name, d.Hand, d.DealerUp, d.Score,
		d.Action, d.Automated,
		d.Solver, d.Best, d.EVChosen, d.EVBest, d.EVGap,
		d.IsTop, d.EVsJSON, d.ComputeMS, millis(time.Now()),
	)
}

// Decisions returns a game's decisions in the order they were made.
func (l ledger) Decisions(ctx context.Context, gameID string) ([]Decision, error) {
	rs, err := l.c.query(ctx, `
        SELECT game_id, round_no, seat_id, name, hand, dealer_up, score,
               action, automated,
               solver, best_action, ev_chosen, ev_best, ev_gap,
               is_top_action, evs_json, compute_ms
          FROM decisions
         WHERE game_id = $1
         ORDER BY id
    `, gameID)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	var out []Decision
	for rs.Next() {
		var d Decision
		if err := rs.Scan(&d.GameID, &d.Round, &d.SeatID, &d.Name, &d.Hand, &d.DealerUp, &d.Score,
			&d.Action, &d.Automated,
			&d.Solver, &d.Best, &d.EVChosen, &d.EVBest, &d.EVGap,
			&d.IsTop, &d.EVsJSON, &d.ComputeMS); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rs.Err()
}
