// Package game runs one game: a dealer goroutine refereeing player
// goroutines that race to claim matching items from a shared board.
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"example.com/tripleclaim/internal/board"
	"example.com/tripleclaim/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "example.com/tripleclaim/internal/game"

var (
	ErrUnknownPlayer  = errors.New("unknown player")
	ErrAlreadyStarted = errors.New("game already started")
	ErrNotStarted     = errors.New("game not started")
)

type options struct {
	logger   *zap.Logger
	display  Display
	observer board.Observer
	tracer   trace.Tracer
	seed     *[2]uint64
}

// Option configures a Game.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDisplay sets where countdown, scores, freezes and winners are sent.
func WithDisplay(d Display) Option {
	return func(o *options) { o.display = d }
}

// WithObserver receives every board change.
func WithObserver(obs board.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithSeed makes deck shuffles reproducible.
func WithSeed(a, b uint64) Option {
	return func(o *options) { o.seed = &[2]uint64{a, b} }
}

// Game wires a board, a dealer and its players. Human players come first in
// index order.
type Game struct {
	cfg     config.Game
	table   *board.Table
	dealer  *Dealer
	players []*Player
	logger  *zap.Logger

	started atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
	done    chan struct{}
}

// New validates cfg and builds a game that has not started yet.
func New(cfg config.Game, matcher Matcher, opts ...Option) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid game config: %w", err)
	}
	if matcher == nil {
		return nil, errors.New("matcher is required")
	}
	o := options{
		logger:  zap.NewNop(),
		display: nopDisplay{},
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(&o)
	}
	var rng *rand.Rand
	if o.seed != nil {
		rng = rand.New(rand.NewPCG(o.seed[0], o.seed[1]))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	table := board.NewTable(cfg.BoardSize, cfg.Players(), cfg.FeatureSize, o.observer)
	claims := newClaimQueue(cfg.Players())
	players := make([]*Player, cfg.Players())
	for i := range players {
		players[i] = newPlayer(i, i < cfg.HumanPlayers, cfg, table, claims, o.display, o.logger)
	}

	return &Game{
		cfg:     cfg,
		table:   table,
		dealer:  newDealer(cfg, table, players, claims, matcher, o.display, o.logger, o.tracer, rng),
		players: players,
		logger:  o.logger,
		done:    make(chan struct{}),
	}, nil
}

// Start launches the dealer, which in turn starts every player.
func (g *Game) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return ErrShutdown
	}
	if !g.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	ctx, g.cancel = context.WithCancel(ctx)
	go func() {
		defer close(g.done)
		g.dealer.Run(ctx)
	}()
	return nil
}

// SubmitSelection forwards a slot selection to a player.
func (g *Game) SubmitSelection(ctx context.Context, player, slot int) error {
	if player < 0 || player >= len(g.players) {
		return fmt.Errorf("%w: %d", ErrUnknownPlayer, player)
	}
	if !g.started.Load() {
		return ErrNotStarted
	}
	return g.players[player].SubmitSelection(ctx, slot)
}

// RequestShutdown stops the game. It does not wait; use Wait.
func (g *Game) RequestShutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopped = true
	if g.cancel != nil {
		g.cancel()
	}
}

// Wait blocks until the dealer and every player have exited.
func (g *Game) Wait() error {
	if !g.started.Load() {
		return ErrNotStarted
	}
	<-g.done
	return nil
}

// Done is closed once the game has ended.
func (g *Game) Done() <-chan struct{} {
	return g.done
}

// Scores returns every player's score by index.
func (g *Game) Scores() []int {
	out := make([]int, len(g.players))
	for i, p := range g.players {
		out[i] = p.Score()
	}
	return out
}

// Humans returns the indexes of human players.
func (g *Game) Humans() []int {
	var out []int
	for _, p := range g.players {
		if p.Human() {
			out = append(out, p.ID())
		}
	}
	return out
}

// Winners returns the announced winners; empty until the game ends
// normally.
func (g *Game) Winners() []int {
	return g.dealer.Winners()
}

// Inventory reports where the items are.
func (g *Game) Inventory() Inventory {
	return g.dealer.Inventory()
}

// Board exposes the table for read access.
func (g *Game) Board() *board.Table {
	return g.table
}
