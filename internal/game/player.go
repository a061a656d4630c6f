package game

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"example.com/tripleclaim/internal/board"
	"example.com/tripleclaim/internal/config"
	"go.uber.org/zap"
)

var (
	// ErrSelectionDropped is returned when a selection arrives while the
	// board is being changed or the player is waiting on a verdict or frozen.
	ErrSelectionDropped = errors.New("selection dropped")
	// ErrShutdown is returned once the player has been terminated.
	ErrShutdown = errors.New("player shut down")
)

const (
	freezeTick = time.Second
	// idlePause keeps computer players from spinning while the board is
	// closed between rounds.
	idlePause = 10 * time.Millisecond
)

// Player turns a stream of slot selections into marker toggles and claims.
// Its loop is the only writer of its markers while the board is open; the
// dealer only touches them with the board closed.
type Player struct {
	id    int
	human bool

	featureSize   int
	boardSize     int
	pointFreeze   time.Duration
	penaltyFreeze time.Duration

	board   Board
	claims  *claimQueue
	display Display
	logger  *zap.Logger

	inputs   chan int
	verdicts chan Verdict

	score     atomic.Int64
	accepting atomic.Bool
	started   atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newPlayer(id int, human bool, cfg config.Game, b Board, claims *claimQueue, display Display, logger *zap.Logger) *Player {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		id:            id,
		human:         human,
		featureSize:   cfg.FeatureSize,
		boardSize:     cfg.BoardSize,
		pointFreeze:   cfg.PointFreeze,
		penaltyFreeze: cfg.PenaltyFreeze,
		board:         b,
		claims:        claims,
		display:       display,
		logger:        logger.Named("player").With(zap.Int("player", id), zap.Bool("human", human)),
		inputs:        make(chan int, cfg.FeatureSize),
		verdicts:      make(chan Verdict, 1),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	p.accepting.Store(true)
	return p
}

// ID is the player's index.
func (p *Player) ID() int { return p.id }

// Human reports whether selections come from outside the process.
func (p *Player) Human() bool { return p.human }

// Score is the number of accepted claims. The dealer increments it when it
// accepts a claim, so it is final before winners are chosen.
func (p *Player) Score() int { return int(p.score.Load()) }

// SubmitSelection queues a slot selection. It blocks while the input queue
// is full.
func (p *Player) SubmitSelection(ctx context.Context, slot int) error {
	if p.ctx.Err() != nil {
		return ErrShutdown
	}
	if !p.board.Mutable() || !p.accepting.Load() {
		return ErrSelectionDropped
	}
	select {
	case p.inputs <- slot:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrShutdown
	}
}

func (p *Player) start() {
	p.started.Store(true)
	go p.run()
}

// terminate stops the loop and waits for it to exit.
func (p *Player) terminate() {
	p.cancel()
	if p.started.Load() {
		<-p.done
	}
}

func (p *Player) run() {
	defer close(p.done)
	p.logger.Info("player starting")

	if !p.human {
		gen := make(chan struct{})
		go p.generate(gen)
		defer func() { <-gen }()
	}

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Info("player terminated", zap.Int("score", p.Score()))
			return
		case slot := <-p.inputs:
			p.handle(slot)
		}
	}
}

// generate feeds random selections for a computer player. The bounded input
// queue is its only pacing.
func (p *Player) generate(done chan<- struct{}) {
	defer close(done)
	for {
		if !p.board.Mutable() {
			t := time.NewTimer(idlePause)
			select {
			case <-t.C:
			case <-p.ctx.Done():
				t.Stop()
				return
			}
			continue
		}
		select {
		case p.inputs <- rand.IntN(p.boardSize):
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Player) handle(slot int) {
	if p.board.ToggleMarker(p.id, slot) == board.Ignored {
		return
	}
	sel := p.board.Selection(p.id)
	if len(sel) < p.featureSize {
		return
	}
	p.apply(p.submit(newClaim(p.id, sel)))
}

// submit hands the claim to the dealer and waits for its verdict. A
// shutdown resolves the claim as stale.
func (p *Player) submit(c Claim) Verdict {
	p.accepting.Store(false)
	p.logger.Debug("claim submitted", zap.Ints("slots", c.Slots), zap.Ints("items", c.Items))
	if err := p.claims.put(p.ctx, c); err != nil {
		return Stale
	}
	select {
	case v := <-p.verdicts:
		return v
	case <-p.ctx.Done():
		return Stale
	}
}

func (p *Player) apply(v Verdict) {
	defer p.accepting.Store(true)
	switch v {
	case Accepted:
		p.display.Score(p.id, p.Score())
		p.freeze(p.pointFreeze)
	case Rejected:
		p.freeze(p.penaltyFreeze)
	default:
		return
	}
	p.discardInput()
}

// freeze blocks for d, refreshing the display once per tick.
func (p *Player) freeze(d time.Duration) {
	if d <= 0 {
		p.display.Freeze(p.id, 0)
		return
	}
	end := time.Now().Add(d)
	timer := time.NewTimer(d)
	defer timer.Stop()
	ticker := time.NewTicker(freezeTick)
	defer ticker.Stop()

	p.display.Freeze(p.id, d)
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-timer.C:
			p.display.Freeze(p.id, 0)
			return
		case <-ticker.C:
			p.display.Freeze(p.id, time.Until(end))
		}
	}
}

// deliver hands a verdict to the player. The dealer calls it at most once
// per claim.
func (p *Player) deliver(v Verdict) {
	select {
	case p.verdicts <- v:
	default:
		p.logger.Warn("verdict dropped", zap.Stringer("verdict", v))
	}
}

func (p *Player) discardInput() {
	for {
		select {
		case <-p.inputs:
		default:
			return
		}
	}
}
