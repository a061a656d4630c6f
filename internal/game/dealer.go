package game

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"example.com/tripleclaim/internal/config"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	tick        = time.Second
	warningTick = 10 * time.Millisecond
)

// Inventory counts where the items of the universe currently are.
type Inventory struct {
	Deck      int
	Board     int
	Collected int
}

// Total is the number of items accounted for.
func (i Inventory) Total() int {
	return i.Deck + i.Board + i.Collected
}

// Dealer owns the deck and the round deadline and is the only goroutine that
// places or removes items.
type Dealer struct {
	cfg     config.Game
	board   Board
	players []*Player
	claims  *claimQueue
	matcher Matcher
	display Display
	logger  *zap.Logger
	tracer  trace.Tracer
	rng     *rand.Rand

	mu        sync.Mutex // deck, collected, winners
	deck      []int
	collected int
	winners   []int

	deadline time.Time
}

func newDealer(cfg config.Game, b Board, players []*Player, claims *claimQueue, matcher Matcher, display Display, logger *zap.Logger, tracer trace.Tracer, rng *rand.Rand) *Dealer {
	deck := make([]int, cfg.UniverseSize)
	for i := range deck {
		deck[i] = i
	}
	return &Dealer{
		cfg:     cfg,
		board:   b,
		players: players,
		claims:  claims,
		matcher: matcher,
		display: display,
		logger:  logger.Named("dealer"),
		tracer:  tracer,
		rng:     rng,
		deck:    deck,
	}
}

// Run plays rounds until no match remains or ctx is cancelled, then stops
// every player.
func (d *Dealer) Run(ctx context.Context) {
	d.logger.Info("dealer starting", zap.Int("players", len(d.players)), zap.Int("universe", d.cfg.UniverseSize))
	for _, p := range d.players {
		p.start()
	}
	defer d.terminate()

	for !d.shouldFinish(ctx) {
		d.playRound(ctx)
	}
	if ctx.Err() != nil {
		d.logger.Info("dealer shutting down", zap.Error(ctx.Err()))
		return
	}
	d.announceWinners(ctx)
}

func (d *Dealer) playRound(ctx context.Context) {
	ctx, span := d.tracer.Start(ctx, "dealer.round")
	defer span.End()

	d.placeItems()
	d.timerLoop(ctx)
	d.clearBoard()
}

// timerLoop runs the countdown until the deadline passes, handling at most
// one claim per wake-up.
func (d *Dealer) timerLoop(ctx context.Context) {
	for ctx.Err() == nil && time.Now().Before(d.deadline) {
		c, ok := d.sleepUntilWokenOrTimeout(ctx)
		d.updateCountdown(false)
		if !ok {
			continue
		}
		if d.handleClaim(ctx, c) == Accepted && !d.matchRemains() {
			d.logger.Info("no match remains")
			return
		}
	}
	if ctx.Err() == nil {
		d.logger.Debug("round timed out")
	}
}

func (d *Dealer) sleepUntilWokenOrTimeout(ctx context.Context) (Claim, bool) {
	remaining := time.Until(d.deadline)
	wait := tick
	if remaining <= d.cfg.TurnTimeoutWarning {
		wait = warningTick
	}
	if remaining < wait {
		wait = max(remaining, time.Millisecond)
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case c := <-d.claims.next():
		return c, true
	case <-timer.C:
	case <-ctx.Done():
	}
	return Claim{}, false
}

// handleClaim validates first and, while claims resolve stale, the claims
// queued behind it. The board stays closed until it is stable again.
func (d *Dealer) handleClaim(ctx context.Context, first Claim) Verdict {
	d.board.SetMutable(false)
	v := d.validate(ctx, first)
	for v == Stale {
		next, ok := d.claims.poll()
		if !ok {
			break
		}
		v = d.validate(ctx, next)
	}
	if v == Accepted {
		d.placeItems()
		return v
	}
	d.board.SetMutable(true)
	return v
}

func (d *Dealer) validate(ctx context.Context, c Claim) Verdict {
	_, span := d.tracer.Start(ctx, "dealer.validate", trace.WithAttributes(
		attribute.Int("player", c.Player),
		attribute.IntSlice("slots", c.Slots),
	))
	defer span.End()

	v := d.judge(c)
	span.SetAttributes(attribute.String("verdict", v.String()))
	d.logger.Debug("claim validated",
		zap.Int("player", c.Player),
		zap.Ints("slots", c.Slots),
		zap.Stringer("verdict", v),
		zap.Duration("waited", time.Since(c.Submitted)),
	)
	if p := d.player(c.Player); p != nil {
		p.deliver(v)
	}
	return v
}

// judge decides a claim. It must run with the board closed.
func (d *Dealer) judge(c Claim) Verdict {
	if d.player(c.Player) == nil || len(c.Slots) != d.cfg.FeatureSize || len(c.Items) != len(c.Slots) {
		return Stale
	}
	seen := make(map[int]struct{}, len(c.Slots))
	for i, slot := range c.Slots {
		if _, dup := seen[slot]; dup {
			return Stale
		}
		seen[slot] = struct{}{}
		item, ok := d.board.ItemAt(slot)
		if !ok || item != c.Items[i] || !d.board.HasMarker(c.Player, slot) {
			return Stale
		}
	}

	if !d.matcher.IsMatch(c.Items) {
		for _, slot := range c.Slots {
			d.board.RemoveMarker(c.Player, slot)
		}
		return Rejected
	}

	d.mu.Lock()
	for _, slot := range c.Slots {
		d.board.Clear(slot)
	}
	d.collected += len(c.Slots)
	d.mu.Unlock()
	d.players[c.Player].score.Add(1)
	d.updateCountdown(true)
	return Accepted
}

// placeItems fills empty slots from a freshly shuffled deck and restarts the
// countdown if anything was placed.
func (d *Dealer) placeItems() {
	d.board.SetMutable(false)
	defer d.board.SetMutable(true)

	d.mu.Lock()
	d.rng.Shuffle(len(d.deck), func(i, j int) { d.deck[i], d.deck[j] = d.deck[j], d.deck[i] })
	placed := 0
	for _, slot := range d.board.EmptySlots() {
		if len(d.deck) == 0 {
			break
		}
		if err := d.board.Place(d.deck[0], slot); err != nil {
			d.logger.Error("place item", zap.Int("slot", slot), zap.Int("item", d.deck[0]), zap.Error(err))
			continue
		}
		d.deck = d.deck[1:]
		placed++
	}
	deck := len(d.deck)
	d.mu.Unlock()

	if placed > 0 {
		d.logger.Debug("board replenished", zap.Int("placed", placed), zap.Int("deck", deck))
		d.updateCountdown(true)
	}
}

// clearBoard returns every item to the deck. Markers go with the items and
// queued claims resolve stale.
func (d *Dealer) clearBoard() {
	d.board.SetMutable(false)
	d.board.SetCountdownShown(false)

	d.mu.Lock()
	for slot := 0; slot < d.board.Size(); slot++ {
		if item, ok := d.board.Clear(slot); ok {
			d.deck = append(d.deck, item)
		}
	}
	deck := len(d.deck)
	d.mu.Unlock()

	for _, c := range d.claims.drain() {
		if p := d.player(c.Player); p != nil {
			p.deliver(Stale)
		}
	}
	d.logger.Debug("board cleared", zap.Int("deck", deck))
}

func (d *Dealer) updateCountdown(reset bool) {
	now := time.Now()
	if reset {
		d.deadline = now.Add(d.cfg.TurnTimeout)
	}
	remaining := d.deadline.Sub(now)
	warn := remaining <= d.cfg.TurnTimeoutWarning
	if remaining < 0 {
		d.display.Countdown(0, warn)
		d.board.SetCountdownShown(false)
		return
	}
	d.display.Countdown(remaining, warn)
	d.board.SetCountdownShown(true)
}

func (d *Dealer) shouldFinish(ctx context.Context) bool {
	return ctx.Err() != nil || !d.matchRemains()
}

// matchRemains checks the deck and the board together.
func (d *Dealer) matchRemains() bool {
	d.mu.Lock()
	items := append([]int(nil), d.deck...)
	d.mu.Unlock()
	items = append(items, d.board.Items()...)
	return d.matcher.HasAnyMatch(items, 1)
}

func (d *Dealer) announceWinners(ctx context.Context) {
	best := 0
	for _, p := range d.players {
		best = max(best, p.Score())
	}
	var winners []int
	for _, p := range d.players {
		if p.Score() == best {
			winners = append(winners, p.ID())
		}
	}
	d.logger.Info("game over", zap.Ints("winners", winners), zap.Int("score", best))

	if d.cfg.EndGamePause > 0 {
		timer := time.NewTimer(d.cfg.EndGamePause)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}
	}
	d.mu.Lock()
	d.winners = winners
	d.mu.Unlock()
	d.display.Winners(winners)
}

// terminate stops players in reverse creation order.
func (d *Dealer) terminate() {
	for i := len(d.players) - 1; i >= 0; i-- {
		d.players[i].terminate()
	}
	d.logger.Info("dealer terminated")
}

// Inventory reports the deck, board and collected counts.
func (d *Dealer) Inventory() Inventory {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Inventory{
		Deck:      len(d.deck),
		Board:     d.board.CountItems(),
		Collected: d.collected,
	}
}

// Winners returns the announced winners, if any.
func (d *Dealer) Winners() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.winners...)
}

func (d *Dealer) player(id int) *Player {
	if id < 0 || id >= len(d.players) {
		return nil
	}
	return d.players[id]
}
