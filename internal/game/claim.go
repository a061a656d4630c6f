package game

import (
	"context"
	"time"

	"example.com/tripleclaim/internal/board"
)

// Verdict is the dealer's resolution of a claim.
type Verdict int

const (
	Pending Verdict = iota
	Accepted
	Rejected
	Stale
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Stale:
		return "stale"
	default:
		return "pending"
	}
}

// Claim is a full selection submitted for validation. Items records what
// the slots held when the selection completed.
type Claim struct {
	Player    int
	Slots     []int
	Items     []int
	Submitted time.Time
}

func newClaim(player int, sel []board.Mark) Claim {
	c := Claim{
		Player:    player,
		Slots:     make([]int, len(sel)),
		Items:     make([]int, len(sel)),
		Submitted: time.Now(),
	}
	for i, m := range sel {
		c.Slots[i] = m.Slot
		c.Items[i] = m.Item
	}
	return c
}

// claimQueue is the FIFO between players and the dealer. Its capacity equals
// the player count and each player has at most one claim outstanding, so
// put only blocks if that rule is broken.
type claimQueue struct {
	ch chan Claim
}

func newClaimQueue(capacity int) *claimQueue {
	return &claimQueue{ch: make(chan Claim, capacity)}
}

func (q *claimQueue) put(ctx context.Context, c Claim) error {
	select {
	case q.ch <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *claimQueue) poll() (Claim, bool) {
	select {
	case c := <-q.ch:
		return c, true
	default:
		return Claim{}, false
	}
}

func (q *claimQueue) next() <-chan Claim {
	return q.ch
}

func (q *claimQueue) drain() []Claim {
	var out []Claim
	for {
		c, ok := q.poll()
		if !ok {
			return out
		}
		out = append(out, c)
	}
}

func (q *claimQueue) len() int {
	return len(q.ch)
}
