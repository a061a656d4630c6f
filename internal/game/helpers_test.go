package game

import (
	"slices"
	"sync"
	"testing"
	"time"

	"example.com/tripleclaim/internal/board"
	"example.com/tripleclaim/internal/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeMatcher accepts exactly the listed item groups.
type fakeMatcher struct {
	matches [][]int
}

func newFakeMatcher(matches ...[]int) *fakeMatcher {
	m := &fakeMatcher{}
	for _, g := range matches {
		m.matches = append(m.matches, sorted(g))
	}
	return m
}

func sorted(items []int) []int {
	out := slices.Clone(items)
	slices.Sort(out)
	return out
}

func (m *fakeMatcher) IsMatch(items []int) bool {
	got := sorted(items)
	for _, g := range m.matches {
		if slices.Equal(g, got) {
			return true
		}
	}
	return false
}

func (m *fakeMatcher) HasAnyMatch(items []int, minCount int) bool {
	found := 0
	for _, g := range m.matches {
		all := true
		for _, item := range g {
			if !slices.Contains(items, item) {
				all = false
				break
			}
		}
		if all {
			found++
		}
	}
	return found >= minCount
}

// anyMatcher treats every group of three as a match.
type anyMatcher struct{}

func (anyMatcher) IsMatch(items []int) bool { return len(items) == 3 }

func (anyMatcher) HasAnyMatch(items []int, minCount int) bool { return len(items) >= 3*minCount }

type freezeEvent struct {
	player    int
	remaining time.Duration
}

type recordingDisplay struct {
	mu         sync.Mutex
	countdowns []time.Duration
	warned     bool
	scores     map[int]int
	freezes    []freezeEvent
	winners    [][]int
}

func newRecordingDisplay() *recordingDisplay {
	return &recordingDisplay{scores: map[int]int{}}
}

func (r *recordingDisplay) Countdown(remaining time.Duration, warn bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.countdowns = append(r.countdowns, remaining)
	r.warned = r.warned || warn
}

func (r *recordingDisplay) Score(player, score int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores[player] = score
}

func (r *recordingDisplay) Freeze(player int, remaining time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.freezes = append(r.freezes, freezeEvent{player: player, remaining: remaining})
}

func (r *recordingDisplay) Winners(players []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.winners = append(r.winners, slices.Clone(players))
}

func (r *recordingDisplay) score(player int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scores[player]
}

func (r *recordingDisplay) freezesOf(player int) []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []time.Duration
	for _, f := range r.freezes {
		if f.player == player {
			out = append(out, f.remaining)
		}
	}
	return out
}

func (r *recordingDisplay) announced() [][]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.winners)
}

func (r *recordingDisplay) sawWarning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.warned
}

func testConfig() config.Game {
	return config.Game{
		HumanPlayers:       2,
		BoardSize:          12,
		FeatureSize:        3,
		UniverseSize:       12,
		TurnTimeout:        time.Minute,
		TurnTimeoutWarning: 10 * time.Millisecond,
		PointFreeze:        20 * time.Millisecond,
		PenaltyFreeze:      50 * time.Millisecond,
	}
}

func newTestGame(t *testing.T, cfg config.Game, m Matcher) (*Game, *recordingDisplay) {
	t.Helper()
	disp := newRecordingDisplay()
	g, err := New(cfg, m, WithDisplay(disp), WithSeed(1, 2), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return g, disp
}

func startPlayer(t *testing.T, g *Game, id int) *Player {
	t.Helper()
	p := g.players[id]
	p.start()
	t.Cleanup(p.terminate)
	return p
}

func slotsOf(t *testing.T, tbl *board.Table, items ...int) []int {
	t.Helper()
	out := make([]int, 0, len(items))
	for _, want := range items {
		found := -1
		for slot := 0; slot < tbl.Size(); slot++ {
			if item, ok := tbl.ItemAt(slot); ok && item == want {
				found = slot
				break
			}
		}
		require.NotEqual(t, -1, found, "item %d not on the board", want)
		out = append(out, found)
	}
	return out
}

func selectSlots(t *testing.T, p *Player, slots ...int) {
	t.Helper()
	for _, s := range slots {
		require.NoError(t, p.SubmitSelection(t.Context(), s))
	}
}

func nextClaim(t *testing.T, d *Dealer) Claim {
	t.Helper()
	select {
	case c := <-d.claims.next():
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no claim queued")
		return Claim{}
	}
}

func waitQueued(t *testing.T, d *Dealer, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return d.claims.len() == n }, 2*time.Second, time.Millisecond)
}
