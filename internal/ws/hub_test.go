package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"example.com/tripleclaim/internal/board"
	"example.com/tripleclaim/internal/game"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type selection struct{ player, slot int }

type fakeGame struct {
	mu       sync.Mutex
	humans   []int
	selected []selection
	err      error
	table    *board.Table
}

func newFakeGame(humans ...int) *fakeGame {
	t := board.NewTable(3, len(humans), 3, nil)
	_ = t.Place(7, 1)
	return &fakeGame{humans: humans, table: t}
}

func (g *fakeGame) SubmitSelection(_ context.Context, player, slot int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.selected = append(g.selected, selection{player, slot})
	return nil
}

func (g *fakeGame) Humans() []int       { return g.humans }
func (g *fakeGame) Scores() []int       { return make([]int, len(g.humans)) }
func (g *fakeGame) Board() *board.Table { return g.table }

func (g *fakeGame) selections() []selection {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]selection(nil), g.selected...)
}

func newTestHub(t *testing.T, g Game) (*Hub, *httptest.Server) {
	t.Helper()
	h := NewHub([]string{"http://allowed.test"}, nil)
	if g != nil {
		h.Attach(g)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(websocket.StatusNormalClosure, "") })

	welcome := readType(t, c, "welcome")
	require.NotEmpty(t, welcome.M["id"])
	return c
}

func send(t *testing.T, c *websocket.Conn, msg Msg) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, c, msg))
}

// readType skips messages until one of type typ arrives.
func readType(t *testing.T, c *websocket.Conn, typ string) Msg {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		var m Msg
		require.NoError(t, wsjson.Read(ctx, c, &m))
		if m.T == typ {
			return m
		}
	}
}

func TestJoinAssignsLowestFreeSeat(t *testing.T) {
	_, srv := newTestHub(t, newFakeGame(0, 1))
	a := dial(t, srv)
	b := dial(t, srv)
	extra := dial(t, srv)

	send(t, a, Msg{T: "join"})
	require.Equal(t, float64(0), readType(t, a, "joined").M["player"])
	state := readType(t, a, "state")
	require.Equal(t, []interface{}{float64(-1), float64(7), float64(-1)}, state.M["slots"])

	send(t, b, Msg{T: "join"})
	require.Equal(t, float64(1), readType(t, b, "joined").M["player"])

	send(t, extra, Msg{T: "join"})
	require.Equal(t, "NO_SEAT", readType(t, extra, "error").M["code"])

	send(t, a, Msg{T: "leave"})
	require.Equal(t, float64(0), readType(t, a, "left").M["player"])
	send(t, extra, Msg{T: "join"})
	require.Equal(t, float64(0), readType(t, extra, "joined").M["player"])
}

func TestSelectForwardsToSeatedPlayer(t *testing.T) {
	g := newFakeGame(0, 1)
	_, srv := newTestHub(t, g)
	a := dial(t, srv)
	b := dial(t, srv)

	send(t, a, Msg{T: "select", M: map[string]interface{}{"slot": 2}})
	require.Equal(t, "NOT_SEATED", readType(t, a, "error").M["code"])

	send(t, a, Msg{T: "join"})
	readType(t, a, "joined")
	send(t, b, Msg{T: "join"})
	readType(t, b, "joined")

	send(t, b, Msg{T: "select", M: map[string]interface{}{"slot": 2}})
	send(t, a, Msg{T: "select", M: map[string]interface{}{"slot": "x"}})
	require.Equal(t, "BAD_SLOT", readType(t, a, "error").M["code"])

	require.Eventually(t, func() bool { return len(g.selections()) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, selection{player: 1, slot: 2}, g.selections()[0])
}

func TestSelectAfterShutdownReportsNotRunning(t *testing.T) {
	g := newFakeGame(0)
	g.err = game.ErrShutdown
	_, srv := newTestHub(t, g)
	a := dial(t, srv)

	send(t, a, Msg{T: "join"})
	readType(t, a, "joined")
	send(t, a, Msg{T: "select", M: map[string]interface{}{"slot": 0}})
	require.Equal(t, "NOT_RUNNING", readType(t, a, "error").M["code"])
}

func TestDisplayEventsReachEveryClient(t *testing.T) {
	h, srv := newTestHub(t, newFakeGame(0))
	a := dial(t, srv)
	b := dial(t, srv)
	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return len(h.clients) == 2
	}, 2*time.Second, 5*time.Millisecond)

	h.Score(0, 3)
	h.Countdown(1500*time.Millisecond, true)
	h.MarkerPlaced(0, 2)
	h.Winners([]int{0})

	for _, c := range []*websocket.Conn{a, b} {
		score := readType(t, c, "score")
		require.Equal(t, float64(3), score.M["score"])
		countdown := readType(t, c, "countdown")
		require.Equal(t, float64(1500), countdown.M["ms"])
		require.Equal(t, true, countdown.M["warn"])
		marker := readType(t, c, "marker")
		require.Equal(t, true, marker.M["on"])
		winners := readType(t, c, "winners")
		require.Equal(t, []interface{}{float64(0)}, winners.M["players"])
	}
}

func TestForbiddenOrigin(t *testing.T) {
	_, srv := newTestHub(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"http://evil.test"}},
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPublishDropsWhenQueueFull(t *testing.T) {
	h := NewHub(nil, nil)
	for range cap(h.broadcast) + 10 {
		h.Freeze(0, time.Second)
	}
	require.Len(t, h.broadcast, cap(h.broadcast))
}
