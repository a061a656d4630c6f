// Package ws carries human player input from browsers into a game and fans
// game and board events back out to every connected client.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"example.com/tripleclaim/internal/board"
	"example.com/tripleclaim/internal/game"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// ---------- message envelope ----------

type Msg struct {
	T string                 `json:"t"`           // type
	M map[string]interface{} `json:"m,omitempty"` // payload
}

// Game is the part of a running game the hub drives.
type Game interface {
	SubmitSelection(ctx context.Context, player, slot int) error
	Humans() []int
	Scores() []int
	Board() *board.Table
}

// ---------- hub ----------

type Hub struct {
	allowOrigins map[string]bool
	logger       *zap.Logger

	clients   map[*Client]struct{}
	mu        sync.RWMutex
	broadcast chan []byte

	// seats: human player -> client (nil if free)
	seatsMu sync.Mutex
	game    Game
	seats   map[int]*Client
}

var (
	_ game.Display   = (*Hub)(nil)
	_ board.Observer = (*Hub)(nil)
)

func NewHub(allow []string, logger *zap.Logger) *Hub {
	m := map[string]bool{}
	for _, a := range allow {
		if a != "" {
			m[a] = true
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		allowOrigins: m,
		logger:       logger.Named("ws"),
		clients:      map[*Client]struct{}{},
		broadcast:    make(chan []byte, 256),
		seats:        map[int]*Client{},
	}
}

// Attach hands the hub a game whose human seats clients may join.
func (h *Hub) Attach(g Game) {
	h.seatsMu.Lock()
	defer h.seatsMu.Unlock()
	h.game = g
	h.seats = map[int]*Client{}
	for _, id := range g.Humans() {
		h.seats[id] = nil
	}
}

// Run fans broadcast messages out until ctx ends. Slow clients miss
// messages rather than stall the game.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ---------- display sink and board observer ----------

func (h *Hub) Countdown(remaining time.Duration, warn bool) {
	h.publish(Msg{T: "countdown", M: map[string]interface{}{"ms": remaining.Milliseconds(), "warn": warn}})
}

func (h *Hub) Score(player, score int) {
	h.publish(Msg{T: "score", M: map[string]interface{}{"player": player, "score": score}})
}

func (h *Hub) Freeze(player int, remaining time.Duration) {
	h.publish(Msg{T: "freeze", M: map[string]interface{}{"player": player, "ms": remaining.Milliseconds()}})
}

func (h *Hub) Winners(players []int) {
	h.publish(Msg{T: "winners", M: map[string]interface{}{"players": players}})
}

func (h *Hub) ItemPlaced(slot, item int) {
	h.publish(Msg{T: "place", M: map[string]interface{}{"slot": slot, "item": item}})
}

func (h *Hub) SlotCleared(slot, item int) {
	h.publish(Msg{T: "clear", M: map[string]interface{}{"slot": slot, "item": item}})
}

func (h *Hub) MarkerPlaced(player, slot int) {
	h.publish(Msg{T: "marker", M: map[string]interface{}{"player": player, "slot": slot, "on": true}})
}

func (h *Hub) MarkerRemoved(player, slot int) {
	h.publish(Msg{T: "marker", M: map[string]interface{}{"player": player, "slot": slot, "on": false}})
}

// publish never blocks: observer callbacks run under the board lock.
func (h *Hub) publish(msg Msg) {
	select {
	case h.broadcast <- encode(msg):
	default:
		h.logger.Warn("broadcast queue full, message dropped", zap.String("type", msg.T))
	}
}

// ---------- websockets ----------

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin != "" && !h.allowOrigins[origin] {
		http.Error(w, "forbidden origin", http.StatusForbidden)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.logger.Debug("websocket accept", zap.Error(err))
		return
	}

	client := newClient(c)
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	logger := h.logger.With(zap.String("client", client.id))
	logger.Info("client connected")

	ctx := r.Context()
	go client.writeLoop(ctx)
	h.sendTo(client, Msg{T: "welcome", M: map[string]interface{}{"id": client.id, "free": h.freeSeats()}})

	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			break
		}
		var m Msg
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}

		switch m.T {
		case "join":
			seat := h.takeSeat(client)
			if seat < 0 {
				h.sendTo(client, Msg{T: "error", M: map[string]interface{}{"code": "NO_SEAT"}})
				break
			}
			logger.Info("seat taken", zap.Int("player", seat))
			h.sendTo(client, Msg{T: "joined", M: map[string]interface{}{"player": seat}})
			h.sendState(client)

		case "select":
			seat := h.seatOf(client)
			if seat < 0 {
				h.sendTo(client, Msg{T: "error", M: map[string]interface{}{"code": "NOT_SEATED"}})
				break
			}
			slot, ok := m.M["slot"].(float64)
			if !ok {
				h.sendTo(client, Msg{T: "error", M: map[string]interface{}{"code": "BAD_SLOT"}})
				break
			}
			if err := h.currentGame().SubmitSelection(ctx, seat, int(slot)); err != nil {
				switch {
				case errors.Is(err, game.ErrSelectionDropped):
					logger.Debug("selection dropped", zap.Int("player", seat), zap.Int("slot", int(slot)))
				case errors.Is(err, game.ErrShutdown), errors.Is(err, game.ErrNotStarted):
					h.sendTo(client, Msg{T: "error", M: map[string]interface{}{"code": "NOT_RUNNING"}})
				default:
					logger.Warn("submit selection", zap.Int("player", seat), zap.Error(err))
				}
			}

		case "leave":
			if seat := h.releaseSeat(client); seat >= 0 {
				logger.Info("seat released", zap.Int("player", seat))
				h.sendTo(client, Msg{T: "left", M: map[string]interface{}{"player": seat}})
			}

		case "state":
			h.sendState(client)
		}
	}

	h.releaseSeat(client)
	h.mu.Lock()
	delete(h.clients, client)
	close(client.send)
	h.mu.Unlock()
	logger.Info("client disconnected")
}

// ---------- helpers ----------

func (h *Hub) sendTo(c *Client, msg Msg) {
	select {
	case c.send <- encode(msg):
	default:
	}
}

func (h *Hub) currentGame() Game {
	h.seatsMu.Lock()
	defer h.seatsMu.Unlock()
	return h.game
}

// takeSeat gives c the lowest free human seat. A seated client keeps its
// seat.
func (h *Hub) takeSeat(c *Client) int {
	h.seatsMu.Lock()
	defer h.seatsMu.Unlock()
	if c.seat >= 0 {
		return c.seat
	}
	best := -1
	for id, holder := range h.seats {
		if holder == nil && (best < 0 || id < best) {
			best = id
		}
	}
	if best >= 0 {
		h.seats[best] = c
		c.seat = best
	}
	return best
}

func (h *Hub) releaseSeat(c *Client) int {
	h.seatsMu.Lock()
	defer h.seatsMu.Unlock()
	seat := c.seat
	if seat >= 0 && h.seats[seat] == c {
		h.seats[seat] = nil
	}
	c.seat = -1
	return seat
}

func (h *Hub) seatOf(c *Client) int {
	h.seatsMu.Lock()
	defer h.seatsMu.Unlock()
	return c.seat
}

func (h *Hub) freeSeats() []int {
	h.seatsMu.Lock()
	defer h.seatsMu.Unlock()
	out := []int{}
	for id, holder := range h.seats {
		if holder == nil {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// sendState gives one client the full board and scores.
func (h *Hub) sendState(c *Client) {
	g := h.currentGame()
	if g == nil {
		return
	}
	t := g.Board()
	slots := make([]int, t.Size())
	for i := range slots {
		slots[i] = -1
		if item, ok := t.ItemAt(i); ok {
			slots[i] = item
		}
	}
	m := map[string]interface{}{"slots": slots, "scores": g.Scores()}
	if seat := h.seatOf(c); seat >= 0 {
		m["player"] = seat
		m["markers"] = t.MarkersOf(seat)
	}
	h.sendTo(c, Msg{T: "state", M: m})
}
