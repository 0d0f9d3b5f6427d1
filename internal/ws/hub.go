// Package ws implements the real-time fan-out hub. Connections authenticate
// once at upgrade time, join a per-user room plus the staff pool for staff
// roles, and may join ad-hoc table rooms on request. Delivery is best-effort,
// at-most-once per connected session: there is no queue or replay for
// disconnected clients, who must re-fetch state through the order API.
package ws

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/mesafood/comanda/internal/events"
)

const (
	roomStaff = "staff"

	userRoomPrefix  = "user:"
	tableRoomPrefix = "table:"
)

func userRoom(userID string) string   { return userRoomPrefix + userID }
func tableRoom(tableID string) string { return tableRoomPrefix + tableID }

// delivery is a marshaled event addressed to one room, or to every client.
type delivery struct {
	room    string
	all     bool
	payload []byte
}

// roomReq joins or leaves a client to/from a room.
type roomReq struct {
	c    *client
	room string
}

// Hub routes events to connected clients. All membership state is owned by
// the Run loop; other goroutines communicate through channels only.
type Hub struct {
	lg *zap.Logger

	register   chan *client
	unregister chan *client
	join       chan roomReq
	leave      chan roomReq
	deliveries chan delivery

	clients map[*client]struct{}
	rooms   map[string]map[*client]struct{}
}

// NewHub creates a hub. Call Run before serving connections.
func NewHub(lg *zap.Logger) *Hub {
	return &Hub{
		lg:         lg,
		register:   make(chan *client, 16),
		unregister: make(chan *client, 16),
		join:       make(chan roomReq, 64),
		leave:      make(chan roomReq, 64),
		deliveries: make(chan delivery, 256),
		clients:    make(map[*client]struct{}),
		rooms:      make(map[string]map[*client]struct{}),
	}
}

// Run processes registrations, room membership, and deliveries until the
// context is cancelled. On shutdown every client send channel is closed,
// which terminates the write pumps.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
			}
			return ctx.Err()

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.joinRoom(c, userRoom(c.claims.UserID))
			if c.claims.Role.Staff() {
				h.joinRoom(c, roomStaff)
			}
			h.lg.Info("client connected",
				zap.String("user_id", c.claims.UserID),
				zap.String("role", string(c.claims.Role)),
			)

		case c := <-h.unregister:
			if _, ok := h.clients[c]; !ok {
				continue
			}
			delete(h.clients, c)
			for room := range h.rooms {
				h.leaveRoom(c, room)
			}
			close(c.send)
			h.lg.Info("client disconnected", zap.String("user_id", c.claims.UserID))

		case req := <-h.join:
			if _, ok := h.clients[req.c]; ok {
				h.joinRoom(req.c, req.room)
			}

		case req := <-h.leave:
			h.leaveRoom(req.c, req.room)

		case d := <-h.deliveries:
			if d.all {
				for c := range h.clients {
					h.send(c, d.payload)
				}
				continue
			}
			for c := range h.rooms[d.room] {
				h.send(c, d.payload)
			}
		}
	}
}

func (h *Hub) joinRoom(c *client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
}

func (h *Hub) leaveRoom(c *client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// send enqueues a payload on the client's buffered channel. A full buffer
// means the client cannot keep up; it is dropped rather than allowed to stall
// the hub.
func (h *Hub) send(c *client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		delete(h.clients, c)
		for room := range h.rooms {
			h.leaveRoom(c, room)
		}
		close(c.send)
		h.lg.Warn("client send buffer full, dropping connection",
			zap.String("user_id", c.claims.UserID),
		)
	}
}

// enqueue marshals an event and hands it to the Run loop. It never blocks:
// when the hub is saturated the event is dropped and logged, per the
// fire-and-forget contract with the transactional path.
func (h *Hub) enqueue(room string, all bool, ev events.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.lg.Error("marshal event", zap.String("event", ev.Name), zap.Error(err))
		return
	}
	select {
	case h.deliveries <- delivery{room: room, all: all, payload: payload}:
	default:
		h.lg.Warn("hub delivery queue full, event dropped", zap.String("event", ev.Name))
	}
}

var _ events.Publisher = (*Hub)(nil)

// ToUser delivers to the per-user room.
func (h *Hub) ToUser(_ context.Context, userID string, ev events.Event) {
	h.enqueue(userRoom(userID), false, ev)
}

// ToStaff delivers to the staff pool.
func (h *Hub) ToStaff(_ context.Context, ev events.Event) {
	h.enqueue(roomStaff, false, ev)
}

// ToTable delivers to a table room.
func (h *Hub) ToTable(_ context.Context, tableID string, ev events.Event) {
	h.enqueue(tableRoom(tableID), false, ev)
}

// Broadcast delivers to every connected client.
func (h *Hub) Broadcast(_ context.Context, ev events.Event) {
	h.enqueue("", true, ev)
}

// handleInbound dispatches a client message. Invalid or unauthorized messages
// are ignored after logging; a misbehaving client cannot take the hub down.
func (h *Hub) handleInbound(c *client, raw []byte) {
	var msg struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.lg.Debug("malformed client message", zap.String("user_id", c.claims.UserID), zap.Error(err))
		return
	}

	switch msg.Event {
	case "join_table":
		var data struct {
			TableID string `json:"table_id"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.TableID == "" {
			return
		}
		h.join <- roomReq{c: c, room: tableRoom(data.TableID)}

	case "leave_table":
		var data struct {
			TableID string `json:"table_id"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.TableID == "" {
			return
		}
		h.leave <- roomReq{c: c, room: tableRoom(data.TableID)}

	case "support_message":
		var data struct {
			UserID  string `json:"user_id"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.Message == "" {
			return
		}
		now := time.Now().UTC()
		if c.claims.Role.Staff() {
			// Staff replying to a customer.
			if data.UserID == "" {
				return
			}
			h.ToUser(context.Background(), data.UserID, events.Event{
				Name: events.SupportResponse,
				Data: events.SupportMessageData{
					UserID:    data.UserID,
					From:      c.claims.UserID,
					Message:   data.Message,
					Timestamp: now,
				},
			})
			return
		}
		// Customer messaging the staff pool.
		h.ToStaff(context.Background(), events.Event{
			Name: events.CustomerSupportMessage,
			Data: events.SupportMessageData{
				UserID:    c.claims.UserID,
				From:      c.claims.UserID,
				Message:   data.Message,
				Timestamp: now,
			},
		})

	case "kitchen_update":
		if !c.claims.Role.Staff() {
			return
		}
		var data struct {
			OrderID       string `json:"order_id"`
			Status        string `json:"status"`
			EstimatedTime int    `json:"estimated_time"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.OrderID == "" {
			return
		}
		h.Broadcast(context.Background(), events.Event{
			Name: events.KitchenStatus,
			Data: events.KitchenStatusData{
				OrderID:       data.OrderID,
				Status:        data.Status,
				EstimatedTime: data.EstimatedTime,
				Timestamp:     time.Now().UTC(),
			},
		})

	default:
		h.lg.Debug("unknown client event", zap.String("event", msg.Event))
	}
}
