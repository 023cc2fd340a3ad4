package hub

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"live-poll/internal/domain"
)

// Subscriber is one outbound connection handle. Enqueue must never block:
// it returns false when the handle's queue is full or already closed.
type Subscriber interface {
	Enqueue(msg []byte) bool
	Close()
}

// Hub keeps, per room, the set of subscribed connection handles and fans
// lifecycle events out to them. Its lock is independent from any room's
// poll lock.
type Hub struct {
	rooms   map[string]map[Subscriber]struct{}
	roomsMu sync.RWMutex
	log     *logrus.Entry
}

// NewHub returns an empty hub.
func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		rooms: make(map[string]map[Subscriber]struct{}),
		log:   logger.WithField("component", "hub"),
	}
}

// Subscribe adds sub to roomID. Subscribing twice is a no-op.
func (h *Hub) Subscribe(roomID string, sub Subscriber) {
	if sub == nil {
		return
	}
	h.roomsMu.Lock()
	subs, ok := h.rooms[roomID]
	if !ok {
		subs = make(map[Subscriber]struct{})
		h.rooms[roomID] = subs
	}
	_, already := subs[sub]
	subs[sub] = struct{}{}
	count := len(subs)
	h.roomsMu.Unlock()

	if !already {
		h.log.WithFields(logrus.Fields{"room_id": roomID, "subscribers": count}).Debug("Subscriber added")
	}
}

// Unsubscribe removes sub from roomID and closes its queue. It is safe to
// call for handles that were never subscribed or were already removed.
func (h *Hub) Unsubscribe(roomID string, sub Subscriber) {
	if h.remove(roomID, sub) {
		sub.Close()
		h.log.WithField("room_id", roomID).Debug("Subscriber removed")
	}
}

func (h *Hub) remove(roomID string, sub Subscriber) bool {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	subs, ok := h.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := subs[sub]; !ok {
		return false
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.rooms, roomID)
	}
	return true
}

// Publish delivers evt to every handle subscribed to roomID right now and
// returns how many accepted it. A handle whose queue is full is dropped.
func (h *Hub) Publish(roomID string, evt domain.LifecycleEvent) int {
	payload, err := json.Marshal(domain.NewMessage(evt))
	if err != nil {
		h.log.WithError(err).WithField("room_id", roomID).Error("Failed to encode lifecycle event")
		return 0
	}
	return h.broadcast(roomID, evt.MessageType(), payload)
}

func (h *Hub) broadcast(roomID, msgType string, payload []byte) int {
	// Copy the set so Enqueue and Unsubscribe run without roomsMu held.
	h.roomsMu.RLock()
	recipients := make([]Subscriber, 0, len(h.rooms[roomID]))
	for sub := range h.rooms[roomID] {
		recipients = append(recipients, sub)
	}
	h.roomsMu.RUnlock()

	delivered := 0
	for _, sub := range recipients {
		if sub.Enqueue(payload) {
			delivered++
			continue
		}
		// Queue overflow: drop this subscriber, the others still get the event.
		// Unsubscribe closes its queue, so the writer pump exits and the
		// client reconnects to a fresh sync.
		h.log.WithFields(logrus.Fields{"room_id": roomID, "type": msgType}).
			Warn("Subscriber queue full, disconnecting it")
		h.Unsubscribe(roomID, sub)
	}
	return delivered
}

// Deliver sends one message to a single handle, outside any room fan-out.
func (h *Hub) Deliver(sub Subscriber, msg domain.Message) bool {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.WithError(err).WithField("type", msg.Type).Error("Failed to encode direct message")
		return false
	}
	return sub.Enqueue(payload)
}

// CloseRoom disconnects every handle subscribed to roomID.
func (h *Hub) CloseRoom(roomID string) {
	h.roomsMu.Lock()
	subs := h.rooms[roomID]
	delete(h.rooms, roomID)
	h.roomsMu.Unlock()

	// Handles subscribed after the delete belong to a new session and are left alone.
	for sub := range subs {
		sub.Close()
	}
	if len(subs) > 0 {
		h.log.WithFields(logrus.Fields{"room_id": roomID, "subscribers": len(subs)}).Info("Room subscribers disconnected")
	}
}

// SubscriberCount is the number of handles currently subscribed to roomID.
func (h *Hub) SubscriberCount(roomID string) int {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return len(h.rooms[roomID])
}

// RoomIDs lists rooms with at least one subscriber.
func (h *Hub) RoomIDs() []string {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	ids := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	return ids
}
