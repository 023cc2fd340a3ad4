package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"live-poll/internal/domain"
	"live-poll/internal/hub"
	"live-poll/internal/service"
	"live-poll/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// HostPolicy decides what happens to a room when its host's last
// connection goes away.
type HostPolicy string

const (
	// HostPolicyKeep leaves the room running.
	HostPolicyKeep HostPolicy = "keep"
	// HostPolicyDeactivate deactivates the room and evicts its session.
	HostPolicyDeactivate HostPolicy = "deactivate"
)

const inboundTimeout = 5 * time.Second

// Config tunes the websocket handler.
type Config struct {
	QueueSize     int
	HostPolicy    HostPolicy
	AllowedOrigin string
}

// inbound is a frame sent by a participant.
type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type votePayload struct {
	PollID    int64   `json:"poll_id"`
	OptionID  int     `json:"option_id"`
	TimeTaken float64 `json:"time_taken"`
}

// VoteAckPayload answers a participant's own vote.
type VoteAckPayload struct {
	PollID   int64         `json:"poll_id"`
	OptionID int           `json:"option_id"`
	Status   string        `json:"status"`
	Tally    *domain.Tally `json:"tally,omitempty"`
}

// ErrorPayload reports a rejected inbound frame to its sender only.
type ErrorPayload struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// WebSocketHandler upgrades room connections and serves inbound votes.
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	hub         *hub.Hub
	roomService *service.RoomService
	pollService *service.PollService
	cfg         Config

	hostMu    sync.Mutex
	hostConns map[string]int
}

// NewWebSocketHandler creates a WebSocketHandler.
func NewWebSocketHandler(h *hub.Hub, roomService *service.RoomService, pollService *service.PollService, cfg Config) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if roomService == nil {
		panic("RoomService cannot be nil for WebSocketHandler")
	}
	if pollService == nil {
		panic("PollService cannot be nil for WebSocketHandler")
	}
	if cfg.HostPolicy == "" {
		cfg.HostPolicy = HostPolicyKeep
	}

	allowed := cfg.AllowedOrigin
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowed == "" || allowed == "*" {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || origin == allowed
		},
	}

	return &WebSocketHandler{
		upgrader:    upgrader,
		hub:         h,
		roomService: roomService,
		pollService: pollService,
		cfg:         cfg,
		hostConns:   make(map[string]int),
	}
}

// HandleConnection upgrades GET /ws/room/:roomId and subscribes the
// connection to the room's session.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	userIDAny, exists := c.Get("user_id")
	if !exists {
		logrus.Warn("WS Handler: User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	userID, ok := userIDAny.(uint)
	if !ok {
		logrus.Error("WS Handler: User ID in context is not uint")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	roomID := c.Param("roomId")
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID})

	ctx := c.Request.Context()
	room, err := h.roomService.FindRoomByID(ctx, roomID)
	if err == nil && !room.IsActive {
		err = service.ErrRoomGone
	}
	var sess *session.RoomSession
	if err == nil {
		sess, err = h.pollService.Session(ctx, roomID)
	}
	if err != nil {
		code, status := classify(err)
		if status >= http.StatusInternalServerError {
			logCtx.WithError(err).Error("WS Handler: Failed to resolve room session")
		} else {
			logCtx.WithError(err).Warn("WS Handler: Room not joinable")
		}
		c.JSON(status, gin.H{"error": err.Error(), "code": code})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}

	client := hub.NewClient(conn, roomID, userID, h.cfg.QueueSize)
	isHost := room.IsHost(userID)
	client.OnMessage(func(cl *hub.Client, data []byte) {
		h.handleMessage(sess, cl, data)
	})
	client.OnClose(func(cl *hub.Client) {
		sess.Detach(cl)
		if isHost {
			h.hostLeft(roomID)
		}
	})

	if err := sess.Attach(client); err != nil {
		logCtx.WithError(err).Warn("WS Handler: Session closed before attach")
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "room closed"))
		conn.Close()
		return
	}
	if isHost {
		h.hostJoined(roomID)
	}

	client.Run()
	logCtx.WithField("host", isHost).Info("WS Handler: Client subscribed to room")
}

func (h *WebSocketHandler) handleMessage(sess *session.RoomSession, cl *hub.Client, data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		h.replyError(cl, "bad_message", "", "message is not valid JSON")
		return
	}
	switch msg.Type {
	case domain.MessageVote:
		var p votePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			h.replyError(cl, "bad_message", "", "vote payload is malformed")
			return
		}
		h.vote(sess, cl, p)
	default:
		h.replyError(cl, "bad_message", "type", "unsupported message type")
	}
}

func (h *WebSocketHandler) vote(sess *session.RoomSession, cl *hub.Client, p votePayload) {
	ctx, cancel := context.WithTimeout(context.Background(), inboundTimeout)
	defer cancel()

	ack := VoteAckPayload{PollID: p.PollID, OptionID: p.OptionID}
	res, err := h.pollService.SubmitVote(ctx, cl.UserID(), sess.RoomID(), p.PollID, p.OptionID, p.TimeTaken)
	switch {
	case err == nil:
		ack.Status = "accepted"
		ack.Tally = &res.Tally
	case errors.Is(err, service.ErrDuplicate):
		ack.Status = "already_voted"
	default:
		var ve *session.ValidationError
		if errors.As(err, &ve) {
			h.replyError(cl, "validation", ve.Field, ve.Error())
			return
		}
		code, _ := classify(err)
		h.replyError(cl, code, "", err.Error())
		return
	}
	h.hub.Deliver(cl, domain.Message{Type: domain.MessageVoteAck, Payload: ack})
}

func (h *WebSocketHandler) replyError(cl *hub.Client, code, field, message string) {
	h.hub.Deliver(cl, domain.Message{
		Type:    domain.MessageError,
		Payload: ErrorPayload{Code: code, Field: field, Message: message},
	})
}

func (h *WebSocketHandler) hostJoined(roomID string) {
	h.hostMu.Lock()
	h.hostConns[roomID]++
	h.hostMu.Unlock()
}

// hostLeft applies the host policy once the host's last connection closes.
func (h *WebSocketHandler) hostLeft(roomID string) {
	h.hostMu.Lock()
	h.hostConns[roomID]--
	last := h.hostConns[roomID] <= 0
	if last {
		delete(h.hostConns, roomID)
	}
	h.hostMu.Unlock()

	if !last || h.cfg.HostPolicy != HostPolicyDeactivate {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), inboundTimeout)
	defer cancel()
	if err := h.roomService.DeactivateOnHostLeave(ctx, roomID); err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("WS Handler: Failed to deactivate room after host left")
	}
}

// classify maps an error to a wire code and the matching HTTP status.
func classify(err error) (string, int) {
	var ve *session.ValidationError
	switch {
	case errors.As(err, &ve), errors.Is(err, service.ErrInvalidInput):
		return "validation", http.StatusBadRequest
	case errors.Is(err, service.ErrStale):
		return "stale", http.StatusConflict
	case errors.Is(err, service.ErrConflict):
		return "conflict", http.StatusConflict
	case errors.Is(err, service.ErrRoomGone):
		return "room_gone", http.StatusGone
	case errors.Is(err, service.ErrRoomNotFound):
		return "not_found", http.StatusNotFound
	default:
		return "internal", http.StatusInternalServerError
	}
}
