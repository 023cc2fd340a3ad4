package tasks

import (
	"encoding/json"

	"live-poll/internal/domain"
)

// Task types.
const (
	TypePollStarted = "poll:started" // store a newly opened poll
	TypePollEnded   = "poll:ended"   // store the final record of a closed poll
	TypeRoomClosed  = "room:closed"  // drop cached state of an evicted room
	TypeRoomReap    = "room:reap"    // periodic eviction of stale sessions
)

// Queue names, in the priority order the worker server weighs them.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// PollStartedPayload carries the poll as it was opened.
type PollStartedPayload struct {
	Poll domain.Poll `json:"poll"`
}

// PollEndedPayload carries the immutable record of a closed poll.
type PollEndedPayload struct {
	Record domain.PollRecord `json:"record"`
}

// RoomClosedPayload names the room whose session was evicted.
type RoomClosedPayload struct {
	RoomID string `json:"room_id"`
}

// NewPollStartedTask encodes a poll:started payload.
func NewPollStartedTask(poll domain.Poll) ([]byte, error) {
	return json.Marshal(PollStartedPayload{Poll: poll})
}

// NewPollEndedTask encodes a poll:ended payload.
func NewPollEndedTask(record domain.PollRecord) ([]byte, error) {
	return json.Marshal(PollEndedPayload{Record: record})
}

// NewRoomClosedTask encodes a room:closed payload.
func NewRoomClosedTask(roomID string) ([]byte, error) {
	return json.Marshal(RoomClosedPayload{RoomID: roomID})
}

// NewRoomReapTask returns the (empty) room:reap payload.
func NewRoomReapTask() ([]byte, error) {
	return []byte("{}"), nil
}
