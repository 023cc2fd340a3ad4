package domain

import "time"

// Wire message types pushed to room subscribers.
const (
	MessageStartPoll  = "start_poll"
	MessageVote       = "vote"
	MessageEndPoll    = "end_poll"
	MessageSync       = "sync"
	MessageRoomClosed = "room_closed"
	MessageVoteAck    = "vote_ack"
	MessageError      = "error"
)

// LifecycleEvent is produced by a room session and fanned out by the hub.
type LifecycleEvent interface {
	// MessageType is the wire "type" tag.
	MessageType() string
	// Payload is the wire "payload" body.
	Payload() any
}

// PollStarted is emitted when a poll enters the voting window.
type PollStarted struct {
	Poll Poll
}

// StartPollPayload is the wire body of start_poll.
type StartPollPayload struct {
	PollID       int64     `json:"poll_id"`
	Question     string    `json:"question"`
	Options      []string  `json:"options"`
	Duration     int       `json:"duration"`
	EndTimestamp time.Time `json:"end_timestamp"`
}

func (e PollStarted) MessageType() string { return MessageStartPoll }

func (e PollStarted) Payload() any {
	v := e.Poll.View()
	return StartPollPayload{
		PollID:       v.ID,
		Question:     v.Question,
		Options:      v.Options,
		Duration:     v.Duration,
		EndTimestamp: v.EndsAt,
	}
}

// VoteRecorded is emitted for every accepted vote.
type VoteRecorded struct {
	PollID   int64
	OptionID int
	Tally    Tally
}

// VotePayload is the wire body of vote.
type VotePayload struct {
	PollID       int64 `json:"poll_id"`
	OptionID     int   `json:"option_id"`
	UpdatedTally Tally `json:"updated_tally"`
}

func (e VoteRecorded) MessageType() string { return MessageVote }

func (e VoteRecorded) Payload() any {
	return VotePayload{PollID: e.PollID, OptionID: e.OptionID, UpdatedTally: e.Tally}
}

// PollEnded is emitted once when the voting window closes.
type PollEnded struct {
	PollID          int64
	Tally           Tally
	CorrectOptionID int
}

// EndPollPayload is the wire body of end_poll.
type EndPollPayload struct {
	PollID          int64 `json:"poll_id"`
	FinalTally      Tally `json:"final_tally"`
	CorrectOptionID int   `json:"correct_option_id"`
}

func (e PollEnded) MessageType() string { return MessageEndPoll }

func (e PollEnded) Payload() any {
	return EndPollPayload{PollID: e.PollID, FinalTally: e.Tally, CorrectOptionID: e.CorrectOptionID}
}

// RoomClosed is emitted when a room's session is discarded.
type RoomClosed struct {
	RoomID string
}

func (e RoomClosed) MessageType() string { return MessageRoomClosed }

func (e RoomClosed) Payload() any {
	return map[string]string{"room_id": e.RoomID}
}

// Message is the envelope written to a push connection.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// NewMessage wraps a lifecycle event in its wire envelope.
func NewMessage(evt LifecycleEvent) Message {
	return Message{Type: evt.MessageType(), Payload: evt.Payload()}
}
