package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"live-poll/internal/domain"
	"live-poll/internal/hub"
)

// Status of a room session.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusVoting Status = "voting"
	StatusClosed Status = "closed"
)

const persistTimeout = 5 * time.Second

// Broadcaster fans lifecycle events out to a room's subscribers.
// Implemented by *hub.Hub.
type Broadcaster interface {
	Publish(roomID string, evt domain.LifecycleEvent) int
	Subscribe(roomID string, sub hub.Subscriber)
	Unsubscribe(roomID string, sub hub.Subscriber)
	Deliver(sub hub.Subscriber, msg domain.Message) bool
	CloseRoom(roomID string)
}

// Recorder durably records poll history. Calls are best-effort: errors are
// logged and never undo a transition.
type Recorder interface {
	PollStarted(ctx context.Context, poll domain.Poll) error
	PollEnded(ctx context.Context, record domain.PollRecord) error
}

// PollSpec is a host's request to open a poll.
type PollSpec struct {
	Question        string   `validate:"required,max=500"`
	Options         []string `validate:"dive,required,max=200"`
	DurationSeconds int
	CorrectOptionID int      `validate:"required"`
}

// State is the read-only snapshot served to reconnecting clients.
type State struct {
	RoomID           string           `json:"room_id"`
	Status           Status           `json:"status"`
	Poll             *domain.PollView `json:"poll,omitempty"`
	RemainingSeconds float64          `json:"remaining_seconds,omitempty"`
	Tally            *domain.Tally    `json:"tally,omitempty"`
	LastPollID       int64            `json:"last_poll_id"`
}

type snapshot struct {
	status     Status
	poll       *domain.PollView
	deadline   Deadline
	tally      *domain.Tally
	lastPollID int64
}

var validate = validator.New()

// Option configures a RoomSession at creation.
type Option func(*RoomSession)

// WithLastPollID continues poll numbering after id.
func WithLastPollID(id int64) Option {
	return func(s *RoomSession) { s.lastPollID = id }
}

// WithLogger sets the session's logger.
func WithLogger(l *logrus.Logger) Option {
	return func(s *RoomSession) { s.log = l.WithField("room_id", s.roomID) }
}

// RoomSession is the per-room poll state machine: Idle -> Voting -> Closed -> Idle.
// StartPoll, SubmitVote, Tick and Close are serialized by one mutex; events
// are published while it is held so every subscriber sees them in the order
// they were applied.
type RoomSession struct {
	roomID   string
	clock    Clock
	bus      Broadcaster
	recorder Recorder
	log      *logrus.Entry

	mu           sync.Mutex
	status       Status
	poll         *domain.Poll
	deadline     Deadline
	ledger       *Ledger
	lastPollID   int64
	lastActivity time.Time
	gone         bool

	snap   atomic.Pointer[snapshot]
	recent atomic.Pointer[[]*domain.PollRecord]
}

// recentResultLimit bounds how many closed polls a session keeps in memory
// for result lookups that race the history worker.
const recentResultLimit = 8

// New returns an idle session for roomID. recorder may be nil.
func New(roomID string, clock Clock, bus Broadcaster, recorder Recorder, opts ...Option) *RoomSession {
	if clock == nil {
		clock = SystemClock()
	}
	s := &RoomSession{
		roomID:   roomID,
		clock:    clock,
		bus:      bus,
		recorder: recorder,
		status:   StatusIdle,
		log:      logrus.WithField("room_id", roomID),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastActivity = clock.Now()
	s.storeSnapshotLocked()
	return s
}

// RoomID returns the room this session serves.
func (s *RoomSession) RoomID() string { return s.roomID }

// StartPoll opens a poll. It fails with a ValidationError for malformed
// input, ErrConflict while another poll is voting and ErrRoomGone after
// eviction.
func (s *RoomSession) StartPoll(spec PollSpec) (domain.Poll, error) {
	if err := checkSpec(&spec); err != nil {
		return domain.Poll{}, err
	}

	s.mu.Lock()
	if s.gone {
		s.mu.Unlock()
		return domain.Poll{}, ErrRoomGone
	}
	now := s.clock.Now()
	// A poll past its deadline is closed here, before the conflict check.
	ended := s.expireLocked(now)
	if s.status == StatusVoting {
		s.mu.Unlock()
		s.persistEnded(ended)
		return domain.Poll{}, ErrConflict
	}

	s.lastPollID++
	poll := domain.Poll{
		ID:              s.lastPollID,
		RoomID:          s.roomID,
		Question:        spec.Question,
		Options:         make([]domain.Option, len(spec.Options)),
		Duration:        spec.DurationSeconds,
		CorrectOptionID: spec.CorrectOptionID,
	}
	// The deadline comes from the session clock only; clients never set it.
	s.deadline = NewDeadline(now, poll.DurationValue())
	poll.StartedAt, poll.EndsAt = s.deadline.Start, s.deadline.End
	for i, text := range spec.Options {
		poll.Options[i] = domain.Option{ID: i + 1, Text: text, IsCorrect: i+1 == spec.CorrectOptionID}
	}
	s.poll = &poll
	s.ledger = NewLedger()
	s.status = StatusVoting
	s.lastActivity = now
	// Session lock, then hub lock. The hub never calls back into a session.
	s.bus.Publish(s.roomID, domain.PollStarted{Poll: poll})
	s.storeSnapshotLocked()
	s.mu.Unlock()

	// Recorder calls may hit the network; keep them outside the lock.
	s.log.WithFields(logrus.Fields{"poll_id": poll.ID, "duration": poll.Duration}).Info("Poll started")
	s.persistEnded(ended)
	s.persistStarted(poll)
	return poll, nil
}

// SubmitVote records participantID's choice for pollID. The stored
// TimeTaken is measured from the session clock; clientTimeTaken is kept as
// a display hint only.
func (s *RoomSession) SubmitVote(pollID int64, participantID uint, optionID int, clientTimeTaken float64) (domain.Vote, domain.Tally, error) {
	s.mu.Lock()
	if s.gone {
		s.mu.Unlock()
		return domain.Vote{}, domain.Tally{}, ErrRoomGone
	}
	now := s.clock.Now()
	ended := s.expireLocked(now)
	// Runs after every return path below has released the lock.
	defer s.persistEnded(ended)

	if s.status != StatusVoting || s.poll.ID != pollID {
		s.mu.Unlock()
		return domain.Vote{}, domain.Tally{}, ErrStale
	}
	if !s.poll.HasOption(optionID) {
		s.mu.Unlock()
		return domain.Vote{}, domain.Tally{}, invalid("option_id", "option %d is not part of poll %d", optionID, pollID)
	}

	vote := domain.Vote{
		PollID:          pollID,
		ParticipantID:   participantID,
		OptionID:        optionID,
		TimeTaken:       s.deadline.Elapsed(now),
		ClientTimeTaken: clientTimeTaken,
		CastAt:          now,
	}
	// First vote wins; a retry from the same participant is rejected.
	if !s.ledger.TryRecord(vote) {
		s.mu.Unlock()
		return domain.Vote{}, domain.Tally{}, ErrDuplicate
	}
	tally := s.ledger.Tally(s.poll.Options)
	s.lastActivity = now
	// Published before unlock so tallies reach subscribers in vote order.
	s.bus.Publish(s.roomID, domain.VoteRecorded{PollID: pollID, OptionID: optionID, Tally: tally})
	s.storeSnapshotLocked()
	s.mu.Unlock()

	return vote, tally, nil
}

// Tick closes the voting poll if now is at or past its deadline. It returns
// true only for the call that performed the transition.
func (s *RoomSession) Tick(now time.Time) bool {
	s.mu.Lock()
	if s.gone {
		s.mu.Unlock()
		return false
	}
	ended := s.expireLocked(now)
	s.mu.Unlock()

	// nil when the poll was already closed by a vote, StartPoll or another tick.
	s.persistEnded(ended)
	return ended != nil
}

// TickNow is Tick at the session clock's current time.
func (s *RoomSession) TickNow() bool {
	return s.Tick(s.clock.Now())
}

// Close ends any voting poll immediately, tells subscribers the room is
// gone and rejects every later operation with ErrRoomGone.
func (s *RoomSession) Close() {
	s.persistEnded(s.shutdown())
}

// shutdown does the in-memory part of Close and returns the record of a
// poll it cut short, if any. Registry.Evict calls it while still holding
// the registry lock so no replacement session can subscribe to the room
// before CloseRoom has run.
func (s *RoomSession) shutdown() *domain.PollRecord {
	s.mu.Lock()
	if s.gone {
		s.mu.Unlock()
		return nil
	}
	var ended *domain.PollRecord
	if s.status == StatusVoting {
		ended = s.endLocked(s.clock.Now())
	}
	s.gone = true
	// room_closed is queued under the room lock, after any end_poll above.
	s.bus.Publish(s.roomID, domain.RoomClosed{RoomID: s.roomID})
	s.storeSnapshotLocked()
	s.mu.Unlock()

	// Attach checks gone under the same lock, so nothing new can subscribe
	// to this session once we get here.
	s.bus.CloseRoom(s.roomID)
	s.log.Info("Room session closed")
	return ended
}

// Attach subscribes sub to the room and queues a sync message with the
// current state ahead of any later event.
func (s *RoomSession) Attach(sub hub.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone {
		return ErrRoomGone
	}
	s.bus.Subscribe(s.roomID, sub)
	s.bus.Deliver(sub, domain.Message{Type: domain.MessageSync, Payload: s.stateAt(s.snap.Load(), s.clock.Now())})
	return nil
}

// Detach unsubscribes sub.
func (s *RoomSession) Detach(sub hub.Subscriber) {
	s.bus.Unsubscribe(s.roomID, sub)
}

// CurrentState returns a lock-free snapshot of the session.
func (s *RoomSession) CurrentState() State {
	return s.stateAt(s.snap.Load(), s.clock.Now())
}

// Voting reports whether a poll is accepting votes, without locking.
func (s *RoomSession) Voting() bool {
	return s.snap.Load().status == StatusVoting
}

// Gone reports whether the session was closed.
func (s *RoomSession) Gone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gone
}

// IdleFor reports how long the session has had no poll and no mutation.
// It returns 0 while a poll is voting.
func (s *RoomSession) IdleFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusVoting {
		return 0
	}
	return now.Sub(s.lastActivity)
}

// RecentResult returns the record of pollID if it is among the last few
// polls this session closed.
func (s *RoomSession) RecentResult(pollID int64) (domain.PollRecord, bool) {
	recent := s.recent.Load()
	if recent == nil {
		return domain.PollRecord{}, false
	}
	for _, rec := range *recent {
		if rec.Poll.ID == pollID {
			return *rec, true
		}
	}
	return domain.PollRecord{}, false
}

// rememberLocked prepends rec to the recent results, dropping the oldest
// past recentResultLimit. The slice is replaced, never mutated, so readers
// need no lock.
func (s *RoomSession) rememberLocked(rec *domain.PollRecord) {
	var prev []*domain.PollRecord
	if p := s.recent.Load(); p != nil {
		prev = *p
	}
	next := make([]*domain.PollRecord, 0, recentResultLimit)
	next = append(next, rec)
	for _, r := range prev {
		if len(next) == recentResultLimit {
			break
		}
		next = append(next, r)
	}
	s.recent.Store(&next)
}

// expireLocked closes the voting poll when its deadline has passed.
func (s *RoomSession) expireLocked(now time.Time) *domain.PollRecord {
	if s.status != StatusVoting || !s.deadline.Expired(now) {
		return nil
	}
	return s.endLocked(s.deadline.End)
}

func (s *RoomSession) endLocked(endedAt time.Time) *domain.PollRecord {
	s.status = StatusClosed
	tally := s.ledger.Tally(s.poll.Options)
	record := &domain.PollRecord{
		Poll:    *s.poll,
		Tally:   tally,
		Votes:   s.ledger.Votes(),
		EndedAt: endedAt,
	}
	s.bus.Publish(s.roomID, domain.PollEnded{PollID: s.poll.ID, Tally: tally, CorrectOptionID: s.poll.CorrectOptionID})
	s.rememberLocked(record)

	s.log.WithFields(logrus.Fields{"poll_id": s.poll.ID, "votes": tally.Total}).Info("Poll ended")

	s.poll = nil
	s.ledger = nil
	s.status = StatusIdle
	s.lastActivity = endedAt
	s.storeSnapshotLocked()
	return record
}

func (s *RoomSession) storeSnapshotLocked() {
	snap := &snapshot{status: s.status, lastPollID: s.lastPollID, deadline: s.deadline}
	if s.status == StatusVoting {
		view := s.poll.View()
		tally := s.ledger.Tally(s.poll.Options)
		snap.poll = &view
		snap.tally = &tally
	}
	s.snap.Store(snap)
}

func (s *RoomSession) stateAt(snap *snapshot, now time.Time) State {
	st := State{RoomID: s.roomID, Status: snap.status, LastPollID: snap.lastPollID}
	if snap.status == StatusVoting {
		st.Poll = snap.poll
		st.Tally = snap.tally
		st.RemainingSeconds = snap.deadline.Remaining(now).Seconds()
	}
	return st
}

func (s *RoomSession) persistStarted(poll domain.Poll) {
	if s.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.recorder.PollStarted(ctx, poll); err != nil {
		s.log.WithError(err).WithField("poll_id", poll.ID).Error("Failed to record poll start")
	}
}

func (s *RoomSession) persistEnded(record *domain.PollRecord) {
	if record == nil || s.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.recorder.PollEnded(ctx, *record); err != nil {
		s.log.WithError(err).WithField("poll_id", record.Poll.ID).Error("Failed to record poll result")
	}
}

// checkSpec trims and validates a poll request.
func checkSpec(spec *PollSpec) error {
	spec.Question = strings.TrimSpace(spec.Question)
	options := make([]string, len(spec.Options))
	for i, o := range spec.Options {
		options[i] = strings.TrimSpace(o)
	}
	spec.Options = options

	// Tag checks run first so a blank question is reported before ranges.
	if err := validate.Struct(spec); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return invalid(fieldName(fe.StructField()), "failed %q (%s) check", fe.Tag(), fe.Param())
		}
		return invalid("poll", "%v", err)
	}
	if n := len(spec.Options); n < domain.MinOptions || n > domain.MaxOptions {
		return invalid("options", "need %d-%d options, got %d", domain.MinOptions, domain.MaxOptions, n)
	}
	if d := spec.DurationSeconds; d < domain.MinDurationSeconds || d > domain.MaxDurationSeconds {
		return invalid("duration", "need %d-%d seconds, got %d", domain.MinDurationSeconds, domain.MaxDurationSeconds, d)
	}
	if spec.CorrectOptionID < 1 || spec.CorrectOptionID > len(spec.Options) {
		return invalid("correct_option_id", "%d does not reference one of the %d options", spec.CorrectOptionID, len(spec.Options))
	}
	return nil
}

func fieldName(structField string) string {
	switch {
	case strings.HasPrefix(structField, "Options"):
		return "options"
	case structField == "DurationSeconds":
		return "duration"
	case structField == "CorrectOptionID":
		return "correct_option_id"
	default:
		return strings.ToLower(structField)
	}
}
