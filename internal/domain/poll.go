package domain

import "time"

// Poll limits.
const (
	MinOptions         = 2
	MaxOptions         = 4
	MinDurationSeconds = 5
	MaxDurationSeconds = 300
)

// Option is one selectable answer. ID is the 1-based insertion position,
// which is also the display order.
type Option struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// Poll is a single timed multiple-choice question scoped to a room.
type Poll struct {
	ID              int64     `json:"id"`
	RoomID          string    `json:"room_id"`
	Question        string    `json:"question"`
	Options         []Option  `json:"options"`
	Duration        int       `json:"duration"` // seconds
	CorrectOptionID int       `json:"correct_option_id"`
	StartedAt       time.Time `json:"started_at"`
	EndsAt          time.Time `json:"ends_at"`
}

// HasOption reports whether optionID belongs to the poll.
func (p *Poll) HasOption(optionID int) bool {
	return optionID >= 1 && optionID <= len(p.Options)
}

// DurationValue returns the voting window length.
func (p *Poll) DurationValue() time.Duration {
	return time.Duration(p.Duration) * time.Second
}

// Vote is one participant's accepted choice. TimeTaken is measured by the
// server; ClientTimeTaken is the client's own figure, kept for display only.
type Vote struct {
	PollID          int64         `json:"poll_id"`
	ParticipantID   uint          `json:"participant_id"`
	OptionID        int           `json:"option_id"`
	TimeTaken       time.Duration `json:"time_taken"`
	ClientTimeTaken float64       `json:"client_time_taken"`
	CastAt          time.Time     `json:"cast_at"`
}

// OptionCount is the number of votes for one option.
type OptionCount struct {
	OptionID int `json:"option_id"`
	Count    int `json:"count"`
}

// Tally is a per-option count in option order. LeaderID is the option with
// the most votes, the lowest index winning ties, or 0 when nobody voted.
type Tally struct {
	Counts   []OptionCount `json:"counts"`
	Total    int           `json:"total"`
	LeaderID int           `json:"leader_id"`
}

// CountFor returns the count for optionID.
func (t Tally) CountFor(optionID int) int {
	for _, c := range t.Counts {
		if c.OptionID == optionID {
			return c.Count
		}
	}
	return 0
}

// PollRecord is the immutable history of a finished poll.
type PollRecord struct {
	Poll    Poll      `json:"poll"`
	Tally   Tally     `json:"tally"`
	Votes   []Vote    `json:"votes"`
	EndedAt time.Time `json:"ended_at"`
}

// PollView is the voter-facing shape of a poll: it omits which option is correct.
type PollView struct {
	ID        int64     `json:"id"`
	Question  string    `json:"question"`
	Options   []string  `json:"options"`
	Duration  int       `json:"duration"`
	StartedAt time.Time `json:"started_at"`
	EndsAt    time.Time `json:"ends_at"`
}

// View returns the voter-facing shape of p.
func (p *Poll) View() PollView {
	texts := make([]string, len(p.Options))
	for i, o := range p.Options {
		texts[i] = o.Text
	}
	return PollView{
		ID:        p.ID,
		Question:  p.Question,
		Options:   texts,
		Duration:  p.Duration,
		StartedAt: p.StartedAt,
		EndsAt:    p.EndsAt,
	}
}
