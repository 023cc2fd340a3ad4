package session

import (
	"sort"
	"sync"

	"github.com/samber/lo"

	"live-poll/internal/domain"
)

// Ledger is the append-only record of accepted votes for one poll.
// A fresh Ledger is created on every StartPoll.
type Ledger struct {
	mu    sync.Mutex
	votes map[uint]domain.Vote
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{votes: make(map[uint]domain.Vote)}
}

// TryRecord stores v unless its participant already voted. The check and
// the insert happen under one lock.
func (l *Ledger) TryRecord(v domain.Vote) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.votes[v.ParticipantID]; exists {
		return false
	}
	l.votes[v.ParticipantID] = v
	return true
}

// Len is the number of recorded votes.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.votes)
}

// Votes returns the recorded votes ordered by cast time.
func (l *Ledger) Votes() []domain.Vote {
	l.mu.Lock()
	out := lo.Values(l.votes)
	l.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CastAt.Equal(out[j].CastAt) {
			return out[i].ParticipantID < out[j].ParticipantID
		}
		return out[i].CastAt.Before(out[j].CastAt)
	})
	return out
}

// Tally counts votes per option in option order.
func (l *Ledger) Tally(options []domain.Option) domain.Tally {
	counts := make(map[int]int, len(options))
	l.mu.Lock()
	for _, v := range l.votes {
		counts[v.OptionID]++
	}
	l.mu.Unlock()
	return buildTally(options, counts)
}

func buildTally(options []domain.Option, counts map[int]int) domain.Tally {
	t := domain.Tally{
		Counts: lo.Map(options, func(o domain.Option, _ int) domain.OptionCount {
			return domain.OptionCount{OptionID: o.ID, Count: counts[o.ID]}
		}),
	}
	best := 0
	for _, c := range t.Counts {
		t.Total += c.Count
		// strict > keeps the lowest index on ties
		if c.Count > best {
			best = c.Count
			t.LeaderID = c.OptionID
		}
	}
	return t
}
