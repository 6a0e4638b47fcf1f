package game

import (
	"strings"
	"sync"
	"time"

	"github.com/okvl/guessquote-bot/internal/store"
)

// GuessEvent is one channel message offered to an active round.
type GuessEvent struct {
	UserID   int64
	UserName string
	Content  string
	Mentions []int64
	At       time.Time
}

// Attempt is one recorded guess. Every attempt is scored independently;
// a user can appear multiple times.
type Attempt struct {
	UserID   int64
	UserName string
	Correct  bool
	Elapsed  time.Duration
}

// Round is the ephemeral state of one game, owned by the Manager for the
// round's lifetime and dropped after the summary is posted.
type Round struct {
	ID      string
	Channel string

	mu         sync.Mutex
	quote      store.Quote
	startedAt  time.Time
	deadline   time.Time
	collecting bool
	attempts   []Attempt
	// Users with a correct attempt already in the book; their further
	// guesses are ignored so they cannot farm bonus points.
	resolved map[int64]struct{}
}

func newRound(id, channel string) *Round {
	return &Round{ID: id, Channel: channel, resolved: make(map[int64]struct{})}
}

func (r *Round) begin(q store.Quote, now time.Time, window time.Duration) {
	r.mu.Lock()
	r.quote = q
	r.startedAt = now
	r.deadline = now.Add(window)
	r.collecting = true
	r.mu.Unlock()
}

// offer judges and records one guess. The lock covers only the bookkeeping
// insert; judging needs the quote fields, which are immutable once begin ran.
// Returns true when the event was consumed by this round.
func (r *Round) offer(ev GuessEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.collecting {
		return false
	}
	if !ev.At.Before(r.deadline) {
		return false
	}
	if _, done := r.resolved[ev.UserID]; done {
		// Consumed but not recorded: they already answered correctly.
		return true
	}

	correct := r.judge(ev)
	elapsed := ev.At.Sub(r.startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	r.attempts = append(r.attempts, Attempt{
		UserID:   ev.UserID,
		UserName: ev.UserName,
		Correct:  correct,
		Elapsed:  elapsed,
	})
	if correct {
		r.resolved[ev.UserID] = struct{}{}
	}
	return true
}

// judge is correct when the guess mentions the quote's author or contains
// the author's display name, case-insensitively.
func (r *Round) judge(ev GuessEvent) bool {
	for _, id := range ev.Mentions {
		if id == r.quote.AuthorID {
			return true
		}
	}
	name := strings.ToLower(strings.TrimSpace(r.quote.AuthorName))
	if name == "" {
		return false
	}
	return strings.Contains(strings.ToLower(ev.Content), name)
}

// close ends collection and hands back the book for finalization.
func (r *Round) close() (store.Quote, []Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collecting = false
	attempts := make([]Attempt, len(r.attempts))
	copy(attempts, r.attempts)
	return r.quote, attempts
}
