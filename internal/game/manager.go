package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/okvl/guessquote-bot/internal/msgcat"
	"github.com/okvl/guessquote-bot/internal/obslog"
	"github.com/okvl/guessquote-bot/internal/relay"
	"github.com/okvl/guessquote-bot/internal/store"
)

// ErrRoundActive means a round is already collecting or finalizing in the
// requested channel.
var ErrRoundActive = errors.New("round already active in this channel")

// QuoteSource picks the target quote for a round.
type QuoteSource interface {
	PickForGame(ctx context.Context) (*store.Quote, error)
}

// ScoreStore is the slice of the store the manager needs for finalization.
type ScoreStore interface {
	Score(ctx context.Context, userID int64) (*store.ScoreRecord, error)
	UpsertScore(ctx context.Context, userID int64, correct bool, delta int) (*store.ScoreRecord, error)
}

// Manager runs guess-the-quote rounds, at most one per channel. The active
// map is the only cross-handler mutable state and its mutex is never held
// across a store or transport call.
type Manager struct {
	quotes QuoteSource
	scores ScoreStore
	sender relay.Sender
	cat    *msgcat.Catalog
	scorer Scorer
	window time.Duration

	mu     sync.Mutex
	active map[string]*Round

	now func() time.Time
}

func NewManager(quotes QuoteSource, scores ScoreStore, sender relay.Sender, cat *msgcat.Catalog, scorer Scorer) *Manager {
	window := scorer.Window
	if window <= 0 {
		window = DefaultWindow
	}
	return &Manager{
		quotes: quotes,
		scores: scores,
		sender: sender,
		cat:    cat,
		scorer: scorer,
		window: window,
		active: make(map[string]*Round),
		now:    time.Now,
	}
}

// Start begins a round in channel: selects a quote, posts the prompt, and
// collects guesses until the window elapses. Returns ErrRoundActive without
// side effects when the channel already has a round in flight.
func (m *Manager) Start(ctx context.Context, channel string) error {
	r := newRound(uuid.NewString(), channel)

	m.mu.Lock()
	if _, busy := m.active[channel]; busy {
		m.mu.Unlock()
		return ErrRoundActive
	}
	m.active[channel] = r
	m.mu.Unlock()

	q, err := m.quotes.PickForGame(ctx)
	if err != nil {
		m.clear(channel)
		return err
	}

	prompt := m.cat.MustRender("game.prompt", map[string]any{
		"Content": q.Content,
		"Window":  m.window.String(),
	}, "Guess who said this quote: "+q.Content)
	if err := m.sender.SendText(ctx, channel, prompt); err != nil {
		m.clear(channel)
		return err
	}

	r.begin(*q, m.now(), m.window)
	obslog.L().Info("round_start",
		zap.String("round_id", r.ID),
		zap.String("channel", channel),
		zap.Int64("quote_id", q.ID),
		zap.Int64("author_id", q.AuthorID),
	)

	go m.run(ctx, r)
	return nil
}

// Offer routes a channel message into the channel's active round, if any.
// Returns false when no round consumed the event.
func (m *Manager) Offer(channel string, ev GuessEvent) bool {
	m.mu.Lock()
	r := m.active[channel]
	m.mu.Unlock()
	if r == nil {
		return false
	}
	return r.offer(ev)
}

// Active reports whether channel currently has a round in flight.
func (m *Manager) Active(channel string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[channel]
	return ok
}

func (m *Manager) clear(channel string) {
	m.mu.Lock()
	delete(m.active, channel)
	m.mu.Unlock()
}

// run waits out the collection window. A cancelled context abandons the
// round; nothing about a round is durable.
func (m *Manager) run(ctx context.Context, r *Round) {
	timer := time.NewTimer(m.window)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		m.clear(r.Channel)
		return
	case <-timer.C:
	}
	m.finalize(ctx, r)
}

// finalize scores every recorded attempt in arrival order, persists the
// results, and posts one summary. The round stays registered until the
// summary is sent so a new round cannot start mid-finalization.
func (m *Manager) finalize(ctx context.Context, r *Round) {
	defer m.clear(r.Channel)

	q, attempts := r.close()

	reveal := m.cat.MustRender("game.reveal", map[string]any{
		"Name": q.AuthorName,
		"Date": q.PostedAt.Format("2006-01-02"),
		"Time": q.PostedAt.Format("15:04:05"),
	}, "Time's up! The quote was from "+q.AuthorName)

	if len(attempts) == 0 {
		obslog.L().Info("round_no_guesses", zap.String("round_id", r.ID), zap.String("channel", r.Channel))
		if err := m.sender.SendText(ctx, r.Channel, reveal); err != nil {
			obslog.L().Warn("round_summary_send_error", zap.String("round_id", r.ID), zap.Error(err))
		}
		return
	}

	var correctLines, incorrectLines []string
	for _, at := range attempts {
		prior := 0
		if rec, err := m.scores.Score(ctx, at.UserID); err == nil {
			prior = rec.CurrentStreak
		} else if !errors.Is(err, store.ErrNotFound) {
			obslog.L().Warn("round_prior_streak_error", zap.Int64("user_id", at.UserID), zap.Error(err))
		}

		delta := m.scorer.Points(at.Correct, at.Elapsed, prior)
		rec, err := m.scores.UpsertScore(ctx, at.UserID, at.Correct, delta)
		var line string
		if err != nil {
			obslog.L().Error("round_score_persist_error",
				zap.String("round_id", r.ID),
				zap.Int64("user_id", at.UserID),
				zap.Error(err),
			)
			line = "@" + at.UserName
		} else {
			line = m.resultLine(at, delta, rec)
		}
		if at.Correct {
			correctLines = append(correctLines, line)
		} else {
			incorrectLines = append(incorrectLines, line)
		}
	}

	summary := m.buildSummary(reveal, correctLines, incorrectLines)
	if err := m.sender.SendText(ctx, r.Channel, summary); err != nil {
		obslog.L().Warn("round_summary_send_error", zap.String("round_id", r.ID), zap.Error(err))
	}
	obslog.L().Info("round_finalized",
		zap.String("round_id", r.ID),
		zap.String("channel", r.Channel),
		zap.Int("attempts", len(attempts)),
		zap.Int("correct", len(correctLines)),
	)
}
