package roll

import (
	"context"
	"math/rand/v2"
	"sync"

	"go.uber.org/zap"

	"github.com/okvl/guessquote-bot/internal/msgcat"
	"github.com/okvl/guessquote-bot/internal/obslog"
	"github.com/okvl/guessquote-bot/internal/relay"
	"github.com/okvl/guessquote-bot/internal/store"
)

// Source picks the quote for an unprompted post.
type Source interface {
	PickForRoll(ctx context.Context) (*store.Quote, error)
}

// Trigger counts ordinary channel messages and occasionally reposts a random
// archived quote. Every threshold messages the counter resets and a draw
// wins with chancePct percent probability.
type Trigger struct {
	src    Source
	sender relay.Sender
	cat    *msgcat.Catalog

	threshold int
	chancePct int

	mu      sync.Mutex
	counter int

	// draw returns a value in [0,100); swapped out in tests.
	draw func() int
}

func NewTrigger(src Source, sender relay.Sender, cat *msgcat.Catalog, threshold, chancePct int) *Trigger {
	if threshold <= 0 {
		threshold = 100
	}
	if chancePct < 0 {
		chancePct = 0
	}
	if chancePct > 100 {
		chancePct = 100
	}
	return &Trigger{
		src:       src,
		sender:    sender,
		cat:       cat,
		threshold: threshold,
		chancePct: chancePct,
		draw:      func() int { return rand.IntN(100) },
	}
}

// Observe registers one ordinary message. The lock covers only the counter
// update and the draw; a winning draw posts on its own goroutine.
func (t *Trigger) Observe(ctx context.Context, channel string) {
	t.mu.Lock()
	t.counter++
	fire := false
	if t.counter >= t.threshold {
		t.counter = 0
		if t.draw() < t.chancePct {
			fire = true
		}
	}
	t.mu.Unlock()

	if !fire {
		return
	}
	go t.post(ctx, channel)
}

func (t *Trigger) post(ctx context.Context, channel string) {
	q, err := t.src.PickForRoll(ctx)
	if err != nil {
		obslog.L().Warn("roll_quote_error", zap.String("channel", channel), zap.Error(err))
		return
	}
	text := t.cat.MustRender("roll.quote", map[string]any{
		"Name":    q.AuthorName,
		"Date":    q.PostedAt.Format("2006-01-02"),
		"Time":    q.PostedAt.Format("15:04:05"),
		"Content": q.Content,
	}, q.Content)
	if err := t.sender.SendText(ctx, channel, text); err != nil {
		obslog.L().Warn("roll_send_error", zap.String("channel", channel), zap.Error(err))
		return
	}
	obslog.L().Info("roll_posted", zap.String("channel", channel), zap.Int64("quote_id", q.ID))
}
