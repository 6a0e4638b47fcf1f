// Package scrape backfills the archive from channel history.
package scrape

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/okvl/guessquote-bot/internal/obslog"
	"github.com/okvl/guessquote-bot/internal/relay"
	"github.com/okvl/guessquote-bot/internal/store"
)

const pageSize = 100

// HistorySource pages backwards through channel history, newest first.
type HistorySource interface {
	History(ctx context.Context, channel, before string, limit int) (*relay.HistoryPage, error)
}

// Archive persists scraped rows.
type Archive interface {
	InsertMessage(ctx context.Context, m *store.ArchivedMessage) error
}

type Scraper struct {
	source  HistorySource
	archive Archive
	channel string
}

func NewScraper(source HistorySource, archive Archive, channel string) *Scraper {
	return &Scraper{source: source, archive: archive, channel: channel}
}

// Run walks the channel history from newest to oldest, archiving messages
// posted within [start, end]. It stops once a page falls entirely before
// start or the cursor is exhausted. Returns the number of archived messages.
func (s *Scraper) Run(ctx context.Context, start, end time.Time) (int, error) {
	obslog.L().Info("scrape started",
		zap.String("channel", s.channel),
		zap.Time("start", start),
		zap.Time("end", end))

	var (
		archived int
		pages    int
		before   string
	)
	for {
		if err := ctx.Err(); err != nil {
			return archived, err
		}

		page, err := s.source.History(ctx, s.channel, before, pageSize)
		if err != nil {
			return archived, fmt.Errorf("fetch history page %d: %w", pages+1, err)
		}
		pages++
		if len(page.Messages) == 0 {
			break
		}

		pastStart := false
		for _, m := range page.Messages {
			if m.SentAt.Before(start) {
				pastStart = true
				continue
			}
			if m.SentAt.After(end) {
				continue
			}
			row := &store.ArchivedMessage{
				MessageID: m.ID,
				ChannelID: m.Channel,
				UserID:    m.UserID,
				UserName:  m.UserName,
				Content:   m.Content,
				PostedAt:  m.SentAt,
			}
			if err := s.archive.InsertMessage(ctx, row); err != nil {
				return archived, err
			}
			archived++
		}

		if pages%10 == 0 {
			obslog.L().Info("scrape progress", zap.Int("pages", pages), zap.Int("archived", archived))
		}
		if pastStart || page.Before == "" {
			break
		}
		before = page.Before
	}

	obslog.L().Info("scrape finished", zap.Int("pages", pages), zap.Int("archived", archived))
	return archived, nil
}
