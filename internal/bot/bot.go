// Package bot routes inbound relay messages to commands, the running game,
// the passive roll trigger, and the live archive.
package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/okvl/guessquote-bot/internal/game"
	"github.com/okvl/guessquote-bot/internal/msgcat"
	"github.com/okvl/guessquote-bot/internal/obslog"
	"github.com/okvl/guessquote-bot/internal/race"
	"github.com/okvl/guessquote-bot/internal/relay"
	"github.com/okvl/guessquote-bot/internal/store"
	"github.com/okvl/guessquote-bot/internal/version"
)

// ackDelay is how long a command may run before a holding message goes out.
const ackDelay = 2 * time.Second

// GameManager is the dispatcher's view of the round coordinator.
type GameManager interface {
	Start(ctx context.Context, channel string) error
	Offer(channel string, ev game.GuessEvent) bool
}

// RollObserver counts ordinary messages for the passive quote repost.
type RollObserver interface {
	Observe(ctx context.Context, channel string)
}

// Leaderboard serves the scoreboard command.
type Leaderboard interface {
	TopScores(ctx context.Context, limit int) ([]store.ScoreRecord, error)
}

// Archive persists live messages as they arrive.
type Archive interface {
	InsertMessage(ctx context.Context, m *store.ArchivedMessage) error
}

type Bot struct {
	prefix  string
	channel string

	sender   relay.Sender
	cat      *msgcat.Catalog
	games    GameManager
	rolls    RollObserver
	scores   Leaderboard
	archive  Archive
	calendar race.CalendarSource

	now func() time.Time
}

func New(prefix, channel string, sender relay.Sender, cat *msgcat.Catalog,
	games GameManager, rolls RollObserver, scores Leaderboard, archive Archive,
	calendar race.CalendarSource) *Bot {
	return &Bot{
		prefix:   prefix,
		channel:  channel,
		sender:   sender,
		cat:      cat,
		games:    games,
		rolls:    rolls,
		scores:   scores,
		archive:  archive,
		calendar: calendar,
		now:      time.Now,
	}
}

// HandleMessage is the websocket callback. Commands run on their own
// goroutine; everything else feeds the game, then the roll counter.
func (b *Bot) HandleMessage(ctx context.Context, msg *relay.Message) {
	if msg == nil || msg.Channel != b.channel {
		return
	}

	if b.archive != nil {
		row := &store.ArchivedMessage{
			MessageID: msg.ID,
			ChannelID: msg.Channel,
			UserID:    msg.UserID,
			UserName:  msg.UserName,
			Content:   msg.Content,
			PostedAt:  msg.SentAt,
		}
		if err := b.archive.InsertMessage(ctx, row); err != nil {
			obslog.L().Warn("live archive failed", zap.Int64("message_id", msg.ID), zap.Error(err))
		}
	}

	content := strings.TrimSpace(msg.Content)
	if strings.HasPrefix(content, b.prefix) {
		go b.handleCommand(ctx, msg, strings.TrimPrefix(content, b.prefix))
		return
	}

	ev := game.GuessEvent{
		UserID:   msg.UserID,
		UserName: msg.UserName,
		Content:  msg.Content,
		Mentions: msg.Mentions,
		At:       b.now(),
	}
	if b.games.Offer(msg.Channel, ev) {
		return
	}
	if b.rolls != nil {
		b.rolls.Observe(ctx, msg.Channel)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *relay.Message, raw string) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return
	}
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	obslog.L().Info("command received",
		zap.String("command", cmd),
		zap.Int64("user_id", msg.UserID),
		zap.String("channel", msg.Channel))

	switch cmd {
	case "help":
		b.reply(ctx, msg.Channel, b.cat.MustRender("help.text", map[string]any{"Prefix": b.prefix}, "help unavailable"))
	case "guess":
		b.cmdGuess(ctx, msg.Channel)
	case "scoreboard":
		b.cmdScoreboard(ctx, msg.Channel, args)
	case "race":
		b.cmdRace(ctx, msg.Channel, args)
	case "version":
		b.reply(ctx, msg.Channel, b.cat.MustRender("version.text", map[string]any{
			"Version": version.Version,
			"BuildID": version.BuildID,
		}, version.Version))
	default:
		b.reply(ctx, msg.Channel, b.cat.MustRender("unknown.command", map[string]any{"Prefix": b.prefix}, "Unknown command."))
	}
}

func (b *Bot) cmdGuess(ctx context.Context, channel string) {
	err := b.games.Start(ctx, channel)
	switch {
	case err == nil:
	case errors.Is(err, game.ErrRoundActive):
		b.reply(ctx, channel, b.cat.MustRender("game.already_active", nil, "A round is already running."))
	case errors.Is(err, store.ErrNoQuote):
		b.reply(ctx, channel, b.cat.MustRender("game.no_quote", nil, "No quotes available."))
	default:
		obslog.L().Error("round start failed", zap.String("channel", channel), zap.Error(err))
		b.reply(ctx, channel, b.cat.MustRender("errors.store", nil, "Something went wrong."))
	}
}

func (b *Bot) cmdScoreboard(ctx context.Context, channel string, args []string) {
	limit := 10
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}

	var records []store.ScoreRecord
	err := b.withAck(ctx, channel, func() error {
		var err error
		records, err = b.scores.TopScores(ctx, limit)
		return err
	})
	if err != nil {
		obslog.L().Error("scoreboard query failed", zap.Error(err))
		b.reply(ctx, channel, b.cat.MustRender("errors.store", nil, "Something went wrong."))
		return
	}
	if len(records) == 0 {
		b.reply(ctx, channel, b.cat.MustRender("scoreboard.empty", map[string]any{"Prefix": b.prefix}, "No scores yet."))
		return
	}

	lines := []string{b.cat.MustRender("scoreboard.header", nil, "Leaderboard")}
	for i, rec := range records {
		lines = append(lines, b.cat.MustRender("scoreboard.row", map[string]any{
			"Rank":     i + 1,
			"Name":     rec.Name,
			"Points":   rec.Points,
			"Correct":  rec.CorrectCount,
			"Total":    rec.TotalAttempts,
			"Accuracy": int(rec.Accuracy() + 0.5),
			"Current":  rec.CurrentStreak,
			"Best":     rec.BestStreak,
		}, rec.Name))
	}
	b.reply(ctx, channel, strings.Join(lines, "\n"))
}

// cmdRace serves the on-demand calendar lookups. The calendar API can be
// slow, so a holding message goes out if the fetch takes a while.
func (b *Bot) cmdRace(ctx context.Context, channel string, args []string) {
	mode := "next"
	if len(args) > 0 {
		mode = strings.ToLower(args[0])
	}

	today := b.now()
	var races []race.Race
	err := b.withAck(ctx, channel, func() error {
		var err error
		races, err = b.calendar.SeasonRaces(ctx, today.Year())
		return err
	})
	if err != nil {
		obslog.L().Warn("race calendar fetch failed", zap.Error(err))
		b.reply(ctx, channel, b.cat.MustRender("race.fetch_error", nil, "Calendar unavailable."))
		return
	}

	switch mode {
	case "season":
		b.reply(ctx, channel, race.SeasonText(b.cat, races, today))
	default:
		b.reply(ctx, channel, race.NextText(b.cat, races, today))
	}
}

// withAck runs fn and posts a holding message when it exceeds ackDelay.
func (b *Bot) withAck(ctx context.Context, channel string, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()

	timer := time.NewTimer(ackDelay)
	defer timer.Stop()
	for {
		select {
		case err := <-done:
			return err
		case <-timer.C:
			b.reply(ctx, channel, b.cat.MustRender("ack.working", nil, "Working on it..."))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *Bot) reply(ctx context.Context, channel, text string) {
	if err := b.sender.SendText(ctx, channel, text); err != nil {
		obslog.L().Warn("reply send failed", zap.String("channel", channel), zap.Error(err))
	}
}
