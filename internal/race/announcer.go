package race

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/okvl/guessquote-bot/internal/msgcat"
	"github.com/okvl/guessquote-bot/internal/obslog"
	"github.com/okvl/guessquote-bot/internal/relay"
)

// CalendarSource abstracts the season calendar API for tests.
type CalendarSource interface {
	SeasonRaces(ctx context.Context, year int) ([]Race, error)
}

// Announcer posts a race-weekend alert once per race, on the configured
// weekday, when the race is at most windowDays away.
type Announcer struct {
	source     CalendarSource
	sender     relay.Sender
	cat        *msgcat.Catalog
	guard      Guard
	channel    string
	weekday    time.Weekday
	windowDays int
	now        func() time.Time
}

func NewAnnouncer(source CalendarSource, sender relay.Sender, cat *msgcat.Catalog, guard Guard, channel string, weekday time.Weekday) *Announcer {
	return &Announcer{
		source:     source,
		sender:     sender,
		cat:        cat,
		guard:      guard,
		channel:    channel,
		weekday:    weekday,
		windowDays: 4,
		now:        time.Now,
	}
}

// CheckUpcoming runs one announcement cycle. Calendar failures are logged and
// swallowed so the periodic ticker keeps running.
func (a *Announcer) CheckUpcoming(ctx context.Context) (bool, error) {
	today := a.now()
	if today.Weekday() != a.weekday {
		return false, nil
	}

	races, err := a.source.SeasonRaces(ctx, today.Year())
	if err != nil {
		obslog.L().Warn("race calendar fetch failed", zap.Error(err))
		return false, nil
	}

	next, ok := NextRace(races, today)
	if !ok {
		obslog.L().Debug("no upcoming race this season")
		return false, nil
	}

	days := DaysUntil(*next, today)
	if days > a.windowDays {
		return false, nil
	}

	key := next.Key(today.Year())
	first, err := a.guard.FirstAnnounce(ctx, key)
	if err != nil {
		obslog.L().Warn("announce guard check failed", zap.String("race", key), zap.Error(err))
		return false, nil
	}
	if !first {
		return false, nil
	}

	text := a.cat.MustRender("race.announce", announceData(*next, days), next.Name)
	if err := a.sender.SendText(ctx, a.channel, text); err != nil {
		return false, err
	}
	obslog.L().Info("race announced",
		zap.String("race", next.Name),
		zap.String("key", key),
		zap.Int("days_until", days))
	return true, nil
}

// Run checks immediately and then once per interval until ctx is done.
func (a *Announcer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := a.CheckUpcoming(ctx); err != nil {
			obslog.L().Warn("race announce failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// NextText renders the on-demand next-race reply.
func NextText(cat *msgcat.Catalog, races []Race, today time.Time) string {
	next, ok := NextRace(races, today)
	if !ok {
		return cat.MustRender("race.none", nil, "No upcoming races.")
	}
	return cat.MustRender("race.next", announceData(*next, DaysUntil(*next, today)), next.Name)
}

// SeasonText renders the full season calendar with per-race status.
func SeasonText(cat *msgcat.Catalog, races []Race, today time.Time) string {
	if len(races) == 0 {
		return cat.MustRender("race.none", nil, "No upcoming races.")
	}
	ordered := make([]Race, len(races))
	copy(ordered, races)
	SortByDate(ordered)

	lines := make([]string, 0, len(ordered)+1)
	lines = append(lines, cat.MustRender("race.season_header", map[string]any{"Year": today.Year()}, "Season calendar"))
	for _, r := range ordered {
		status := "⏳ Upcoming"
		switch days := DaysUntil(r, today); {
		case days < 0:
			status = "✅ Completed"
		case days == 0:
			status = "🏁 Today!"
		}
		data := announceData(r, DaysUntil(r, today))
		data["Status"] = status
		lines = append(lines, cat.MustRender("race.season_row", data, r.Name))
	}
	return strings.Join(lines, "\n")
}

func announceData(r Race, days int) map[string]any {
	return map[string]any{
		"Name":      r.Name,
		"Round":     r.Round,
		"Circuit":   r.Circuit.Name,
		"Locality":  r.Circuit.Location.Locality,
		"Country":   r.Circuit.Location.Country,
		"Date":      r.Date,
		"Time":      r.Time,
		"DaysUntil": days,
	}
}
