package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/okvl/guessquote-bot/internal/allowlist"
	"github.com/okvl/guessquote-bot/internal/bot"
	"github.com/okvl/guessquote-bot/internal/config"
	"github.com/okvl/guessquote-bot/internal/game"
	"github.com/okvl/guessquote-bot/internal/msgcat"
	"github.com/okvl/guessquote-bot/internal/obslog"
	"github.com/okvl/guessquote-bot/internal/quote"
	"github.com/okvl/guessquote-bot/internal/race"
	"github.com/okvl/guessquote-bot/internal/relay"
	"github.com/okvl/guessquote-bot/internal/roll"
	"github.com/okvl/guessquote-bot/internal/scrape"
	"github.com/okvl/guessquote-bot/internal/store"
	"github.com/okvl/guessquote-bot/internal/version"
)

const announceInterval = time.Hour

func main() {
	app := &cli.App{
		Name:    "guessquote-bot",
		Usage:   "channel archive, guess-the-quote game, and race announcements",
		Version: fmt.Sprintf("%s (build %s)", version.Version, version.BuildID),
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "roll-threshold",
				Usage: "messages between passive roll draws (overrides ROLL_THRESHOLD)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "log outbound messages instead of sending them",
			},
		},
		Action: runBot,
		Commands: []*cli.Command{
			{
				Name:  "scrape",
				Usage: "backfill the archive from channel history",
				Flags: []cli.Flag{
					&cli.TimestampFlag{
						Name:     "start-date",
						Layout:   time.RFC3339,
						Usage:    "oldest message to archive (RFC3339)",
						Required: true,
					},
					&cli.TimestampFlag{
						Name:     "end-date",
						Layout:   time.RFC3339,
						Usage:    "newest message to archive (RFC3339)",
						Required: true,
					},
				},
				Action: runScrape,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runBot(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if n := c.Int("roll-threshold"); n > 0 {
		cfg.RollThreshold = n
	}
	if err := obslog.InitFromEnv(); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer obslog.L().Sync() //nolint:errcheck

	obslog.L().Info("starting",
		zap.String("version", version.Version),
		zap.String("build", version.BuildID),
		zap.String("channel", cfg.ChannelID))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	allowed, err := allowlist.Load(cfg.AllowlistFile)
	if err != nil {
		return err
	}

	cat, err := msgcat.New(cfg.MessageOverrideDir)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}

	client := relay.NewClient(cfg.RelayBaseURL)
	if bridge, err := client.GetConfig(ctx); err != nil {
		obslog.L().Warn("bridge config unavailable", zap.Error(err))
	} else {
		obslog.L().Info("bridge config",
			zap.Int("port", bridge.Port),
			zap.Int("message_rate", bridge.MessageRate),
			zap.String("endpoint", bridge.Endpoint))
	}
	var sender relay.Sender = client
	if c.Bool("dry-run") {
		obslog.L().Info("dry run: outbound messages will only be logged")
		sender = &relay.DryRunSender{Logger: obslog.L()}
	}
	selector := quote.NewSelector(db, allowed)

	scorer := game.Scorer{Window: cfg.GuessWindow, PenalizeWrong: cfg.PenalizeWrongGuess}
	games := game.NewManager(selector, db, sender, cat, scorer)
	rolls := roll.NewTrigger(selector, sender, cat, cfg.RollThreshold, cfg.RollChancePct)

	var guard race.Guard
	if cfg.RedisURL != "" {
		rg, err := race.NewRedisGuard(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("announce guard: %w", err)
		}
		defer rg.Close()
		guard = rg
	} else {
		obslog.L().Info("REDIS_URL not set, race announcements deduplicate in memory only")
		guard = race.NewMemoryGuard()
	}
	calendar := race.NewClient(cfg.CalendarBaseURL)
	announcer := race.NewAnnouncer(calendar, sender, cat, guard, cfg.AnnounceChannelID, cfg.AnnounceWeekday)
	go announcer.Run(ctx, announceInterval)

	dispatcher := bot.New(cfg.BotPrefix, cfg.ChannelID, sender, cat, games, rolls, db, db, calendar)

	ws := relay.NewWebSocket(cfg.RelayWSURL, 20, 3*time.Second)
	ws.OnMessage(func(msg *relay.Message) {
		dispatcher.HandleMessage(ctx, msg)
	})
	ws.OnStateChange(func(state relay.WebSocketState) {
		obslog.L().Info("relay connection state", zap.String("state", string(state)))
	})
	if err := ws.Connect(ctx); err != nil {
		return fmt.Errorf("connect relay: %w", err)
	}

	obslog.L().Info("bot running", zap.String("prefix", cfg.BotPrefix))
	<-ctx.Done()

	obslog.L().Info("shutting down")
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ws.Close(closeCtx)
}

func runScrape(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := obslog.InitFromEnv(); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer obslog.L().Sync() //nolint:errcheck

	start := *c.Timestamp("start-date")
	end := *c.Timestamp("end-date")
	if end.Before(start) {
		return fmt.Errorf("end-date %s is before start-date %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	client := relay.NewClient(cfg.RelayBaseURL)
	scraper := scrape.NewScraper(client, db, cfg.ChannelID)
	n, err := scraper.Run(ctx, start, end)
	if err != nil {
		return err
	}
	fmt.Printf("archived %d messages\n", n)
	return nil
}
