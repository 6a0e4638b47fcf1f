package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	RelayBaseURL string
	RelayWSURL   string

	BotPrefix string

	// Channel the bot archives, rolls in, and plays games in.
	ChannelID string

	DatabaseURL string
	RedisURL    string

	AllowlistFile string

	// Passive roll: a draw happens every RollThreshold messages and wins
	// with RollChancePct percent probability.
	RollThreshold int
	RollChancePct int

	GuessWindow time.Duration

	// Wrong guesses cost points when true.
	PenalizeWrongGuess bool

	AnnounceChannelID string
	AnnounceWeekday   time.Weekday
	CalendarBaseURL   string

	MessageOverrideDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		RollThreshold:      100,
		RollChancePct:      1,
		GuessWindow:        30 * time.Second,
		PenalizeWrongGuess: true,
		AnnounceWeekday:    time.Thursday,
		CalendarBaseURL:    "https://api.jolpi.ca",
	}

	cfg.RelayBaseURL = strings.TrimSpace(os.Getenv("RELAY_BASE_URL"))
	cfg.RelayWSURL = strings.TrimSpace(os.Getenv("RELAY_WS_URL"))
	cfg.BotPrefix = strings.TrimSpace(os.Getenv("BOT_PREFIX"))
	cfg.ChannelID = strings.TrimSpace(os.Getenv("CHANNEL_ID"))

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))

	cfg.AllowlistFile = strings.TrimSpace(os.Getenv("ALLOWLIST_FILE"))
	if cfg.AllowlistFile == "" {
		cfg.AllowlistFile = "allowed_authors.yaml"
	}

	if v := strings.TrimSpace(os.Getenv("ROLL_THRESHOLD")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RollThreshold = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ROLL_CHANCE_PCT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 100 {
			cfg.RollChancePct = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("GUESS_WINDOW")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.GuessWindow = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("PENALIZE_WRONG_GUESS")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PenalizeWrongGuess = b
		}
	}

	cfg.AnnounceChannelID = strings.TrimSpace(os.Getenv("ANNOUNCE_CHANNEL_ID"))
	if cfg.AnnounceChannelID == "" {
		cfg.AnnounceChannelID = cfg.ChannelID
	}
	if v := strings.TrimSpace(os.Getenv("ANNOUNCE_WEEKDAY")); v != "" {
		if wd, ok := parseWeekday(v); ok {
			cfg.AnnounceWeekday = wd
		}
	}
	if v := strings.TrimSpace(os.Getenv("CALENDAR_BASE_URL")); v != "" {
		cfg.CalendarBaseURL = strings.TrimRight(v, "/")
	}

	cfg.MessageOverrideDir = strings.TrimSpace(os.Getenv("MESSAGE_OVERRIDE_DIR"))

	if cfg.RelayBaseURL == "" {
		return nil, errors.New("RELAY_BASE_URL is required")
	}
	if cfg.RelayWSURL == "" {
		return nil, errors.New("RELAY_WS_URL is required")
	}
	if cfg.BotPrefix == "" {
		return nil, errors.New("BOT_PREFIX is required")
	}
	if cfg.ChannelID == "" {
		return nil, errors.New("CHANNEL_ID is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	return cfg, nil
}

func parseWeekday(s string) (time.Weekday, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sunday", "sun":
		return time.Sunday, true
	case "monday", "mon":
		return time.Monday, true
	case "tuesday", "tue":
		return time.Tuesday, true
	case "wednesday", "wed":
		return time.Wednesday, true
	case "thursday", "thu":
		return time.Thursday, true
	case "friday", "fri":
		return time.Friday, true
	case "saturday", "sat":
		return time.Saturday, true
	}
	return time.Sunday, false
}
