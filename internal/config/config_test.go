package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("RELAY_BASE_URL", "http://localhost:3000")
	t.Setenv("RELAY_WS_URL", "ws://localhost:3000/ws")
	t.Setenv("BOT_PREFIX", "!")
	t.Setenv("CHANNEL_ID", "123")
	t.Setenv("DATABASE_URL", "postgres://localhost/bot")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RollThreshold != 100 || cfg.RollChancePct != 1 {
		t.Fatalf("roll defaults: threshold=%d chance=%d", cfg.RollThreshold, cfg.RollChancePct)
	}
	if cfg.GuessWindow != 30*time.Second {
		t.Fatalf("guess window default: %v", cfg.GuessWindow)
	}
	if !cfg.PenalizeWrongGuess {
		t.Fatal("wrong-guess penalty should default on")
	}
	if cfg.AnnounceWeekday != time.Thursday {
		t.Fatalf("announce weekday default: %v", cfg.AnnounceWeekday)
	}
	if cfg.AnnounceChannelID != "123" {
		t.Fatalf("announce channel should fall back to CHANNEL_ID, got %q", cfg.AnnounceChannelID)
	}
	if cfg.AllowlistFile != "allowed_authors.yaml" {
		t.Fatalf("allowlist default: %q", cfg.AllowlistFile)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ROLL_THRESHOLD", "50")
	t.Setenv("ROLL_CHANCE_PCT", "10")
	t.Setenv("GUESS_WINDOW", "45s")
	t.Setenv("PENALIZE_WRONG_GUESS", "false")
	t.Setenv("ANNOUNCE_WEEKDAY", "mon")
	t.Setenv("ANNOUNCE_CHANNEL_ID", "999")
	t.Setenv("CALENDAR_BASE_URL", "https://calendar.example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RollThreshold != 50 || cfg.RollChancePct != 10 {
		t.Fatalf("roll overrides: %+v", cfg)
	}
	if cfg.GuessWindow != 45*time.Second {
		t.Fatalf("guess window: %v", cfg.GuessWindow)
	}
	if cfg.PenalizeWrongGuess {
		t.Fatal("penalty should be off")
	}
	if cfg.AnnounceWeekday != time.Monday {
		t.Fatalf("announce weekday: %v", cfg.AnnounceWeekday)
	}
	if cfg.AnnounceChannelID != "999" {
		t.Fatalf("announce channel: %q", cfg.AnnounceChannelID)
	}
	if cfg.CalendarBaseURL != "https://calendar.example.com" {
		t.Fatalf("calendar base should drop trailing slash: %q", cfg.CalendarBaseURL)
	}
}

func TestLoadInvalidValuesKeepDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("ROLL_THRESHOLD", "-3")
	t.Setenv("ROLL_CHANCE_PCT", "150")
	t.Setenv("GUESS_WINDOW", "soon")
	t.Setenv("ANNOUNCE_WEEKDAY", "someday")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RollThreshold != 100 || cfg.RollChancePct != 1 {
		t.Fatalf("invalid roll values should keep defaults: %+v", cfg)
	}
	if cfg.GuessWindow != 30*time.Second || cfg.AnnounceWeekday != time.Thursday {
		t.Fatalf("invalid duration or weekday should keep defaults: %+v", cfg)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	required := []string{"RELAY_BASE_URL", "RELAY_WS_URL", "BOT_PREFIX", "CHANNEL_ID", "DATABASE_URL"}
	for _, name := range required {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(name, "")
			_, err := Load()
			if err == nil {
				t.Fatalf("missing %s should fail", name)
			}
			if !strings.Contains(err.Error(), name) {
				t.Fatalf("error should name the variable: %v", err)
			}
		})
	}
}
