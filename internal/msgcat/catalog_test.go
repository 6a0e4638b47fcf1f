package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderEmbeddedDefaults(t *testing.T) {
	cat, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	got, err := cat.Render("game.prompt", map[string]any{
		"Content": "hello world",
		"Window":  "30s",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(got, "hello world") || !strings.Contains(got, "30s") {
		t.Fatalf("prompt missing data: %q", got)
	}
}

func TestRenderMissingKeyAndData(t *testing.T) {
	cat, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if _, err := cat.Render("no.such.key", nil); err == nil {
		t.Fatal("unknown key should error")
	}
	// missingkey=error: templates catch typos in the data map.
	if _, err := cat.Render("game.prompt", map[string]any{"Content": "x"}); err == nil {
		t.Fatal("missing template field should error")
	}
}

func TestMustRenderFallsBack(t *testing.T) {
	cat, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := cat.MustRender("no.such.key", nil, "fallback"); got != "fallback" {
		t.Fatalf("got %q, want fallback", got)
	}
}

func TestOverrideDirectoryWins(t *testing.T) {
	dir := t.TempDir()
	override := "game:\n  already_active: \"custom busy text\"\n"
	if err := os.WriteFile(filepath.Join(dir, "overrides.yaml"), []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}

	cat, err := New(dir)
	if err != nil {
		t.Fatalf("new with overrides: %v", err)
	}

	got, err := cat.Render("game.already_active", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "custom busy text" {
		t.Fatalf("override not applied: %q", got)
	}

	// Untouched keys keep their defaults.
	if _, err := cat.Render("scoreboard.header", nil); err != nil {
		t.Fatalf("default key lost after override: %v", err)
	}
}
