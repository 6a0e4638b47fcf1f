package game

import (
	"fmt"
	"math"
	"strings"

	"github.com/okvl/guessquote-bot/internal/store"
)

func (m *Manager) resultLine(at Attempt, delta int, rec *store.ScoreRecord) string {
	mark := "❌"
	if at.Correct {
		mark = "✅"
	}
	deltaText := fmt.Sprintf("%d", delta)
	if delta >= 0 {
		deltaText = fmt.Sprintf("+%d", delta)
	}
	streak := ""
	if rec.CurrentStreak > 0 {
		streak = m.cat.MustRender("game.streak_suffix", map[string]any{
			"Current": rec.CurrentStreak,
			"Best":    rec.BestStreak,
		}, fmt.Sprintf(" | Streak: %d (Best: %d)", rec.CurrentStreak, rec.BestStreak))
	}
	return m.cat.MustRender("game.result_line", map[string]any{
		"Mark":     mark,
		"Name":     at.UserName,
		"Delta":    deltaText,
		"Correct":  rec.CorrectCount,
		"Total":    rec.TotalAttempts,
		"Accuracy": int(math.Round(rec.Accuracy())),
		"Streak":   streak,
	}, fmt.Sprintf("%s @%s %s points", mark, at.UserName, deltaText))
}

func (m *Manager) buildSummary(reveal string, correct, incorrect []string) string {
	var b strings.Builder
	b.WriteString(reveal)
	if len(correct) > 0 {
		b.WriteString("\n\n")
		b.WriteString(m.cat.MustRender("game.correct_header", nil, "Correct Guesses:"))
		for _, line := range correct {
			b.WriteString("\n")
			b.WriteString(line)
		}
	}
	if len(incorrect) > 0 {
		b.WriteString("\n\n")
		b.WriteString(m.cat.MustRender("game.incorrect_header", nil, "Incorrect Guesses:"))
		for _, line := range incorrect {
			b.WriteString("\n")
			b.WriteString(line)
		}
	}
	return b.String()
}
