package game

import (
	"math"
	"time"
)

const (
	// DefaultWindow is the guess collection window.
	DefaultWindow = 30 * time.Second

	minCorrectPoints = 10
	maxCorrectPoints = 100
	timePointsRange  = 90

	// Streak bonus: 5 points per consecutive correct answer, capped at 5.
	streakBonusPerLevel = 5
	maxStreakLevels     = 5

	wrongGuessPenalty = 5
)

// Scorer turns one attempt's outcome into a points delta. It is pure: no
// store, no clock, no transport.
//
// Wrong guesses cost a flat 5 points when PenalizeWrong is set. That is the
// default policy; setting PenalizeWrong false scores wrong guesses as zero
// while leaving the correct-guess branch untouched.
type Scorer struct {
	Window        time.Duration
	PenalizeWrong bool
}

// Points computes the delta for a single attempt. A correct answer earns
// between 10 (at the deadline) and 100 (instant) time-scaled points, plus
// 5 per consecutive prior correct answer up to 25. priorStreak is the
// player's streak before this attempt.
func (s Scorer) Points(correct bool, elapsed time.Duration, priorStreak int) int {
	if !correct {
		if s.PenalizeWrong {
			return -wrongGuessPenalty
		}
		return 0
	}

	win := s.Window
	if win <= 0 {
		win = DefaultWindow
	}
	sec := elapsed.Seconds()
	if sec < 0 {
		sec = 0
	}
	winSec := win.Seconds()
	if sec > winSec {
		sec = winSec
	}

	base := int(math.Round((winSec-sec)/winSec*timePointsRange)) + minCorrectPoints
	if base < minCorrectPoints {
		base = minCorrectPoints
	}
	if base > maxCorrectPoints {
		base = maxCorrectPoints
	}

	levels := priorStreak
	if levels < 0 {
		levels = 0
	}
	if levels > maxStreakLevels {
		levels = maxStreakLevels
	}
	return base + levels*streakBonusPerLevel
}
