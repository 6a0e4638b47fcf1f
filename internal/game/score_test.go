package game

import (
	"testing"
	"time"
)

func TestScorerCorrectBounds(t *testing.T) {
	s := Scorer{Window: 30 * time.Second, PenalizeWrong: true}

	cases := []struct {
		name    string
		elapsed time.Duration
		want    int
	}{
		{"instant", 0, 100},
		{"half window", 15 * time.Second, 55},
		{"at deadline", 30 * time.Second, 10},
		{"past deadline clamps", 45 * time.Second, 10},
		{"negative clamps", -time.Second, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := s.Points(true, tc.elapsed, 0)
			if got != tc.want {
				t.Fatalf("Points(true, %v, 0) = %d, want %d", tc.elapsed, got, tc.want)
			}
		})
	}
}

func TestScorerCorrectMonotonic(t *testing.T) {
	s := Scorer{Window: 30 * time.Second}
	prev := s.Points(true, 0, 0)
	for sec := 1; sec <= 30; sec++ {
		got := s.Points(true, time.Duration(sec)*time.Second, 0)
		if got > prev {
			t.Fatalf("points increased from %d to %d at %ds", prev, got, sec)
		}
		if got < 10 || got > 100 {
			t.Fatalf("points %d out of [10,100] at %ds", got, sec)
		}
		prev = got
	}
}

func TestScorerStreakBonus(t *testing.T) {
	s := Scorer{Window: 30 * time.Second}

	cases := []struct {
		streak int
		bonus  int
	}{
		{0, 0},
		{1, 5},
		{3, 15},
		{5, 25},
		{8, 25}, // saturates
		{-2, 0},
	}
	base := s.Points(true, 10*time.Second, 0)
	for _, tc := range cases {
		got := s.Points(true, 10*time.Second, tc.streak)
		if got != base+tc.bonus {
			t.Errorf("streak %d: got %d, want %d", tc.streak, got, base+tc.bonus)
		}
	}
}

func TestScorerWrongGuessPolicy(t *testing.T) {
	penalizing := Scorer{Window: 30 * time.Second, PenalizeWrong: true}
	if got := penalizing.Points(false, 5*time.Second, 3); got != -5 {
		t.Fatalf("penalizing wrong guess = %d, want -5", got)
	}
	lenient := Scorer{Window: 30 * time.Second}
	if got := lenient.Points(false, 5*time.Second, 3); got != 0 {
		t.Fatalf("lenient wrong guess = %d, want 0", got)
	}
}

func TestScorerZeroWindowUsesDefault(t *testing.T) {
	s := Scorer{}
	if got := s.Points(true, DefaultWindow, 0); got != 10 {
		t.Fatalf("deadline points with default window = %d, want 10", got)
	}
}
