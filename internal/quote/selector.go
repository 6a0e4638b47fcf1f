package quote

import (
	"context"

	"github.com/okvl/guessquote-bot/internal/store"
)

// Minimum content lengths per feature. Game quotes need enough text to be
// guessable; passive rolls repost anything.
const (
	GuessMinLength = 20
	RollMinLength  = 1
)

// Source is the slice of the store the selector needs.
type Source interface {
	RandomQuote(ctx context.Context, allowedAuthors []int64, minLength int) (*store.Quote, error)
}

// Selector applies the author allow-list and per-feature length policy.
type Selector struct {
	src     Source
	allowed []int64
}

func NewSelector(src Source, allowedAuthors []int64) *Selector {
	return &Selector{src: src, allowed: allowedAuthors}
}

func (s *Selector) PickForGame(ctx context.Context) (*store.Quote, error) {
	return s.src.RandomQuote(ctx, s.allowed, GuessMinLength)
}

func (s *Selector) PickForRoll(ctx context.Context) (*store.Quote, error) {
	return s.src.RandomQuote(ctx, s.allowed, RollMinLength)
}
