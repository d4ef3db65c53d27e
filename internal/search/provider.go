// Package search implements the lookup backends behind the search tools.
package search

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyQuery is returned when a provider is called without a query.
var ErrEmptyQuery = errors.New("search: empty query")

// Provider runs a free-text search and returns a text payload for the model.
type Provider interface {
	Search(ctx context.Context, query string) (string, error)
}

// ProviderFunc adapts a plain function to Provider.
type ProviderFunc func(ctx context.Context, query string) (string, error)

func (f ProviderFunc) Search(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}

// Static always answers with the same text.
type Static struct {
	Text string
}

func (s Static) Search(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyQuery
	}
	return s.Text, nil
}

// clampRunes cuts s to at most n runes and reports whether it did.
func clampRunes(s string, n int) (string, bool) {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s, false
	}
	return string(r[:n]), true
}
