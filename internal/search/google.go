package search

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

const defaultGoogleResults = 10

// Google queries a Programmable Search Engine through the Custom Search JSON API.
type Google struct {
	svc *customsearch.Service
	cx  string
	num int64
}

// NewGoogle builds a Custom Search client. apiKey is used unless opts supply
// their own credentials or HTTP client.
func NewGoogle(ctx context.Context, apiKey, cx string, opts ...option.ClientOption) (*Google, error) {
	if cx == "" {
		return nil, fmt.Errorf("google search: engine id (cx) is required")
	}
	if apiKey != "" {
		opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	}
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating customsearch service: %w", err)
	}
	return &Google{svc: svc, cx: cx, num: defaultGoogleResults}, nil
}

func (g *Google) Search(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyQuery
	}
	res, err := g.svc.Cse.List().Q(query).Cx(g.cx).Num(g.num).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("google search: %w", err)
	}
	if len(res.Items) == 0 {
		return fmt.Sprintf("No web results found for %q.", query), nil
	}
	results := make([]string, 0, len(res.Items))
	for _, item := range res.Items {
		results = append(results, fmt.Sprintf("Title: %s\nLink: %s\nSnippet: %s\n", item.Title, item.Link, item.Snippet))
	}
	return strings.Join(results, "\n"), nil
}
