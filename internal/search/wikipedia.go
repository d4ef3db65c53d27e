package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	defaultWikiPages    = 2
	defaultWikiMaxRunes = 6000
	wikiTimeout         = 30 * time.Second
	wikiLogPrefix       = "[wikipedia]"
	truncationSentinel  = " [truncated]"
)

var spaceRun = regexp.MustCompile(`\s+`)

// Wikipedia searches article titles and returns the text of the top pages.
type Wikipedia struct {
	BaseURL  string       // e.g. https://en.wikipedia.org
	Client   *http.Client
	Pages    int          // pages fetched per query (default 2)
	MaxRunes int          // per-page text cap (default 6000)
	Logger   *log.Logger  // nil discards
}

// NewWikipedia returns a provider for the given language edition ("en" when empty).
func NewWikipedia(lang string) *Wikipedia {
	if lang == "" {
		lang = "en"
	}
	return &Wikipedia{
		BaseURL: fmt.Sprintf("https://%s.wikipedia.org", lang),
		Client:  &http.Client{Timeout: wikiTimeout},
	}
}

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type wikiParseResponse struct {
	Parse struct {
		Title string `json:"title"`
		Text  string `json:"text"`
	} `json:"parse"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

func (w *Wikipedia) Search(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyQuery
	}
	pages := w.Pages
	if pages <= 0 {
		pages = defaultWikiPages
	}
	w.logf("%s searching (%d bytes of query)", wikiLogPrefix, len(query))

	var sr wikiSearchResponse
	err := w.get(ctx, url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {fmt.Sprint(pages)},
		"format":   {"json"},
	}, &sr)
	if err != nil {
		return "", err
	}
	w.logf("%s %d hits", wikiLogPrefix, len(sr.Query.Search))
	if len(sr.Query.Search) == 0 {
		return fmt.Sprintf("No Wikipedia articles found for %q.", query), nil
	}

	var b strings.Builder
	for i, hit := range sr.Query.Search {
		if i == pages {
			break
		}
		text, err := w.pageText(ctx, hit.Title)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "Title: %s\nURL: %s\n%s\n\n", hit.Title, w.pageURL(hit.Title), text)
	}
	return strings.TrimRight(b.String(), "\n") + "\n", nil
}

func (w *Wikipedia) logf(format string, args ...any) {
	if w.Logger != nil {
		w.Logger.Printf(format, args...)
	}
}

func (w *Wikipedia) pageText(ctx context.Context, title string) (string, error) {
	var pr wikiParseResponse
	err := w.get(ctx, url.Values{
		"action":        {"parse"},
		"page":          {title},
		"prop":          {"text"},
		"redirects":     {"1"},
		"format":        {"json"},
		"formatversion": {"2"},
	}, &pr)
	if err != nil {
		return "", err
	}
	if pr.Error != nil {
		return "", fmt.Errorf("wikipedia: parse %q: %s: %s", title, pr.Error.Code, pr.Error.Info)
	}
	text := ExtractText(pr.Parse.Text)
	maxRunes := w.MaxRunes
	if maxRunes <= 0 {
		maxRunes = defaultWikiMaxRunes
	}
	if clamped, did := clampRunes(text, maxRunes); did {
		text = clamped + truncationSentinel
	}
	return text, nil
}

func (w *Wikipedia) pageURL(title string) string {
	return w.BaseURL + "/wiki/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}

func (w *Wikipedia) get(ctx context.Context, q url.Values, into any) error {
	endpoint := strings.TrimRight(w.BaseURL, "/") + "/w/api.php?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	// Wikimedia rejects requests without a descriptive agent.
	req.Header.Set("User-Agent", "converse-router/1.0 (tool-use demo)")

	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: wikiTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("wikipedia: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wikipedia: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, into); err != nil {
		return fmt.Errorf("wikipedia: decoding response: %w", err)
	}
	return nil
}

// ExtractText returns the readable text of an HTML fragment, skipping
// scripts, styles, tables and reference markers.
func ExtractText(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	var sb strings.Builder
	walkText(doc, &sb)
	return strings.TrimSpace(spaceRun.ReplaceAllString(sb.String(), " "))
}

func walkText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "table", "sup", "noscript":
			return
		}
		for _, a := range n.Attr {
			if a.Key == "class" && (strings.Contains(a.Val, "mw-editsection") || strings.Contains(a.Val, "reference")) {
				return
			}
		}
	}
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, sb)
	}
}
