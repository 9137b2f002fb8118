package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/gatekeeper/internal/bot/constants"
	"github.com/robalyx/gatekeeper/internal/bot/utils"
)

// DefaultSearchEndpoint is the HTML-only search page scraped by the search command.
const DefaultSearchEndpoint = "https://html.duckduckgo.com/html/"

const searchUserAgent = "Mozilla/5.0 (compatible; GatekeeperBot/1.0)"

// ErrSearchFailed indicates the search page could not be fetched or parsed.
var ErrSearchFailed = errors.New("search failed")

// SearchResult is a single web result.
type SearchResult struct {
	Title   string
	Link    string
	Snippet string
}

// Searcher scrapes web results from an HTML search page.
type Searcher struct {
	client   *http.Client
	endpoint string
}

// NewSearcher creates a searcher. An empty endpoint uses DefaultSearchEndpoint.
func NewSearcher(client *http.Client, endpoint string) *Searcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if endpoint == "" {
		endpoint = DefaultSearchEndpoint
	}
	return &Searcher{client: client, endpoint: endpoint}
}

// Search returns up to limit organic results for query.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	target := s.endpoint + "?q=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrSearchFailed, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	return parseResults(doc, limit), nil
}

func parseResults(doc *goquery.Document, limit int) []SearchResult {
	results := make([]SearchResult, 0, limit)

	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		// Skip sponsored entries
		if sel.HasClass("result--ad") {
			return true
		}

		anchor := sel.Find("a.result__a").First()
		title := strings.TrimSpace(anchor.Text())
		href, _ := anchor.Attr("href")
		link := resolveLink(href)

		if title == "" && link == "" {
			return true
		}

		results = append(results, SearchResult{
			Title:   title,
			Link:    link,
			Snippet: strings.TrimSpace(sel.Find(".result__snippet").First().Text()),
		})
		return len(results) < limit
	})

	return results
}

// resolveLink unwraps redirect links to the destination they point at.
func resolveLink(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	u, err := url.Parse(href)
	if err != nil {
		return href
	}

	if strings.HasSuffix(u.Host, "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		if dest := u.Query().Get("uddg"); dest != "" {
			return dest
		}
	}

	return href
}

// SearchEmbed renders results for query.
func SearchEmbed(query string, results []SearchResult, now time.Time) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetTitle(utils.TruncateString("🔍 検索結果: "+query, 256)).
		SetColor(constants.SearchEmbedColor).
		SetFooter("DuckDuckGo Search", "").
		SetTimestamp(now)

	for i, result := range results {
		title := result.Title
		if title == "" {
			title = "タイトルなし"
		}
		snippet := result.Snippet
		if snippet == "" {
			snippet = "説明なし"
		}

		builder.AddField(
			utils.TruncateString(fmt.Sprintf("%d. %s", i+1, title), 256),
			utils.TruncateString(fmt.Sprintf("[リンクはこちら](%s)\n%s", result.Link, snippet), 1024),
			false,
		)
	}

	return builder.Build()
}
