package evidence

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
)

const (
	ddgDefaultBaseURL = "https://html.duckduckgo.com/html/"
	ddgDefaultTimeout = 15 * time.Second
	ddgUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	ddgParamQuery     = "q"
	ddgParamRegion    = "kl"
	ddgParamTimeLimit = "df"
	ddgParamSafe      = "kp"

	// Snippet date prefixes stay short; anything longer is body text.
	ddgMaxDatePrefixLen = 32
)

var errDDGUnexpectedStatus = errors.New("duckduckgo unexpected status")

// DuckDuckGoProvider searches the DuckDuckGo HTML endpoint and parses the
// result list. The endpoint needs no API key, which keeps the pipeline
// usable without credentials.
type DuckDuckGoProvider struct {
	baseURL    string
	region     string
	safesearch string
	timeLimit  string
	httpClient *http.Client
	enabled    bool
}

// DuckDuckGoConfig holds configuration for the DuckDuckGo provider.
type DuckDuckGoConfig struct {
	Enabled    bool
	BaseURL    string
	Region     string // e.g. "in-en"
	Safesearch string // "off", "moderate", "strict"
	TimeLimit  string // "d", "w", "m", "y" or empty
	Timeout    time.Duration
}

// NewDuckDuckGoProvider creates a DuckDuckGo HTML search provider.
func NewDuckDuckGoProvider(cfg DuckDuckGoConfig) *DuckDuckGoProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = ddgDefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = ddgDefaultTimeout
	}

	return &DuckDuckGoProvider{
		baseURL:    baseURL,
		region:     cfg.Region,
		safesearch: cfg.Safesearch,
		timeLimit:  cfg.TimeLimit,
		httpClient: &http.Client{Timeout: timeout},
		enabled:    cfg.Enabled,
	}
}

// Name returns the provider name.
func (p *DuckDuckGoProvider) Name() ProviderName {
	return ProviderDuckDuckGo
}

// IsAvailable reports whether the provider is enabled.
func (p *DuckDuckGoProvider) IsAvailable() bool {
	return p.enabled && p.baseURL != ""
}

// Search posts the query to the HTML endpoint and parses the result list.
func (p *DuckDuckGoProvider) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	form := url.Values{}
	form.Set(ddgParamQuery, query)

	if p.region != "" {
		form.Set(ddgParamRegion, p.region)
	}

	if p.timeLimit != "" {
		form.Set(ddgParamTimeLimit, p.timeLimit)
	}

	switch p.safesearch {
	case "strict":
		form.Set(ddgParamSafe, "1")
	case "off":
		form.Set(ddgParamSafe, "-2")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create duckduckgo request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", ddgUserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", errDDGUnexpectedStatus, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse duckduckgo response: %w", err)
	}

	return parseResultList(doc, maxResults), nil
}

func parseResultList(doc *goquery.Document, maxResults int) []SearchResult {
	var results []SearchResult

	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		title := sel.Find(".result__title")
		if title.Length() == 0 {
			return true
		}

		link := title.Find("a").First()

		href, ok := link.Attr("href")
		if !ok {
			href = strings.TrimSpace(sel.Find(".result__url").Text())
		}

		resultURL := unwrapRedirect(href)
		if resultURL == "" {
			return true
		}

		snippet := strings.TrimSpace(sel.Find(".result__snippet").Text())
		publishedAt, snippet := splitSnippetDate(snippet)

		results = append(results, SearchResult{
			URL:         resultURL,
			Title:       strings.TrimSpace(title.Text()),
			Snippet:     snippet,
			Domain:      extractDomain(resultURL),
			PublishedAt: publishedAt,
		})

		return len(results) < maxResults
	})

	return results
}

// unwrapRedirect resolves the uddg= redirect wrapper around result links.
func unwrapRedirect(href string) string {
	if href == "" {
		return ""
	}

	if !strings.Contains(href, "uddg=") {
		return href
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}

	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}

	return href
}

// splitSnippetDate peels a leading "Jan 2, 2026 —" style prefix off a
// snippet and parses it.
func splitSnippetDate(snippet string) (time.Time, string) {
	for _, sep := range []string{" — ", " - ", " · "} {
		prefix, rest, found := strings.Cut(snippet, sep)
		if !found || len(prefix) > ddgMaxDatePrefixLen {
			continue
		}

		if ts, err := dateparse.ParseAny(prefix); err == nil {
			return ts, strings.TrimSpace(rest)
		}
	}

	return time.Time{}, snippet
}

// extractDomain returns the registrable host of a URL without a www prefix.
func extractDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	domain := parsed.Host
	if domain == "" {
		domain, _, _ = strings.Cut(parsed.Path, "/")
	}

	return strings.TrimPrefix(strings.ToLower(domain), "www.")
}
