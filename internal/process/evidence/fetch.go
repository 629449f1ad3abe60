package evidence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

const (
	fetchDefaultTimeout  = 10 * time.Second
	fetchDefaultMaxChars = 5000
)

var (
	errFetchUnexpectedStatus = errors.New("page fetch unexpected status")

	fetchWhitespacePattern = regexp.MustCompile(`\s+`)
)

// PageFetcher downloads a page and extracts its main text for deeper
// evidence analysis.
type PageFetcher struct {
	httpClient *http.Client
	maxChars   int
}

// NewPageFetcher creates a fetcher with the given request timeout and
// extraction limit. Zero values fall back to defaults.
func NewPageFetcher(timeout time.Duration, maxChars int) *PageFetcher {
	if timeout <= 0 {
		timeout = fetchDefaultTimeout
	}

	if maxChars <= 0 {
		maxChars = fetchDefaultMaxChars
	}

	return &PageFetcher{
		httpClient: &http.Client{Timeout: timeout},
		maxChars:   maxChars,
	}
}

// Fetch downloads pageURL and returns the readable article text, truncated
// to the configured limit.
func (f *PageFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create page request: %w", err)
	}

	req.Header.Set("User-Agent", ddgUserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %d", errFetchUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read page body: %w", err)
	}

	return f.extractText(body, pageURL), nil
}

// extractText runs readability first and falls back to stripping
// boilerplate tags when the article extraction fails.
func (f *PageFetcher) extractText(body []byte, pageURL string) string {
	parsedURL, _ := url.Parse(pageURL)

	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return f.clean(article.TextContent)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, header, footer, aside").Remove()

	return f.clean(doc.Text())
}

func (f *PageFetcher) clean(text string) string {
	text = strings.TrimSpace(fetchWhitespacePattern.ReplaceAllString(text, " "))

	runes := []rune(text)
	if len(runes) > f.maxChars {
		return string(runes[:f.maxChars])
	}

	return text
}
