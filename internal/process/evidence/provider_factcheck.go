package evidence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ProviderFactCheck searches published fact-check reviews.
const ProviderFactCheck ProviderName = "google_factcheck"

const (
	factCheckEndpoint       = "https://factchecktools.googleapis.com/v1alpha1/claims:search"
	factCheckDefaultTimeout = 20 * time.Second
	factCheckDefaultRPM     = 60
)

var errFactCheckStatus = errors.New("fact check status")

// FactCheckConfig holds configuration for the Google Fact Check provider.
type FactCheckConfig struct {
	APIKey  string
	BaseURL string
	RPM     int // Requests per minute against the API
	Timeout time.Duration
}

// FactCheckProvider queries the Google Fact Check Tools API. Hits are
// existing claim reviews by fact-checking publishers, so results carry the
// publisher verdict in the snippet.
type FactCheckProvider struct {
	apiKey     string
	baseURL    string
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewFactCheckProvider creates a Google Fact Check search provider.
func NewFactCheckProvider(cfg FactCheckConfig) *FactCheckProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = factCheckEndpoint
	}

	rpm := cfg.RPM
	if rpm <= 0 {
		rpm = factCheckDefaultRPM
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = factCheckDefaultTimeout
	}

	return &FactCheckProvider{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name.
func (p *FactCheckProvider) Name() ProviderName {
	return ProviderFactCheck
}

// IsAvailable reports whether the provider is configured.
func (p *FactCheckProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// Search queries the claim review API and maps reviews to search results.
func (p *FactCheckProvider) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fact check rate limit: %w", err)
	}

	endpoint, err := p.buildURL(query, maxResults)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build fact check request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fact check request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", errFactCheckStatus, resp.StatusCode)
	}

	var payload factCheckResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode fact check response: %w", err)
	}

	return parseFactCheckResults(payload, query, maxResults), nil
}

func (p *FactCheckProvider) buildURL(query string, maxResults int) (string, error) {
	values := url.Values{}
	values.Set("query", query)
	values.Set("pageSize", fmt.Sprintf("%d", maxResults))
	values.Set("key", p.apiKey)

	u, err := url.Parse(p.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse fact check endpoint: %w", err)
	}

	u.RawQuery = values.Encode()

	return u.String(), nil
}

type factCheckResponse struct {
	Claims []struct {
		Text        string `json:"text"`
		ClaimReview []struct {
			Publisher struct {
				Name string `json:"name"`
			} `json:"publisher"`
			URL           string `json:"url"`
			Title         string `json:"title"`
			ReviewDate    string `json:"reviewDate"`    //nolint:tagliatelle
			TextualRating string `json:"textualRating"` //nolint:tagliatelle
		} `json:"claimReview"` //nolint:tagliatelle
	} `json:"claims"`
}

func parseFactCheckResults(resp factCheckResponse, fallbackClaim string, maxResults int) []SearchResult {
	results := make([]SearchResult, 0, maxResults)

	for _, claim := range resp.Claims {
		claimText := claim.Text
		if claimText == "" {
			claimText = fallbackClaim
		}

		for _, review := range claim.ClaimReview {
			if review.URL == "" {
				continue
			}

			title := review.Title
			if title == "" {
				title = review.Publisher.Name
			}

			var publishedAt time.Time
			if review.ReviewDate != "" {
				publishedAt, _ = time.Parse(time.RFC3339, review.ReviewDate)
			}

			results = append(results, SearchResult{
				URL:         review.URL,
				Title:       title,
				Snippet:     factCheckSnippet(claimText, review.Publisher.Name, review.TextualRating),
				Domain:      extractDomain(review.URL),
				PublishedAt: publishedAt,
			})

			if len(results) >= maxResults {
				return results
			}
		}
	}

	return results
}

// factCheckSnippet renders a review as "claim (rated X by Publisher)" so
// the adjudicator sees the publisher verdict alongside the claim.
func factCheckSnippet(claim, publisher, rating string) string {
	var b strings.Builder

	b.WriteString(claim)

	if rating != "" {
		b.WriteString(" (rated ")
		b.WriteString(rating)

		if publisher != "" {
			b.WriteString(" by ")
			b.WriteString(publisher)
		}

		b.WriteString(")")
	}

	return b.String()
}
