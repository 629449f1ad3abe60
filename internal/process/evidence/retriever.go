package evidence

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/claimlens/claimlens/internal/core/domain"
)

const (
	// Ranked evidence kept per claim after merging all queries.
	maxEvidenceItems = 10

	scoreAuthoritative float32 = 1.0
	scoreSecondary     float32 = 0.5

	keywordQueriesPerClaim = 2
	rawClaimFallbackFactor = 2

	// Page fetch enrichment applies to the top items whose search snippet
	// is missing or too short to adjudicate on.
	enrichTopItems      = 3
	enrichMinSnippetLen = 80
	enrichSnippetMax    = 600
)

// Retriever turns a claim into search queries and merges the results into
// a ranked evidence list.
type Retriever struct {
	registry             *ProviderRegistry
	authoritativeDomains []string
	maxPerQuery          int
	fetcher              *PageFetcher
	logger               *zerolog.Logger
}

// NewRetriever creates an evidence retriever.
func NewRetriever(registry *ProviderRegistry, authoritativeDomains []string, maxPerQuery int, logger *zerolog.Logger) *Retriever {
	return &Retriever{
		registry:             registry,
		authoritativeDomains: authoritativeDomains,
		maxPerQuery:          maxPerQuery,
		logger:               logger,
	}
}

// WithPageFetcher enables page text enrichment for top-ranked evidence
// whose search snippet is missing or too short.
func (r *Retriever) WithPageFetcher(fetcher *PageFetcher) *Retriever {
	r.fetcher = fetcher

	return r
}

// BuildQueries derives the search queries for a claim: keyword-based
// queries, the raw claim itself, and a focused name query for death claims.
func (r *Retriever) BuildQueries(claimText string) []string {
	queries := BuildSearchQueries(claimText, keywordQueriesPerClaim)

	if !contains(queries, claimText) {
		queries = append(queries, claimText)
	}

	if dq := deathQuery(claimText); dq != "" && !contains(queries, dq) {
		queries = append(queries, dq)
	}

	seen := make(map[string]struct{}, len(queries))
	deduped := queries[:0]

	for _, q := range queries {
		if _, ok := seen[q]; ok {
			continue
		}

		seen[q] = struct{}{}
		deduped = append(deduped, q)
	}

	return deduped
}

// Gather searches all queries for a claim and returns deduplicated evidence
// ranked with authoritative domains first. An empty result with a nil error
// means the searches ran but found nothing.
func (r *Retriever) Gather(ctx context.Context, claimText string) ([]domain.EvidenceItem, error) {
	queries := r.BuildQueries(claimText)

	r.getLogger().Info().Strs("queries", queries).Msg("searching for evidence")

	var (
		raw     []SearchResult
		lastErr error
	)

	for _, query := range queries {
		results, provider, err := r.registry.SearchWithFallback(ctx, query, r.maxPerQuery)
		if err != nil {
			lastErr = err

			r.getLogger().Warn().Err(err).Str("query", query).Msg("evidence search failed")

			continue
		}

		r.getLogger().Debug().
			Str("query", query).
			Str("provider", string(provider)).
			Int("results", len(results)).
			Msg("evidence query done")

		raw = append(raw, results...)
	}

	// One wider retry on the raw claim before giving up.
	if len(raw) == 0 && lastErr == nil {
		results, _, err := r.registry.SearchWithFallback(ctx, claimText, r.maxPerQuery*rawClaimFallbackFactor)
		if err != nil {
			lastErr = err
		} else {
			raw = results
		}
	}

	if len(raw) == 0 {
		return nil, lastErr
	}

	ranked := r.rank(raw)
	r.enrich(ctx, ranked)

	return ranked, nil
}

// enrich replaces thin snippets on the top items with extracted page text.
// Fetch failures leave the search snippet in place.
func (r *Retriever) enrich(ctx context.Context, items []domain.EvidenceItem) {
	if r.fetcher == nil {
		return
	}

	for i := range items {
		if i >= enrichTopItems {
			return
		}

		if len([]rune(items[i].Snippet)) >= enrichMinSnippetLen {
			continue
		}

		text, err := r.fetcher.Fetch(ctx, items[i].URL)
		if err != nil || text == "" {
			r.getLogger().Debug().Err(err).Str("url", items[i].URL).Msg("page enrichment skipped")

			continue
		}

		if runes := []rune(text); len(runes) > enrichSnippetMax {
			text = string(runes[:enrichSnippetMax])
		}

		items[i].Snippet = text
	}
}

// rank deduplicates by URL, scores by domain authority, and keeps the top
// results with authoritative sources first. The sort is stable so equal
// scores keep their search order.
func (r *Retriever) rank(raw []SearchResult) []domain.EvidenceItem {
	now := time.Now().UTC()
	seen := make(map[string]struct{}, len(raw))
	items := make([]domain.EvidenceItem, 0, len(raw))

	for _, res := range raw {
		if res.URL == "" {
			continue
		}

		if _, ok := seen[res.URL]; ok {
			continue
		}

		seen[res.URL] = struct{}{}

		score := scoreSecondary
		if r.isAuthoritative(res.Domain) {
			score = scoreAuthoritative
		}

		items = append(items, domain.EvidenceItem{
			URL:         res.URL,
			Domain:      res.Domain,
			Title:       res.Title,
			Snippet:     res.Snippet,
			Score:       score,
			PublishedAt: res.PublishedAt,
			RetrievedAt: now,
		})
	}

	// Stable partition: authoritative first, original order within each tier.
	ranked := make([]domain.EvidenceItem, 0, len(items))

	for _, item := range items {
		if item.Score == scoreAuthoritative {
			ranked = append(ranked, item)
		}
	}

	for _, item := range items {
		if item.Score != scoreAuthoritative {
			ranked = append(ranked, item)
		}
	}

	if len(ranked) > maxEvidenceItems {
		ranked = ranked[:maxEvidenceItems]
	}

	return ranked
}

func (r *Retriever) isAuthoritative(domainName string) bool {
	domainName = strings.ToLower(domainName)

	for _, auth := range r.authoritativeDomains {
		if domainName == auth || strings.HasSuffix(domainName, "."+auth) {
			return true
		}
	}

	return false
}

func (r *Retriever) getLogger() *zerolog.Logger {
	if r.logger == nil {
		nop := zerolog.Nop()

		return &nop
	}

	return r.logger
}

// Snippets extracts the non-empty snippet texts from evidence items.
func Snippets(items []domain.EvidenceItem) []string {
	snippets := make([]string, 0, len(items))

	for _, item := range items {
		if item.Snippet != "" {
			snippets = append(snippets, item.Snippet)
		}
	}

	return snippets
}
