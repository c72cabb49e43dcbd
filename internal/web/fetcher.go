package web

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/dealdesk/internal/cache"
	"github.com/ppiankov/dealdesk/internal/llm"
	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/normalize"
	"github.com/ppiankov/dealdesk/internal/worker"
)

// DefaultMaxCandidates caps candidates per lookup when none is configured
const DefaultMaxCandidates = 5

// Fetcher routes lookups to the searcher for the entity type, caches and
// throttles them, and normalizes the results
type Fetcher struct {
	searchers     map[model.EntityType]Searcher
	cache         cache.Cache
	cacheTTL      time.Duration
	limiter       *worker.Limiter
	prober        *Prober
	sites         *SiteClassifier
	maxCandidates int
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithCache caches normalized results for ttl
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(f *Fetcher) {
		f.cache = c
		f.cacheTTL = ttl
	}
}

// WithLimiter throttles each searcher under its own key
func WithLimiter(l *worker.Limiter) Option {
	return func(f *Fetcher) { f.limiter = l }
}

// WithProber fills missing summaries from candidate homepages
func WithProber(p *Prober) Option {
	return func(f *Fetcher) { f.prober = p }
}

// WithMaxCandidates caps the candidates returned per lookup
func WithMaxCandidates(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxCandidates = n
		}
	}
}

// WithProfileDomains adds hosts whose pages never count as an entity's
// own website
func WithProfileDomains(domains []string) Option {
	return func(f *Fetcher) { f.sites = NewSiteClassifier(domains) }
}

// NewFetcher creates a fetcher over the given searchers
func NewFetcher(searchers map[model.EntityType]Searcher, opts ...Option) *Fetcher {
	f := &Fetcher{
		searchers:     searchers,
		sites:         defaultSites,
		maxCandidates: DefaultMaxCandidates,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewFetcherFromConfig wires the three LLM-backed searchers, the result
// cache, the per-searcher limiter and the website prober from configuration.
// A nil provider or disabled search yields a fetcher that always returns
// no candidates.
func NewFetcherFromConfig(cfg *model.Config, provider llm.Provider) *Fetcher {
	search := cfg.Search
	searchers := map[model.EntityType]Searcher{}
	if search.Enabled && provider != nil {
		searchers[model.EntityHealthSystem] = NewHealthSystemSearcher(provider, search.Model)
		searchers[model.EntityCompany] = NewCompanySearcher(provider, search.Model)
		searchers[model.EntityCoInvestor] = NewCoInvestorSearcher(provider, search.Model)
	}

	opts := []Option{
		WithCache(cache.New(search.CacheTTL, search.CacheDir), search.CacheTTL),
		WithLimiter(worker.NewLimiter(search.RequestsPerSecond, search.Burst)),
		WithMaxCandidates(search.MaxCandidates),
		WithProfileDomains(search.ProfileDomains),
	}
	if search.ProbeWebsites {
		opts = append(opts, WithProber(NewProber(ProberConfig{
			UserAgent:    search.UserAgent,
			Timeout:      search.Timeout,
			MaxBodyBytes: search.MaxBodyBytes,
			Workers:      cfg.Concurrency.ProbeWorkers,
			HTTPProxy:    search.HTTPProxy,
			HTTPSProxy:   search.HTTPSProxy,
			NoProxy:      search.NoProxy,
		})))
	}
	return NewFetcher(searchers, opts...)
}

// FetchWebCandidates returns normalized candidates for query. Search
// failures are logged and yield an empty slice, never an error.
func (f *Fetcher) FetchWebCandidates(ctx context.Context, entityType model.EntityType, query string) []model.WebCandidate {
	query = normalize.Name(query, entityType)
	searcher, ok := f.searchers[entityType]
	if query == "" || !ok {
		return []model.WebCandidate{}
	}

	var key string
	if f.cache != nil {
		key = cache.SearchKey(searcher.Name(), entityType, query)
		var cached []model.WebCandidate
		if cache.GetJSON(f.cache, key, &cached) {
			return cached
		}
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, searcher.Name()); err != nil {
			zap.L().Warn("web: rate limiter wait aborted",
				zap.String("searcher", searcher.Name()), zap.Error(err))
			return []model.WebCandidate{}
		}
	}

	raw, err := searcher.Search(ctx, query, f.maxCandidates)
	if err != nil {
		zap.L().Warn("web: search failed",
			zap.String("searcher", searcher.Name()),
			zap.String("query", query),
			zap.Error(err))
		return []model.WebCandidate{}
	}

	candidates := normalizeCandidates(raw, entityType, f.maxCandidates, f.sites)
	if f.prober != nil {
		candidates = f.prober.FillSummaries(ctx, candidates)
	}

	if f.cache != nil {
		if err := cache.SetJSON(f.cache, key, candidates, f.cacheTTL); err != nil {
			zap.L().Debug("web: cache write failed", zap.Error(err))
		}
	}
	return candidates
}

// NormalizeCandidates cleans names and websites, drops nameless and
// duplicate candidates and caps the list at max. Profile pages such as a
// LinkedIn company page are moved from Website to SourceURLs.
func NormalizeCandidates(raw []model.WebCandidate, entityType model.EntityType, max int) []model.WebCandidate {
	return normalizeCandidates(raw, entityType, max, defaultSites)
}

func normalizeCandidates(raw []model.WebCandidate, entityType model.EntityType, max int, sites *SiteClassifier) []model.WebCandidate {
	out := make([]model.WebCandidate, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, c := range raw {
		c.Name = normalize.Name(c.Name, entityType)
		key := normalize.ForLookup(c.Name)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		c.Website = NormalizeWebsite(c.Website)
		c.HeadquartersCity = strings.TrimSpace(c.HeadquartersCity)
		c.HeadquartersState = strings.TrimSpace(c.HeadquartersState)
		c.HeadquartersCountry = strings.TrimSpace(c.HeadquartersCountry)
		c.Summary = strings.Join(strings.Fields(c.Summary), " ")
		c.SourceURLs = cleanURLs(c.SourceURLs)
		out = append(out, sites.Demote(c))
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// NormalizeWebsite returns an absolute http(s) URL for raw, or "" when raw
// does not look like a website
func NormalizeWebsite(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || !strings.Contains(parsed.Host, ".") {
		return ""
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	parsed.Host = strings.ToLower(parsed.Host)
	return parsed.String()
}

func cleanURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		u = NormalizeWebsite(u)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
