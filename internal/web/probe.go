package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/util"
	"github.com/ppiankov/dealdesk/internal/worker"
)

const probeMaxAttempts = 3

// probeSleepFunc is the sleep between retries (injectable for tests)
var probeSleepFunc = time.Sleep

// ProberConfig configures website probing
type ProberConfig struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	Workers      int
	HTTPProxy    string
	HTTPSProxy   string
	NoProxy      string
}

// Prober fetches candidate homepages to summarize candidates the search
// left without a description
type Prober struct {
	client    *http.Client
	robots    *RobotsChecker
	limiter   *worker.Limiter
	userAgent string
	maxBytes  int64
	workers   int
}

// NewProber creates a prober
func NewProber(cfg ProberConfig) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "dealdesk"
	}

	client := util.NewHTTPClient(cfg.Timeout, cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 3 {
			return fmt.Errorf("stopped after 3 redirects")
		}
		return nil
	}

	return &Prober{
		client:    client,
		robots:    NewRobotsChecker(cfg.UserAgent, client),
		limiter:   worker.NewLimiter(1, 1),
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBodyBytes,
		workers:   cfg.Workers,
	}
}

// FillSummaries probes, concurrently, every candidate that has a website and
// no summary. Probe failures leave the candidate unchanged.
func (p *Prober) FillSummaries(ctx context.Context, candidates []model.WebCandidate) []model.WebCandidate {
	out := make([]model.WebCandidate, len(candidates))
	copy(out, candidates)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range out {
		if out[i].Website == "" || out[i].Summary != "" {
			continue
		}
		g.Go(func() error {
			summary, err := p.Summarize(gctx, out[i].Website)
			if err != nil {
				zap.L().Debug("web: probe failed", zap.String("url", out[i].Website), zap.Error(err))
				return nil
			}
			out[i].Summary = summary
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Summarize fetches rawURL and returns its meta description, falling back
// to the page title
func (p *Prober) Summarize(ctx context.Context, rawURL string) (string, error) {
	allowed, crawlDelay, err := p.robots.CanFetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", eris.Errorf("web: robots.txt disallows %s", rawURL)
	}

	host, err := worker.HostKey(rawURL)
	if err != nil {
		return "", err
	}
	if err := p.limiter.WaitWithDelay(ctx, host, crawlDelay); err != nil {
		return "", err
	}

	body, err := p.fetchWithRetry(ctx, rawURL)
	if err != nil {
		return "", err
	}
	summary := SummarizeHTML(body)
	if summary == "" {
		return "", eris.Errorf("web: no title or description at %s", rawURL)
	}
	return summary, nil
}

// fetchWithRetry retries 5xx, 429 and transient network failures with
// exponential backoff
func (p *Prober) fetchWithRetry(ctx context.Context, rawURL string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < probeMaxAttempts; attempt++ {
		body, status, err := p.fetch(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !isRetryable(status, err) || ctx.Err() != nil {
			return "", err
		}
		if attempt < probeMaxAttempts-1 {
			probeSleepFunc(time.Duration(1<<uint(attempt)) * time.Second)
		}
	}
	return "", lastErr
}

func (p *Prober) fetch(ctx context.Context, rawURL string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, eris.Wrap(err, "web: create request")
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", 0, eris.Wrap(err, "web: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", resp.StatusCode, eris.Errorf("web: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes))
	if err != nil {
		return "", resp.StatusCode, eris.Wrap(err, "web: read body")
	}
	return string(body), resp.StatusCode, nil
}

func isRetryable(status int, err error) bool {
	if (status >= 500 && status < 600) || status == http.StatusTooManyRequests {
		return true
	}
	if status != 0 || err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}

// SummarizeHTML returns the page's meta or og description, else its title
func SummarizeHTML(page string) string {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return ""
	}

	var title, description, ogDescription string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					title = n.FirstChild.Data
				}
			case "meta":
				name := strings.ToLower(attr(n, "name"))
				property := strings.ToLower(attr(n, "property"))
				switch {
				case name == "description" && description == "":
					description = attr(n, "content")
				case property == "og:description" && ogDescription == "":
					ogDescription = attr(n, "content")
				}
			case "body":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	for _, s := range []string{description, ogDescription, title} {
		if s = strings.Join(strings.Fields(s), " "); s != "" {
			return s
		}
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
