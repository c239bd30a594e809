package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"
)

// Pacer enforces a minimum delay between consecutive source fetches. The
// delay is the larger of the configured one and the Crawl-delay the host
// announces in its robots.txt.
type Pacer struct {
	limiter    *rate.Limiter
	delay      time.Duration
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	robots map[string]*robotstxt.RobotsData
}

// NewPacer creates a pacer with the given minimum delay (0 disables pacing
// unless robots.txt asks for one).
func NewPacer(delay time.Duration, userAgent string, httpClient *http.Client, logger *slog.Logger) *Pacer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pacer{
		limiter:    rate.NewLimiter(limitFor(delay), 1),
		delay:      delay,
		userAgent:  userAgent,
		httpClient: httpClient,
		logger:     logger,
		robots:     make(map[string]*robotstxt.RobotsData),
	}
}

func limitFor(delay time.Duration) rate.Limit {
	if delay <= 0 {
		return rate.Inf
	}
	return rate.Every(delay)
}

// Delay returns the effective minimum delay.
func (p *Pacer) Delay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delay
}

// Wait blocks until the next fetch of rawURL is allowed.
func (p *Pacer) Wait(ctx context.Context, rawURL string) error {
	p.honorRobots(ctx, rawURL)
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// honorRobots reads the host's robots.txt once and raises the delay to its
// Crawl-delay. A missing or unreadable robots.txt leaves pacing unchanged.
func (p *Pacer) honorRobots(ctx context.Context, rawURL string) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return
	}

	p.mu.Lock()
	_, seen := p.robots[parsed.Host]
	p.mu.Unlock()
	if seen {
		return
	}

	data := p.fetchRobots(ctx, parsed)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.robots[parsed.Host] = data
	if data == nil {
		return
	}
	group := data.FindGroup(p.userAgent)
	if group == nil || group.CrawlDelay <= p.delay {
		return
	}
	p.logger.Info("raising source pacing to robots.txt crawl delay",
		"host", parsed.Host, "delay", group.CrawlDelay)
	p.delay = group.CrawlDelay
	p.limiter.SetLimit(limitFor(p.delay))
}

func (p *Pacer) fetchRobots(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Debug("robots.txt unavailable", "url", robotsURL, "error", err)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		p.logger.Debug("robots.txt unparsable", "url", robotsURL, "error", err)
		return nil
	}
	return data
}
