// Package scraper fills in paper abstracts from their landing pages.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/promptlab/internal/models"
	"golang.org/x/time/rate"
	"k8s.io/klog/v2"
)

// ErrNoAbstract is returned when a page has no recognizable abstract.
var ErrNoAbstract = errors.New("no abstract found")

type ScraperConfig struct {
	RateLimit float64 // requests per second
	Timeout   time.Duration
	// AllowedHosts limits fetching to these hosts. Empty allows any host.
	AllowedHosts []string
	UserAgent    string
	OnProgress   func(url string)
	// Client overrides the HTTP client; Timeout is ignored when set.
	Client *http.Client
}

type Scraper struct {
	config  ScraperConfig
	client  *http.Client
	limiter *rate.Limiter
}

// EnrichStats counts what Enrich did.
type EnrichStats struct {
	Fetched int
	Skipped int
	Failed  int
}

func NewWithConfig(config ScraperConfig) (*Scraper, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit < 0 {
		return nil, fmt.Errorf("rate limit must not be negative, got %v", config.RateLimit)
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if config.UserAgent == "" {
		config.UserAgent = "promptlab/1.0"
	}

	client := config.Client
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	return &Scraper{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}, nil
}

func New() *Scraper {
	s, _ := NewWithConfig(ScraperConfig{})
	return s
}

func (s *Scraper) shouldFetch(urlStr string) bool {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	if len(s.config.AllowedHosts) == 0 {
		return true
	}
	for _, host := range s.config.AllowedHosts {
		if strings.EqualFold(parsed.Hostname(), host) {
			return true
		}
	}
	return false
}

// FetchAbstract downloads a paper page and returns its abstract.
func (s *Scraper) FetchAbstract(ctx context.Context, urlStr string) (string, error) {
	if !s.shouldFetch(urlStr) {
		return "", fmt.Errorf("refusing to fetch %q", urlStr)
	}
	if s.config.OnProgress != nil {
		s.config.OnProgress(urlStr)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, urlStr)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	abstract := extractAbstract(doc)
	if abstract == "" {
		return "", ErrNoAbstract
	}
	return abstract, nil
}

// Enrich returns a copy of papers with missing abstracts fetched from their
// paper URLs. Pages that fail are logged and left without an abstract.
func (s *Scraper) Enrich(ctx context.Context, papers []models.Paper) ([]models.Paper, EnrichStats, error) {
	logger := klog.FromContext(ctx)
	out := make([]models.Paper, len(papers))
	copy(out, papers)

	var stats EnrichStats
	for i := range out {
		if err := ctx.Err(); err != nil {
			return out, stats, err
		}

		p := &out[i]
		if strings.TrimSpace(p.Abstract) != "" || !s.shouldFetch(p.PaperURL) {
			stats.Skipped++
			continue
		}

		abstract, err := s.FetchAbstract(ctx, p.PaperURL)
		if err != nil {
			if ctx.Err() != nil {
				return out, stats, ctx.Err()
			}
			logger.Info("Skipping abstract", "title", p.Title, "url", p.PaperURL, "err", err)
			stats.Failed++
			continue
		}
		p.Abstract = abstract
		stats.Fetched++
	}

	logger.V(1).Info("Abstract enrichment complete", "fetched", stats.Fetched, "skipped", stats.Skipped, "failed", stats.Failed)
	return out, stats, nil
}

func extractAbstract(doc *goquery.Document) string {
	// Try the most specific sources first
	metaSelectors := []string{
		`meta[name="citation_abstract"]`,
		`meta[name="dc.description"]`,
	}
	for _, selector := range metaSelectors {
		if content := metaContent(doc, selector); content != "" {
			return content
		}
	}

	if block := doc.Find("blockquote.abstract").First(); block.Length() > 0 {
		block.Find(".descriptor").Remove()
		if content := cleanContent(block.Text()); content != "" {
			return content
		}
	}

	// Fallback to generic page descriptions
	for _, selector := range []string{`meta[name="description"]`, `meta[property="og:description"]`} {
		if content := metaContent(doc, selector); content != "" {
			return content
		}
	}
	return ""
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return cleanContent(content)
}

func cleanContent(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	content = strings.TrimPrefix(content, "Abstract:")
	return strings.TrimSpace(content)
}
