// Package resolve follows redirect citations to their final page and fills
// missing titles from the page HTML.
package resolve

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/everstacklabs/brandscope/internal/provider"
	"github.com/everstacklabs/brandscope/internal/sources"
)

const userAgent = "Mozilla/5.0 (compatible; brandscope/1.0; +https://github.com/everstacklabs/brandscope)"

// Page is what a fetch learned about a URL.
type Page struct {
	FinalURL string
	Title    string
}

// Resolver fetches citation URLs. Lookups are memoized for the lifetime of
// the Resolver, so one run never fetches the same URL twice.
type Resolver struct {
	client      *http.Client
	concurrency int

	mu    sync.Mutex
	pages map[string]*Page
}

// New creates a Resolver. A nil client gets a 10s timeout client.
func New(client *http.Client, concurrency int) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Resolver{client: client, concurrency: concurrency, pages: make(map[string]*Page)}
}

// Results returns copies of results whose redirect or untitled citations have
// been resolved. Fetch failures leave a citation unchanged. Failed results
// are returned as-is.
func (r *Resolver) Results(ctx context.Context, results []provider.Result) []provider.Result {
	out := make([]provider.Result, len(results))
	copy(out, results)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range out {
		if !out[i].OK() {
			continue
		}
		cites := make([]provider.Citation, len(out[i].Citations))
		copy(cites, out[i].Citations)
		out[i].Citations = cites

		for j := range cites {
			if !needsResolve(cites[j]) {
				continue
			}
			g.Go(func() error {
				page, err := r.Lookup(gctx, cites[j].URL)
				if err != nil {
					zap.L().Debug("resolve: lookup failed", zap.String("url", cites[j].URL), zap.Error(err))
					return nil
				}
				cites[j] = apply(cites[j], page)
				return nil
			})
		}
	}
	_ = g.Wait()
	return out
}

func needsResolve(c provider.Citation) bool {
	if c.URL == "" {
		return false
	}
	return sources.IsRedirect(c.URL) || c.Title == ""
}

func apply(c provider.Citation, p *Page) provider.Citation {
	if p.FinalURL != "" && !sources.IsRedirect(p.FinalURL) {
		if sources.IsRedirect(c.URL) || c.Domain == "" {
			c.Domain = provider.HostOf(p.FinalURL)
		}
		c.URL = p.FinalURL
	}
	if c.Title == "" {
		c.Title = p.Title
	}
	return c
}

// Lookup fetches rawURL, following redirects, and extracts the page title.
func (r *Resolver) Lookup(ctx context.Context, rawURL string) (*Page, error) {
	r.mu.Lock()
	if p, ok := r.pages[rawURL]; ok {
		r.mu.Unlock()
		return p, nil
	}
	r.mu.Unlock()

	p, err := r.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.pages[rawURL] = p
	r.mu.Unlock()
	return p, nil
}

func (r *Resolver) fetch(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: create request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "resolve: GET %s", rawURL)
	}
	defer func() { _ = resp.Body.Close() }()

	page := &Page{FinalURL: resp.Request.URL.String()}
	if resp.StatusCode != http.StatusOK {
		return page, nil
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return page, nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "resolve: parse HTML from %s", rawURL)
	}
	page.Title = Title(doc)
	return page, nil
}

// Title returns the og:title of doc, falling back to <title>.
func Title(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		if t := collapse(og); t != "" {
			return t
		}
	}
	return collapse(doc.Find("title").First().Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
