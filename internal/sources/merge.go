// Package sources merges the citations of every provider that answered one
// question into a deduplicated, attributed list.
package sources

import (
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/everstacklabs/brandscope/internal/provider"
)

// MergedURL is one distinct URL seen under a source domain.
type MergedURL struct {
	URL           string `json:"url"`
	Title         string `json:"title,omitempty"`
	CitationCount int    `json:"citationCount"`
}

// MergedSource is one registrable domain cited by at least one provider.
// CitationCount always equals the sum of its URL counts.
type MergedSource struct {
	Domain         string              `json:"domain"`
	SourceType     provider.SourceType `json:"sourceType"`
	Title          string              `json:"title,omitempty"`
	CompetitorName string              `json:"competitorName,omitempty"`
	CitationCount  int                 `json:"citationCount"`
	CitedBy        []provider.Name     `json:"citedBy"`
	URLs           []MergedURL         `json:"urls"`
	IsVideo        bool                `json:"isVideo"`
}

// redirectPatterns mark grounding and tracking URLs that do not identify the
// cited page.
var redirectPatterns = []string{
	"vertexaisearch.cloud.google.com/grounding-api-redirect",
	"google.com/url",
	"news.google.com/rss/articles",
	"bing.com/ck/",
}

var videoDomains = map[string]bool{
	"youtube.com":     true,
	"youtu.be":        true,
	"vimeo.com":       true,
	"tiktok.com":      true,
	"dailymotion.com": true,
	"twitch.tv":       true,
}

// Merge combines the citations of the ok results. Results must be given in
// declared provider order: the first citation of a domain fixes its
// SourceType, and Title and CompetitorName once non-empty. The output is
// sorted by citation count descending, then domain ascending.
func Merge(results []provider.Result) []MergedSource {
	var merged []*MergedSource
	byDomain := make(map[string]*MergedSource)
	urlIndex := make(map[string]map[string]int)

	for _, r := range results {
		if !r.OK() {
			continue
		}
		for _, c := range r.Citations {
			domain := RegistrableDomain(c)
			if domain == "" {
				continue
			}

			ms, ok := byDomain[domain]
			if !ok {
				ms = &MergedSource{
					Domain:         domain,
					SourceType:     c.SourceType,
					Title:          c.Title,
					CompetitorName: c.CompetitorName,
				}
				if ms.SourceType == "" {
					ms.SourceType = provider.SourceOther
				}
				byDomain[domain] = ms
				urlIndex[domain] = make(map[string]int)
				merged = append(merged, ms)
			}
			if ms.Title == "" {
				ms.Title = c.Title
			}
			if ms.CompetitorName == "" {
				ms.CompetitorName = c.CompetitorName
			}
			if !containsName(ms.CitedBy, r.Provider) {
				ms.CitedBy = append(ms.CitedBy, r.Provider)
			}
			ms.CitationCount++

			key := URLKey(c.URL, domain)
			if i, ok := urlIndex[domain][key]; ok {
				ms.URLs[i].CitationCount++
				if ms.URLs[i].Title == "" {
					ms.URLs[i].Title = c.Title
				}
			} else {
				urlIndex[domain][key] = len(ms.URLs)
				ms.URLs = append(ms.URLs, MergedURL{URL: key, Title: c.Title, CitationCount: 1})
			}
		}
	}

	out := make([]MergedSource, 0, len(merged))
	for _, ms := range merged {
		ms.IsVideo = videoDomains[ms.Domain] || ms.SourceType == provider.SourceVideo
		sort.SliceStable(ms.URLs, func(i, j int) bool {
			if ms.URLs[i].CitationCount != ms.URLs[j].CitationCount {
				return ms.URLs[i].CitationCount > ms.URLs[j].CitationCount
			}
			return ms.URLs[i].URL < ms.URLs[j].URL
		})
		out = append(out, *ms)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CitationCount != out[j].CitationCount {
			return out[i].CitationCount > out[j].CitationCount
		}
		return out[i].Domain < out[j].Domain
	})
	return out
}

func containsName(names []provider.Name, n provider.Name) bool {
	for _, x := range names {
		if x == n {
			return true
		}
	}
	return false
}

// RegistrableDomain returns the eTLD+1 of the citation's domain (or URL host
// when the domain is empty), lowercased without "www.". Redirect citations
// whose title is a bare host, as Gemini grounding returns them, are grouped
// under that host. A redirect with no better host than its own stays keyed by
// the full redirect host so it never merges into the redirector's domain.
// Hosts with no registrable part, such as IPs, are returned as-is.
func RegistrableDomain(c provider.Citation) string {
	host := c.Domain
	if IsRedirect(c.URL) {
		redirectHost := provider.HostOf(c.URL)
		switch {
		case looksLikeHost(c.Title):
			host = c.Title
		case host == "" || provider.HostOf(host) == redirectHost:
			return redirectHost
		}
	}
	if host == "" {
		host = c.URL
	}
	host = strings.TrimSuffix(provider.HostOf(strings.TrimSpace(host)), ".")
	if host == "" {
		return ""
	}
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}

func looksLikeHost(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && strings.Contains(s, ".") && !strings.ContainsAny(s, " /")
}

// IsRedirect reports whether rawURL matches a known redirect pattern.
func IsRedirect(rawURL string) bool {
	u := strings.ToLower(rawURL)
	for _, p := range redirectPatterns {
		if strings.Contains(u, p) {
			return true
		}
	}
	return false
}

// URLKey returns the identity of a citation URL within its domain: the
// normalized URL, or the domain when the URL is absent, unparsable or a
// redirect.
func URLKey(rawURL, domain string) string {
	if rawURL == "" || IsRedirect(rawURL) {
		return domain
	}
	if n := NormalizeURL(rawURL); n != "" {
		return n
	}
	return domain
}

// NormalizeURL lowercases scheme and host, drops "www.", fragments, tracking
// parameters and a trailing slash. It returns "" for URLs without a host.
func NormalizeURL(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if port := u.Port(); port != "" && port != "80" && port != "443" {
		host += ":" + port
	}

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || lk == "gclid" || lk == "fbclid" {
			q.Del(k)
		}
	}

	out := scheme + "://" + host + strings.TrimSuffix(u.EscapedPath(), "/")
	if enc := q.Encode(); enc != "" {
		out += "?" + enc
	}
	return out
}
