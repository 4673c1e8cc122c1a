package publish

import (
	"fmt"
	"sort"
	"strings"

	"github.com/everstacklabs/brandscope/internal/aggregate"
	"github.com/everstacklabs/brandscope/internal/export"
	"github.com/everstacklabs/brandscope/internal/provider"
	"github.com/everstacklabs/brandscope/internal/sources"
)

// maxPlaylist caps the video playlist in the summary.
const maxPlaylist = 20

// MinReadySuccessRate is the overall success rate below which a report PR
// is opened as a draft.
const MinReadySuccessRate = 0.8

// Draft reports whether a run should be published as a draft PR: the overall
// success rate is low or some provider was skipped.
func Draft(rep aggregate.Report) bool {
	if rep.Overall.SuccessRate < MinReadySuccessRate {
		return true
	}
	for _, p := range rep.Providers {
		if p.Skipped {
			return true
		}
	}
	return false
}

// RenderSummary renders the markdown summary used as the report README and
// PR body.
func RenderSummary(runID string, rep aggregate.Report, rec aggregate.Recommendations, qs []export.QuestionSources) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Benchmark run `%s`\n\n", runID)
	fmt.Fprintf(&b, "**%d** calls, **%.1f%%** success, **%.1f%%** valid, total cost **$%.4f**\n\n",
		rep.Overall.Questions, rep.Overall.SuccessRate*100, rep.Overall.ValidRate*100, rep.Overall.TotalCost)

	b.WriteString("| Provider | Model | Calls | Success | Valid | Quality | Avg latency (ms) | Avg cost |\n")
	b.WriteString("|----------|-------|-------|---------|-------|---------|------------------|----------|\n")
	for _, p := range rep.Providers {
		name := string(p.Provider)
		if p.Skipped {
			name += " (skipped)"
		}
		fmt.Fprintf(&b, "| %s | `%s` | %d | %.1f%% | %.1f%% | %.2f | %.0f | $%.6f |\n",
			name, p.Model, p.Questions, p.SuccessRate*100, p.ValidRate*100, p.AvgQualityScore, p.AvgLatencyMs, p.AvgCost)
	}
	b.WriteString("\n")

	if rec.BestQuality != nil || rec.BestCost != nil || rec.Fastest != nil {
		b.WriteString("### Recommendations\n\n")
		writePick(&b, "Best quality", rec.BestQuality, "%.2f")
		writePick(&b, "Best cost", rec.BestCost, "$%.6f")
		writePick(&b, "Fastest", rec.Fastest, "%.0f ms")
		b.WriteString("\n")
	}

	if failures := failureCounts(rep); len(failures) > 0 {
		b.WriteString("<details>\n<summary>Failures</summary>\n\n")
		b.WriteString("| Provider | Status | Count |\n")
		b.WriteString("|----------|--------|-------|\n")
		for _, f := range failures {
			fmt.Fprintf(&b, "| %s | %s | %d |\n", f.provider, f.status, f.count)
		}
		b.WriteString("\n</details>\n\n")
	}

	if domains := topDomains(qs, 10); len(domains) > 0 {
		b.WriteString("### Most cited domains\n\n")
		for _, d := range domains {
			fmt.Fprintf(&b, "- `%s` (%d)\n", d.domain, d.count)
		}
		b.WriteString("\n")
	}

	if videos := playlist(qs, maxPlaylist); len(videos) > 0 {
		b.WriteString("### Video sources\n\n")
		for _, v := range videos {
			if v.Title != "" {
				fmt.Fprintf(&b, "- [%s](%s)\n", v.Title, v.URL)
			} else {
				fmt.Fprintf(&b, "- <%s>\n", v.URL)
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

// playlist collects the URLs of video sources across questions, first seen
// first, without duplicates.
func playlist(qs []export.QuestionSources, n int) []sources.MergedURL {
	seen := make(map[string]bool)
	var out []sources.MergedURL
	for _, q := range qs {
		for _, ms := range sources.Videos(q.Sources) {
			for _, u := range ms.URLs {
				if seen[u.URL] {
					continue
				}
				seen[u.URL] = true
				if u.Title == "" {
					u.Title = ms.Title
				}
				out = append(out, u)
				if len(out) == n {
					return out
				}
			}
		}
	}
	return out
}

func writePick(b *strings.Builder, label string, p *aggregate.Pick, format string) {
	if p == nil {
		fmt.Fprintf(b, "- %s: none\n", label)
		return
	}
	fmt.Fprintf(b, "- %s: %s (`%s`), "+format+"\n", label, p.Provider, p.Model, p.Value)
}

type failureCount struct {
	provider string
	status   string
	count    int
}

func failureCounts(rep aggregate.Report) []failureCount {
	var out []failureCount
	for _, p := range rep.Providers {
		for _, st := range provider.Statuses {
			if n := p.Statuses[st]; st != provider.StatusOK && n > 0 {
				out = append(out, failureCount{provider: string(p.Provider), status: string(st), count: n})
			}
		}
	}
	return out
}

type domainCount struct {
	domain string
	count  int
}

func topDomains(qs []export.QuestionSources, n int) []domainCount {
	counts := make(map[string]int)
	for _, q := range qs {
		for _, s := range q.Sources {
			counts[s.Domain] += s.CitationCount
		}
	}
	out := make([]domainCount, 0, len(counts))
	for d, c := range counts {
		out = append(out, domainCount{domain: d, count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].domain < out[j].domain
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
