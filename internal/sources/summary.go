package sources

import "github.com/everstacklabs/brandscope/internal/provider"

// Summary is the source distribution of one merged list.
type Summary struct {
	Sources   int                         `json:"sources"`
	Citations int                         `json:"citations"`
	Videos    int                         `json:"videos"`
	ByType    map[provider.SourceType]int `json:"byType"`
	// ByProvider counts the distinct sources each provider cited.
	ByProvider map[provider.Name]int `json:"byProvider"`
}

// Summarize computes the source distribution of merged.
func Summarize(merged []MergedSource) Summary {
	s := Summary{
		ByType:     make(map[provider.SourceType]int),
		ByProvider: make(map[provider.Name]int),
	}
	for _, ms := range merged {
		s.Sources++
		s.Citations += ms.CitationCount
		s.ByType[ms.SourceType] += ms.CitationCount
		if ms.IsVideo {
			s.Videos++
		}
		for _, p := range ms.CitedBy {
			s.ByProvider[p]++
		}
	}
	return s
}

// Videos returns the video-hosted sources in merge order, for playlist
// rendering.
func Videos(merged []MergedSource) []MergedSource {
	var out []MergedSource
	for _, ms := range merged {
		if ms.IsVideo {
			out = append(out, ms)
		}
	}
	return out
}
