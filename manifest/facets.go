package manifest

import (
	"sort"

	"reddit-archive/pkg/archive"
)

// Facets computes frequency tables over the completed manifest for the
// site's filter panel. Each table is sorted by count descending, then name
// ascending, so repeated runs over the same manifest are byte-identical.
func Facets(entries []archive.ManifestEntry) map[string][]archive.FacetCount {
	counts := map[string]map[string]int{
		"subreddit":  {},
		"author":     {},
		"flair":      {},
		"domain":     {},
		"media_type": {},
	}

	for _, e := range entries {
		bump(counts["subreddit"], e.Subreddit)
		bump(counts["author"], e.Author)
		bump(counts["flair"], e.Flair)
		bump(counts["domain"], e.LinkDomain)
		bump(counts["media_type"], e.MediaType)
	}

	facets := make(map[string][]archive.FacetCount, len(counts))
	for facet, values := range counts {
		list := make([]archive.FacetCount, 0, len(values))
		for name, count := range values {
			list = append(list, archive.FacetCount{Name: name, Count: count})
		}
		sort.Slice(list, func(i, j int) bool {
			if list[i].Count != list[j].Count {
				return list[i].Count > list[j].Count
			}
			return list[i].Name < list[j].Name
		})
		facets[facet] = list
	}
	return facets
}

func bump(counts map[string]int, value string) {
	if value == "" {
		return
	}
	counts[value]++
}
