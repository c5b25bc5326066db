package search

import (
	"regexp"
	"sort"
)

var hashtagPattern = regexp.MustCompile(`#\w+`)

// TagCount 话题及其出现次数
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// ExtractHashtags returns every hashtag occurrence in order, including repeats.
// Tags keep their original case.
func ExtractHashtags(text string) []string {
	return hashtagPattern.FindAllString(text, -1)
}

// TopHashtags counts occurrences across texts. Grouping is case-sensitive:
// "#Go" and "#go" are separate tags. Ties sort by tag.
func TopHashtags(texts []string, limit int) []TagCount {
	counts := map[string]int{}
	for _, t := range texts {
		for _, tag := range ExtractHashtags(t) {
			counts[tag]++
		}
	}
	out := make([]TagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, TagCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
