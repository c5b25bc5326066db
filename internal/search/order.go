package search

import (
	"sort"

	"github.com/d60-Lab/chirper/internal/model"
)

// Scored 带相关度的候选文档
type Scored struct {
	Doc       model.SearchDocument
	Relevance float64
}

// Score keeps the documents that match tokens and attaches their relevance.
func Score(docs []model.SearchDocument, tokens []string) []Scored {
	out := make([]Scored, 0, len(docs))
	for _, d := range docs {
		r := Relevance(d.Text, tokens)
		if r <= 0 {
			continue
		}
		out = append(out, Scored{Doc: d, Relevance: r})
	}
	return out
}

// Sort 相关度降序 -> 热度降序 -> 创建时间新到旧 -> (类型, ID) 升序
func Sort(items []Scored) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Relevance != b.Relevance {
			return a.Relevance > b.Relevance
		}
		return lessByEngagement(a.Doc, b.Doc)
	})
}

// SortByEngagement 用于 trending：只看热度，不看文本
func SortByEngagement(docs []model.SearchDocument) {
	sort.SliceStable(docs, func(i, j int) bool { return lessByEngagement(docs[i], docs[j]) })
}

func lessByEngagement(a, b model.SearchDocument) bool {
	if a.EngagementScore != b.EngagementScore {
		return a.EngagementScore > b.EngagementScore
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	if a.ContentType != b.ContentType {
		return a.ContentType < b.ContentType
	}
	return a.ContentID < b.ContentID
}
