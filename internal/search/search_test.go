package search

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/chirper/internal/model"
)

func doc(id uint, text string, score float64, created time.Time) model.SearchDocument {
	return model.SearchDocument{
		ContentType:     model.ContentTweet,
		ContentID:       id,
		Text:            text,
		OwnerID:         1,
		EngagementScore: score,
		CreatedAt:       created,
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"hello", "world"}, Tokenize("  Hello\tWORLD hello "))
	assert.Empty(t, Tokenize("   \n "))
}

func TestRelevance(t *testing.T) {
	toks := Tokenize("go")

	assert.Zero(t, Relevance("nothing here", toks))
	assert.Greater(t, Relevance("go go go", toks), Relevance("go", toks)*0.9, "frequency is rewarded")
	assert.Greater(t, Relevance("i like go", toks), Relevance("i like gopher", toks), "whole word beats substring")
	assert.Equal(t, Relevance("#go rocks", toks), Relevance("go rocks", toks), "hashtag counts as the word")
	assert.Greater(t, Relevance("go now", toks), Relevance("go now and then and later on", toks), "shorter text ranks higher")

	multi := Tokenize("go rust")
	assert.Greater(t, Relevance("go and rust", multi), Relevance("go and java", multi), "more tokens matched is better")
}

func TestMatches(t *testing.T) {
	toks := Tokenize("foo BAR")
	assert.True(t, Matches("a bar b", toks))
	assert.True(t, Matches("FOOD", toks))
	assert.False(t, Matches("baz", toks))
}

func TestSort_EqualRelevanceFallsBackToEngagement(t *testing.T) {
	now := time.Now()
	docs := []model.SearchDocument{
		doc(1, "hello #world", 2.0, now),
		doc(2, "hello there", 5.0, now.Add(-time.Hour)),
	}
	scored := Score(docs, Tokenize("hello"))
	require.Len(t, scored, 2)
	require.Equal(t, scored[0].Relevance, scored[1].Relevance)

	Sort(scored)
	assert.Equal(t, uint(2), scored[0].Doc.ContentID)
	assert.Equal(t, uint(1), scored[1].Doc.ContentID)
}

func TestSort_TieBreaksAreDeterministic(t *testing.T) {
	now := time.Now()
	docs := []model.SearchDocument{
		doc(3, "same text", 1, now.Add(-time.Minute)),
		doc(1, "same text", 1, now),
		doc(2, "same text", 1, now),
	}
	scored := Score(docs, Tokenize("same"))
	Sort(scored)
	ids := []uint{scored[0].Doc.ContentID, scored[1].Doc.ContentID, scored[2].Doc.ContentID}
	assert.Equal(t, []uint{1, 2, 3}, ids, "newest first, then by id")

	// 乱序输入得到相同结果
	reversed := []Scored{scored[2], scored[0], scored[1]}
	Sort(reversed)
	assert.Equal(t, scored, reversed)
}

func TestSortByEngagement(t *testing.T) {
	now := time.Now()
	docs := []model.SearchDocument{doc(1, "a", 1, now), doc(2, "b", 9, now), doc(3, "c", 4, now)}
	SortByEngagement(docs)
	assert.Equal(t, uint(2), docs[0].ContentID)
	assert.Equal(t, uint(3), docs[1].ContentID)
	assert.Equal(t, uint(1), docs[2].ContentID)
}

func TestPaginate_ConcatenationCoversAllItems(t *testing.T) {
	items := make([]int, 23)
	for i := range items {
		items[i] = i
	}
	for perPage := 1; perPage <= 30; perPage++ {
		_, info := Paginate(items, 1, perPage)
		var all []int
		for p := 1; p <= info.Pages; p++ {
			page, _ := Paginate(items, p, perPage)
			all = append(all, page...)
		}
		assert.Equal(t, items, all, fmt.Sprintf("per_page=%d", perPage))
		assert.Equal(t, 23, info.Total)
	}
}

func TestPaginate_OutOfRange(t *testing.T) {
	page, info := Paginate([]int{1, 2, 3}, 5, 2)
	assert.Empty(t, page)
	assert.Equal(t, 2, info.Pages)
	assert.Equal(t, 0, TotalPages(0, 10))
	assert.Equal(t, 3, TotalPages(21, 10))
}

func TestPaginate_HugePageDoesNotOverflow(t *testing.T) {
	page, info := Paginate([]int{1, 2, 3}, math.MaxInt64/10, 20)
	assert.Empty(t, page)
	assert.Equal(t, 1, info.Pages)
	assert.Equal(t, math.MaxInt64/10, info.CurrentPage)

	page, info = Paginate([]int{1, 2, 3}, math.MaxInt64, math.MaxInt64)
	assert.Empty(t, page)
	assert.Equal(t, 1, info.Pages)
}

func TestOffset(t *testing.T) {
	off, ok := Offset(2, 10, 11)
	assert.True(t, ok)
	assert.Equal(t, 10, off)

	_, ok = Offset(2, 10, 10)
	assert.False(t, ok)
	_, ok = Offset(1, 10, 0)
	assert.False(t, ok)
	_, ok = Offset(0, 10, 5)
	assert.False(t, ok)
	_, ok = Offset(math.MaxInt64, 100, math.MaxInt64)
	assert.False(t, ok)
}

func TestHashtags_CaseSensitiveGrouping(t *testing.T) {
	tags := TopHashtags([]string{"hello #world and #World2"}, 10)
	assert.ElementsMatch(t, []TagCount{{Tag: "#world", Count: 1}, {Tag: "#World2", Count: 1}}, tags)

	tags = TopHashtags([]string{"#Go #go", "#go is fun", "#rust"}, 10)
	require.Len(t, tags, 3)
	assert.Equal(t, TagCount{Tag: "#go", Count: 2}, tags[0])
	assert.Equal(t, TagCount{Tag: "#Go", Count: 1}, tags[1])
	assert.Equal(t, TagCount{Tag: "#rust", Count: 1}, tags[2])
}

func TestHashtags_Limit(t *testing.T) {
	tags := TopHashtags([]string{"#a #a #a #b #b #c"}, 2)
	assert.Equal(t, []TagCount{{"#a", 3}, {"#b", 2}}, tags)
	assert.Equal(t, []string{"#x", "#y_1"}, ExtractHashtags("#x, #y_1! # not"))
}
