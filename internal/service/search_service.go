package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/d60-Lab/chirper/config"
	"github.com/d60-Lab/chirper/internal/model"
	"github.com/d60-Lab/chirper/internal/repository"
	"github.com/d60-Lab/chirper/internal/search"
)

// IndexRequest 索引请求；EngagementScore 省略时按 0 处理
type IndexRequest struct {
	ContentType     model.ContentType `json:"content_type" binding:"required,content_type"`
	ContentID       uint              `json:"content_id" binding:"required"`
	Text            string            `json:"text" binding:"required"`
	OwnerID         uint              `json:"owner_id" binding:"required"`
	EngagementScore *float64          `json:"engagement_score" binding:"omitempty,gte=0"`
	CreatedAt       *time.Time        `json:"created_at"`
}

// SearchQuery Type 为空或 "all" 表示不过滤
type SearchQuery struct {
	Query   string
	Type    string
	Page    int
	PerPage int
}

// SearchHit 命中文档及其相关度
type SearchHit struct {
	model.SearchDocument
	Relevance float64 `json:"relevance"`
}

// SearchPage 一页结果；分页字段与 results 平铺在同一层
type SearchPage struct {
	Query   string      `json:"query"`
	Type    string      `json:"type"`
	Results []SearchHit `json:"results"`
	search.PageInfo
}

type SearchService interface {
	Index(ctx context.Context, req IndexRequest) (*model.SearchDocument, error)
	Remove(ctx context.Context, contentType model.ContentType, contentID uint) error
	// Rescore 只更新热度，文档不存在返回 ErrNotFound
	Rescore(ctx context.Context, contentType model.ContentType, contentID uint, score float64) error
	Search(ctx context.Context, q SearchQuery) (*SearchPage, error)
	Trending(ctx context.Context, contentType model.ContentType, limit int) ([]model.SearchDocument, error)
	Hashtags(ctx context.Context, query string, limit int) ([]search.TagCount, error)
}

type searchService struct {
	repo repository.SearchRepository
	cfg  config.SearchConfig
}

func NewSearchService(repo repository.SearchRepository, cfg config.SearchConfig) SearchService {
	return &searchService{repo: repo, cfg: cfg}
}

func (s *searchService) Index(ctx context.Context, req IndexRequest) (*model.SearchDocument, error) {
	if !req.ContentType.Valid() {
		return nil, invalidf("content_type must be tweet or profile")
	}
	if req.ContentID == 0 || req.OwnerID == 0 {
		return nil, invalidf("content_id and owner_id are required")
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, invalidf("text is required")
	}
	if utf8.RuneCountInString(req.Text) > s.cfg.MaxTextLength {
		return nil, invalidf("text exceeds %d characters", s.cfg.MaxTextLength)
	}
	score := 0.0
	if req.EngagementScore != nil {
		score = *req.EngagementScore
	}
	if score < 0 {
		return nil, invalidf("engagement_score must be non-negative")
	}

	doc := &model.SearchDocument{
		ContentType:     req.ContentType,
		ContentID:       req.ContentID,
		Text:            req.Text,
		OwnerID:         req.OwnerID,
		EngagementScore: score,
	}
	if req.CreatedAt != nil {
		doc.CreatedAt = *req.CreatedAt
	}
	saved, err := s.repo.Upsert(ctx, doc)
	if err != nil {
		return nil, storeErr(err, "document")
	}
	return saved, nil
}

func (s *searchService) Remove(ctx context.Context, contentType model.ContentType, contentID uint) error {
	if !contentType.Valid() {
		return invalidf("content_type must be tweet or profile")
	}
	removed, err := s.repo.Delete(ctx, contentType, contentID)
	if err != nil {
		return storeErr(err, "document")
	}
	if !removed {
		return notFoundf("document %s/%d not found", contentType, contentID)
	}
	return nil
}

func (s *searchService) Rescore(ctx context.Context, contentType model.ContentType, contentID uint, score float64) error {
	if score < 0 {
		return invalidf("engagement_score must be non-negative")
	}
	updated, err := s.repo.SetEngagement(ctx, contentType, contentID, score)
	if err != nil {
		return storeErr(err, "document")
	}
	if !updated {
		return notFoundf("document %s/%d not found", contentType, contentID)
	}
	return nil
}

func (s *searchService) parseType(raw string) (model.ContentType, error) {
	switch raw {
	case "", "all":
		return "", nil
	}
	ct := model.ContentType(raw)
	if !ct.Valid() {
		return "", invalidf("type must be tweet, profile or all")
	}
	return ct, nil
}

func (s *searchService) Search(ctx context.Context, q SearchQuery) (*SearchPage, error) {
	tokens := search.Tokenize(q.Query)
	if len(tokens) == 0 {
		return nil, invalidf("query is required")
	}
	ct, err := s.parseType(q.Type)
	if err != nil {
		return nil, err
	}
	perPage, err := clampPage(q.Page, q.PerPage, s.cfg.MaxPerPage)
	if err != nil {
		return nil, err
	}

	docs, err := s.repo.Candidates(ctx, repository.CandidateFilter{Tokens: tokens, ContentType: ct})
	if err != nil {
		return nil, storeErr(err, "documents")
	}
	scored := search.Score(docs, tokens)
	search.Sort(scored)

	hits := make([]SearchHit, len(scored))
	for i, sc := range scored {
		hits[i] = SearchHit{SearchDocument: sc.Doc, Relevance: sc.Relevance}
	}
	pageHits, info := search.Paginate(hits, q.Page, perPage)

	typ := string(ct)
	if typ == "" {
		typ = "all"
	}
	return &SearchPage{
		Query:    strings.TrimSpace(q.Query),
		Type:     typ,
		Results:  pageHits,
		PageInfo: info,
	}, nil
}

func (s *searchService) clampLimit(limit int) (int, error) {
	if limit == 0 {
		return s.cfg.DefaultLimit, nil
	}
	if limit < 0 {
		return 0, invalidf("limit must be positive")
	}
	if limit > s.cfg.MaxLimit {
		return s.cfg.MaxLimit, nil
	}
	return limit, nil
}

func (s *searchService) Trending(ctx context.Context, contentType model.ContentType, limit int) ([]model.SearchDocument, error) {
	if contentType == "" {
		contentType = model.ContentTweet
	}
	if !contentType.Valid() {
		return nil, invalidf("type must be tweet or profile")
	}
	n, err := s.clampLimit(limit)
	if err != nil {
		return nil, err
	}
	docs, err := s.repo.TopByEngagement(ctx, contentType, n)
	if err != nil {
		return nil, storeErr(err, "documents")
	}
	search.SortByEngagement(docs)
	return docs, nil
}

func (s *searchService) Hashtags(ctx context.Context, query string, limit int) ([]search.TagCount, error) {
	tokens := search.Tokenize(query)
	if len(tokens) == 0 {
		return nil, invalidf("query is required")
	}
	n, err := s.clampLimit(limit)
	if err != nil {
		return nil, err
	}
	docs, err := s.repo.Candidates(ctx, repository.CandidateFilter{
		Tokens:      tokens,
		ContentType: model.ContentTweet,
		HashtagOnly: true,
	})
	if err != nil {
		return nil, storeErr(err, "documents")
	}
	texts := make([]string, 0, len(docs))
	for _, d := range docs {
		if search.Matches(d.Text, tokens) {
			texts = append(texts, d.Text)
		}
	}
	return search.TopHashtags(texts, n), nil
}

// clampPage 校验页码并把 per_page 截到上限
func clampPage(page, perPage, maxPerPage int) (int, error) {
	if page < 1 {
		return 0, invalidf("page must be >= 1")
	}
	if perPage < 1 {
		return 0, invalidf("per_page must be >= 1")
	}
	if maxPerPage > 0 && perPage > maxPerPage {
		perPage = maxPerPage
	}
	return perPage, nil
}
