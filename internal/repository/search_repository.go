package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/chirper/internal/model"
)

// CandidateFilter 候选集过滤条件
type CandidateFilter struct {
	// Tokens 已小写化的查询词，任一命中即为候选
	Tokens      []string
	ContentType model.ContentType
	// HashtagOnly 只取包含 '#' 的文档
	HashtagOnly bool
}

// SearchRepository 检索索引存储；排序与相关度在内存中计算，这里只负责候选集
type SearchRepository interface {
	// Upsert 按 (content_type, content_id) 插入或整体替换，返回落库后的记录
	Upsert(ctx context.Context, doc *model.SearchDocument) (*model.SearchDocument, error)
	Get(ctx context.Context, contentType model.ContentType, contentID uint) (*model.SearchDocument, error)
	// Delete 文档不存在时 removed=false
	Delete(ctx context.Context, contentType model.ContentType, contentID uint) (removed bool, err error)
	// SetEngagement 只改热度；文档不存在时 updated=false
	SetEngagement(ctx context.Context, contentType model.ContentType, contentID uint, score float64) (updated bool, err error)
	Candidates(ctx context.Context, f CandidateFilter) ([]model.SearchDocument, error)
	TopByEngagement(ctx context.Context, contentType model.ContentType, limit int) ([]model.SearchDocument, error)
}

type searchRepository struct {
	db *gorm.DB
}

func NewSearchRepository(db *gorm.DB) SearchRepository { return &searchRepository{db: db} }

func (r *searchRepository) Upsert(ctx context.Context, doc *model.SearchDocument) (*model.SearchDocument, error) {
	now := time.Now()
	row := *doc
	row.ID = 0
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now

	// created_at 只在首次插入时写入，重复索引保留原值
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "content_type"}, {Name: "content_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"text", "owner_id", "engagement_score", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, doc.ContentType, doc.ContentID)
}

func (r *searchRepository) Get(ctx context.Context, contentType model.ContentType, contentID uint) (*model.SearchDocument, error) {
	var doc model.SearchDocument
	if err := r.db.WithContext(ctx).
		Where("content_type = ? AND content_id = ?", contentType, contentID).
		First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *searchRepository) Delete(ctx context.Context, contentType model.ContentType, contentID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("content_type = ? AND content_id = ?", contentType, contentID).
		Delete(&model.SearchDocument{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *searchRepository) SetEngagement(ctx context.Context, contentType model.ContentType, contentID uint, score float64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.SearchDocument{}).
		Where("content_type = ? AND content_id = ?", contentType, contentID).
		Updates(map[string]interface{}{"engagement_score": score, "updated_at": time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *searchRepository) Candidates(ctx context.Context, f CandidateFilter) ([]model.SearchDocument, error) {
	q := r.db.WithContext(ctx).Model(&model.SearchDocument{})
	if f.ContentType != "" {
		q = q.Where("content_type = ?", f.ContentType)
	}
	if f.HashtagOnly {
		q = q.Where("text LIKE ?", "%#%")
	}
	if len(f.Tokens) > 0 {
		conds := make([]string, 0, len(f.Tokens))
		args := make([]interface{}, 0, len(f.Tokens))
		for _, tok := range f.Tokens {
			conds = append(conds, `LOWER(text) LIKE ? ESCAPE '\'`)
			args = append(args, "%"+escapeLike(tok)+"%")
		}
		q = q.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
	var docs []model.SearchDocument
	err := q.Find(&docs).Error
	return docs, err
}

func (r *searchRepository) TopByEngagement(ctx context.Context, contentType model.ContentType, limit int) ([]model.SearchDocument, error) {
	var docs []model.SearchDocument
	err := r.db.WithContext(ctx).
		Where("content_type = ?", contentType).
		Order("engagement_score DESC").
		Order("created_at DESC").
		Order("content_id ASC").
		Limit(limit).
		Find(&docs).Error
	return docs, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike 转义 LIKE 通配符，查询词按字面匹配
func escapeLike(s string) string { return likeEscaper.Replace(s) }
