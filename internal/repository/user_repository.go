package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/chirper/internal/model"
)

// UserRepository 用户资料仓储
type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uint) (*model.User, error)
	// GetForUpdate 读取并锁住用户行，关注该用户的写入与粉丝计数在事务内串行
	GetForUpdate(ctx context.Context, id uint) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// ListByIDs 按 ids 顺序返回，不存在的 id 被跳过
	ListByIDs(ctx context.Context, ids []uint) ([]*model.User, error)
	// Update 整体写回可编辑字段
	Update(ctx context.Context, user *model.User) error
	// IDsByUsernames 批量解析用户名，未知用户名不出现在结果中
	IDsByUsernames(ctx context.Context, usernames []string) (map[string]uint, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository { return &userRepository{db: db} }

func (r *userRepository) WithTx(tx *gorm.DB) UserRepository { return &userRepository{db: tx} }

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) GetForUpdate(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	if err := forUpdate(r.db.WithContext(ctx)).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) ListByIDs(ctx context.Context, ids []uint) ([]*model.User, error) {
	if len(ids) == 0 {
		return []*model.User{}, nil
	}
	var rows []*model.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]*model.User, len(rows))
	for _, u := range rows {
		byID[u.ID] = u
	}
	out := make([]*model.User, 0, len(rows))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).
		Model(user).
		Select("name", "bio", "avatar_url", "location", "website", "updated_at").
		Updates(user).Error
}

func (r *userRepository) IDsByUsernames(ctx context.Context, usernames []string) (map[string]uint, error) {
	out := make(map[string]uint, len(usernames))
	if len(usernames) == 0 {
		return out, nil
	}
	var rows []model.User
	if err := r.db.WithContext(ctx).
		Select("id", "username").
		Where("username IN ?", usernames).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, u := range rows {
		out[u.Username] = u.ID
	}
	return out, nil
}
