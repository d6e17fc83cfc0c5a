package repository

import (
	"context"

	"github.com/shinyyama/support-chat-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	FindByUID(ctx context.Context, uid string) (*model.User, error)
	Upsert(ctx context.Context, u *model.User) error
	// ListByTargetRole resolves a broadcast audience. "all" means every
	// member and owner; admins are never broadcast recipients.
	ListByTargetRole(ctx context.Context, targetRole string) ([]model.User, error)
	SetDB(db *gorm.DB)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) SetDB(db *gorm.DB) {
	r.db = db
}

func (r *userRepository) FindByUID(ctx context.Context, uid string) (*model.User, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var u model.User
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) Upsert(ctx context.Context, u *model.User) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "uid"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"display_name": u.DisplayName,
			"push_token":   u.PushToken,
		}),
	}).Create(u).Error
}

func (r *userRepository) ListByTargetRole(ctx context.Context, targetRole string) ([]model.User, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	q := r.db.WithContext(ctx).Model(&model.User{})
	switch targetRole {
	case model.TargetRoleAll:
		q = q.Where("role IN ?", []string{model.RoleMember, model.RoleOwner})
	default:
		q = q.Where("role = ?", targetRole)
	}
	var list []model.User
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
