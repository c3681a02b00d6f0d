package services

import (
	"context"
	"errors"
	"time"

	"chatserver/internal/models"
	"chatserver/internal/utils"
	"gorm.io/gorm"
)

// UserService owns user records. Soft-deleted rows are hidden by default;
// every read takes an explicit includeDeleted flag instead of relying on a
// query interceptor.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) scope(ctx context.Context, includeDeleted bool) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.User{})
	if !includeDeleted {
		q = q.Where("deleted_at IS NULL")
	}
	return q
}

func (s *UserService) FindByID(ctx context.Context, id uint, includeDeleted bool) (*models.User, error) {
	var user models.User
	err := s.scope(ctx, includeDeleted).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserService) FindByEmail(ctx context.Context, email string, includeDeleted bool) (*models.User, error) {
	var user models.User
	err := s.scope(ctx, includeDeleted).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserService) FindByUsername(ctx context.Context, username string, includeDeleted bool) (*models.User, error) {
	var user models.User
	err := s.scope(ctx, includeDeleted).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create registers a new user. Password hashing happens here, as an explicit
// step of the use case, so it can be tested without touching storage hooks.
func (s *UserService) Create(ctx context.Context, username, email, password string) (*models.User, error) {
	if _, err := s.FindByEmail(ctx, email, false); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if _, err := s.FindByUsername(ctx, username, false); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username: username,
		Email:    email,
		Password: hash,
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns active users excluding the caller, paginated.
func (s *UserService) List(ctx context.Context, excludeUserID uint, limit, offset int) ([]models.User, int64, error) {
	base := s.scope(ctx, false).Where("is_active = ? AND id <> ?", true, excludeUserID)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := base.Session(&gorm.Session{})
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	var users []models.User
	if err := q.Order("id").Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// ListActive returns every active, non-deleted user. The planning tick uses
// this to form auto-message pairs.
func (s *UserService) ListActive(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.scope(ctx, false).Where("is_active = ?", true).Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// AllExistAndActive reports whether every id maps to an active, non-deleted
// user. An empty input is trivially true.
func (s *UserService) AllExistAndActive(ctx context.Context, ids []uint) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	var count int64
	err := s.scope(ctx, false).
		Where("id IN ? AND is_active = ?", ids, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count == int64(len(ids)), nil
}

// UserUpdate carries the optional profile fields a user may change.
type UserUpdate struct {
	Username *string
	Email    *string
	Password *string
}

// Update applies a partial profile update. A new password is hashed here.
func (s *UserService) Update(ctx context.Context, id uint, upd UserUpdate) (*models.User, error) {
	values := map[string]interface{}{}
	if upd.Username != nil {
		if other, err := s.FindByUsername(ctx, *upd.Username, false); err == nil && other.ID != id {
			return nil, ErrUsernameTaken
		} else if err != nil && !errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		values["username"] = *upd.Username
	}
	if upd.Email != nil {
		if other, err := s.FindByEmail(ctx, *upd.Email, false); err == nil && other.ID != id {
			return nil, ErrEmailTaken
		} else if err != nil && !errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		values["email"] = *upd.Email
	}
	if upd.Password != nil {
		hash, err := utils.HashPassword(*upd.Password)
		if err != nil {
			return nil, err
		}
		values["password"] = hash
	}

	if len(values) > 0 {
		res := s.scope(ctx, false).Where("id = ?", id).Updates(values)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrUserNotFound
		}
	}
	return s.FindByID(ctx, id, false)
}

// SoftDelete marks a user deleted without removing the row.
func (s *UserService) SoftDelete(ctx context.Context, id uint, deletedBy uint) error {
	now := time.Now()
	res := s.scope(ctx, false).Where("id = ?", id).Updates(map[string]interface{}{
		"deleted_at": now,
		"deleted_by": deletedBy,
		"is_active":  false,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
