package repositories

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"bikes-api/models"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(user).Error, "create user")
}

func (r *UserRepository) ByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, errors.Wrapf(translate(err), "get user %d", id)
	}
	return &user, nil
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).First(&user).Error
	if err != nil {
		return nil, errors.Wrap(translate(err), "get user by email")
	}
	return &user, nil
}

func (r *UserRepository) ByResetPasswordToken(ctx context.Context, digest string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("reset_password_token = ?", digest).First(&user).Error
	if err != nil {
		return nil, errors.Wrap(translate(err), "get user by reset token")
	}
	return &user, nil
}

func (r *UserRepository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", models.NormalizeEmail(email)).Count(&n).Error
	return n > 0, errors.Wrap(err, "check email")
}

// Update writes the given columns; nil values clear nullable columns.
func (r *UserRepository) Update(ctx context.Context, user *models.User, updates map[string]interface{}) error {
	err := r.db.WithContext(ctx).Model(user).Updates(updates).Error
	return errors.Wrapf(err, "update user %d", user.ID)
}
