package repositories

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"bikes-api/models"
)

type BikeRepository struct {
	db *gorm.DB
}

func NewBikeRepository(db *gorm.DB) *BikeRepository {
	return &BikeRepository{db: db}
}

// List returns every bike, oldest first.
func (r *BikeRepository) List(ctx context.Context) ([]models.Bike, error) {
	bikes := []models.Bike{}
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&bikes).Error; err != nil {
		return nil, errors.Wrap(err, "list bikes")
	}
	return bikes, nil
}

func (r *BikeRepository) Get(ctx context.Context, id uint) (*models.Bike, error) {
	var bike models.Bike
	if err := r.db.WithContext(ctx).First(&bike, id).Error; err != nil {
		return nil, errors.Wrapf(translate(err), "get bike %d", id)
	}
	return &bike, nil
}

func (r *BikeRepository) Create(ctx context.Context, bike *models.Bike) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(bike).Error, "create bike")
}

// Update overwrites the editable columns of bike with the values it carries.
func (r *BikeRepository) Update(ctx context.Context, bike *models.Bike) error {
	err := r.db.WithContext(ctx).Model(bike).Select("brand", "model", "model_year", "user_id", "updated_at").Updates(bike).Error
	return errors.Wrapf(err, "update bike %d", bike.ID)
}

func (r *BikeRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Bike{}, id)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "delete bike %d", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "delete bike %d", id)
	}
	return nil
}

func (r *BikeRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Bike{}).Count(&n).Error
	return n, errors.Wrap(err, "count bikes")
}
