package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/dishevent/dishevent-server/models"
)

type GormEventRepository struct {
	db *gorm.DB
}

func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

func (r *GormEventRepository) Create(ctx context.Context, event *models.Event) error {
	return r.db.WithContext(ctx).Omit("Guests").Create(event).Error
}

func (r *GormEventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	var e models.Event
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *GormEventRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Event, error) {
	var events []models.Event
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&events).Error
	return events, err
}

func (r *GormEventRepository) Save(ctx context.Context, event *models.Event, expectedVersion *int64) error {
	db := r.db.WithContext(ctx).Omit("Guests")
	if expectedVersion == nil {
		return db.Save(event).Error
	}
	res := db.Model(event).
		Where("version = ?", *expectedVersion).
		Select("*").
		Updates(event)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	return nil
}

func (r *GormEventRepository) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", id).Delete(&models.Guest{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Event{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}

func (r *GormEventRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
