package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dishevent/dishevent-server/models"
)

type GormGuestRepository struct {
	db *gorm.DB
}

func NewGormGuestRepository(db *gorm.DB) *GormGuestRepository {
	return &GormGuestRepository{db: db}
}

// Create locks the parent event row so concurrent RSVPs are counted one at a time.
func (r *GormGuestRepository) Create(ctx context.Context, guest *models.Guest, maxGuests int) error {
	if maxGuests <= 0 || guest.Response != models.RSVPYes {
		return r.db.WithContext(ctx).Create(guest).Error
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ev models.Event
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", guest.EventID).
			First(&ev).Error; err != nil {
			return err
		}

		var attending int64
		if err := tx.Model(&models.Guest{}).
			Where("event_id = ? AND response = ?", guest.EventID, models.RSVPYes).
			Select("COALESCE(SUM(attendees), 0)").
			Scan(&attending).Error; err != nil {
			return err
		}
		if int(attending)+guest.Attendees > maxGuests {
			return ErrCapacityExceeded
		}
		return tx.Create(guest).Error
	})
}

func (r *GormGuestRepository) GetByID(ctx context.Context, eventID, guestID string) (*models.Guest, error) {
	var g models.Guest
	err := r.db.WithContext(ctx).
		Where("id = ? AND event_id = ?", guestID, eventID).
		First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GormGuestRepository) ListByEvent(ctx context.Context, eventID string) ([]models.Guest, error) {
	var guests []models.Guest
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("invited_at ASC").
		Find(&guests).Error
	return guests, err
}

func (r *GormGuestRepository) Save(ctx context.Context, guest *models.Guest) error {
	return r.db.WithContext(ctx).Save(guest).Error
}

func (r *GormGuestRepository) Delete(ctx context.Context, eventID, guestID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND event_id = ?", guestID, eventID).
		Delete(&models.Guest{})
	return res.RowsAffected > 0, res.Error
}
