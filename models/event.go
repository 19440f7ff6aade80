package models

import (
	"encoding/json"
	"time"
)

type EventKind string

const (
	KindWedding   EventKind = "wedding"
	KindBirthday  EventKind = "birthday"
	KindCorporate EventKind = "corporate"
)

func (k EventKind) Valid() bool {
	switch k {
	case KindWedding, KindBirthday, KindCorporate:
		return true
	}
	return false
}

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"

	StatusActive    = "active"
	StatusDraft     = "draft"
	StatusCompleted = "completed"

	PlanFree    = "free"
	PlanPremium = "premium"

	DefaultTheme = "classic"
)

// DateLayout is the ISO calendar date stored in Event.Date.
const DateLayout = "2006-01-02"

type Event struct {
	ID            string       `gorm:"column:id;primaryKey;size:36" json:"id"`
	OwnerID       string       `gorm:"column:owner_id;size:128;not null;index" json:"ownerId"`
	Kind          EventKind    `gorm:"column:kind;size:20;not null" json:"eventType" validate:"oneof=wedding birthday corporate"`
	Name          string       `gorm:"column:name;size:255;not null" json:"name" validate:"required,max=255"`
	Description   string       `gorm:"column:description;type:text" json:"description"`
	Date          string       `gorm:"column:date;size:10" json:"date" validate:"omitempty,datetime=2006-01-02"`
	MaxGuests     int          `gorm:"column:max_guests;default:0" json:"maxGuests" validate:"min=0"`
	Visibility    string       `gorm:"column:visibility;size:10;default:'public'" json:"visibility" validate:"oneof=public private"`
	Theme         string       `gorm:"column:theme;size:50" json:"theme" validate:"max=50"`
	Status        string       `gorm:"column:status;size:20;default:'active'" json:"status" validate:"oneof=active draft completed"`
	Plan          string       `gorm:"column:plan;size:20;default:'free'" json:"plan" validate:"oneof=free premium"`
	CoverImageURL string       `gorm:"column:cover_image_url;type:text" json:"coverImage,omitempty"`
	Details       EventDetails `gorm:"column:details;type:jsonb;serializer:json" json:"details"`
	Protection    Protection   `gorm:"embedded" json:"-"`
	Version       int64        `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt     time.Time    `gorm:"column:created_at;autoCreateTime:false" json:"createdAt"`
	UpdatedAt     time.Time    `gorm:"column:updated_at;autoUpdateTime:false" json:"updatedAt"`

	Guests []Guest `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Event) TableName() string {
	return "events"
}

// Protection holds the password gate. Only the bcrypt hash is persisted.
type Protection struct {
	PasswordProtected bool   `gorm:"column:password_protected;default:false"`
	PasswordHash      string `gorm:"column:password_hash;size:255"`
}

// IsGated reports whether viewers other than the owner must unlock the event.
func (e *Event) IsGated() bool {
	return e.Protection.PasswordProtected && e.Protection.PasswordHash != ""
}

// ParsedDate returns the calendar date at midnight UTC.
func (e *Event) ParsedDate() (time.Time, bool) {
	if e.Date == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, e.Date)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// MarshalJSON adds passwordProtected; the hash itself never leaves the server.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	return json.Marshal(struct {
		alias
		PasswordProtected bool `json:"passwordProtected"`
	}{alias(e), e.Protection.PasswordProtected})
}
