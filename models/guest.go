package models

import "time"

// RSVPResponse is the guest's answer to an invitation.
type RSVPResponse string

const (
	RSVPYes   RSVPResponse = "yes"
	RSVPNo    RSVPResponse = "no"
	RSVPMaybe RSVPResponse = "maybe"
)

type Guest struct {
	ID          string       `gorm:"column:id;primaryKey;size:36" json:"id"`
	EventID     string       `gorm:"column:event_id;size:36;not null;index" json:"eventId"`
	Name        string       `gorm:"column:name;size:255;not null" json:"name" validate:"required,max=255"`
	Email       string       `gorm:"column:email;size:255;not null" json:"email" validate:"required,email,max=255"`
	Phone       *string      `gorm:"column:phone;size:50" json:"phone,omitempty" validate:"omitempty,max=50"`
	Response    RSVPResponse `gorm:"column:response;size:10;not null" json:"response" validate:"oneof=yes no maybe"`
	Attendees   int          `gorm:"column:attendees;not null;default:1" json:"attendees" validate:"min=1"`
	Note        *string      `gorm:"column:note;type:text" json:"note,omitempty"`
	InvitedAt   time.Time    `gorm:"column:invited_at" json:"invitedAt"`
	RespondedAt *time.Time   `gorm:"column:responded_at" json:"respondedAt,omitempty"`
}

func (Guest) TableName() string {
	return "guests"
}

// AttendingCount sums attendees of guests who answered yes.
func AttendingCount(guests []Guest) int {
	total := 0
	for _, g := range guests {
		if g.Response == RSVPYes {
			total += g.Attendees
		}
	}
	return total
}
