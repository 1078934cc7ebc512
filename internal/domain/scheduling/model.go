package scheduling

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusScheduled  = "SCHEDULED"
	StatusConfirmed  = "CONFIRMED"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusCancelled  = "CANCELLED"
	StatusNoShow     = "NO_SHOW"
)

var statuses = map[string]bool{
	StatusScheduled:  true,
	StatusConfirmed:  true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusCancelled:  true,
	StatusNoShow:     true,
}

func ValidStatus(s string) bool { return statuses[s] }

// BlocksSlot reports whether an appointment in this status keeps the
// provider's slot occupied. Cancelled and no-show appointments free the
// slot for rebooking.
func BlocksSlot(status string) bool {
	return status != StatusCancelled && status != StatusNoShow
}

var types = map[string]bool{
	"CONSULTATION": true,
	"FOLLOW_UP":    true,
	"PROCEDURE":    true,
	"TELEMEDICINE": true,
	"EMERGENCY":    true,
	"VACCINATION":  true,
	"CHECKUP":      true,
	"LAB_TEST":     true,
	"IMAGING":      true,
}

func ValidType(t string) bool { return types[t] }

const (
	MinDuration = 15
	MaxDuration = 240
)

type Appointment struct {
	ID         uuid.UUID `json:"id"`
	PatientID  uuid.UUID `json:"patientId"`
	ProviderID uuid.UUID `json:"providerId"`

	// AppointmentDate holds the calendar day; AppointmentTime is the slot
	// in HH:MM. Kept separate so the conflict check is a plain equality
	// on both columns.
	AppointmentDate time.Time `json:"appointmentDate"`
	AppointmentTime string    `json:"appointmentTime"`
	Duration        int       `json:"duration"`

	Type           string `json:"type"`
	Status         string `json:"status"`
	Reason         string `json:"reason"`
	Notes          string `json:"notes"`
	IsTelemedicine bool   `json:"isTelemedicine"`
	ReminderSent   bool   `json:"reminderSent"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
