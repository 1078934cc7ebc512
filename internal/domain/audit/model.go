package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action identifies what an audit entry records.
type Action string

const (
	ActionLogin              Action = "LOGIN"
	ActionLogout             Action = "LOGOUT"
	ActionFailedLogin        Action = "FAILED_LOGIN"
	ActionViewPatient        Action = "VIEW_PATIENT"
	ActionCreatePatient      Action = "CREATE_PATIENT"
	ActionEditPatient        Action = "EDIT_PATIENT"
	ActionDeletePatient      Action = "DELETE_PATIENT"
	ActionCreateAppointment  Action = "CREATE_APPOINTMENT"
	ActionEditAppointment    Action = "EDIT_APPOINTMENT"
	ActionCreatePrescription Action = "CREATE_PRESCRIPTION"
	ActionRecordVitals       Action = "RECORD_VITALS"
	ActionCreateInvoice      Action = "CREATE_INVOICE"
	ActionCreateUser         Action = "CREATE_USER"
	ActionUnauthorized       Action = "UNAUTHORIZED_ACCESS"
)

// Entry is a single row in the append-only audit trail. UserID is nil for
// events with no authenticated actor, such as failed logins for unknown
// accounts; those render as "SYSTEM".
type Entry struct {
	ID         uuid.UUID  `json:"id"`
	UserID     *uuid.UUID `json:"user_id"`
	Action     Action     `json:"action"`
	EntityType string     `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	Details    string     `json:"details"`
	// Metadata holds optional structured context for the event, such as the
	// method and route of a denied request. Stored as JSONB.
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	IPAddress string                 `json:"ip_address"`
	UserAgent string                 `json:"user_agent"`
	CreatedAt time.Time              `json:"created_at"`
}

// SystemActor is the display name used when an entry has no actor.
const SystemActor = "SYSTEM"

// ActorLabel returns the entry's actor for display.
func (e *Entry) ActorLabel() string {
	if e.UserID == nil {
		return SystemActor
	}
	return e.UserID.String()
}

// Anomaly flags a suspicious access pattern found in the audit trail.
type Anomaly struct {
	UserID      uuid.UUID `json:"user_id"`
	Action      Action    `json:"action"`
	Count       int       `json:"count"`
	Window      string    `json:"window"`
	Description string    `json:"description"`
}
