package billing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

const (
	StatusDraft     = "DRAFT"
	StatusSent      = "SENT"
	StatusPaid      = "PAID"
	StatusCancelled = "CANCELLED"
)

// transitions is the invoice lifecycle. Paid and cancelled are terminal.
var transitions = map[string][]string{
	StatusDraft: {StatusSent, StatusCancelled},
	StatusSent:  {StatusPaid, StatusCancelled},
}

// CanTransition reports whether an invoice may move from one status to
// another.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NewInvoiceNumber generates an invoice number: INV-, the date, and a
// 4-digit random suffix. Uniqueness is enforced by the database; callers
// retry on collision.
func NewInvoiceNumber(now time.Time) string {
	return fmt.Sprintf("INV-%s-%04d", now.Format("20060102"), 1000+rand.Intn(9000))
}

type Invoice struct {
	ID            uuid.UUID `json:"id"`
	InvoiceNumber string    `json:"invoiceNumber"`
	PatientID     uuid.UUID `json:"patientId"`
	ServiceDate   time.Time `json:"serviceDate"`

	CPTCodes        []string `json:"cptCodes"`
	CPTDescriptions []string `json:"cptDescriptions"`
	ICD10Codes      []string `json:"icd10Codes,omitempty"`

	Subtotal    float64 `json:"subtotal"`
	Tax         float64 `json:"tax"`
	Discount    float64 `json:"discount"`
	TotalAmount float64 `json:"totalAmount"`

	Status  string     `json:"status"`
	Notes   string     `json:"notes,omitempty"`
	DueDate *time.Time `json:"dueDate,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
