package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the status of a single subscription record.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentActive  PaymentStatus = "active"
	PaymentPaid    PaymentStatus = "paid"
)

// Valid reports whether the status is a known value.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentActive, PaymentPaid:
		return true
	}
	return false
}

// Settled reports whether the record represents an approved payment.
func (s PaymentStatus) Settled() bool {
	return s == PaymentActive || s == PaymentPaid
}

// Subscription is one billing record for a tenant. A tenant accumulates
// subscription rows over time; the most recently created one is
// authoritative for gating decisions.
type Subscription struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	TenantID uuid.UUID `json:"tenantId" db:"tenant_id"`

	Amount   float64       `json:"amount" db:"amount"`
	Currency string        `json:"currency" db:"currency"`
	Status   PaymentStatus `json:"status" db:"status"`

	BillingPeriodStart *time.Time `json:"billingPeriodStart,omitempty" db:"billing_period_start"`
	BillingPeriodEnd   *time.Time `json:"billingPeriodEnd,omitempty" db:"billing_period_end"`

	// Reference supplied with a payment proof submission, e.g. a bank
	// transfer id. Free-form.
	PaymentReference string `json:"paymentReference,omitempty" db:"payment_reference"`
}
