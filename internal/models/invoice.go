package models

import (
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus represents the payment state of an invoice.
type InvoiceStatus string

const (
	InvoiceDraft  InvoiceStatus = "draft"
	InvoiceIssued InvoiceStatus = "issued"
	InvoicePaid   InvoiceStatus = "paid"
	InvoiceVoided InvoiceStatus = "voided"
)

// Invoice is a tenant-owned customer invoice record.
type Invoice struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	TenantID uuid.UUID `json:"tenantId" db:"tenant_id"`

	Number       string        `json:"number" db:"number"`
	CustomerName string        `json:"customerName" db:"customer_name"`
	Amount       float64       `json:"amount" db:"amount"`
	Currency     string        `json:"currency" db:"currency"`
	Status       InvoiceStatus `json:"status" db:"status"`

	IssuedAt *time.Time `json:"issuedAt,omitempty" db:"issued_at"`
}
