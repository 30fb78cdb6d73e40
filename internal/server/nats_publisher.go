package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/fleetdesk/fleetdesk-server/internal/models"
)

// Subjects for tenant lifecycle and billing events.
const (
	subjectBillingSubmitted = "billing.tenant.%s.submitted"
	subjectBillingApproved  = "billing.tenant.%s.approved"
	subjectTenantActivated  = "tenant.%s.activated"
)

// BillingEvent is the wire form of a billing lifecycle message.
type BillingEvent struct {
	TenantID       uuid.UUID  `json:"tenantId"`
	SubscriptionID uuid.UUID  `json:"subscriptionId"`
	Amount         float64    `json:"amount"`
	Currency       string     `json:"currency"`
	PeriodStart    *time.Time `json:"periodStart,omitempty"`
	PeriodEnd      *time.Time `json:"periodEnd,omitempty"`
	OccurredAt     time.Time  `json:"occurredAt"`
}

// Publisher publishes tenant lifecycle and billing events to NATS. A nil
// publisher is a no-op so the server runs without a broker configured.
type Publisher struct {
	nc *nats.Conn
}

// NewPublisher creates an event publisher
func NewPublisher(nc *nats.Conn) *Publisher {
	return &Publisher{nc: nc}
}

// BillingSubmitted announces a payment proof submission
func (p *Publisher) BillingSubmitted(sub *models.Subscription) {
	p.publish(fmt.Sprintf(subjectBillingSubmitted, sub.TenantID), BillingEvent{
		TenantID:       sub.TenantID,
		SubscriptionID: sub.ID,
		Amount:         sub.Amount,
		Currency:       sub.Currency,
		OccurredAt:     time.Now(),
	})
}

// BillingApproved announces an approved subscription
func (p *Publisher) BillingApproved(sub *models.Subscription) {
	p.publish(fmt.Sprintf(subjectBillingApproved, sub.TenantID), BillingEvent{
		TenantID:       sub.TenantID,
		SubscriptionID: sub.ID,
		Amount:         sub.Amount,
		Currency:       sub.Currency,
		PeriodStart:    sub.BillingPeriodStart,
		PeriodEnd:      sub.BillingPeriodEnd,
		OccurredAt:     time.Now(),
	})
}

// TenantActivated announces a tenant activation
func (p *Publisher) TenantActivated(tenantID uuid.UUID) {
	p.publish(fmt.Sprintf(subjectTenantActivated, tenantID), map[string]interface{}{
		"tenantId":   tenantID,
		"occurredAt": time.Now(),
	})
}

func (p *Publisher) publish(subject string, payload interface{}) {
	if p == nil || p.nc == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("Failed to marshal event")
		return
	}

	if err := p.nc.Publish(subject, data); err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("Failed to publish event")
	}
}
