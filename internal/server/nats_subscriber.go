package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/fleetdesk/fleetdesk-server/internal/models"
	"github.com/fleetdesk/fleetdesk-server/internal/storage"
)

// NATSSubscriber consumes billing-approval events produced by the
// external billing collaborator and applies them to the store: the
// subscription row is settled and the tenant reactivated in one
// transaction. The subscription gate picks the change up on the next
// request since gating always re-reads fresh rows.
type NATSSubscriber struct {
	nc    *nats.Conn
	store storage.Store
	pub   *Publisher
	subs  []*nats.Subscription
}

// NewNATSSubscriber creates NATS subscriber
func NewNATSSubscriber(nc *nats.Conn, store storage.Store, pub *Publisher) *NATSSubscriber {
	return &NATSSubscriber{
		nc:    nc,
		store: store,
		pub:   pub,
		subs:  make([]*nats.Subscription, 0),
	}
}

// Start starts subscriptions and blocks until the context is cancelled
func (s *NATSSubscriber) Start(ctx context.Context) error {
	sub, err := s.nc.Subscribe("billing.tenant.*.approved", s.handleBillingApproved)
	if err != nil {
		return fmt.Errorf("subscribe billing approved: %w", err)
	}
	s.subs = append(s.subs, sub)

	log.Info().
		Int("subscriptions", len(s.subs)).
		Msg("NATS subscriber started")

	<-ctx.Done()

	for _, sub := range s.subs {
		sub.Unsubscribe()
	}

	return ctx.Err()
}

// handleBillingApproved applies an external billing approval
func (s *NATSSubscriber) handleBillingApproved(msg *nats.Msg) {
	var event BillingEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("Invalid billing event payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to begin billing approval transaction")
		return
	}
	defer tx.Rollback()

	// The approval names the row it settles; latest is only a fallback
	// for collaborators that omit the id. Without this an approval racing
	// a newer pending submission would settle the wrong row.
	var sub *models.Subscription
	if event.SubscriptionID != uuid.Nil {
		sub, err = tx.GetSubscription(ctx, event.SubscriptionID)
		if err != nil && err != storage.ErrNotFound {
			log.Error().Err(err).Str("subscription_id", event.SubscriptionID.String()).Msg("Failed to read subscription")
			return
		}
		if sub != nil && sub.TenantID != event.TenantID {
			log.Error().
				Str("subscription_id", event.SubscriptionID.String()).
				Str("tenant_id", event.TenantID.String()).
				Msg("Approval names a subscription of another tenant, ignoring")
			return
		}
	}
	if sub == nil {
		sub, err = tx.GetLatestSubscription(ctx, event.TenantID)
		if err != nil {
			log.Error().Err(err).Str("tenant_id", event.TenantID.String()).Msg("No subscription to approve")
			return
		}
	}

	now := time.Now()
	sub.Status = models.PaymentActive
	if event.PeriodStart != nil {
		sub.BillingPeriodStart = event.PeriodStart
	} else if sub.BillingPeriodStart == nil {
		sub.BillingPeriodStart = &now
	}
	if event.PeriodEnd != nil {
		sub.BillingPeriodEnd = event.PeriodEnd
	}

	if err := tx.UpdateSubscription(ctx, sub); err != nil {
		log.Error().Err(err).Msg("Failed to settle subscription")
		return
	}

	tenant, err := tx.GetTenant(ctx, event.TenantID)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", event.TenantID.String()).Msg("Tenant not found for billing approval")
		return
	}

	wasInactive := !tenant.IsActive
	tenant.IsActive = true
	tenant.SubscriptionStatus = models.SubscriptionActive
	if err := tx.UpdateTenant(ctx, tenant); err != nil {
		log.Error().Err(err).Msg("Failed to activate tenant")
		return
	}

	tenantID := tenant.ID
	if err := tx.CreateEventLog(ctx, &models.EventLog{
		TenantID:    &tenantID,
		Type:        models.EventTypeBillingApproved,
		Level:       models.EventLevelInfo,
		Description: "Subscription approved by billing collaborator",
		Details: models.Variables{
			"subscription_id": sub.ID.String(),
		},
	}); err != nil {
		log.Error().Err(err).Msg("Failed to write billing audit event")
		return
	}

	if err := tx.Commit(); err != nil {
		log.Error().Err(err).Msg("Failed to commit billing approval")
		return
	}

	if wasInactive {
		s.pub.TenantActivated(tenant.ID)
	}

	log.Info().
		Str("tenant_id", tenant.ID.String()).
		Str("subscription_id", sub.ID.String()).
		Msg("Billing approval applied")
}
