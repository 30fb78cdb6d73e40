// Package billing computes a tenant's subscription access state. The
// computation is pure: it reads already-fetched tenant and subscription
// rows and never mutates anything. Mutation (activation, renewal) is the
// billing-approval collaborator's job; callers must re-fetch fresh rows
// for every gating check because billing state can change between
// requests.
package billing

import (
	"time"

	"github.com/fleetdesk/fleetdesk-server/internal/models"
)

// State is a tenant's computed subscription access tier.
type State string

const (
	StateNoSubscription State = "NO_SUBSCRIPTION"
	StateTrialing       State = "TRIALING"
	StateActive         State = "ACTIVE"
	StateExpired        State = "EXPIRED"
	StateTenantInactive State = "TENANT_INACTIVE"
)

// Decision is the outcome of a gating check.
type Decision struct {
	State   State  `json:"state"`
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`

	// DaysRemaining is nil when no billing or trial period applies.
	// Zero means the period ends today; the boundary day still counts.
	DaysRemaining *int `json:"daysRemaining,omitempty"`
}

// Evaluate computes the access decision for a tenant given its most
// recent subscription row (nil when none exists) and the caller's tenant
// admin status. A tenant admin is let through even when everyone else is
// blocked, so they can submit payment proof to reactivate the tenant.
func Evaluate(t *models.Tenant, sub *models.Subscription, now time.Time, callerIsAdmin bool) Decision {
	d := Decision{State: StateActive}

	switch {
	case sub != nil && sub.BillingPeriodEnd != nil:
		days := daysUntil(*sub.BillingPeriodEnd, now)
		d.DaysRemaining = &days
		if days < 0 {
			d.State = StateExpired
		}
	case sub != nil:
		// Open-ended subscription row: settled means active, a pending
		// row alone grants nothing beyond what the tenant flag does.
		if !sub.Status.Settled() && !t.IsActive {
			d.State = StateTenantInactive
		}
	case t.SubscriptionStatus == models.SubscriptionTrial && t.TrialEndsAt != nil:
		days := daysUntil(*t.TrialEndsAt, now)
		d.DaysRemaining = &days
		d.State = StateTrialing
		if days < 0 {
			d.State = StateExpired
		}
	default:
		// No subscription row at all. Legacy and manually-activated
		// tenants are treated as fully active on the strength of the
		// active flag alone.
		if t.IsActive {
			d.State = StateNoSubscription
		} else {
			d.State = StateTenantInactive
		}
	}

	expired := d.State == StateExpired
	if !t.IsActive && !expired {
		d.State = StateTenantInactive
	}

	d.Allowed = (t.IsActive && !expired) || callerIsAdmin
	if !d.Allowed {
		switch d.State {
		case StateExpired:
			d.Reason = "subscription expired"
		case StateTenantInactive:
			d.Reason = "tenant is inactive"
		default:
			d.Reason = "access restricted"
		}
	}

	return d
}

// daysUntil returns the number of whole days from now until end. An end
// later today yields 0 (the boundary day still counts); any end in the
// past yields a negative count.
func daysUntil(end, now time.Time) int {
	diff := end.Sub(now)
	days := int(diff / (24 * time.Hour))
	if diff < 0 && days == 0 {
		days = -1
	}
	return days
}
