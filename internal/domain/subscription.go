/**
 * @description
 * This file defines the domain models for the streaming-service's subscription
 * ledger: open-ended, rate-based billing relationships that are settled on
 * demand from the subscriber's shared withdrawable balance.
 *
 * @notes
 * - A subscription carries no funding of its own. The subscriber's generic
 *   balance row is the float for all of that subscriber's subscriptions, so
 *   one subscription's settlement can be starved by another draining the
 *   shared pool first. This is deliberate source behavior, not a bug.
 */

package domain

import "time"

// Subscription represents an open-ended billing relationship between a
// subscriber and a provider. It maps directly to the `subscriptions` table.
type Subscription struct {
	ID              int64     `json:"id"`
	Subscriber      string    `json:"subscriber"`
	Provider        string    `json:"provider"`
	RatePerSecond   int64     `json:"rate_per_second"`
	LastPaymentTime time.Time `json:"last_payment_time"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CreateSubscriptionRequest is the DTO for incoming subscription creation requests.
type CreateSubscriptionRequest struct {
	Provider       string `json:"provider"`
	RatePerSecond  int64  `json:"rate_per_second"`
	InitialFunding int64  `json:"initial_funding"`
}

// SubscriptionStatus is the read-model returned for a subscription query:
// the record plus its currently pending, as-of-now payment amount.
type SubscriptionStatus struct {
	Subscription   *Subscription `json:"subscription"`
	PendingPayment int64         `json:"pending_payment"`
}

// SubscriptionPayment summarizes one settled billing period.
type SubscriptionPayment struct {
	SubscriptionID int64     `json:"subscription_id"`
	Subscriber     string    `json:"subscriber"`
	Provider       string    `json:"provider"`
	Payment        int64     `json:"payment"`
	Fee            int64     `json:"fee"`
	NetAmount      int64     `json:"net_amount"`
	PaidAt         time.Time `json:"paid_at"`
}

// PendingPayment computes the amount owed for the billing window between the
// last settlement and `now`. Returns false when the multiplication would
// overflow int64.
func (s *Subscription) PendingPayment(now time.Time) (int64, bool) {
	elapsed := now.Unix() - s.LastPaymentTime.Unix()
	if elapsed < 0 {
		elapsed = 0
	}
	return CheckedMul(elapsed, s.RatePerSecond)
}
