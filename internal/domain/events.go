/**
 * @description
 * This file defines the event payloads published to RabbitMQ after each
 * successful ledger mutation. Every mutating operation emits exactly one
 * structured change record; consumers (notification surfaces, settlement
 * rails, analytics) never observe intermediate state because events are
 * published strictly after the database transaction commits.
 */

package domain

import "time"

// StreamCreatedEvent is published when a new payment stream is opened.
// It carries every fixed field of the stream.
type StreamCreatedEvent struct {
	StreamID      int64     `json:"stream_id"`
	Sender        string    `json:"sender"`
	Recipient     string    `json:"recipient"`
	Deposit       int64     `json:"deposit"`
	RatePerSecond int64     `json:"rate_per_second"`
	StartTime     time.Time `json:"start_time"`
	StopTime      time.Time `json:"stop_time"`
	Refund        int64     `json:"refund"` // excess supplied value returned to the sender
	Timestamp     time.Time `json:"timestamp"`
}

// StreamWithdrawnEvent is published when a recipient settles earned value
// out of a stream. NetAmount is the post-fee payout.
type StreamWithdrawnEvent struct {
	StreamID         int64     `json:"stream_id"`
	Recipient        string    `json:"recipient"`
	NetAmount        int64     `json:"net_amount"`
	Fee              int64     `json:"fee"`
	RemainingBalance int64     `json:"remaining_balance"`
	Deactivated      bool      `json:"deactivated"`
	Timestamp        time.Time `json:"timestamp"`
}

// StreamCanceledEvent is published when either party cancels a stream.
// It carries both sides of the terminal split.
type StreamCanceledEvent struct {
	StreamID           int64     `json:"stream_id"`
	CanceledBy         string    `json:"canceled_by"`
	RecipientNetAmount int64     `json:"recipient_net_amount"`
	Fee                int64     `json:"fee"`
	SenderAmount       int64     `json:"sender_amount"`
	Timestamp          time.Time `json:"timestamp"`
}

// SubscriptionCreatedEvent is published when a billing relationship is opened.
type SubscriptionCreatedEvent struct {
	SubscriptionID int64     `json:"subscription_id"`
	Subscriber     string    `json:"subscriber"`
	Provider       string    `json:"provider"`
	RatePerSecond  int64     `json:"rate_per_second"`
	InitialFunding int64     `json:"initial_funding"`
	Timestamp      time.Time `json:"timestamp"`
}

// SubscriptionToppedUpEvent is published when a subscriber adds float.
type SubscriptionToppedUpEvent struct {
	SubscriptionID int64     `json:"subscription_id"`
	Subscriber     string    `json:"subscriber"`
	Amount         int64     `json:"amount"`
	Timestamp      time.Time `json:"timestamp"`
}

// SubscriptionSettledEvent is published for every successful settlement,
// including the best-effort final settlement during cancellation.
type SubscriptionSettledEvent struct {
	SubscriptionID int64     `json:"subscription_id"`
	Subscriber     string    `json:"subscriber"`
	Provider       string    `json:"provider"`
	Payment        int64     `json:"payment"`
	Fee            int64     `json:"fee"`
	NetAmount      int64     `json:"net_amount"`
	PaidAt         time.Time `json:"paid_at"`
}

// SubscriptionCanceledEvent is published when a subscription is terminated.
// FinalPayment is zero when the closing settlement was skipped for lack of
// funds.
type SubscriptionCanceledEvent struct {
	SubscriptionID int64     `json:"subscription_id"`
	CanceledBy     string    `json:"canceled_by"`
	FinalPayment   int64     `json:"final_payment"`
	Timestamp      time.Time `json:"timestamp"`
}

// BalanceWithdrawnEvent is published when an account pulls out its entire
// generic withdrawable balance.
type BalanceWithdrawnEvent struct {
	Account   string    `json:"account"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// FeeUpdatedEvent is published when the administrator changes the platform
// fee rate. The new rate applies to subsequent settlements only.
type FeeUpdatedEvent struct {
	FeeBps    int64     `json:"fee_bps"`
	ChangedBy string    `json:"changed_by"`
	Timestamp time.Time `json:"timestamp"`
}
