/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract
 * for all data access operations required by the streaming-service. Defining
 * an interface decouples the ledger's business logic from the PostgreSQL
 * implementation and lets the service layer be tested against a fake.
 *
 * Mutations that must be atomic (a withdrawal's balance decrement plus fee
 * credit plus payout row, a subscription settlement's debit plus clock
 * advance) are exposed as single composite methods; each implementation runs
 * them in one database transaction. The arithmetic that sizes the amounts
 * stays in the service layer — the repository only applies precomputed
 * deltas under guarded conditions.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/flowpay/streaming-service/internal/domain"
)

// StreamWithdrawalParams carries the precomputed amounts for one stream
// withdrawal. Gross is the accrued recipient balance being settled; the net
// payout is Gross - Fee. ExpectedRemainingBalance is the remaining balance
// of the snapshot Gross was computed from: the update is compare-and-set
// against it, so a concurrent settlement of the same window fails instead
// of paying twice.
type StreamWithdrawalParams struct {
	StreamID                 int64
	Recipient                string
	Gross                    int64
	Fee                      int64
	PlatformAccount          string
	Deactivate               bool
	ExpectedRemainingBalance int64
}

// StreamCancellationParams carries both sides of a cancellation split.
// RecipientGross is the accrued recipient balance (the fee is taken from
// it); SenderAmount is refunded in full. The stream's remaining balance is
// zeroed unconditionally regardless of the split, but only when it still
// equals ExpectedRemainingBalance — a withdrawal that landed after the
// split was computed invalidates the split.
type StreamCancellationParams struct {
	StreamID                 int64
	Sender                   string
	Recipient                string
	RecipientGross           int64
	Fee                      int64
	SenderAmount             int64
	PlatformAccount          string
	ExpectedRemainingBalance int64
}

// SubscriptionPaymentParams carries one settlement of a subscription drawn
// from the subscriber's shared balance. The net payout is Payment - Fee.
// LastPaymentTime is the billing-clock reading Payment was computed from;
// the clock advance is compare-and-set against it, so two settlements of
// the same window cannot both debit the float.
type SubscriptionPaymentParams struct {
	SubscriptionID  int64
	Subscriber      string
	Provider        string
	Payment         int64
	Fee             int64
	PlatformAccount string
	LastPaymentTime time.Time
	PaidAt          time.Time
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Stream methods
	CreateStream(ctx context.Context, stream *domain.Stream, refund int64) (*domain.Stream, error)
	FindStreamByID(ctx context.Context, streamID int64) (*domain.Stream, error)
	ApplyStreamWithdrawal(ctx context.Context, params StreamWithdrawalParams) error
	ApplyStreamCancellation(ctx context.Context, params StreamCancellationParams) error
	FindStreamIDsBySender(ctx context.Context, account string) ([]int64, error)
	FindStreamIDsByRecipient(ctx context.Context, account string) ([]int64, error)

	// Subscription methods
	CreateSubscription(ctx context.Context, sub *domain.Subscription, initialFunding int64) (*domain.Subscription, error)
	FindSubscriptionByID(ctx context.Context, subscriptionID int64) (*domain.Subscription, error)
	ApplySubscriptionPayment(ctx context.Context, params SubscriptionPaymentParams) error
	DeactivateSubscription(ctx context.Context, subscriptionID int64) error
	FindSubscriptionIDsBySubscriber(ctx context.Context, account string) ([]int64, error)

	// Balance table methods
	CreditBalance(ctx context.Context, account string, amount int64) error
	GetBalance(ctx context.Context, account string) (int64, error)
	WithdrawBalance(ctx context.Context, account string) (int64, error)

	// Platform settings methods
	GetFeeBps(ctx context.Context) (int64, error)
	SetFeeBps(ctx context.Context, feeBps int64) error
}
