/**
 * @description
 * This file defines the payout record: the audit row written whenever value
 * leaves the ledger (stream withdrawals, cancellation splits, subscription
 * settlements, excess-funding refunds, balance withdrawals). Payout rows are
 * inserted in the same transaction as the state mutation they settle, and
 * the corresponding event is only published after that transaction commits.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Payout kinds, one per way value exits the ledger.
const (
	PayoutStreamWithdrawal   = "stream_withdrawal"
	PayoutStreamCancelSender = "stream_cancel_sender"
	PayoutStreamCancelNet    = "stream_cancel_recipient"
	PayoutStreamRefund       = "stream_excess_refund"
	PayoutSubscriptionNet    = "subscription_payment"
	PayoutBalanceWithdrawal  = "balance_withdrawal"
)

// Payout represents one outbound transfer instruction recorded by the ledger.
// It maps directly to the `payouts` table.
type Payout struct {
	ID        uuid.UUID `json:"id"`
	Account   string    `json:"account"`
	Amount    int64     `json:"amount"`
	Kind      string    `json:"kind"`
	EntityID  *int64    `json:"entity_id,omitempty"` // stream or subscription id, nil for balance withdrawals
	CreatedAt time.Time `json:"created_at"`
}
