/**
 * @description
 * This file defines the core domain models for the streaming-service's payment
 * streams, together with the accrual arithmetic that every withdrawal,
 * cancellation, and balance query is computed from.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest unit of the settlement
 *   asset, which avoids floating-point inaccuracies with financial data.
 * - Accrual is a pure function of the stream record and a supplied clock
 *   reading; it never mutates state, so it can be consulted any number of
 *   times and always agrees with itself for the same inputs.
 */

package domain

import "time"

// Stream represents a time-bounded, continuously-vesting payment commitment
// from a sender to a recipient. It maps directly to the `streams` table.
type Stream struct {
	ID               int64     `json:"id"`
	Sender           string    `json:"sender"`
	Recipient        string    `json:"recipient"`
	Deposit          int64     `json:"deposit"`           // rate_per_second * duration, fixed at creation
	RatePerSecond    int64     `json:"rate_per_second"`   // fixed at creation, > 0
	StartTime        time.Time `json:"start_time"`
	StopTime         time.Time `json:"stop_time"`
	RemainingBalance int64     `json:"remaining_balance"` // only decreases, via withdrawal
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CreateStreamRequest is the DTO for incoming stream creation API requests.
type CreateStreamRequest struct {
	Recipient       string `json:"recipient"`
	DurationSeconds int64  `json:"duration_seconds"`
	RatePerSecond   int64  `json:"rate_per_second"`
	SuppliedValue   int64  `json:"supplied_value"`
}

// StreamBalance is the live accrual split for a stream at a point in time.
type StreamBalance struct {
	StreamID         int64 `json:"stream_id"`
	RecipientBalance int64 `json:"recipient_balance"`
	SenderBalance    int64 `json:"sender_balance"`
}

// StreamWithdrawal summarizes one settled withdrawal from a stream.
type StreamWithdrawal struct {
	StreamID         int64  `json:"stream_id"`
	Recipient        string `json:"recipient"`
	NetAmount        int64  `json:"net_amount"`
	Fee              int64  `json:"fee"`
	RemainingBalance int64  `json:"remaining_balance"`
	Deactivated      bool   `json:"deactivated"`
}

// StreamCancellation summarizes the terminal split of a cancelled stream.
type StreamCancellation struct {
	StreamID           int64  `json:"stream_id"`
	Sender             string `json:"sender"`
	Recipient          string `json:"recipient"`
	RecipientNetAmount int64  `json:"recipient_net_amount"`
	Fee                int64  `json:"fee"`
	SenderAmount       int64  `json:"sender_amount"`
}

// Accrual computes the `(recipientBalance, senderBalance)` split of the
// stream's remaining value at `now`. It is the single source of truth for
// withdrawals, cancellations, and balance queries.
//
// Invariant while the stream is active:
//
//	recipientBalance + senderBalance == RemainingBalance
//
// An inactive stream reports (0, RemainingBalance); RemainingBalance is 0
// after cancellation or full drainage, so both sides read zero.
func (s *Stream) Accrual(now time.Time) (recipientBalance int64, senderBalance int64) {
	if !s.Active {
		return 0, s.RemainingBalance
	}

	elapsed := now.Unix() - s.StartTime.Unix()
	if elapsed < 0 {
		elapsed = 0
	}
	duration := s.StopTime.Unix() - s.StartTime.Unix()
	if elapsed > duration {
		elapsed = duration
	}

	// elapsed <= duration and deposit == ratePerSecond * duration was
	// overflow-checked at creation, so `earned` cannot overflow.
	earned := elapsed * s.RatePerSecond
	if earned >= s.Deposit {
		// Fully vested. Reporting RemainingBalance rather than Deposit lets a
		// partially-withdrawn stream report only the un-withdrawn share.
		return s.RemainingBalance, 0
	}

	// The recipient side is what has vested minus what was already withdrawn;
	// the sender side is the unvested remainder of the original deposit.
	withdrawn := s.Deposit - s.RemainingBalance
	recipientBalance = earned - withdrawn
	if recipientBalance < 0 {
		recipientBalance = 0
	}
	senderBalance = s.Deposit - earned
	return recipientBalance, senderBalance
}
