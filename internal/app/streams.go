/**
 * @description
 * Stream lifecycle operations: creation, withdrawal settlement, bilateral
 * cancellation, and the read accessors over streams. The accrual split is
 * computed by `domain.Stream.Accrual`; this file applies it.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/flowpay/streaming-service/internal/domain"
	"github.com/flowpay/streaming-service/internal/store"
	"github.com/flowpay/streaming-service/pkg/rabbitmq"
)

// CreateStream opens a new payment stream from `sender`. The deposit is
// rate_per_second * duration_seconds (overflow-checked); any supplied value
// beyond the deposit is refunded to the sender as a payout record.
func (s *Service) CreateStream(ctx context.Context, sender string, req domain.CreateStreamRequest) (*domain.Stream, error) {
	recipient := strings.TrimSpace(req.Recipient)
	if recipient == "" {
		return nil, ErrInvalidCounterparty
	}
	if recipient == sender {
		return nil, ErrIdenticalParties
	}
	if req.DurationSeconds <= 0 {
		return nil, ErrInvalidDuration
	}
	if req.RatePerSecond <= 0 {
		return nil, ErrInvalidRate
	}
	deposit, ok := domain.CheckedMul(req.RatePerSecond, req.DurationSeconds)
	if !ok {
		return nil, ErrDepositOverflow
	}
	if req.SuppliedValue < deposit {
		return nil, ErrInsufficientDeposit
	}

	now := s.nowFn()
	stream := &domain.Stream{
		Sender:           sender,
		Recipient:        recipient,
		Deposit:          deposit,
		RatePerSecond:    req.RatePerSecond,
		StartTime:        now,
		StopTime:         now.Add(time.Duration(req.DurationSeconds) * time.Second),
		RemainingBalance: deposit,
		Active:           true,
	}
	refund := req.SuppliedValue - deposit

	created, err := s.repo.CreateStream(ctx, stream, refund)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	log.Printf("level=info component=ledger op=create_stream stream_id=%d sender=%s recipient=%s deposit=%d rate=%d refund=%d",
		created.ID, created.Sender, created.Recipient, created.Deposit, created.RatePerSecond, refund)
	s.publish(ctx, rabbitmq.RouteStreamCreated, domain.StreamCreatedEvent{
		StreamID:      created.ID,
		Sender:        created.Sender,
		Recipient:     created.Recipient,
		Deposit:       created.Deposit,
		RatePerSecond: created.RatePerSecond,
		StartTime:     created.StartTime,
		StopTime:      created.StopTime,
		Refund:        refund,
		Timestamp:     now,
	})
	return created, nil
}

// WithdrawFromStream settles the recipient's accrued balance. The fee is
// floor(gross * feeBps / 10000), credited to the platform account's balance
// row; the stream deactivates once it is past its stop time or fully
// drained.
func (s *Service) WithdrawFromStream(ctx context.Context, streamID int64, caller string) (*domain.StreamWithdrawal, error) {
	stream, err := s.repo.FindStreamByID(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if !canWithdrawFromStream(caller, stream) {
		return nil, ErrNotAuthorized
	}
	if !stream.Active {
		return nil, store.ErrStreamNotActive
	}

	now := s.nowFn()
	gross, _ := stream.Accrual(now)
	if gross == 0 {
		return nil, ErrNothingToWithdraw
	}

	feeBps, err := s.repo.GetFeeBps(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load fee rate: %w", err)
	}
	fee := domain.FeeFor(gross, feeBps)
	remaining := stream.RemainingBalance - gross
	deactivate := !now.Before(stream.StopTime) || remaining == 0

	err = s.repo.ApplyStreamWithdrawal(ctx, store.StreamWithdrawalParams{
		StreamID:                 streamID,
		Recipient:                stream.Recipient,
		Gross:                    gross,
		Fee:                      fee,
		PlatformAccount:          s.platformAccount,
		Deactivate:               deactivate,
		ExpectedRemainingBalance: stream.RemainingBalance,
	})
	if err != nil {
		return nil, err
	}

	result := &domain.StreamWithdrawal{
		StreamID:         streamID,
		Recipient:        stream.Recipient,
		NetAmount:        gross - fee,
		Fee:              fee,
		RemainingBalance: remaining,
		Deactivated:      deactivate,
	}
	log.Printf("level=info component=ledger op=withdraw_from_stream stream_id=%d recipient=%s net=%d fee=%d remaining=%d deactivated=%t",
		streamID, stream.Recipient, result.NetAmount, fee, remaining, deactivate)
	s.publish(ctx, rabbitmq.RouteStreamWithdrawn, domain.StreamWithdrawnEvent{
		StreamID:         streamID,
		Recipient:        stream.Recipient,
		NetAmount:        result.NetAmount,
		Fee:              fee,
		RemainingBalance: remaining,
		Deactivated:      deactivate,
		Timestamp:        now,
	})
	return result, nil
}

// CancelStream terminates a stream and settles both sides of the current
// accrual split: the recipient's earned share net of fee, and the sender's
// unvested share in full. The remaining balance is zeroed unconditionally;
// a second cancellation fails because the stream is no longer active.
func (s *Service) CancelStream(ctx context.Context, streamID int64, caller string) (*domain.StreamCancellation, error) {
	stream, err := s.repo.FindStreamByID(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if !canCancelStream(caller, stream) {
		return nil, ErrNotAuthorized
	}
	if !stream.Active {
		return nil, store.ErrStreamNotActive
	}

	now := s.nowFn()
	recipientGross, senderAmount := stream.Accrual(now)

	var fee int64
	if recipientGross > 0 {
		feeBps, err := s.repo.GetFeeBps(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load fee rate: %w", err)
		}
		fee = domain.FeeFor(recipientGross, feeBps)
	}

	err = s.repo.ApplyStreamCancellation(ctx, store.StreamCancellationParams{
		StreamID:                 streamID,
		Sender:                   stream.Sender,
		Recipient:                stream.Recipient,
		RecipientGross:           recipientGross,
		Fee:                      fee,
		SenderAmount:             senderAmount,
		PlatformAccount:          s.platformAccount,
		ExpectedRemainingBalance: stream.RemainingBalance,
	})
	if err != nil {
		return nil, err
	}

	result := &domain.StreamCancellation{
		StreamID:           streamID,
		Sender:             stream.Sender,
		Recipient:          stream.Recipient,
		RecipientNetAmount: recipientGross - fee,
		Fee:                fee,
		SenderAmount:       senderAmount,
	}
	log.Printf("level=info component=ledger op=cancel_stream stream_id=%d canceled_by=%s recipient_net=%d fee=%d sender_amount=%d",
		streamID, caller, result.RecipientNetAmount, fee, senderAmount)
	s.publish(ctx, rabbitmq.RouteStreamCanceled, domain.StreamCanceledEvent{
		StreamID:           streamID,
		CanceledBy:         caller,
		RecipientNetAmount: result.RecipientNetAmount,
		Fee:                fee,
		SenderAmount:       senderAmount,
		Timestamp:          now,
	})
	return result, nil
}

// GetStream returns the full stream record.
func (s *Service) GetStream(ctx context.Context, streamID int64) (*domain.Stream, error) {
	return s.repo.FindStreamByID(ctx, streamID)
}

// GetStreamBalance returns the live accrual split for a stream as of now.
func (s *Service) GetStreamBalance(ctx context.Context, streamID int64) (*domain.StreamBalance, error) {
	stream, err := s.repo.FindStreamByID(ctx, streamID)
	if err != nil {
		return nil, err
	}
	recipientBalance, senderBalance := stream.Accrual(s.nowFn())
	return &domain.StreamBalance{
		StreamID:         streamID,
		RecipientBalance: recipientBalance,
		SenderBalance:    senderBalance,
	}, nil
}

// ListSenderStreamIDs returns the ordered stream ids where the account is
// the sender.
func (s *Service) ListSenderStreamIDs(ctx context.Context, account string) ([]int64, error) {
	return s.repo.FindStreamIDsBySender(ctx, account)
}

// ListRecipientStreamIDs returns the ordered stream ids where the account is
// the recipient.
func (s *Service) ListRecipientStreamIDs(ctx context.Context, account string) ([]int64, error) {
	return s.repo.FindStreamIDsByRecipient(ctx, account)
}
