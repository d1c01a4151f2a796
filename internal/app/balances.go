/**
 * @description
 * Generic balance withdrawal and fee administration. The balance table is
 * how the platform account collects accumulated fees and how subscribers
 * reclaim unused float; both use the same all-or-nothing withdrawal.
 */

package app

import (
	"context"
	"fmt"
	"log"

	"github.com/flowpay/streaming-service/internal/domain"
	"github.com/flowpay/streaming-service/pkg/rabbitmq"
)

// WithdrawBalance pays out the caller's entire withdrawable balance and
// zeroes it. An empty balance is an error, not a no-op.
func (s *Service) WithdrawBalance(ctx context.Context, caller string) (int64, error) {
	amount, err := s.repo.WithdrawBalance(ctx, caller)
	if err != nil {
		return 0, err
	}

	log.Printf("level=info component=ledger op=withdraw_balance account=%s amount=%d", caller, amount)
	s.publish(ctx, rabbitmq.RouteBalanceWithdrawn, domain.BalanceWithdrawnEvent{
		Account:   caller,
		Amount:    amount,
		Timestamp: s.nowFn(),
	})
	return amount, nil
}

// GetAccountBalance returns an account's generic withdrawable balance.
func (s *Service) GetAccountBalance(ctx context.Context, account string) (int64, error) {
	return s.repo.GetBalance(ctx, account)
}

// SetFee replaces the platform fee rate used by all subsequent settlements.
// Only the configured admin account may call it, and the rate is capped at
// 1000 bps (10%). Already-settled payouts are never recomputed.
func (s *Service) SetFee(ctx context.Context, caller string, feeBps int64) error {
	if !s.isAdmin(caller) {
		return ErrNotAuthorized
	}
	if feeBps < 0 || feeBps > domain.MaxFeeBps {
		return ErrFeeOutOfRange
	}

	if err := s.repo.SetFeeBps(ctx, feeBps); err != nil {
		return fmt.Errorf("failed to update fee rate: %w", err)
	}

	log.Printf("level=info component=ledger op=set_fee fee_bps=%d changed_by=%s", feeBps, caller)
	s.publish(ctx, rabbitmq.RouteFeeUpdated, domain.FeeUpdatedEvent{
		FeeBps:    feeBps,
		ChangedBy: caller,
		Timestamp: s.nowFn(),
	})
	return nil
}

// GetFee returns the current platform fee rate in basis points.
func (s *Service) GetFee(ctx context.Context) (int64, error) {
	return s.repo.GetFeeBps(ctx)
}
