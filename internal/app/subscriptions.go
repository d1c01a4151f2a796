/**
 * @description
 * Subscription lifecycle operations: creation, shared-float top-up,
 * on-demand settlement, and cancellation with a best-effort closing
 * settlement. Funding is never earmarked per subscription — settlement
 * draws from the subscriber's generic balance row, so one subscription
 * can be starved by a sibling draining the shared pool. That is preserved
 * source behavior.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/flowpay/streaming-service/internal/domain"
	"github.com/flowpay/streaming-service/internal/store"
	"github.com/flowpay/streaming-service/pkg/rabbitmq"
)

// CreateSubscription opens a billing relationship from `subscriber` and
// credits the initial funding into the subscriber's shared balance.
func (s *Service) CreateSubscription(ctx context.Context, subscriber string, req domain.CreateSubscriptionRequest) (*domain.Subscription, error) {
	provider := strings.TrimSpace(req.Provider)
	if provider == "" {
		return nil, ErrInvalidCounterparty
	}
	if provider == subscriber {
		return nil, ErrIdenticalParties
	}
	if req.RatePerSecond <= 0 {
		return nil, ErrInvalidRate
	}
	if req.InitialFunding <= 0 {
		return nil, ErrInvalidAmount
	}

	now := s.nowFn()
	sub := &domain.Subscription{
		Subscriber:      subscriber,
		Provider:        provider,
		RatePerSecond:   req.RatePerSecond,
		LastPaymentTime: now,
		Active:          true,
	}

	created, err := s.repo.CreateSubscription(ctx, sub, req.InitialFunding)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	log.Printf("level=info component=ledger op=create_subscription subscription_id=%d subscriber=%s provider=%s rate=%d funding=%d",
		created.ID, created.Subscriber, created.Provider, created.RatePerSecond, req.InitialFunding)
	s.publish(ctx, rabbitmq.RouteSubscriptionCreated, domain.SubscriptionCreatedEvent{
		SubscriptionID: created.ID,
		Subscriber:     created.Subscriber,
		Provider:       created.Provider,
		RatePerSecond:  created.RatePerSecond,
		InitialFunding: req.InitialFunding,
		Timestamp:      now,
	})
	return created, nil
}

// TopUpSubscription adds to the subscriber's shared float. The credit lands
// on the balance row, not the subscription.
func (s *Service) TopUpSubscription(ctx context.Context, subscriptionID int64, caller string, amount int64) error {
	sub, err := s.repo.FindSubscriptionByID(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if !canTopUpSubscription(caller, sub) {
		return ErrNotAuthorized
	}
	if !sub.Active {
		return store.ErrSubscriptionNotActive
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}

	if err := s.repo.CreditBalance(ctx, sub.Subscriber, amount); err != nil {
		return fmt.Errorf("failed to credit subscriber balance: %w", err)
	}

	log.Printf("level=info component=ledger op=top_up_subscription subscription_id=%d subscriber=%s amount=%d",
		subscriptionID, sub.Subscriber, amount)
	s.publish(ctx, rabbitmq.RouteSubscriptionToppedUp, domain.SubscriptionToppedUpEvent{
		SubscriptionID: subscriptionID,
		Subscriber:     sub.Subscriber,
		Amount:         amount,
		Timestamp:      s.nowFn(),
	})
	return nil
}

// ProcessSubscriptionPayment settles the billing window accrued since the
// last payment. Callable by anyone: third parties may automate settlement.
// An insufficient shared balance fails the call with last_payment_time
// untouched, so the full window is retried after a top-up.
func (s *Service) ProcessSubscriptionPayment(ctx context.Context, subscriptionID int64, caller string) (*domain.SubscriptionPayment, error) {
	sub, err := s.repo.FindSubscriptionByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if !canSettleSubscription(caller, sub) {
		return nil, ErrNotAuthorized
	}
	if !sub.Active {
		return nil, store.ErrSubscriptionNotActive
	}

	now := s.nowFn()
	payment, ok := sub.PendingPayment(now)
	if !ok {
		return nil, ErrPaymentOverflow
	}

	feeBps, err := s.repo.GetFeeBps(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load fee rate: %w", err)
	}
	fee := domain.FeeFor(payment, feeBps)

	err = s.repo.ApplySubscriptionPayment(ctx, store.SubscriptionPaymentParams{
		SubscriptionID:  subscriptionID,
		Subscriber:      sub.Subscriber,
		Provider:        sub.Provider,
		Payment:         payment,
		Fee:             fee,
		PlatformAccount: s.platformAccount,
		LastPaymentTime: sub.LastPaymentTime,
		PaidAt:          now,
	})
	if err != nil {
		return nil, err
	}

	result := &domain.SubscriptionPayment{
		SubscriptionID: subscriptionID,
		Subscriber:     sub.Subscriber,
		Provider:       sub.Provider,
		Payment:        payment,
		Fee:            fee,
		NetAmount:      payment - fee,
		PaidAt:         now,
	}
	log.Printf("level=info component=ledger op=process_subscription_payment subscription_id=%d caller=%s payment=%d fee=%d net=%d",
		subscriptionID, caller, payment, fee, result.NetAmount)
	s.publish(ctx, rabbitmq.RouteSubscriptionSettled, domain.SubscriptionSettledEvent{
		SubscriptionID: subscriptionID,
		Subscriber:     sub.Subscriber,
		Provider:       sub.Provider,
		Payment:        payment,
		Fee:            fee,
		NetAmount:      result.NetAmount,
		PaidAt:         now,
	})
	return result, nil
}

// CancelSubscription terminates a billing relationship. A final settlement
// is attempted first but tolerated to fail: if the shared balance cannot
// cover the pending window the settlement is skipped, never the
// cancellation. Returns the final payment when one was made.
func (s *Service) CancelSubscription(ctx context.Context, subscriptionID int64, caller string) (*domain.SubscriptionPayment, error) {
	sub, err := s.repo.FindSubscriptionByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if !canCancelSubscription(caller, sub) {
		return nil, ErrNotAuthorized
	}
	if !sub.Active {
		return nil, store.ErrSubscriptionNotActive
	}

	now := s.nowFn()
	var final *domain.SubscriptionPayment

	payment, ok := sub.PendingPayment(now)
	if !ok {
		log.Printf("level=warn component=ledger op=cancel_subscription subscription_id=%d msg=\"pending payment overflows; final settlement skipped\"", subscriptionID)
	} else if payment > 0 {
		feeBps, err := s.repo.GetFeeBps(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load fee rate: %w", err)
		}
		fee := domain.FeeFor(payment, feeBps)

		err = s.repo.ApplySubscriptionPayment(ctx, store.SubscriptionPaymentParams{
			SubscriptionID:  subscriptionID,
			Subscriber:      sub.Subscriber,
			Provider:        sub.Provider,
			Payment:         payment,
			Fee:             fee,
			PlatformAccount: s.platformAccount,
			LastPaymentTime: sub.LastPaymentTime,
			PaidAt:          now,
		})
		switch {
		case err == nil:
			final = &domain.SubscriptionPayment{
				SubscriptionID: subscriptionID,
				Subscriber:     sub.Subscriber,
				Provider:       sub.Provider,
				Payment:        payment,
				Fee:            fee,
				NetAmount:      payment - fee,
				PaidAt:         now,
			}
			s.publish(ctx, rabbitmq.RouteSubscriptionSettled, domain.SubscriptionSettledEvent{
				SubscriptionID: subscriptionID,
				Subscriber:     sub.Subscriber,
				Provider:       sub.Provider,
				Payment:        payment,
				Fee:            fee,
				NetAmount:      final.NetAmount,
				PaidAt:         now,
			})
		case errors.Is(err, store.ErrInsufficientFunds):
			log.Printf("level=info component=ledger op=cancel_subscription subscription_id=%d msg=\"insufficient balance; final settlement skipped\" pending=%d", subscriptionID, payment)
		default:
			return nil, err
		}
	}

	if err := s.repo.DeactivateSubscription(ctx, subscriptionID); err != nil {
		return nil, err
	}

	var finalPayment int64
	if final != nil {
		finalPayment = final.Payment
	}
	log.Printf("level=info component=ledger op=cancel_subscription subscription_id=%d canceled_by=%s final_payment=%d",
		subscriptionID, caller, finalPayment)
	s.publish(ctx, rabbitmq.RouteSubscriptionCanceled, domain.SubscriptionCanceledEvent{
		SubscriptionID: subscriptionID,
		CanceledBy:     caller,
		FinalPayment:   finalPayment,
		Timestamp:      now,
	})
	return final, nil
}

// GetSubscriptionStatus returns the full subscription record plus its
// currently pending, as-of-now payment amount.
func (s *Service) GetSubscriptionStatus(ctx context.Context, subscriptionID int64) (*domain.SubscriptionStatus, error) {
	sub, err := s.repo.FindSubscriptionByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	var pending int64
	if sub.Active {
		var ok bool
		pending, ok = sub.PendingPayment(s.nowFn())
		if !ok {
			return nil, ErrPaymentOverflow
		}
	}
	return &domain.SubscriptionStatus{Subscription: sub, PendingPayment: pending}, nil
}

// ListSubscriberSubscriptionIDs returns the ordered subscription ids
// belonging to the account.
func (s *Service) ListSubscriberSubscriptionIDs(ctx context.Context, account string) ([]int64, error) {
	return s.repo.FindSubscriptionIDsBySubscriber(ctx, account)
}
