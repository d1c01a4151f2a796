/**
 * @description
 * This file contains the core of the streaming-service's business logic. The
 * `Service` struct owns every ledger operation: stream lifecycle and accrual
 * settlement, subscription billing, generic balance withdrawal, and fee
 * administration. It coordinates between the database repository and the
 * RabbitMQ event producer.
 *
 * Every operation is one atomic read-compute-write: the service reads a
 * snapshot, computes amounts with the pure arithmetic in internal/domain,
 * applies them through a single guarded repository transaction, and only
 * then publishes the change record. Events and payouts therefore always
 * reflect committed state.
 *
 * @dependencies
 * - context, errors, log, time: Standard Go libraries.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For publishing ledger change records.
 */

package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/flowpay/streaming-service/internal/store"
	"github.com/flowpay/streaming-service/pkg/rabbitmq"
)

var (
	ErrNotAuthorized       = errors.New("caller is not authorized for this operation")
	ErrInvalidCounterparty = errors.New("counterparty account is required")
	ErrIdenticalParties    = errors.New("counterparty must differ from the caller")
	ErrInvalidDuration     = errors.New("duration must be greater than zero")
	ErrInvalidRate         = errors.New("rate per second must be greater than zero")
	ErrDepositOverflow     = errors.New("deposit computation overflows")
	ErrInsufficientDeposit = errors.New("supplied value does not cover the computed deposit")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrNothingToWithdraw   = errors.New("nothing to withdraw")
	ErrPaymentOverflow     = errors.New("payment computation overflows")
	ErrFeeOutOfRange       = errors.New("fee rate must be between 0 and 1000 basis points")
)

// Service provides the core business logic for the streaming ledger.
type Service struct {
	repo            store.Repository
	events          rabbitmq.Publisher
	adminAccount    string
	platformAccount string

	// nowFn is the clock every operation reads; tests inject a fixed clock.
	nowFn func() time.Time
}

// NewService creates a new ledger service instance. A nil producer degrades
// to the no-op fallback publisher so ledger mutations never depend on the
// broker being up.
func NewService(repo store.Repository, producer rabbitmq.Publisher, adminAccount, platformAccount string) *Service {
	if producer == nil {
		producer = &rabbitmq.EventProducerFallback{}
	}
	return &Service{
		repo:            repo,
		events:          producer,
		adminAccount:    adminAccount,
		platformAccount: platformAccount,
		nowFn:           time.Now,
	}
}

// publish emits one change record for a committed mutation. Publish failures
// are logged, not surfaced: the ledger state is already durable.
func (s *Service) publish(ctx context.Context, routingKey string, body interface{}) {
	if err := s.events.Publish(ctx, routingKey, body); err != nil {
		log.Printf("level=warn component=ledger msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}
