/**
 * @description
 * Capability checks for every ledger operation. Authorization in this system
 * is identity equality against an entity's fixed parties; collecting the
 * checks here keeps the authorization matrix auditable and testable
 * independent of the settlement arithmetic.
 */

package app

import "github.com/flowpay/streaming-service/internal/domain"

// canWithdrawFromStream: only the recipient may settle accrued value.
func canWithdrawFromStream(caller string, stream *domain.Stream) bool {
	return caller == stream.Recipient
}

// canCancelStream: either party may terminate the stream.
func canCancelStream(caller string, stream *domain.Stream) bool {
	return caller == stream.Sender || caller == stream.Recipient
}

// canTopUpSubscription: only the subscriber funds the shared float.
func canTopUpSubscription(caller string, sub *domain.Subscription) bool {
	return caller == sub.Subscriber
}

// canSettleSubscription: anyone may trigger settlement. The open caller
// policy enables third-party settlement automation and is preserved from
// the source system.
func canSettleSubscription(caller string, sub *domain.Subscription) bool {
	return true
}

// canCancelSubscription: either party may terminate the relationship.
func canCancelSubscription(caller string, sub *domain.Subscription) bool {
	return caller == sub.Subscriber || caller == sub.Provider
}

// isAdmin: fee administration is restricted to the configured admin account.
func (s *Service) isAdmin(caller string) bool {
	return caller != "" && caller == s.adminAccount
}
