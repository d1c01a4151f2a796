/**
 * @description
 * This file contains the HTTP handlers for the streaming-service's API
 * endpoints. Handlers parse incoming requests, call the corresponding
 * ledger operation on the application service, and write the HTTP response.
 * They are the bridge between the web layer and the ledger — no accrual or
 * fee arithmetic happens here.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http, strconv: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flowpay/streaming-service/internal/app"
	"github.com/flowpay/streaming-service/internal/domain"
	"github.com/flowpay/streaming-service/internal/store"
)

// LedgerHandlers holds the application service that handlers will use.
type LedgerHandlers struct {
	service              *app.Service
	settleLimiter        *app.RedisSettlementRateLimiter
	settleLimitPerMinute int
}

// NewLedgerHandlers creates a new instance of LedgerHandlers.
func NewLedgerHandlers(service *app.Service) *LedgerHandlers {
	return &LedgerHandlers{service: service}
}

// SetSettlementRateLimiter enables per-caller throttling of the public
// settlement endpoint.
func (h *LedgerHandlers) SetSettlementRateLimiter(limiter *app.RedisSettlementRateLimiter, limitPerMinute int) {
	h.settleLimiter = limiter
	h.settleLimitPerMinute = limitPerMinute
}

func (h *LedgerHandlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

func (h *LedgerHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps ledger errors to HTTP statuses. Precondition
// violations are 4xx; anything unexpected is a 500.
func (h *LedgerHandlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrStreamNotFound), errors.Is(err, store.ErrSubscriptionNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrNotAuthorized):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrStreamNotActive),
		errors.Is(err, store.ErrSubscriptionNotActive),
		errors.Is(err, store.ErrStaleSnapshot):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, app.ErrInvalidCounterparty),
		errors.Is(err, app.ErrIdenticalParties),
		errors.Is(err, app.ErrInvalidDuration),
		errors.Is(err, app.ErrInvalidRate),
		errors.Is(err, app.ErrDepositOverflow),
		errors.Is(err, app.ErrInsufficientDeposit),
		errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrNothingToWithdraw),
		errors.Is(err, app.ErrPaymentOverflow),
		errors.Is(err, app.ErrFeeOutOfRange),
		errors.Is(err, store.ErrNoWithdrawableBalance):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("level=error component=api msg=\"ledger operation failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *LedgerHandlers) callerAccount(w http.ResponseWriter, r *http.Request) (string, bool) {
	account, ok := GetCallerAccount(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get account from context")
		return "", false
	}
	return account, true
}

func (h *LedgerHandlers) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid id in URL")
		return 0, false
	}
	return id, true
}

// CreateStreamHandler handles requests to open a new payment stream.
func (h *LedgerHandlers) CreateStreamHandler(w http.ResponseWriter, r *http.Request) {
	sender, ok := h.callerAccount(w, r)
	if !ok {
		return
	}

	var req domain.CreateStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	stream, err := h.service.CreateStream(r.Context(), sender, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, stream)
}

// GetStreamHandler returns the full stream record.
func (h *LedgerHandlers) GetStreamHandler(w http.ResponseWriter, r *http.Request) {
	streamID, ok := h.pathID(w, r, "streamID")
	if !ok {
		return
	}
	stream, err := h.service.GetStream(r.Context(), streamID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stream)
}

// GetStreamBalanceHandler returns the live accrual split for a stream.
func (h *LedgerHandlers) GetStreamBalanceHandler(w http.ResponseWriter, r *http.Request) {
	streamID, ok := h.pathID(w, r, "streamID")
	if !ok {
		return
	}
	balance, err := h.service.GetStreamBalance(r.Context(), streamID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, balance)
}

// WithdrawFromStreamHandler settles the caller's accrued balance on a stream.
func (h *LedgerHandlers) WithdrawFromStreamHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerAccount(w, r)
	if !ok {
		return
	}
	streamID, ok := h.pathID(w, r, "streamID")
	if !ok {
		return
	}

	result, err := h.service.WithdrawFromStream(r.Context(), streamID, caller)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// CancelStreamHandler terminates a stream and settles both sides.
func (h *LedgerHandlers) CancelStreamHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerAccount(w, r)
	if !ok {
		return
	}
	streamID, ok := h.pathID(w, r, "streamID")
	if !ok {
		return
	}

	result, err := h.service.CancelStream(r.Context(), streamID, caller)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// CreateSubscriptionHandler opens a new billing relationship.
func (h *LedgerHandlers) CreateSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	subscriber, ok := h.callerAccount(w, r)
	if !ok {
		return
	}

	var req domain.CreateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sub, err := h.service.CreateSubscription(r.Context(), subscriber, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, sub)
}

// GetSubscriptionHandler returns the subscription record plus its pending
// as-of-now payment amount.
func (h *LedgerHandlers) GetSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	subscriptionID, ok := h.pathID(w, r, "subscriptionID")
	if !ok {
		return
	}
	status, err := h.service.GetSubscriptionStatus(r.Context(), subscriptionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

type topUpRequest struct {
	Amount int64 `json:"amount"`
}

// TopUpSubscriptionHandler adds to the caller's shared subscription float.
func (h *LedgerHandlers) TopUpSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerAccount(w, r)
	if !ok {
		return
	}
	subscriptionID, ok := h.pathID(w, r, "subscriptionID")
	if !ok {
		return
	}

	var req topUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.TopUpSubscription(r.Context(), subscriptionID, caller, req.Amount); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "credited"})
}

// SettleSubscriptionHandler triggers settlement of a subscription's accrued
// billing window. Open to any authenticated caller; throttled per caller.
func (h *LedgerHandlers) SettleSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerAccount(w, r)
	if !ok {
		return
	}
	subscriptionID, ok := h.pathID(w, r, "subscriptionID")
	if !ok {
		return
	}

	if h.settleLimiter != nil && h.settleLimitPerMinute > 0 {
		count, retryAfter, err := h.settleLimiter.ConsumeRateLimit(r.Context(), "subscription_settle", caller, h.settleLimitPerMinute, time.Minute)
		if err != nil {
			log.Printf("level=warn component=api endpoint=settle_subscription msg=\"rate limiter unavailable; allowing request\" err=%v", err)
		} else if count > h.settleLimitPerMinute {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			h.writeError(w, http.StatusTooManyRequests, "Too many settlement requests. Please slow down.")
			return
		}
	}

	result, err := h.service.ProcessSubscriptionPayment(r.Context(), subscriptionID, caller)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// CancelSubscriptionHandler terminates a subscription, attempting a final
// best-effort settlement first.
func (h *LedgerHandlers) CancelSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerAccount(w, r)
	if !ok {
		return
	}
	subscriptionID, ok := h.pathID(w, r, "subscriptionID")
	if !ok {
		return
	}

	final, err := h.service.CancelSubscription(r.Context(), subscriptionID, caller)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	response := map[string]interface{}{"status": "canceled"}
	if final != nil {
		response["final_payment"] = final
	}
	h.writeJSON(w, http.StatusOK, response)
}

// GetBalanceHandler returns the caller's generic withdrawable balance.
func (h *LedgerHandlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerAccount(w, r)
	if !ok {
		return
	}
	balance, err := h.service.GetAccountBalance(r.Context(), caller)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"account": caller, "balance": balance})
}

// WithdrawBalanceHandler pays out the caller's entire withdrawable balance.
func (h *LedgerHandlers) WithdrawBalanceHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerAccount(w, r)
	if !ok {
		return
	}
	amount, err := h.service.WithdrawBalance(r.Context(), caller)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"account": caller, "amount": amount})
}

// ListStreamsHandler returns the caller's ordered stream id lists.
func (h *LedgerHandlers) ListStreamsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerAccount(w, r)
	if !ok {
		return
	}

	senderIDs, err := h.service.ListSenderStreamIDs(r.Context(), caller)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	recipientIDs, err := h.service.ListRecipientStreamIDs(r.Context(), caller)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"sender_stream_ids":    senderIDs,
		"recipient_stream_ids": recipientIDs,
	})
}

// ListSubscriptionsHandler returns the caller's ordered subscription ids.
func (h *LedgerHandlers) ListSubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerAccount(w, r)
	if !ok {
		return
	}
	ids, err := h.service.ListSubscriberSubscriptionIDs(r.Context(), caller)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"subscription_ids": ids})
}

type setFeeRequest struct {
	FeeBps int64 `json:"fee_bps"`
}

// SetFeeHandler replaces the platform fee rate. Admin only.
func (h *LedgerHandlers) SetFeeHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerAccount(w, r)
	if !ok {
		return
	}

	var req setFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.SetFee(r.Context(), caller, req.FeeBps); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"fee_bps": req.FeeBps})
}

// GetFeeHandler returns the current platform fee rate.
func (h *LedgerHandlers) GetFeeHandler(w http.ResponseWriter, r *http.Request) {
	feeBps, err := h.service.GetFee(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"fee_bps": feeBps})
}
