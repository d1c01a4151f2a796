package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flowpay/streaming-service/internal/app"
	"github.com/flowpay/streaming-service/internal/store"
)

func TestWriteServiceErrorStatusMapping(t *testing.T) {
	h := NewLedgerHandlers(nil)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "unknown stream", err: store.ErrStreamNotFound, want: http.StatusNotFound},
		{name: "unknown subscription", err: store.ErrSubscriptionNotFound, want: http.StatusNotFound},
		{name: "unauthorized caller", err: app.ErrNotAuthorized, want: http.StatusForbidden},
		{name: "inactive stream", err: store.ErrStreamNotActive, want: http.StatusConflict},
		{name: "inactive subscription", err: store.ErrSubscriptionNotActive, want: http.StatusConflict},
		{name: "concurrently modified entry", err: store.ErrStaleSnapshot, want: http.StatusConflict},
		{name: "underfunded float", err: store.ErrInsufficientFunds, want: http.StatusPaymentRequired},
		{name: "nothing accrued", err: app.ErrNothingToWithdraw, want: http.StatusBadRequest},
		{name: "fee out of range", err: app.ErrFeeOutOfRange, want: http.StatusBadRequest},
		{name: "empty balance", err: store.ErrNoWithdrawableBalance, want: http.StatusBadRequest},
		{name: "wrapped sentinel", err: errors.Join(errors.New("context"), store.ErrStreamNotFound), want: http.StatusNotFound},
		{name: "unexpected failure", err: errors.New("connection reset"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.writeServiceError(rec, tt.err)
			if rec.Code != tt.want {
				t.Fatalf("writeServiceError(%v) status = %d, want %d", tt.err, rec.Code, tt.want)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected a JSON error body, got content type %q", ct)
			}
		})
	}
}

func TestGetCallerAccount(t *testing.T) {
	if _, ok := GetCallerAccount(context.Background()); ok {
		t.Fatal("expected no account on an empty context")
	}

	ctx := context.WithValue(context.Background(), callerAccountKey, "acct_caller")
	account, ok := GetCallerAccount(ctx)
	if !ok || account != "acct_caller" {
		t.Fatalf("GetCallerAccount = (%q, %t), want (acct_caller, true)", account, ok)
	}
}
