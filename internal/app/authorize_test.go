package app

import (
	"testing"

	"github.com/flowpay/streaming-service/internal/domain"
)

func TestStreamAuthorizationMatrix(t *testing.T) {
	stream := &domain.Stream{Sender: "acct_sender", Recipient: "acct_recipient"}

	tests := []struct {
		name         string
		caller       string
		wantWithdraw bool
		wantCancel   bool
	}{
		{name: "sender", caller: "acct_sender", wantWithdraw: false, wantCancel: true},
		{name: "recipient", caller: "acct_recipient", wantWithdraw: true, wantCancel: true},
		{name: "outsider", caller: "acct_outsider", wantWithdraw: false, wantCancel: false},
		{name: "empty caller", caller: "", wantWithdraw: false, wantCancel: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canWithdrawFromStream(tt.caller, stream); got != tt.wantWithdraw {
				t.Fatalf("canWithdrawFromStream(%q) = %t, want %t", tt.caller, got, tt.wantWithdraw)
			}
			if got := canCancelStream(tt.caller, stream); got != tt.wantCancel {
				t.Fatalf("canCancelStream(%q) = %t, want %t", tt.caller, got, tt.wantCancel)
			}
		})
	}
}

func TestSubscriptionAuthorizationMatrix(t *testing.T) {
	sub := &domain.Subscription{Subscriber: "acct_subscriber", Provider: "acct_provider"}

	tests := []struct {
		name       string
		caller     string
		wantTopUp  bool
		wantSettle bool
		wantCancel bool
	}{
		{name: "subscriber", caller: "acct_subscriber", wantTopUp: true, wantSettle: true, wantCancel: true},
		{name: "provider", caller: "acct_provider", wantTopUp: false, wantSettle: true, wantCancel: true},
		// Settlement is deliberately open to any caller.
		{name: "outsider", caller: "acct_outsider", wantTopUp: false, wantSettle: true, wantCancel: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canTopUpSubscription(tt.caller, sub); got != tt.wantTopUp {
				t.Fatalf("canTopUpSubscription(%q) = %t, want %t", tt.caller, got, tt.wantTopUp)
			}
			if got := canSettleSubscription(tt.caller, sub); got != tt.wantSettle {
				t.Fatalf("canSettleSubscription(%q) = %t, want %t", tt.caller, got, tt.wantSettle)
			}
			if got := canCancelSubscription(tt.caller, sub); got != tt.wantCancel {
				t.Fatalf("canCancelSubscription(%q) = %t, want %t", tt.caller, got, tt.wantCancel)
			}
		})
	}
}

func TestIsAdmin(t *testing.T) {
	svc, _ := newTestService(10)

	if !svc.isAdmin("acct_admin") {
		t.Fatal("configured admin account should be recognized")
	}
	if svc.isAdmin("acct_sender") {
		t.Fatal("non-admin account should not be recognized")
	}

	svc.adminAccount = ""
	if svc.isAdmin("") {
		t.Fatal("empty caller must never match an unset admin account")
	}
}
