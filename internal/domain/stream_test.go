package domain

import (
	"testing"
	"time"
)

func testStream(start time.Time) *Stream {
	return &Stream{
		ID:               1,
		Sender:           "acct_sender",
		Recipient:        "acct_recipient",
		Deposit:          3600,
		RatePerSecond:    1,
		StartTime:        start,
		StopTime:         start.Add(3600 * time.Second),
		RemainingBalance: 3600,
		Active:           true,
	}
}

func TestStreamAccrual(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		mutate        func(s *Stream)
		at            time.Duration
		wantRecipient int64
		wantSender    int64
	}{
		{
			name:          "before start nothing has vested",
			at:            -30 * time.Second,
			wantRecipient: 0,
			wantSender:    3600,
		},
		{
			name:          "at start nothing has vested",
			at:            0,
			wantRecipient: 0,
			wantSender:    3600,
		},
		{
			name:          "midway the deposit splits evenly",
			at:            1800 * time.Second,
			wantRecipient: 1800,
			wantSender:    1800,
		},
		{
			name:          "at stop time fully vested",
			at:            3600 * time.Second,
			wantRecipient: 3600,
			wantSender:    0,
		},
		{
			name:          "past stop time accrual is capped",
			at:            7200 * time.Second,
			wantRecipient: 3600,
			wantSender:    0,
		},
		{
			name: "partial withdrawal reduces the recipient side only",
			mutate: func(s *Stream) {
				// 1800 already withdrawn at the halfway point.
				s.RemainingBalance = 1800
			},
			at:            2700 * time.Second,
			wantRecipient: 900,
			wantSender:    900,
		},
		{
			name: "fully vested after partial withdrawal reports the un-withdrawn share",
			mutate: func(s *Stream) {
				s.RemainingBalance = 1800
			},
			at:            5000 * time.Second,
			wantRecipient: 1800,
			wantSender:    0,
		},
		{
			name: "inactive stream reports nothing for the recipient",
			mutate: func(s *Stream) {
				s.Active = false
				s.RemainingBalance = 0
			},
			at:            1800 * time.Second,
			wantRecipient: 0,
			wantSender:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testStream(start)
			if tt.mutate != nil {
				tt.mutate(s)
			}
			gotRecipient, gotSender := s.Accrual(start.Add(tt.at))
			if gotRecipient != tt.wantRecipient || gotSender != tt.wantSender {
				t.Fatalf("Accrual() = (%d, %d), want (%d, %d)", gotRecipient, gotSender, tt.wantRecipient, tt.wantSender)
			}
		})
	}
}

func TestStreamAccrual_ConservesRemainingBalance(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for _, withdrawn := range []int64{0, 1, 600, 1800, 3599} {
		s := testStream(start)
		s.RemainingBalance = s.Deposit - withdrawn

		for _, offsetSec := range []int64{0, 1, 900, 1800, 3599, 3600, 10000} {
			if offsetSec*s.RatePerSecond < withdrawn {
				// A withdrawal can never exceed what has vested, so states
				// where withdrawn > earned are unreachable.
				continue
			}
			recipient, sender := s.Accrual(start.Add(time.Duration(offsetSec) * time.Second))
			if recipient+sender != s.RemainingBalance {
				t.Fatalf("withdrawn=%d offset=%ds: recipient %d + sender %d != remaining balance %d",
					withdrawn, offsetSec, recipient, sender, s.RemainingBalance)
			}
			if recipient < 0 || sender < 0 {
				t.Fatalf("withdrawn=%d offset=%ds: negative side in split (%d, %d)", withdrawn, offsetSec, recipient, sender)
			}
		}
	}
}

func TestStreamAccrual_IsPure(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := testStream(start)
	at := start.Add(1234 * time.Second)

	r1, snd1 := s.Accrual(at)
	r2, snd2 := s.Accrual(at)
	if r1 != r2 || snd1 != snd2 {
		t.Fatalf("repeated Accrual() disagreed: (%d, %d) then (%d, %d)", r1, snd1, r2, snd2)
	}
}
