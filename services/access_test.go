package services

import (
	"testing"
	"time"

	"github.com/contrastkit/contrastkit/domain"
	"github.com/stretchr/testify/assert"
)

func TestHasAccess(t *testing.T) {
	now := fixedNow
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	cases := []struct {
		name   string
		ledger *domain.Ledger
		snap   *domain.PaymentSnapshot
		want   bool
	}{
		{"nothing", nil, nil, false},
		{"active snapshot", nil, &domain.PaymentSnapshot{Status: "active", CurrentPeriodEnd: future.Unix()}, true},
		{"trialing snapshot without period", nil, &domain.PaymentSnapshot{Status: "trialing"}, true},
		{"active snapshot past period", nil, &domain.PaymentSnapshot{Status: "active", CurrentPeriodEnd: past.Unix()}, false},
		{"past_due snapshot", nil, &domain.PaymentSnapshot{Status: "past_due"}, false},
		{"running trial", &domain.Ledger{PaymentStatus: "trial", TrialEndDate: &future}, nil, true},
		{"expired trial", &domain.Ledger{PaymentStatus: "trial", TrialEndDate: &past}, nil, false},
		{"trial without end", &domain.Ledger{PaymentStatus: "trial"}, nil, false},
		{"active ledger", &domain.Ledger{PaymentStatus: "active", CurrentPeriodEnd: future.Unix()}, nil, true},
		{"canceled at period end", &domain.Ledger{PaymentStatus: "canceled", CancelAtPeriodEnd: true, CurrentPeriodEnd: future.Unix()}, nil, true},
		{"canceled now", &domain.Ledger{PaymentStatus: "canceled", CurrentPeriodEnd: future.Unix()}, nil, false},
		{"unknown", &domain.Ledger{PaymentStatus: "unknown"}, nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HasAccess(tc.ledger, tc.snap, now))
		})
	}
}
