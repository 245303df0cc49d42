package services

import (
	"time"

	"github.com/contrastkit/contrastkit/domain"
)

// HasAccess reports whether a site may use the widget given its billing
// ledger and last subscription snapshot. Either may be nil.
func HasAccess(ledger *domain.Ledger, snap *domain.PaymentSnapshot, now time.Time) bool {
	if snap != nil && isLiveStatus(snap.Status) && periodOpen(snap.CurrentPeriodEnd, now) {
		return true
	}
	if ledger == nil {
		return false
	}

	switch ledger.PaymentStatus {
	case domain.PaymentStatusTrial:
		return ledger.TrialEndDate != nil && ledger.TrialEndDate.After(now)
	case domain.PaymentStatusActive, domain.PaymentStatusTrialing:
		return periodOpen(ledger.CurrentPeriodEnd, now)
	case domain.PaymentStatusCanceled:
		return ledger.CancelAtPeriodEnd && periodOpen(ledger.CurrentPeriodEnd, now)
	default:
		return false
	}
}

func isLiveStatus(status string) bool {
	return status == domain.PaymentStatusActive || status == domain.PaymentStatusTrialing
}

// periodOpen treats an unknown period end (0) as open.
func periodOpen(end int64, now time.Time) bool {
	return end == 0 || end > now.Unix()
}
