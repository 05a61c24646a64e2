package leads

import (
	"context"
	"fmt"
	"time"

	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/metrics"
	"ipo-readiness/internal/models"
	"ipo-readiness/internal/store"
)

// Versioned is any record guarded by an optimistic lock.
type Versioned interface {
	GetVersion() int64
}

// CheckOptimisticLock fails with CONCURRENT_MODIFICATION when record has moved
// past the version the caller read. The repository update repeats the check
// atomically; this one fails fast before any work is done.
func CheckOptimisticLock(entity, id string, record Versioned, expected int64) error {
	if record.GetVersion() != expected {
		metrics.OptimisticLockConflicts.WithLabelValues(entity).Inc()
		return errors.NewConcurrentModificationError(entity, id, expected).
			WithMetadata("currentVersion", record.GetVersion())
	}
	return nil
}

// GenerateLeadID draws the next number from the year's counter. The counter
// is incremented by a single atomic statement, so concurrent callers never
// share a number.
func GenerateLeadID(ctx context.Context, tx store.Tx, now time.Time) (string, error) {
	year := now.UTC().Year()
	seq, err := tx.Leads().NextSequence(ctx, year)
	if err != nil {
		return "", err
	}
	return FormatLeadID(year, seq), nil
}

func FormatLeadID(year int, seq int64) string {
	return fmt.Sprintf("IPO-%d-%04d", year, seq)
}

var transitions = map[models.LeadStatus][]models.LeadStatus{
	models.LeadStatusNew:            {models.LeadStatusAssigned},
	models.LeadStatusAssigned:       {models.LeadStatusInReview},
	models.LeadStatusInReview:       {models.LeadStatusPaymentPending},
	models.LeadStatusPaymentPending: {models.LeadStatusCompleted},
}

// ValidateTransition checks a lead status change against the lead graph.
// Payment confirmation bypasses it; see ConfirmPayment.
func ValidateTransition(from, to models.LeadStatus) error {
	if !to.Valid() {
		return errors.NewInvalidInputError(fmt.Sprintf("unknown lead status %q", to))
	}
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return errors.NewInvalidStatusTransitionError("lead", string(from), string(to))
}
