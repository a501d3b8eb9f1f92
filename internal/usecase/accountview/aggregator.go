package accountview

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ruimcosta/investrack-backend/internal/domain"
)

// Service rolls per-currency snapshots up into one account-level view
type Service struct {
	SnapshotRepo domain.SnapshotRepository
}

// NewService creates a new account view service instance
func NewService(snapshotRepo domain.SnapshotRepository) *Service {
	return &Service{SnapshotRepo: snapshotRepo}
}

// RecalculateAccountSnapshot builds the account's multi-currency roll-up for
// one date. The per-currency snapshot with the greatest movement counter
// becomes the account's primary financial snapshot; the rest are carried as
// secondary-currency snapshots in encounter order. Movement-counter ties are
// broken by the lowest currency id, so the result is deterministic.
// Returns domain.ErrSnapshotNotFound when no currency had activity.
func (s *Service) RecalculateAccountSnapshot(ctx context.Context, accountID uuid.UUID, date time.Time) (*domain.AccountSnapshot, error) {
	day := domain.DayOf(date)

	snapshots, err := s.SnapshotRepo.GetForAccountOnDate(ctx, accountID, day)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, domain.ErrSnapshotNotFound
	}

	primary := snapshots[0]
	for _, candidate := range snapshots[1:] {
		if candidate.MovementCounter > primary.MovementCounter {
			primary = candidate
			continue
		}
		if candidate.MovementCounter == primary.MovementCounter &&
			candidate.CurrencyID < primary.CurrencyID {
			primary = candidate
		}
	}

	view := &domain.AccountSnapshot{
		AccountID: accountID,
		Date:      day,
		Financial: primary,
	}
	for _, snapshot := range snapshots {
		if snapshot != primary {
			view.OtherCurrencies = append(view.OtherCurrencies, snapshot)
		}
	}
	return view, nil
}
