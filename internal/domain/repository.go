package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrSnapshotNotFound is returned when no snapshot exists for a given
// (account, currency, date) key.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrPriceUnavailable is returned when the external price lookup has no
// current price for a ticker. Callers degrade to zero unrealized gains.
var ErrPriceUnavailable = errors.New("current price unavailable")

// MovementRepository defines the interface for movement persistence operations
type MovementRepository interface {
	// Create persists a new movement. Movements are immutable afterwards.
	Create(ctx context.Context, movement *Movement) error

	// GetMovements returns the aggregate of all movements for the account and
	// currency with timestamp <= until.
	GetMovements(ctx context.Context, accountID uuid.UUID, currencyID string, until time.Time) (*MovementAggregate, error)
}

// SnapshotRepository defines the interface for snapshot persistence operations
type SnapshotRepository interface {
	// Get retrieves the snapshot for the exact (account, currency, date) key.
	// Returns ErrSnapshotNotFound when none exists.
	Get(ctx context.Context, accountID uuid.UUID, currencyID string, date time.Time) (*FinancialSnapshot, error)

	// GetDatesAfter returns every existing snapshot date for the account and
	// currency strictly after the given date, in ascending order.
	GetDatesAfter(ctx context.Context, accountID uuid.UUID, currencyID string, date time.Time) ([]time.Time, error)

	// Put inserts the snapshot or supersedes the existing one in place.
	Put(ctx context.Context, snapshot *FinancialSnapshot) error

	// GetForAccountOnDate retrieves all per-currency snapshots for one
	// account on one date.
	GetForAccountOnDate(ctx context.Context, accountID uuid.UUID, date time.Time) ([]*FinancialSnapshot, error)
}

// PriceService defines the interface for the external current-price lookup
// used for stock unrealized gains. Not a core responsibility of the engine.
type PriceService interface {
	// GetCurrentPrice returns the current price for a ticker, or
	// ErrPriceUnavailable when no quote can be obtained.
	GetCurrentPrice(ctx context.Context, tickerID string) (decimal.Decimal, error)
}
