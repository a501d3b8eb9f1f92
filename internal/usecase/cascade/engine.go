package cascade

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/ruimcosta/investrack-backend/internal/domain"
	"github.com/ruimcosta/investrack-backend/internal/logger"
	"github.com/ruimcosta/investrack-backend/internal/usecase/metrics"
)

// Warning is a non-fatal, per-date condition detected during a cascade run
// (an unmatched close, an unavailable price quote). Warnings are aggregated
// and returned to the caller; they never abort the run.
type Warning struct {
	Date    time.Time
	Message string
}

// Result describes one completed cascade run. It is only produced after all
// touched snapshots are durably persisted, so callers can use it as the
// signal that dependent reads will not observe stale data.
type Result struct {
	AccountID  uuid.UUID
	CurrencyID string
	Dates      []time.Time // touched snapshot dates, ascending
	Warnings   []Warning
}

// Service is the cascade engine. It recomputes the snapshot at a changed
// date and propagates the recalculation forward through every later existing
// snapshot date, in ascending order. Repositories and the price lookup are
// injected; the service holds no other state besides the per-key locks.
type Service struct {
	MovementRepo domain.MovementRepository
	SnapshotRepo domain.SnapshotRepository
	Prices       domain.PriceService

	// OnComplete, when set, is invoked synchronously after a run's final
	// write. It gives UI-refresh callers an explicit completion signal
	// instead of a fire-and-forget broadcast.
	OnComplete func(*Result)

	locks *keyedLocks
}

// NewService creates a new cascade engine instance
func NewService(movementRepo domain.MovementRepository, snapshotRepo domain.SnapshotRepository, prices domain.PriceService) *Service {
	return &Service{
		MovementRepo: movementRepo,
		SnapshotRepo: snapshotRepo,
		Prices:       prices,
		locks:        newKeyedLocks(),
	}
}

// RecalculateFrom recomputes the snapshot at the given date and cascades the
// recalculation into every later existing snapshot date for the same account
// and currency. A run is a unit: persistence failures abort it and the whole
// run should be retried, since later snapshots depend on the new state of
// earlier ones. Runs for the same (account, currency) are serialized.
func (s *Service) RecalculateFrom(ctx context.Context, accountID uuid.UUID, currencyID string, date time.Time) (*Result, error) {
	lock := s.locks.acquire(accountID.String() + "/" + currencyID)
	defer lock.Unlock()

	day := domain.DayOf(date)
	result := &Result{
		AccountID:  accountID,
		CurrencyID: currencyID,
	}

	logger.L.Debug("cascade started",
		"accountID", accountID, "currencyID", currencyID, "from", day.Format("2006-01-02"))

	// 1. Recompute the snapshot at the changed date itself.
	if err := s.recomputeDate(ctx, accountID, currencyID, day, result); err != nil {
		return nil, err
	}

	// 2. Walk every existing snapshot date strictly after it, ascending.
	// Each later snapshot is recomputed from the cumulative aggregate up to
	// that date, so the new movement reaches every later movement counter
	// and cash total without touching snapshots that predate the change.
	laterDates, err := s.SnapshotRepo.GetDatesAfter(ctx, accountID, currencyID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot dates after %s: %w", day.Format("2006-01-02"), err)
	}
	for _, later := range laterDates {
		if err := s.recomputeDate(ctx, accountID, currencyID, domain.DayOf(later), result); err != nil {
			return nil, err
		}
	}

	logger.L.Info("cascade completed",
		"accountID", accountID, "currencyID", currencyID,
		"dates", len(result.Dates), "warnings", len(result.Warnings))

	if s.OnComplete != nil {
		s.OnComplete(result)
	}
	return result, nil
}

// recomputeDate runs the metrics calculator over all movements up to the end
// of the given day, merges the result with the existing snapshot under the
// direct-update/preservation rule, and persists the outcome.
func (s *Service) recomputeDate(ctx context.Context, accountID uuid.UUID, currencyID string, day time.Time, result *Result) error {
	agg, err := s.MovementRepo.GetMovements(ctx, accountID, currencyID, domain.EndOfDay(day))
	if err != nil {
		return fmt.Errorf("failed to load movements up to %s: %w", day.Format("2006-01-02"), err)
	}

	existing, err := s.SnapshotRepo.Get(ctx, accountID, currencyID, day)
	if err != nil {
		if !errors.Is(err, domain.ErrSnapshotNotFound) {
			return fmt.Errorf("failed to load snapshot for %s: %w", day.Format("2006-01-02"), err)
		}
		existing = nil
	}

	recalc := metrics.Calculate(agg, nil)
	for _, msg := range recalc.Warnings {
		result.Warnings = append(result.Warnings, Warning{Date: day, Message: msg})
	}

	stockUnrealized := s.stockUnrealizedGains(ctx, recalc, day, result)

	snapshot := applyWithPreservation(existing, recalc, agg, stockUnrealized, accountID, currencyID, day)

	if err := s.SnapshotRepo.Put(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to persist snapshot for %s: %w", day.Format("2006-01-02"), err)
	}
	result.Dates = append(result.Dates, day)
	return nil
}

// stockUnrealizedGains sums market value minus cost basis across the open
// share positions. A missing quote degrades that position to zero and is
// reported as a warning, never as a failure.
func (s *Service) stockUnrealizedGains(ctx context.Context, recalc *metrics.Recalculated, day time.Time, result *Result) decimal.Decimal {
	total := decimal.Zero
	if len(recalc.OpenPositions) == 0 || s.Prices == nil {
		return total
	}

	tickers := make([]string, 0, len(recalc.OpenPositions))
	for ticker := range recalc.OpenPositions {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	for _, ticker := range tickers {
		price, err := s.Prices.GetCurrentPrice(ctx, ticker)
		if err != nil {
			result.Warnings = append(result.Warnings, Warning{
				Date:    day,
				Message: fmt.Sprintf("no current price for %s, unrealized gains default to zero: %v", ticker, err),
			})
			continue
		}
		marketValue := recalc.OpenPositions[ticker].Mul(price)
		total = total.Add(marketValue).Sub(recalc.CostBasis[ticker])
	}
	return total
}

// applyWithPreservation builds the snapshot for one date from the fresh
// recalculation and the existing snapshot.
//
// Decision rule: when the aggregate contains at least one closing movement
// dated exactly on the snapshot's day, the recalculated realized figures
// fully replace the existing ones (direct update, no accumulation). When no
// closing movement exists at that date, realized gains (and deposited, when
// the recalculation is at its zero baseline) are preserved from the existing
// snapshot, so realized-gain history is never erased by a recalculation that
// has no new closing movement to justify a change. Non-realized fields are
// always taken from the fresh recalculation.
func applyWithPreservation(existing *domain.FinancialSnapshot, recalc *metrics.Recalculated, agg *domain.MovementAggregate, stockUnrealized decimal.Decimal, accountID uuid.UUID, currencyID string, day time.Time) *domain.FinancialSnapshot {
	snapshot := &domain.FinancialSnapshot{
		AccountID:         accountID,
		CurrencyID:        currencyID,
		Date:              day,
		MovementCounter:   recalc.MovementCounter,
		RealizedGains:     recalc.RealizedGains,
		UnrealizedGains:   stockUnrealized.Add(recalc.OptionUnrealizedGains),
		Invested:          recalc.Invested,
		Commissions:       recalc.Commissions,
		Fees:              recalc.Fees,
		Deposited:         recalc.Deposited,
		Withdrawn:         recalc.Withdrawn,
		DividendsReceived: recalc.DividendsReceived,
		OptionsIncome:     recalc.OptionsIncome,
		OtherIncome:       recalc.OtherIncome,
		OpenTrades:        recalc.HasOpenPositions,
	}

	if existing != nil && !agg.HasClosingMovementOn(day) {
		if recalc.IsZeroBaseline() {
			snapshot.RealizedGains = existing.RealizedGains
		}
		if recalc.Deposited.IsZero() && !existing.Deposited.IsZero() {
			snapshot.Deposited = existing.Deposited
		}
	}

	snapshot.RefreshDerived()
	return snapshot
}
