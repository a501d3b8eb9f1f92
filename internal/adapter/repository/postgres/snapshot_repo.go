package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ruimcosta/investrack-backend/internal/domain"
)

// snapshotRepository implements domain.SnapshotRepository
type snapshotRepository struct {
	db *DB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *DB) domain.SnapshotRepository {
	return &snapshotRepository{db: db}
}

const snapshotColumns = `
	account_id, currency_id, date, movement_counter,
	realized_gains, realized_percentage, unrealized_gains, unrealized_percentage,
	invested, commissions, fees, deposited, withdrawn,
	dividends_received, options_income, other_income, open_trades, net_cash_flow
`

// Get retrieves the snapshot for the exact (account, currency, date) key
func (r *snapshotRepository) Get(ctx context.Context, accountID uuid.UUID, currencyID string, date time.Time) (*domain.FinancialSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM snapshots
		WHERE account_id = $1 AND currency_id = $2 AND date = $3
	`

	row := r.db.QueryRowContext(ctx, query, accountID, currencyID, domain.DayOf(date))
	snapshot, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return snapshot, nil
}

// GetDatesAfter returns every snapshot date strictly after the given date,
// ascending
func (r *snapshotRepository) GetDatesAfter(ctx context.Context, accountID uuid.UUID, currencyID string, date time.Time) ([]time.Time, error) {
	query := `
		SELECT date
		FROM snapshots
		WHERE account_id = $1 AND currency_id = $2 AND date > $3
		ORDER BY date
	`

	rows, err := r.db.QueryContext(ctx, query, accountID, currencyID, domain.DayOf(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot date: %w", err)
		}
		dates = append(dates, domain.DayOf(d))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshot dates: %w", err)
	}
	return dates, nil
}

// Put inserts the snapshot or supersedes the existing row in place
func (r *snapshotRepository) Put(ctx context.Context, snapshot *domain.FinancialSnapshot) error {
	query := `
		INSERT INTO snapshots (` + snapshotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (account_id, currency_id, date) DO UPDATE SET
			movement_counter = EXCLUDED.movement_counter,
			realized_gains = EXCLUDED.realized_gains,
			realized_percentage = EXCLUDED.realized_percentage,
			unrealized_gains = EXCLUDED.unrealized_gains,
			unrealized_percentage = EXCLUDED.unrealized_percentage,
			invested = EXCLUDED.invested,
			commissions = EXCLUDED.commissions,
			fees = EXCLUDED.fees,
			deposited = EXCLUDED.deposited,
			withdrawn = EXCLUDED.withdrawn,
			dividends_received = EXCLUDED.dividends_received,
			options_income = EXCLUDED.options_income,
			other_income = EXCLUDED.other_income,
			open_trades = EXCLUDED.open_trades,
			net_cash_flow = EXCLUDED.net_cash_flow
	`

	_, err := r.db.ExecContext(ctx, query,
		snapshot.AccountID,
		snapshot.CurrencyID,
		domain.DayOf(snapshot.Date),
		snapshot.MovementCounter,
		snapshot.RealizedGains.String(),
		snapshot.RealizedPercentage.String(),
		snapshot.UnrealizedGains.String(),
		snapshot.UnrealizedPercentage.String(),
		snapshot.Invested.String(),
		snapshot.Commissions.String(),
		snapshot.Fees.String(),
		snapshot.Deposited.String(),
		snapshot.Withdrawn.String(),
		snapshot.DividendsReceived.String(),
		snapshot.OptionsIncome.String(),
		snapshot.OtherIncome.String(),
		snapshot.OpenTrades,
		snapshot.NetCashFlow.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

// GetForAccountOnDate retrieves all per-currency snapshots for one account on
// one date
func (r *snapshotRepository) GetForAccountOnDate(ctx context.Context, accountID uuid.UUID, date time.Time) ([]*domain.FinancialSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM snapshots
		WHERE account_id = $1 AND date = $2
		ORDER BY currency_id
	`

	rows, err := r.db.QueryContext(ctx, query, accountID, domain.DayOf(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query account snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*domain.FinancialSnapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account snapshot: %w", err)
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate account snapshots: %w", err)
	}
	return snapshots, nil
}

// scanner abstracts sql.Row and sql.Rows for scanSnapshot
type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*domain.FinancialSnapshot, error) {
	var (
		snapshot             domain.FinancialSnapshot
		realizedGains        string
		realizedPercentage   string
		unrealizedGains      string
		unrealizedPercentage string
		invested             string
		commissions          string
		fees                 string
		deposited            string
		withdrawn            string
		dividendsReceived    string
		optionsIncome        string
		otherIncome          string
		netCashFlow          string
	)

	err := row.Scan(
		&snapshot.AccountID,
		&snapshot.CurrencyID,
		&snapshot.Date,
		&snapshot.MovementCounter,
		&realizedGains,
		&realizedPercentage,
		&unrealizedGains,
		&unrealizedPercentage,
		&invested,
		&commissions,
		&fees,
		&deposited,
		&withdrawn,
		&dividendsReceived,
		&optionsIncome,
		&otherIncome,
		&snapshot.OpenTrades,
		&netCashFlow,
	)
	if err != nil {
		return nil, err
	}
	snapshot.Date = domain.DayOf(snapshot.Date)

	if err := parseDecimals(
		decimalField{realizedGains, &snapshot.RealizedGains},
		decimalField{realizedPercentage, &snapshot.RealizedPercentage},
		decimalField{unrealizedGains, &snapshot.UnrealizedGains},
		decimalField{unrealizedPercentage, &snapshot.UnrealizedPercentage},
		decimalField{invested, &snapshot.Invested},
		decimalField{commissions, &snapshot.Commissions},
		decimalField{fees, &snapshot.Fees},
		decimalField{deposited, &snapshot.Deposited},
		decimalField{withdrawn, &snapshot.Withdrawn},
		decimalField{dividendsReceived, &snapshot.DividendsReceived},
		decimalField{optionsIncome, &snapshot.OptionsIncome},
		decimalField{otherIncome, &snapshot.OtherIncome},
		decimalField{netCashFlow, &snapshot.NetCashFlow},
	); err != nil {
		return nil, err
	}

	return &snapshot, nil
}
