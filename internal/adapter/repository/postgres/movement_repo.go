package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/ruimcosta/investrack-backend/internal/domain"
)

// movementRepository implements domain.MovementRepository
type movementRepository struct {
	db *DB
}

// NewMovementRepository creates a new movement repository
func NewMovementRepository(db *DB) domain.MovementRepository {
	return &movementRepository{db: db}
}

// Create persists a new movement. The sequence is assigned by the database
// and written back into the movement, so insertion order survives as the
// tie-break for identical timestamps.
func (r *movementRepository) Create(ctx context.Context, movement *domain.Movement) error {
	if err := movement.Validate(); err != nil {
		return fmt.Errorf("invalid movement: %w", err)
	}

	query := `
		INSERT INTO movements (
			id, account_id, currency_id, ticker_id, kind, cash_kind,
			trade_code, option_type, strike, expiration, quantity,
			amount, commission, fees, source_currency_id, ts
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING sequence
	`

	var expiration sql.NullTime
	if !movement.Expiration.IsZero() {
		expiration = sql.NullTime{Time: movement.Expiration.UTC(), Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		movement.ID,
		movement.AccountID,
		movement.CurrencyID,
		movement.TickerID,
		string(movement.Kind),
		string(movement.CashKind),
		string(movement.TradeCode),
		string(movement.OptionType),
		movement.Strike.String(),
		expiration,
		movement.Quantity.String(),
		movement.Amount.String(),
		movement.Commission.String(),
		movement.Fees.String(),
		movement.SourceCurrencyID,
		movement.Timestamp.UTC(),
	).Scan(&movement.Sequence)
	if err != nil {
		return fmt.Errorf("failed to insert movement: %w", err)
	}

	return nil
}

// GetMovements returns the aggregate of all movements for the account and
// currency with timestamp <= until.
func (r *movementRepository) GetMovements(ctx context.Context, accountID uuid.UUID, currencyID string, until time.Time) (*domain.MovementAggregate, error) {
	query := `
		SELECT id, sequence, account_id, currency_id, ticker_id, kind,
		       cash_kind, trade_code, option_type, strike, expiration,
		       quantity, amount, commission, fees, source_currency_id, ts
		FROM movements
		WHERE account_id = $1 AND currency_id = $2 AND ts <= $3
		ORDER BY ts, sequence
	`

	rows, err := r.db.QueryContext(ctx, query, accountID, currencyID, until.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var movements []domain.Movement
	for rows.Next() {
		movement, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, movement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate movements: %w", err)
	}

	return domain.NewMovementAggregate(movements), nil
}

func scanMovement(rows *sql.Rows) (domain.Movement, error) {
	var (
		movement   domain.Movement
		kind       string
		cashKind   string
		tradeCode  string
		optionType string
		strike     string
		expiration sql.NullTime
		quantity   string
		amount     string
		commission string
		fees       string
	)

	err := rows.Scan(
		&movement.ID,
		&movement.Sequence,
		&movement.AccountID,
		&movement.CurrencyID,
		&movement.TickerID,
		&kind,
		&cashKind,
		&tradeCode,
		&optionType,
		&strike,
		&expiration,
		&quantity,
		&amount,
		&commission,
		&fees,
		&movement.SourceCurrencyID,
		&movement.Timestamp,
	)
	if err != nil {
		return domain.Movement{}, fmt.Errorf("failed to scan movement: %w", err)
	}

	movement.Kind = domain.MovementKind(kind)
	movement.CashKind = domain.CashMovementKind(cashKind)
	movement.TradeCode = domain.TradeCode(tradeCode)
	movement.OptionType = domain.OptionType(optionType)
	if expiration.Valid {
		movement.Expiration = expiration.Time.UTC()
	}

	if err := parseDecimals(
		decimalField{strike, &movement.Strike},
		decimalField{quantity, &movement.Quantity},
		decimalField{amount, &movement.Amount},
		decimalField{commission, &movement.Commission},
		decimalField{fees, &movement.Fees},
	); err != nil {
		return domain.Movement{}, err
	}

	return movement, nil
}

type decimalField struct {
	raw    string
	target *decimal.Decimal
}

func parseDecimals(fields ...decimalField) error {
	for _, field := range fields {
		value, err := decimal.NewFromString(field.raw)
		if err != nil {
			return fmt.Errorf("failed to parse decimal %q: %w", field.raw, err)
		}
		*field.target = value
	}
	return nil
}
