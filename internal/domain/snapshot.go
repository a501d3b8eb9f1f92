package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// FinancialSnapshot represents the point-in-time financial aggregate for one
// account, one currency, one date. A snapshot is created the first time a
// movement exists for its key and is only ever superseded in place by the
// cascade engine; it is never deleted.
type FinancialSnapshot struct {
	AccountID  uuid.UUID
	CurrencyID string
	Date       time.Time // normalized to midnight UTC

	// MovementCounter is the cumulative count of all movement records up to
	// and including Date, from account inception. It is not reset per period.
	MovementCounter int64

	RealizedGains        decimal.Decimal
	RealizedPercentage   decimal.Decimal
	UnrealizedGains      decimal.Decimal
	UnrealizedPercentage decimal.Decimal
	Invested             decimal.Decimal
	Commissions          decimal.Decimal
	Fees                 decimal.Decimal
	Deposited            decimal.Decimal
	Withdrawn            decimal.Decimal
	DividendsReceived    decimal.Decimal
	OptionsIncome        decimal.Decimal
	OtherIncome          decimal.Decimal
	OpenTrades           bool
	NetCashFlow          decimal.Decimal
}

// ComputeNetCashFlow recomputes the snapshot's net cash flow from its parts:
// deposits minus withdrawals minus costs plus all income streams.
func (s *FinancialSnapshot) ComputeNetCashFlow() decimal.Decimal {
	return s.Deposited.
		Sub(s.Withdrawn).
		Sub(s.Commissions).
		Sub(s.Fees).
		Add(s.DividendsReceived).
		Add(s.OptionsIncome).
		Add(s.OtherIncome)
}

// RefreshDerived recomputes NetCashFlow and the percentage fields from the
// snapshot's base fields. Percentages use NetCashFlow as the denominator and
// are zero when NetCashFlow is not positive.
func (s *FinancialSnapshot) RefreshDerived() {
	s.NetCashFlow = s.ComputeNetCashFlow()
	s.RealizedPercentage = PercentageOf(s.RealizedGains, s.NetCashFlow)
	s.UnrealizedPercentage = PercentageOf(s.UnrealizedGains, s.NetCashFlow)
}

// PercentageOf returns gain/base*100, or zero when base is not positive.
func PercentageOf(gain, base decimal.Decimal) decimal.Decimal {
	if base.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return gain.Div(base).Mul(oneHundred)
}

// AccountSnapshot is the multi-currency roll-up for one account and date:
// the primary per-currency snapshot plus the remaining currencies' snapshots.
type AccountSnapshot struct {
	AccountID       uuid.UUID
	Date            time.Time
	Financial       *FinancialSnapshot
	OtherCurrencies []*FinancialSnapshot
}
