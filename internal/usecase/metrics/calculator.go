package metrics

import (
	"github.com/shopspring/decimal"
	"github.com/ruimcosta/investrack-backend/internal/domain"
	"github.com/ruimcosta/investrack-backend/internal/usecase/options"
)

// Recalculated is the full metric set recomputed from a movement aggregate.
// All fields describe the cumulative state up to and including the aggregate's
// cut-off date. The calculator is pure: it performs no I/O.
type Recalculated struct {
	Deposited         decimal.Decimal
	Withdrawn         decimal.Decimal
	Invested          decimal.Decimal
	RealizedGains     decimal.Decimal
	DividendsReceived decimal.Decimal
	OptionsIncome     decimal.Decimal
	OtherIncome       decimal.Decimal
	Commissions       decimal.Decimal
	Fees              decimal.Decimal

	// MovementCounter counts every movement record of any kind, cumulative
	// from account inception.
	MovementCounter int64

	// OpenPositions maps ticker to remaining share quantity; CostBasis maps
	// ticker to the cost of the open lots behind that quantity.
	OpenPositions map[string]decimal.Decimal
	CostBasis     map[string]decimal.Decimal

	HasOpenPositions      bool
	OptionUnrealizedGains decimal.Decimal
	StockUnrealizedGains  decimal.Decimal

	Warnings []string
}

// IsZeroBaseline reports whether the recalculation is indistinguishable from
// an empty movement set for realized-gain purposes. The cascade engine uses
// this to avoid erasing realized-gain history that no new closing movement
// justifies changing.
func (r *Recalculated) IsZeroBaseline() bool {
	return r.RealizedGains.IsZero()
}

// Calculate computes the full metric set from a movement aggregate.
// currentPrices maps ticker to current price and feeds stock unrealized
// gains; it is supplied by the caller because price lookup is an external
// collaborator concern. Tickers without a price contribute zero.
func Calculate(agg *domain.MovementAggregate, currentPrices map[string]decimal.Decimal) *Recalculated {
	result := &Recalculated{
		Deposited:             decimal.Zero,
		Withdrawn:             decimal.Zero,
		Invested:              decimal.Zero,
		RealizedGains:         decimal.Zero,
		DividendsReceived:     decimal.Zero,
		OptionsIncome:         decimal.Zero,
		OtherIncome:           decimal.Zero,
		Commissions:           decimal.Zero,
		Fees:                  decimal.Zero,
		OptionUnrealizedGains: decimal.Zero,
		StockUnrealizedGains:  decimal.Zero,
		MovementCounter:       agg.Count(),
	}

	result.sumCashMovements(agg.Cash)
	result.sumDividends(agg.Dividends, agg.DividendTaxes)

	ledger := newShareLedger()
	for i := range agg.EquityTrades {
		trade := &agg.EquityTrades[i]
		result.Commissions = result.Commissions.Add(trade.Commission.Abs())
		result.Fees = result.Fees.Add(trade.Fees.Abs())
		if trade.IsOpeningTrade() {
			ledger.buy(trade)
		} else {
			ledger.sell(trade)
		}
	}
	result.RealizedGains = result.RealizedGains.Add(ledger.realized)
	result.Warnings = append(result.Warnings, ledger.warnings...)
	result.OpenPositions, result.CostBasis = ledger.openPositions()

	optionSummary := options.Match(agg.OptionTrades)
	for i := range agg.OptionTrades {
		trade := &agg.OptionTrades[i]
		result.Commissions = result.Commissions.Add(trade.Commission.Abs())
		result.Fees = result.Fees.Add(trade.Fees.Abs())
	}
	result.RealizedGains = result.RealizedGains.Add(optionSummary.RealizedGains)
	result.OptionsIncome = optionSummary.OptionsIncome
	result.OptionUnrealizedGains = optionSummary.UnrealizedGains
	result.Warnings = append(result.Warnings, optionSummary.Warnings...)

	// Invested: cost basis of open share lots plus option capital at risk.
	for _, cost := range result.CostBasis {
		result.Invested = result.Invested.Add(cost)
	}
	result.Invested = result.Invested.Add(optionSummary.OptionsInvestment)

	result.HasOpenPositions = len(result.OpenPositions) > 0 || optionSummary.OpenContracts.IsPositive()

	// Stock unrealized gains: market value minus cost basis for every open
	// position with a known price.
	for ticker, qty := range result.OpenPositions {
		price, ok := currentPrices[ticker]
		if !ok {
			continue
		}
		marketValue := qty.Mul(price)
		result.StockUnrealizedGains = result.StockUnrealizedGains.
			Add(marketValue).Sub(result.CostBasis[ticker])
	}

	return result
}

// sumCashMovements accumulates cash movement amounts by kind. Conversions
// move money between currency buckets: a positive amount is an inflow into
// this currency (counted as deposited), a negative amount an outflow
// (counted as withdrawn).
func (r *Recalculated) sumCashMovements(cash []domain.Movement) {
	for i := range cash {
		m := &cash[i]
		r.Commissions = r.Commissions.Add(m.Commission.Abs())
		r.Fees = r.Fees.Add(m.Fees.Abs())

		switch m.CashKind {
		case domain.CashKindDeposit:
			r.Deposited = r.Deposited.Add(m.Amount.Abs())
		case domain.CashKindWithdrawal:
			r.Withdrawn = r.Withdrawn.Add(m.Amount.Abs())
		case domain.CashKindFee:
			r.Fees = r.Fees.Add(m.Amount.Abs())
		case domain.CashKindInterest:
			r.OtherIncome = r.OtherIncome.Add(m.Amount)
		case domain.CashKindConversion:
			if m.Amount.IsNegative() {
				r.Withdrawn = r.Withdrawn.Add(m.Amount.Abs())
			} else {
				r.Deposited = r.Deposited.Add(m.Amount)
			}
		}
	}
}

// sumDividends nets dividend taxes against dividends received.
func (r *Recalculated) sumDividends(dividends, taxes []domain.Movement) {
	for i := range dividends {
		m := &dividends[i]
		r.DividendsReceived = r.DividendsReceived.Add(m.Amount)
		r.Commissions = r.Commissions.Add(m.Commission.Abs())
		r.Fees = r.Fees.Add(m.Fees.Abs())
	}
	for i := range taxes {
		m := &taxes[i]
		r.DividendsReceived = r.DividendsReceived.Sub(m.Amount.Abs())
	}
}
