package metrics

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/ruimcosta/investrack-backend/internal/domain"
)

// shareLot is a single equity purchase awaiting sale, used for oldest-lot-first
// cost basis matching.
type shareLot struct {
	quantity decimal.Decimal
	cost     decimal.Decimal // total cost of the remaining quantity, fees included
}

// shareLedger tracks open share lots per ticker and accumulates realized gains
// as sells consume the oldest lots first.
type shareLedger struct {
	lots     map[string][]*shareLot
	order    []string // ticker insertion order, for deterministic sweeps
	realized decimal.Decimal
	warnings []string
}

func newShareLedger() *shareLedger {
	return &shareLedger{
		lots:     make(map[string][]*shareLot),
		realized: decimal.Zero,
	}
}

// buy pushes a new lot. Cost is the absolute net cash paid, so commission and
// fees become part of the lot's cost basis.
func (l *shareLedger) buy(trade *domain.Movement) {
	if _, seen := l.lots[trade.TickerID]; !seen {
		l.order = append(l.order, trade.TickerID)
	}
	l.lots[trade.TickerID] = append(l.lots[trade.TickerID], &shareLot{
		quantity: trade.Quantity,
		cost:     trade.NetAmount().Abs(),
	})
}

// sell consumes lots front-first, realizing proceeds minus the matched cost.
// Sale proceeds are net of commission and fees. An unmatched sale quantity is
// flagged and its proceeds realized as-is (best effort).
func (l *shareLedger) sell(trade *domain.Movement) {
	proceeds := trade.NetAmount()
	remaining := trade.Quantity
	queue := l.lots[trade.TickerID]

	for remaining.IsPositive() && len(queue) > 0 {
		lot := queue[0]

		matched := decimal.Min(remaining, lot.quantity)
		costPortion := lot.cost.Mul(matched).Div(lot.quantity)
		proceedsPortion := proceeds.Mul(matched).Div(trade.Quantity)

		l.realized = l.realized.Add(proceedsPortion).Sub(costPortion)

		lot.quantity = lot.quantity.Sub(matched)
		lot.cost = lot.cost.Sub(costPortion)
		remaining = remaining.Sub(matched)

		if lot.quantity.IsZero() {
			queue = queue[1:]
		}
	}
	l.lots[trade.TickerID] = queue

	if remaining.IsPositive() {
		unmatchedPortion := proceeds.Mul(remaining).Div(trade.Quantity)
		l.realized = l.realized.Add(unmatchedPortion)
		l.warnings = append(l.warnings, fmt.Sprintf(
			"equity sale %s (%s) has no matching purchase lot for quantity %s",
			trade.ID, trade.TickerID, remaining))
	}
}

// openPositions returns remaining quantity and cost basis per ticker,
// skipping tickers whose position is fully closed.
func (l *shareLedger) openPositions() (quantities, costBasis map[string]decimal.Decimal) {
	quantities = make(map[string]decimal.Decimal)
	costBasis = make(map[string]decimal.Decimal)
	for _, ticker := range l.order {
		qty := decimal.Zero
		cost := decimal.Zero
		for _, lot := range l.lots[ticker] {
			qty = qty.Add(lot.quantity)
			cost = cost.Add(lot.cost)
		}
		if qty.IsPositive() {
			quantities[ticker] = qty
			costBasis[ticker] = cost
		}
	}
	return quantities, costBasis
}
