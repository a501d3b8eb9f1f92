package options

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ruimcosta/investrack-backend/internal/domain"
)

// Summary holds the option figures produced by one matching pass.
type Summary struct {
	// RealizedGains is the sum of net premiums over every matched
	// open/close pair, prorated by matched quantity.
	RealizedGains decimal.Decimal
	// OptionsIncome is the sum of every trade's raw signed premium,
	// independent of matching order.
	OptionsIncome decimal.Decimal
	// OptionsInvestment is the capital at risk: the sum of absolute net
	// premiums of every opening buy trade.
	OptionsInvestment decimal.Decimal
	// UnrealizedGains is the signed net premium of every lot still open as
	// of the evaluation instant.
	UnrealizedGains decimal.Decimal
	// OpenContracts is the total remaining quantity across all open lots.
	OpenContracts decimal.Decimal
	// Warnings collects per-trade inconsistencies (e.g. a close with no
	// matching open lot). They indicate an import or data-entry defect and
	// are reported to the caller instead of aborting the pass.
	Warnings []string
}

// contractKey identifies one option contract: lots are only ever matched
// within the same ticker, type, strike and expiration.
type contractKey struct {
	ticker     string
	optionType domain.OptionType
	strike     string
	expiration time.Time
}

func keyOf(m *domain.Movement) contractKey {
	return contractKey{
		ticker:     m.TickerID,
		optionType: m.OptionType,
		strike:     m.Strike.String(),
		expiration: m.Expiration.UTC(),
	}
}

// positionLot is an open option quantity awaiting a matching close. The lot
// carries the signed net premium for its remaining quantity and is discarded
// once fully closed.
type positionLot struct {
	quantity   decimal.Decimal
	netPremium decimal.Decimal
}

// Match pairs opening and closing option trades in chronological order using
// a FIFO queue per contract, and returns the realized/unrealized breakdown as
// of the end of the trade list. Trades must already be sorted by
// (timestamp, sequence); movement aggregates guarantee that order.
func Match(trades []domain.Movement) Summary {
	summary := Summary{
		RealizedGains:     decimal.Zero,
		OptionsIncome:     decimal.Zero,
		OptionsInvestment: decimal.Zero,
		UnrealizedGains:   decimal.Zero,
		OpenContracts:     decimal.Zero,
	}

	queues := make(map[contractKey][]*positionLot)
	// Map iteration order is random; remember insertion order so the final
	// unrealized sweep is deterministic.
	var keyOrder []contractKey

	for i := range trades {
		trade := &trades[i]
		net := trade.NetAmount()

		// Raw premium always counts toward options income, matched or not.
		summary.OptionsIncome = summary.OptionsIncome.Add(trade.Amount)

		key := keyOf(trade)
		switch trade.TradeCode {
		case domain.TradeCodeBuyToOpen, domain.TradeCodeSellToOpen:
			if trade.TradeCode == domain.TradeCodeBuyToOpen {
				summary.OptionsInvestment = summary.OptionsInvestment.Add(net.Abs())
			}
			if _, seen := queues[key]; !seen {
				keyOrder = append(keyOrder, key)
			}
			queues[key] = append(queues[key], &positionLot{
				quantity:   trade.Quantity,
				netPremium: net,
			})

		case domain.TradeCodeBuyToClose, domain.TradeCodeSellToClose:
			summary.consumeLots(queues, key, trade, net)
		}
	}

	// Anything still queued is an open position as of the evaluation instant.
	for _, key := range keyOrder {
		for _, lot := range queues[key] {
			summary.UnrealizedGains = summary.UnrealizedGains.Add(lot.netPremium)
			summary.OpenContracts = summary.OpenContracts.Add(lot.quantity)
		}
	}

	return summary
}

// consumeLots matches a closing trade against the oldest open lots of its
// contract. Each matched pair contributes openNet + closeNet (both prorated by
// matched quantity) to realized gains. A close quantity that cannot be matched
// is flagged and contributes its own net premium as a best effort.
func (s *Summary) consumeLots(queues map[contractKey][]*positionLot, key contractKey, trade *domain.Movement, net decimal.Decimal) {
	remaining := trade.Quantity
	queue := queues[key]

	for remaining.IsPositive() && len(queue) > 0 {
		lot := queue[0]

		matched := decimal.Min(remaining, lot.quantity)
		openPortion := lot.netPremium.Mul(matched).Div(lot.quantity)
		closePortion := net.Mul(matched).Div(trade.Quantity)

		s.RealizedGains = s.RealizedGains.Add(openPortion).Add(closePortion)

		lot.quantity = lot.quantity.Sub(matched)
		lot.netPremium = lot.netPremium.Sub(openPortion)
		remaining = remaining.Sub(matched)

		if lot.quantity.IsZero() {
			queue = queue[1:]
		}
	}
	queues[key] = queue

	if remaining.IsPositive() {
		// No open lot left to match: record the discrepancy and take the
		// unmatched close premium as-is.
		unmatchedPortion := net.Mul(remaining).Div(trade.Quantity)
		s.RealizedGains = s.RealizedGains.Add(unmatchedPortion)
		s.Warnings = append(s.Warnings, fmt.Sprintf(
			"closing option trade %s (%s %s %s strike %s) has no matching open lot for quantity %s",
			trade.ID, trade.TickerID, trade.OptionType, trade.TradeCode,
			trade.Strike, remaining))
	}
}
