package domain

import (
	"sort"
	"time"
)

// MovementAggregate is a read-only bundle of all movements for one account,
// one currency, up to and including a cut-off instant. Movements are grouped
// by kind and every slice is sorted by (Timestamp, Sequence), so consumers can
// rely on chronological order with insertion order as the tie-break.
type MovementAggregate struct {
	Cash          []Movement
	EquityTrades  []Movement
	OptionTrades  []Movement
	Dividends     []Movement
	DividendTaxes []Movement
}

// NewMovementAggregate groups and sorts movements into an aggregate.
func NewMovementAggregate(movements []Movement) *MovementAggregate {
	sorted := make([]Movement, len(movements))
	copy(sorted, movements)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Sequence < sorted[j].Sequence
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	agg := &MovementAggregate{}
	for _, m := range sorted {
		switch m.Kind {
		case MovementKindCash:
			agg.Cash = append(agg.Cash, m)
		case MovementKindEquityTrade:
			agg.EquityTrades = append(agg.EquityTrades, m)
		case MovementKindOptionTrade:
			agg.OptionTrades = append(agg.OptionTrades, m)
		case MovementKindDividend:
			agg.Dividends = append(agg.Dividends, m)
		case MovementKindDividendTax:
			agg.DividendTaxes = append(agg.DividendTaxes, m)
		}
	}
	return agg
}

// Count returns the total number of movements of any kind in the aggregate.
func (a *MovementAggregate) Count() int64 {
	return int64(len(a.Cash) + len(a.EquityTrades) + len(a.OptionTrades) +
		len(a.Dividends) + len(a.DividendTaxes))
}

// IsEmpty reports whether the aggregate holds no movements at all.
func (a *MovementAggregate) IsEmpty() bool {
	return a.Count() == 0
}

// HasClosingMovementOn reports whether any equity or option trade dated
// exactly on the given day (UTC) closes a prior position. The cascade engine
// uses this to decide between a direct realized-gains update and a
// preservation merge.
func (a *MovementAggregate) HasClosingMovementOn(date time.Time) bool {
	for _, m := range a.EquityTrades {
		if m.IsClosingTrade() && SameDay(m.Timestamp, date) {
			return true
		}
	}
	for _, m := range a.OptionTrades {
		if m.IsClosingTrade() && SameDay(m.Timestamp, date) {
			return true
		}
	}
	return false
}

// SameDay reports whether two instants fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// DayOf truncates an instant to midnight UTC, the canonical snapshot date.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the last representable instant of the given UTC day,
// used as the inclusive cut-off when loading movements for a snapshot date.
func EndOfDay(t time.Time) time.Time {
	return DayOf(t).Add(24*time.Hour - time.Nanosecond)
}
