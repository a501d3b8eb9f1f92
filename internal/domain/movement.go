package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementKind discriminates the movement union
type MovementKind string

const (
	MovementKindCash        MovementKind = "CASH"
	MovementKindEquityTrade MovementKind = "EQUITY_TRADE"
	MovementKindOptionTrade MovementKind = "OPTION_TRADE"
	MovementKindDividend    MovementKind = "DIVIDEND"
	MovementKindDividendTax MovementKind = "DIVIDEND_TAX"
)

// CashMovementKind represents the type of a cash movement
type CashMovementKind string

const (
	CashKindDeposit    CashMovementKind = "DEPOSIT"
	CashKindWithdrawal CashMovementKind = "WITHDRAWAL"
	CashKindFee        CashMovementKind = "FEE"
	CashKindInterest   CashMovementKind = "INTEREST"
	CashKindConversion CashMovementKind = "CONVERSION"
)

// TradeCode represents the buy/sell side of an equity or option trade
type TradeCode string

const (
	TradeCodeBuy         TradeCode = "BUY"
	TradeCodeSell        TradeCode = "SELL"
	TradeCodeBuyToOpen   TradeCode = "BUY_TO_OPEN"
	TradeCodeSellToOpen  TradeCode = "SELL_TO_OPEN"
	TradeCodeBuyToClose  TradeCode = "BUY_TO_CLOSE"
	TradeCodeSellToClose TradeCode = "SELL_TO_CLOSE"
)

// OptionType represents the contract type of an option trade
type OptionType string

const (
	OptionTypePut  OptionType = "PUT"
	OptionTypeCall OptionType = "CALL"
)

// Movement represents a single account movement in the domain layer.
// Movements are immutable once persisted; corrections are modeled as new
// movements, never as updates. The Kind field discriminates which of the
// kind-specific fields are meaningful.
type Movement struct {
	ID        uuid.UUID
	Sequence  int64 // insertion order, tie-break for identical timestamps
	AccountID uuid.UUID
	CurrencyID string
	TickerID   string // equity and option trades only
	Kind       MovementKind

	CashKind   CashMovementKind // Kind == CASH
	TradeCode  TradeCode        // Kind == EQUITY_TRADE or OPTION_TRADE
	OptionType OptionType       // Kind == OPTION_TRADE
	Strike     decimal.Decimal  // Kind == OPTION_TRADE
	Expiration time.Time        // Kind == OPTION_TRADE
	Quantity   decimal.Decimal  // trades only

	// Amount is the signed monetary amount: positive for money received
	// (deposits, sell premiums, dividends), negative for money paid out.
	Amount decimal.Decimal
	// Commission and Fees are stored as positive magnitudes.
	Commission decimal.Decimal
	Fees       decimal.Decimal

	// SourceCurrencyID is set only for currency-conversion cash movements.
	SourceCurrencyID string

	Timestamp time.Time // UTC
}

// IsClosingTrade reports whether this movement closes a previously opened
// position (an equity sell or an option *-to-close trade).
func (m *Movement) IsClosingTrade() bool {
	switch m.Kind {
	case MovementKindEquityTrade:
		return m.TradeCode == TradeCodeSell || m.TradeCode == TradeCodeSellToClose
	case MovementKindOptionTrade:
		return m.TradeCode == TradeCodeBuyToClose || m.TradeCode == TradeCodeSellToClose
	}
	return false
}

// IsOpeningTrade reports whether this movement opens a new position.
func (m *Movement) IsOpeningTrade() bool {
	switch m.Kind {
	case MovementKindEquityTrade:
		return m.TradeCode == TradeCodeBuy
	case MovementKindOptionTrade:
		return m.TradeCode == TradeCodeBuyToOpen || m.TradeCode == TradeCodeSellToOpen
	}
	return false
}

// NetAmount returns the movement amount net of commission and fees.
// Commission and fees are magnitudes, so they always reduce the net.
func (m *Movement) NetAmount() decimal.Decimal {
	return m.Amount.Sub(m.Commission.Abs()).Sub(m.Fees.Abs())
}

// Validate ensures the movement adheres to domain rules.
// Malformed movements are rejected before they enter an aggregate.
func (m *Movement) Validate() error {
	if m.AccountID == uuid.Nil {
		return errors.New("movement must reference an account")
	}
	if m.CurrencyID == "" {
		return errors.New("movement must reference a currency")
	}
	if m.Timestamp.IsZero() {
		return errors.New("movement must have a timestamp")
	}
	if m.Commission.IsNegative() || m.Fees.IsNegative() {
		return errors.New("commission and fees must be stored as positive magnitudes")
	}

	switch m.Kind {
	case MovementKindCash:
		return m.validateCash()
	case MovementKindEquityTrade:
		return m.validateEquityTrade()
	case MovementKindOptionTrade:
		return m.validateOptionTrade()
	case MovementKindDividend, MovementKindDividendTax:
		if m.TickerID == "" {
			return errors.New("dividend movement must reference a ticker")
		}
		return nil
	default:
		return errors.New("unknown movement kind: " + string(m.Kind))
	}
}

func (m *Movement) validateCash() error {
	switch m.CashKind {
	case CashKindDeposit, CashKindWithdrawal, CashKindFee, CashKindInterest:
		if m.SourceCurrencyID != "" {
			return errors.New("only conversion movements may carry a source currency")
		}
	case CashKindConversion:
		if m.SourceCurrencyID == "" {
			return errors.New("conversion movement must carry its source currency")
		}
		if m.SourceCurrencyID == m.CurrencyID {
			return errors.New("conversion source currency must differ from target currency")
		}
	default:
		return errors.New("unknown cash movement kind: " + string(m.CashKind))
	}
	return nil
}

func (m *Movement) validateEquityTrade() error {
	if m.TickerID == "" {
		return errors.New("equity trade must reference a ticker")
	}
	if m.Quantity.LessThanOrEqual(decimal.Zero) {
		return errors.New("equity trade quantity must be positive")
	}
	switch m.TradeCode {
	case TradeCodeBuy, TradeCodeSell, TradeCodeSellToClose:
		return nil
	default:
		return errors.New("invalid equity trade code: " + string(m.TradeCode))
	}
}

func (m *Movement) validateOptionTrade() error {
	if m.TickerID == "" {
		return errors.New("option trade must reference a ticker")
	}
	if m.Quantity.LessThanOrEqual(decimal.Zero) {
		return errors.New("option trade quantity must be positive")
	}
	if m.OptionType != OptionTypePut && m.OptionType != OptionTypeCall {
		return errors.New("option trade type must be PUT or CALL")
	}
	if m.Strike.LessThanOrEqual(decimal.Zero) {
		return errors.New("option trade strike must be positive")
	}
	if m.Expiration.IsZero() {
		return errors.New("option trade must have an expiration date")
	}
	switch m.TradeCode {
	case TradeCodeBuyToOpen, TradeCodeSellToOpen, TradeCodeBuyToClose, TradeCodeSellToClose:
		return nil
	default:
		return errors.New("invalid option trade code: " + string(m.TradeCode))
	}
}
