package httpapi

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/ruimcosta/investrack-backend/internal/domain"
	"github.com/ruimcosta/investrack-backend/internal/usecase/cascade"
)

// Monetary values travel as strings in every payload so no precision is lost
// to JSON number parsing.

type createMovementRequest struct {
	AccountID        string `json:"accountId"`
	CurrencyID       string `json:"currencyId"`
	TickerID         string `json:"tickerId,omitempty"`
	Kind             string `json:"kind"`
	CashKind         string `json:"cashKind,omitempty"`
	TradeCode        string `json:"tradeCode,omitempty"`
	OptionType       string `json:"optionType,omitempty"`
	Strike           string `json:"strike,omitempty"`
	Expiration       string `json:"expiration,omitempty"` // RFC 3339
	Quantity         string `json:"quantity,omitempty"`
	Amount           string `json:"amount"`
	Commission       string `json:"commission,omitempty"`
	Fees             string `json:"fees,omitempty"`
	SourceCurrencyID string `json:"sourceCurrencyId,omitempty"`
	Timestamp        string `json:"timestamp"` // RFC 3339
}

// toDomain maps the request to a movement, leaving domain-rule checks to
// Movement.Validate.
func (req *createMovementRequest) toDomain() (*domain.Movement, error) {
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("invalid accountId: %w", err)
	}
	timestamp, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp: %w", err)
	}

	movement := &domain.Movement{
		ID:               uuid.New(),
		AccountID:        accountID,
		CurrencyID:       req.CurrencyID,
		TickerID:         req.TickerID,
		Kind:             domain.MovementKind(req.Kind),
		CashKind:         domain.CashMovementKind(req.CashKind),
		TradeCode:        domain.TradeCode(req.TradeCode),
		OptionType:       domain.OptionType(req.OptionType),
		SourceCurrencyID: req.SourceCurrencyID,
		Timestamp:        timestamp.UTC(),
	}

	if req.Expiration != "" {
		expiration, err := time.Parse(time.RFC3339, req.Expiration)
		if err != nil {
			return nil, fmt.Errorf("invalid expiration: %w", err)
		}
		movement.Expiration = expiration.UTC()
	}

	if movement.Amount, err = parseAmount(req.Amount, "amount", false); err != nil {
		return nil, err
	}
	if movement.Strike, err = parseAmount(req.Strike, "strike", true); err != nil {
		return nil, err
	}
	if movement.Quantity, err = parseAmount(req.Quantity, "quantity", true); err != nil {
		return nil, err
	}
	if movement.Commission, err = parseAmount(req.Commission, "commission", true); err != nil {
		return nil, err
	}
	if movement.Fees, err = parseAmount(req.Fees, "fees", true); err != nil {
		return nil, err
	}

	return movement, nil
}

func parseAmount(raw, field string, optional bool) (decimal.Decimal, error) {
	if raw == "" {
		if optional {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("missing %s", field)
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", field, err)
	}
	return value, nil
}

type cascadeWarning struct {
	Date    string `json:"date"`
	Message string `json:"message"`
}

type cascadeResultResponse struct {
	AccountID  string           `json:"accountId"`
	CurrencyID string           `json:"currencyId"`
	Dates      []string         `json:"dates"`
	Warnings   []cascadeWarning `json:"warnings,omitempty"`
}

func toCascadeResultResponse(result *cascade.Result) cascadeResultResponse {
	resp := cascadeResultResponse{
		AccountID:  result.AccountID.String(),
		CurrencyID: result.CurrencyID,
		Dates:      make([]string, 0, len(result.Dates)),
	}
	for _, d := range result.Dates {
		resp.Dates = append(resp.Dates, d.Format("2006-01-02"))
	}
	for _, w := range result.Warnings {
		resp.Warnings = append(resp.Warnings, cascadeWarning{
			Date:    w.Date.Format("2006-01-02"),
			Message: w.Message,
		})
	}
	return resp
}

type createMovementResponse struct {
	MovementID string                `json:"movementId"`
	Cascade    cascadeResultResponse `json:"cascade"`
}

type financialSnapshotResponse struct {
	AccountID            string `json:"accountId"`
	CurrencyID           string `json:"currencyId"`
	Date                 string `json:"date"`
	MovementCounter      int64  `json:"movementCounter"`
	RealizedGains        string `json:"realizedGains"`
	RealizedPercentage   string `json:"realizedPercentage"`
	UnrealizedGains      string `json:"unrealizedGains"`
	UnrealizedPercentage string `json:"unrealizedPercentage"`
	Invested             string `json:"invested"`
	Commissions          string `json:"commissions"`
	Fees                 string `json:"fees"`
	Deposited            string `json:"deposited"`
	Withdrawn            string `json:"withdrawn"`
	DividendsReceived    string `json:"dividendsReceived"`
	OptionsIncome        string `json:"optionsIncome"`
	OtherIncome          string `json:"otherIncome"`
	OpenTrades           bool   `json:"openTrades"`
	NetCashFlow          string `json:"netCashFlow"`
}

func toFinancialSnapshotResponse(s *domain.FinancialSnapshot) financialSnapshotResponse {
	return financialSnapshotResponse{
		AccountID:            s.AccountID.String(),
		CurrencyID:           s.CurrencyID,
		Date:                 s.Date.Format("2006-01-02"),
		MovementCounter:      s.MovementCounter,
		RealizedGains:        s.RealizedGains.String(),
		RealizedPercentage:   s.RealizedPercentage.String(),
		UnrealizedGains:      s.UnrealizedGains.String(),
		UnrealizedPercentage: s.UnrealizedPercentage.String(),
		Invested:             s.Invested.String(),
		Commissions:          s.Commissions.String(),
		Fees:                 s.Fees.String(),
		Deposited:            s.Deposited.String(),
		Withdrawn:            s.Withdrawn.String(),
		DividendsReceived:    s.DividendsReceived.String(),
		OptionsIncome:        s.OptionsIncome.String(),
		OtherIncome:          s.OtherIncome.String(),
		OpenTrades:           s.OpenTrades,
		NetCashFlow:          s.NetCashFlow.String(),
	}
}

type accountSnapshotResponse struct {
	AccountID       string                      `json:"accountId"`
	Date            string                      `json:"date"`
	Financial       financialSnapshotResponse   `json:"financial"`
	OtherCurrencies []financialSnapshotResponse `json:"otherCurrencies,omitempty"`
}

func toAccountSnapshotResponse(view *domain.AccountSnapshot) accountSnapshotResponse {
	resp := accountSnapshotResponse{
		AccountID: view.AccountID.String(),
		Date:      view.Date.Format("2006-01-02"),
		Financial: toFinancialSnapshotResponse(view.Financial),
	}
	for _, other := range view.OtherCurrencies {
		resp.OtherCurrencies = append(resp.OtherCurrencies, toFinancialSnapshotResponse(other))
	}
	return resp
}

type errorResponse struct {
	Error string `json:"error"`
}
