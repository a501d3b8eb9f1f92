package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruimcosta/investrack-backend/internal/adapter/httpapi"
	"github.com/ruimcosta/investrack-backend/internal/domain"
	"github.com/ruimcosta/investrack-backend/internal/usecase/accountview"
	"github.com/ruimcosta/investrack-backend/internal/usecase/cascade"
)

const apiToken = "dev-token"

// memMovementRepo is an in-memory MovementRepository. It assigns sequences in
// insertion order, like the database's BIGSERIAL column.
type memMovementRepo struct {
	mu        sync.Mutex
	sequence  int64
	movements []domain.Movement
}

func (r *memMovementRepo) Create(_ context.Context, movement *domain.Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sequence++
	movement.Sequence = r.sequence
	r.movements = append(r.movements, *movement)
	return nil
}

func (r *memMovementRepo) GetMovements(_ context.Context, accountID uuid.UUID, currencyID string, until time.Time) (*domain.MovementAggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []domain.Movement
	for _, m := range r.movements {
		if m.AccountID == accountID && m.CurrencyID == currencyID && !m.Timestamp.After(until) {
			matched = append(matched, m)
		}
	}
	return domain.NewMovementAggregate(matched), nil
}

// memSnapshotRepo is an in-memory SnapshotRepository keyed by
// (account, currency, date).
type memSnapshotRepo struct {
	mu        sync.Mutex
	snapshots map[string]*domain.FinancialSnapshot
}

func newMemSnapshotRepo() *memSnapshotRepo {
	return &memSnapshotRepo{snapshots: make(map[string]*domain.FinancialSnapshot)}
}

func snapshotKey(accountID uuid.UUID, currencyID string, date time.Time) string {
	return accountID.String() + "/" + currencyID + "/" + domain.DayOf(date).Format("2006-01-02")
}

func (r *memSnapshotRepo) Get(_ context.Context, accountID uuid.UUID, currencyID string, date time.Time) (*domain.FinancialSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot, ok := r.snapshots[snapshotKey(accountID, currencyID, date)]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	copied := *snapshot
	return &copied, nil
}

func (r *memSnapshotRepo) GetDatesAfter(_ context.Context, accountID uuid.UUID, currencyID string, date time.Time) ([]time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var dates []time.Time
	for _, snapshot := range r.snapshots {
		if snapshot.AccountID == accountID && snapshot.CurrencyID == currencyID && snapshot.Date.After(date) {
			dates = append(dates, snapshot.Date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (r *memSnapshotRepo) Put(_ context.Context, snapshot *domain.FinancialSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *snapshot
	r.snapshots[snapshotKey(snapshot.AccountID, snapshot.CurrencyID, snapshot.Date)] = &copied
	return nil
}

func (r *memSnapshotRepo) GetForAccountOnDate(_ context.Context, accountID uuid.UUID, date time.Time) ([]*domain.FinancialSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.FinancialSnapshot
	for _, snapshot := range r.snapshots {
		if snapshot.AccountID == accountID && snapshot.Date.Equal(domain.DayOf(date)) {
			copied := *snapshot
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CurrencyID < result[j].CurrencyID })
	return result, nil
}

// stubPriceService serves prices from a fixed table.
type stubPriceService struct {
	prices map[string]decimal.Decimal
}

func (s *stubPriceService) GetCurrentPrice(_ context.Context, tickerID string) (decimal.Decimal, error) {
	price, ok := s.prices[tickerID]
	if !ok {
		return decimal.Zero, domain.ErrPriceUnavailable
	}
	return price, nil
}

type env struct {
	server    *httptest.Server
	snapshots *memSnapshotRepo
}

func newEnv(t *testing.T, prices map[string]decimal.Decimal) *env {
	t.Helper()

	movementRepo := &memMovementRepo{}
	snapshotRepo := newMemSnapshotRepo()
	cascadeService := cascade.NewService(movementRepo, snapshotRepo, &stubPriceService{prices: prices})
	accountViewService := accountview.NewService(snapshotRepo)

	api := httpapi.NewServer(movementRepo, cascadeService, accountViewService)
	server := httptest.NewServer(api.Router(apiToken))
	t.Cleanup(server.Close)

	return &env{server: server, snapshots: snapshotRepo}
}

func (e *env) do(t *testing.T, method, path string, payload any) (int, map[string]any) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.server.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+apiToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func (e *env) postMovement(t *testing.T, payload map[string]any) {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/v1/movements", payload)
	require.Equal(t, http.StatusCreated, status, "body: %v", body)
}

// TestEndToEndFlow drives the full path: movements arrive over HTTP, each one
// triggers a cascade, and the account snapshot endpoint serves the resulting
// aggregate. A backdated deposit at the end must flow through every later
// snapshot date.
func TestEndToEndFlow(t *testing.T) {
	e := newEnv(t, map[string]decimal.Decimal{
		"AAPL": decimal.RequireFromString("110.00"),
	})
	accountID := uuid.New()
	ctx := context.Background()

	e.postMovement(t, map[string]any{
		"accountId": accountID.String(), "currencyId": "USD",
		"kind": "CASH", "cashKind": "DEPOSIT",
		"amount": "1000.00", "timestamp": "2024-04-01T10:00:00Z",
	})
	e.postMovement(t, map[string]any{
		"accountId": accountID.String(), "currencyId": "USD",
		"kind": "EQUITY_TRADE", "tradeCode": "BUY", "tickerId": "AAPL",
		"quantity": "10", "amount": "-1000.00", "timestamp": "2024-04-20T14:00:00Z",
	})
	e.postMovement(t, map[string]any{
		"accountId": accountID.String(), "currencyId": "USD",
		"kind": "OPTION_TRADE", "tradeCode": "SELL_TO_OPEN", "tickerId": "SPY",
		"optionType": "PUT", "strike": "500", "expiration": "2024-05-17T00:00:00Z",
		"quantity": "1", "amount": "18.00", "commission": "0.65", "fees": "0.35",
		"timestamp": "2024-04-25T14:30:00Z",
	})

	// With the short put still open, the 04-25 snapshot carries its net
	// premium as unrealized alongside the share position's gain.
	day25 := time.Date(2024, 4, 25, 0, 0, 0, 0, time.UTC)
	snapshot, err := e.snapshots.Get(ctx, accountID, "USD", day25)
	require.NoError(t, err)
	assert.Equal(t, int64(3), snapshot.MovementCounter)
	assert.True(t, snapshot.RealizedGains.IsZero())
	// stock: 10*110.00 - 1000.00 = 100.00; option: 18.00 - 0.65 - 0.35 = 17.00
	assert.True(t, snapshot.UnrealizedGains.Equal(decimal.RequireFromString("117.00")),
		"unrealized: %s", snapshot.UnrealizedGains)
	assert.True(t, snapshot.OpenTrades)

	e.postMovement(t, map[string]any{
		"accountId": accountID.String(), "currencyId": "USD",
		"kind": "OPTION_TRADE", "tradeCode": "BUY_TO_CLOSE", "tickerId": "SPY",
		"optionType": "PUT", "strike": "500", "expiration": "2024-05-17T00:00:00Z",
		"quantity": "1", "amount": "-8.00", "commission": "0.30", "fees": "0.05",
		"timestamp": "2024-04-26T15:00:00Z",
	})

	// Backdated deposit: its cascade must reach every later snapshot date.
	status, body := e.do(t, http.MethodPost, "/api/v1/movements", map[string]any{
		"accountId": accountID.String(), "currencyId": "USD",
		"kind": "CASH", "cashKind": "DEPOSIT",
		"amount": "500.00", "timestamp": "2024-04-10T09:00:00Z",
	})
	require.Equal(t, http.StatusCreated, status)
	cascadeBody, ok := body["cascade"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t,
		[]any{"2024-04-10", "2024-04-20", "2024-04-25", "2024-04-26"},
		cascadeBody["dates"])

	day26 := time.Date(2024, 4, 26, 0, 0, 0, 0, time.UTC)
	final, err := e.snapshots.Get(ctx, accountID, "USD", day26)
	require.NoError(t, err)

	assert.Equal(t, int64(5), final.MovementCounter)
	assert.True(t, final.Deposited.Equal(decimal.RequireFromString("1500.00")))
	assert.True(t, final.Withdrawn.IsZero())
	assert.True(t, final.Commissions.Equal(decimal.RequireFromString("0.95")))
	assert.True(t, final.Fees.Equal(decimal.RequireFromString("0.40")))
	// STO 17.00 net matched against BTC -8.35 net.
	assert.True(t, final.RealizedGains.Equal(decimal.RequireFromString("8.65")),
		"realized: %s", final.RealizedGains)
	// Raw premiums: 18.00 - 8.00.
	assert.True(t, final.OptionsIncome.Equal(decimal.RequireFromString("10.00")))
	// Only the share position remains open.
	assert.True(t, final.Invested.Equal(decimal.RequireFromString("1000.00")))
	assert.True(t, final.UnrealizedGains.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, final.OpenTrades)
	// 1500 - 0.95 - 0.40 + 10
	assert.True(t, final.NetCashFlow.Equal(decimal.RequireFromString("1508.65")))
}

// TestRecalculateIsIdempotent replays a full-history recalculation over the
// recalculate endpoint and checks that no snapshot changes: recomputing from
// the same movement set must be a no-op.
func TestRecalculateIsIdempotent(t *testing.T) {
	e := newEnv(t, nil)
	accountID := uuid.New()
	ctx := context.Background()

	e.postMovement(t, map[string]any{
		"accountId": accountID.String(), "currencyId": "USD",
		"kind": "CASH", "cashKind": "DEPOSIT",
		"amount": "1000.00", "timestamp": "2024-04-01T10:00:00Z",
	})
	e.postMovement(t, map[string]any{
		"accountId": accountID.String(), "currencyId": "USD",
		"kind": "OPTION_TRADE", "tradeCode": "SELL_TO_OPEN", "tickerId": "SPY",
		"optionType": "PUT", "strike": "500", "expiration": "2024-05-17T00:00:00Z",
		"quantity": "1", "amount": "18.00", "commission": "0.65", "fees": "0.35",
		"timestamp": "2024-04-25T14:30:00Z",
	})
	e.postMovement(t, map[string]any{
		"accountId": accountID.String(), "currencyId": "USD",
		"kind": "OPTION_TRADE", "tradeCode": "BUY_TO_CLOSE", "tickerId": "SPY",
		"optionType": "PUT", "strike": "500", "expiration": "2024-05-17T00:00:00Z",
		"quantity": "1", "amount": "-8.00", "commission": "0.30", "fees": "0.05",
		"timestamp": "2024-04-26T15:00:00Z",
	})

	day26 := time.Date(2024, 4, 26, 0, 0, 0, 0, time.UTC)
	before, err := e.snapshots.Get(ctx, accountID, "USD", day26)
	require.NoError(t, err)

	status, body := e.do(t, http.MethodPost,
		"/api/v1/accounts/"+accountID.String()+"/currencies/USD/recalculate?from=2024-04-01",
		nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"2024-04-01", "2024-04-25", "2024-04-26"}, body["dates"])

	after, err := e.snapshots.Get(ctx, accountID, "USD", day26)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

// TestAccountSnapshotAcrossCurrencies verifies that the account snapshot
// endpoint elects the currency with the most movements as primary and carries
// the rest alongside.
func TestAccountSnapshotAcrossCurrencies(t *testing.T) {
	e := newEnv(t, nil)
	accountID := uuid.New()

	e.postMovement(t, map[string]any{
		"accountId": accountID.String(), "currencyId": "EUR",
		"kind": "CASH", "cashKind": "DEPOSIT",
		"amount": "200.00", "timestamp": "2024-04-30T09:00:00Z",
	})
	for _, amount := range []string{"100.00", "300.00"} {
		e.postMovement(t, map[string]any{
			"accountId": accountID.String(), "currencyId": "USD",
			"kind": "CASH", "cashKind": "DEPOSIT",
			"amount": amount, "timestamp": "2024-04-30T10:00:00Z",
		})
	}

	status, body := e.do(t, http.MethodGet,
		"/api/v1/accounts/"+accountID.String()+"/snapshot?date=2024-04-30", nil)
	require.Equal(t, http.StatusOK, status)

	financial, ok := body["financial"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "USD", financial["currencyId"])
	assert.Equal(t, "400", financial["deposited"])

	others, ok := body["otherCurrencies"].([]any)
	require.True(t, ok)
	require.Len(t, others, 1)
	assert.Equal(t, "EUR", others[0].(map[string]any)["currencyId"])

	// A date with no snapshots at all is a 404, not an empty view.
	status, _ = e.do(t, http.MethodGet,
		"/api/v1/accounts/"+accountID.String()+"/snapshot?date=2024-05-01", nil)
	assert.Equal(t, http.StatusNotFound, status)
}
