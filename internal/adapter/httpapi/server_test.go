package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ruimcosta/investrack-backend/internal/domain"
	"github.com/ruimcosta/investrack-backend/internal/usecase/cascade"
)

const testToken = "test-token"

// MockMovementRepository is a mock implementation of MovementRepository for testing
type MockMovementRepository struct {
	mock.Mock
}

func (m *MockMovementRepository) Create(ctx context.Context, movement *domain.Movement) error {
	args := m.Called(ctx, movement)
	return args.Error(0)
}

func (m *MockMovementRepository) GetMovements(ctx context.Context, accountID uuid.UUID, currencyID string, until time.Time) (*domain.MovementAggregate, error) {
	args := m.Called(ctx, accountID, currencyID, until)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MovementAggregate), args.Error(1)
}

// MockCascadeService is a mock implementation of CascadeService for testing
type MockCascadeService struct {
	mock.Mock
}

func (m *MockCascadeService) RecalculateFrom(ctx context.Context, accountID uuid.UUID, currencyID string, date time.Time) (*cascade.Result, error) {
	args := m.Called(ctx, accountID, currencyID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cascade.Result), args.Error(1)
}

// MockAccountViewService is a mock implementation of AccountViewService for testing
type MockAccountViewService struct {
	mock.Mock
}

func (m *MockAccountViewService) RecalculateAccountSnapshot(ctx context.Context, accountID uuid.UUID, date time.Time) (*domain.AccountSnapshot, error) {
	args := m.Called(ctx, accountID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AccountSnapshot), args.Error(1)
}

func newTestServer() (*Server, *MockMovementRepository, *MockCascadeService, *MockAccountViewService) {
	movements := new(MockMovementRepository)
	cascadeService := new(MockCascadeService)
	accountView := new(MockAccountViewService)
	return NewServer(movements, cascadeService, accountView), movements, cascadeService, accountView
}

func doRequest(server *Server, method, target, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	server.Router(testToken).ServeHTTP(recorder, req)
	return recorder
}

func TestCreateMovement_PersistsAndAwaitsCascade(t *testing.T) {
	server, movements, cascadeService, _ := newTestServer()

	accountID := uuid.New()
	body, _ := json.Marshal(createMovementRequest{
		AccountID:  accountID.String(),
		CurrencyID: "EUR",
		Kind:       string(domain.MovementKindCash),
		CashKind:   string(domain.CashKindDeposit),
		Amount:     "150.00",
		Timestamp:  "2024-03-01T10:00:00Z",
	})

	movements.On("Create", mock.Anything, mock.MatchedBy(func(m *domain.Movement) bool {
		return m.AccountID == accountID &&
			m.Kind == domain.MovementKindCash &&
			m.Amount.Equal(decimal.RequireFromString("150.00"))
	})).Return(nil)

	cascadeService.On("RecalculateFrom", mock.Anything, accountID, "EUR",
		time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)).
		Return(&cascade.Result{
			AccountID:  accountID,
			CurrencyID: "EUR",
			Dates:      []time.Time{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		}, nil)

	recorder := doRequest(server, http.MethodPost, "/api/v1/movements", testToken, body)

	require.Equal(t, http.StatusCreated, recorder.Code)

	var resp createMovementResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.MovementID)
	assert.Equal(t, []string{"2024-03-01"}, resp.Cascade.Dates)

	movements.AssertExpectations(t)
	cascadeService.AssertExpectations(t)
}

func TestCreateMovement_RejectsInvalidMovement(t *testing.T) {
	server, movements, cascadeService, _ := newTestServer()

	// A conversion without its source currency is malformed and must be
	// rejected before persistence.
	body, _ := json.Marshal(createMovementRequest{
		AccountID:  uuid.NewString(),
		CurrencyID: "EUR",
		Kind:       string(domain.MovementKindCash),
		CashKind:   string(domain.CashKindConversion),
		Amount:     "100.00",
		Timestamp:  "2024-03-01T10:00:00Z",
	})

	recorder := doRequest(server, http.MethodPost, "/api/v1/movements", testToken, body)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "source currency")
	movements.AssertNotCalled(t, "Create")
	cascadeService.AssertNotCalled(t, "RecalculateFrom")
}

func TestRecalculate_TriggersCascadeFromDate(t *testing.T) {
	server, _, cascadeService, _ := newTestServer()

	accountID := uuid.New()
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	cascadeService.On("RecalculateFrom", mock.Anything, accountID, "USD", from).
		Return(&cascade.Result{
			AccountID:  accountID,
			CurrencyID: "USD",
			Dates:      []time.Time{from, from.AddDate(0, 0, 4)},
			Warnings: []cascade.Warning{
				{Date: from, Message: "no current price for AAPL"},
			},
		}, nil)

	recorder := doRequest(server, http.MethodPost,
		"/api/v1/accounts/"+accountID.String()+"/currencies/USD/recalculate?from=2024-03-01",
		testToken, nil)

	require.Equal(t, http.StatusOK, recorder.Code)

	var resp cascadeResultResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, []string{"2024-03-01", "2024-03-05"}, resp.Dates)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0].Message, "no current price")
}

func TestRecalculate_InvalidDate(t *testing.T) {
	server, _, cascadeService, _ := newTestServer()

	recorder := doRequest(server, http.MethodPost,
		"/api/v1/accounts/"+uuid.NewString()+"/currencies/USD/recalculate?from=yesterday",
		testToken, nil)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
	cascadeService.AssertNotCalled(t, "RecalculateFrom")
}

func TestAccountSnapshot_ReturnsView(t *testing.T) {
	server, _, _, accountView := newTestServer()

	accountID := uuid.New()
	date := time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)

	primary := &domain.FinancialSnapshot{
		AccountID:       accountID,
		CurrencyID:      "USD",
		Date:            date,
		MovementCounter: 10,
		RealizedGains:   decimal.RequireFromString("23.65"),
	}
	secondary := &domain.FinancialSnapshot{
		AccountID:       accountID,
		CurrencyID:      "EUR",
		Date:            date,
		MovementCounter: 5,
	}

	accountView.On("RecalculateAccountSnapshot", mock.Anything, accountID, date).
		Return(&domain.AccountSnapshot{
			AccountID:       accountID,
			Date:            date,
			Financial:       primary,
			OtherCurrencies: []*domain.FinancialSnapshot{secondary},
		}, nil)

	recorder := doRequest(server, http.MethodGet,
		"/api/v1/accounts/"+accountID.String()+"/snapshot?date=2024-04-30",
		testToken, nil)

	require.Equal(t, http.StatusOK, recorder.Code)

	var resp accountSnapshotResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "USD", resp.Financial.CurrencyID)
	assert.Equal(t, "23.65", resp.Financial.RealizedGains)
	require.Len(t, resp.OtherCurrencies, 1)
	assert.Equal(t, "EUR", resp.OtherCurrencies[0].CurrencyID)
}

func TestAccountSnapshot_NotFound(t *testing.T) {
	server, _, _, accountView := newTestServer()

	accountID := uuid.New()
	accountView.On("RecalculateAccountSnapshot", mock.Anything, accountID, mock.Anything).
		Return(nil, domain.ErrSnapshotNotFound)

	recorder := doRequest(server, http.MethodGet,
		"/api/v1/accounts/"+accountID.String()+"/snapshot?date=2024-04-30",
		testToken, nil)

	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestAuth_MissingToken(t *testing.T) {
	server, _, _, _ := newTestServer()

	recorder := doRequest(server, http.MethodGet,
		"/api/v1/accounts/"+uuid.NewString()+"/snapshot?date=2024-04-30",
		"", nil)

	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "missing authorization header")
}

func TestAuth_InvalidToken(t *testing.T) {
	server, _, _, _ := newTestServer()

	recorder := doRequest(server, http.MethodGet,
		"/api/v1/accounts/"+uuid.NewString()+"/snapshot?date=2024-04-30",
		"wrong-token", nil)

	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "invalid token")
}
