package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ruimcosta/investrack-backend/internal/domain"
	"github.com/ruimcosta/investrack-backend/internal/logger"
	"github.com/ruimcosta/investrack-backend/internal/usecase/cascade"
)

// CascadeService triggers snapshot recalculation cascades
type CascadeService interface {
	RecalculateFrom(ctx context.Context, accountID uuid.UUID, currencyID string, date time.Time) (*cascade.Result, error)
}

// AccountViewService builds multi-currency account snapshots
type AccountViewService interface {
	RecalculateAccountSnapshot(ctx context.Context, accountID uuid.UUID, date time.Time) (*domain.AccountSnapshot, error)
}

// Server exposes the engine over HTTP
type Server struct {
	Movements   domain.MovementRepository
	Cascade     CascadeService
	AccountView AccountViewService
}

// NewServer creates a new HTTP server instance
func NewServer(movements domain.MovementRepository, cascadeService CascadeService, accountView AccountViewService) *Server {
	return &Server{
		Movements:   movements,
		Cascade:     cascadeService,
		AccountView: accountView,
	}
}

// Router builds the chi router with auth and request logging applied to the
// API routes.
func (s *Server) Router(apiToken string) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(apiToken))
		r.Post("/movements", s.handleCreateMovement)
		r.Post("/accounts/{accountID}/currencies/{currencyID}/recalculate", s.handleRecalculate)
		r.Get("/accounts/{accountID}/snapshot", s.handleAccountSnapshot)
	})

	return r
}

// handleCreateMovement persists a movement and awaits the cascade it
// triggers. The response is only written after the cascade's final snapshot
// write, so a client that refreshes after this call never observes stale
// snapshots.
func (s *Server) handleCreateMovement(w http.ResponseWriter, r *http.Request) {
	var req createMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	movement, err := req.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := movement.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if err := s.Movements.Create(ctx, movement); err != nil {
		logger.FromContext(ctx).Error("failed to persist movement", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to persist movement")
		return
	}

	result, err := s.Cascade.RecalculateFrom(ctx, movement.AccountID, movement.CurrencyID, movement.Timestamp)
	if err != nil {
		logger.FromContext(ctx).Error("cascade failed after movement insert", "error", err)
		writeError(w, http.StatusInternalServerError, "movement persisted but snapshot recalculation failed; retry the recalculation")
		return
	}

	writeJSON(w, http.StatusCreated, createMovementResponse{
		MovementID: movement.ID.String(),
		Cascade:    toCascadeResultResponse(result),
	})
}

func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	currencyID := chi.URLParam(r, "currencyID")

	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing 'from' date, expected YYYY-MM-DD")
		return
	}

	result, err := s.Cascade.RecalculateFrom(r.Context(), accountID, currencyID, from)
	if err != nil {
		logger.FromContext(r.Context()).Error("recalculation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "recalculation failed")
		return
	}

	writeJSON(w, http.StatusOK, toCascadeResultResponse(result))
}

func (s *Server) handleAccountSnapshot(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing 'date', expected YYYY-MM-DD")
		return
	}

	view, err := s.AccountView.RecalculateAccountSnapshot(r.Context(), accountID, date)
	if err != nil {
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			writeError(w, http.StatusNotFound, "no snapshots for account on date")
			return
		}
		logger.FromContext(r.Context()).Error("account snapshot failed", "error", err)
		writeError(w, http.StatusInternalServerError, "account snapshot failed")
		return
	}

	writeJSON(w, http.StatusOK, toAccountSnapshotResponse(view))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
