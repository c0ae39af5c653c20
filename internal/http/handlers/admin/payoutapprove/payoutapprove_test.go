package payoutapprove

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Approve(ctx context.Context, requestID string) (*models.PayoutRequest, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PayoutRequest), args.Error(1)
}

func TestHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	processed := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		setup          func(m *ServiceMock)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "заявка одобрена",
			setup: func(m *ServiceMock) {
				m.On("Approve", mock.Anything, "pr-1").
					Return(&models.PayoutRequest{ID: "pr-1", Approved: true, ProcessedAt: &processed}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"approved":true`,
		},
		{
			name: "повторное одобрение",
			setup: func(m *ServiceMock) {
				m.On("Approve", mock.Anything, "pr-1").
					Return(nil, fmt.Errorf("payout.Approve: %w", apperr.Conflict("payout already approved")))
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"error":"payout already approved"`,
		},
		{
			name: "заявка не найдена",
			setup: func(m *ServiceMock) {
				m.On("Approve", mock.Anything, "pr-1").
					Return(nil, fmt.Errorf("payout.Approve: %w", apperr.NotFound("payout request")))
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"error":"payout request not found"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(ServiceMock)
			tt.setup(service)

			req := httptest.NewRequest(http.MethodPost, "/admin/payouts/pr-1/approve", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", "pr-1")
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
			rr := httptest.NewRecorder()

			New(logger, service).ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			service.AssertExpectations(t)
		})
	}
}
