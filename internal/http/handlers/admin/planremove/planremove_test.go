package planremove

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Delete(ctx context.Context, planID string) error {
	args := m.Called(ctx, planID)
	return args.Error(0)
}

func TestHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	tests := []struct {
		name           string
		setup          func(m *ServiceMock)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "план удалён",
			setup: func(m *ServiceMock) {
				m.On("Delete", mock.Anything, "plan-1").Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"deleted":"plan-1"`,
		},
		{
			name: "план не найден",
			setup: func(m *ServiceMock) {
				m.On("Delete", mock.Anything, "plan-1").
					Return(fmt.Errorf("plans.Delete: %w", apperr.NotFound("plan")))
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"error":"plan not found"`,
		},
		{
			name: "шлюз не деактивировал товар",
			setup: func(m *ServiceMock) {
				m.On("Delete", mock.Anything, "plan-1").
					Return(fmt.Errorf("plans.Delete: %w", apperr.ErrExternalService))
			},
			expectedStatus: http.StatusBadGateway,
			expectedBody:   `"error":"payment gateway error"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(ServiceMock)
			tt.setup(service)

			req := httptest.NewRequest(http.MethodDelete, "/admin/plans/plan-1", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", "plan-1")
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
			rr := httptest.NewRecorder()

			New(logger, service).ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			service.AssertExpectations(t)
		})
	}
}
