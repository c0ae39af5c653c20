package pmlist

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subscription-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) List(ctx context.Context, userID string) ([]models.PaymentMethod, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PaymentMethod), args.Error(1)
}

func TestHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	tests := []struct {
		name           string
		userID         string
		setup          func(m *ServiceMock)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "карты пользователя",
			userID: "user-1",
			setup: func(m *ServiceMock) {
				m.On("List", mock.Anything, "user-1").Return([]models.PaymentMethod{
					{ID: "pm_1", Brand: "visa", Last4: "4242", ExpMonth: 12, ExpYear: 2030, IsDefault: true},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"last4":"4242"`,
		},
		{
			name:           "нет пользователя в контексте",
			setup:          func(_ *ServiceMock) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"error":"unauthorized"`,
		},
		{
			name:   "шлюз недоступен",
			userID: "user-1",
			setup: func(m *ServiceMock) {
				m.On("List", mock.Anything, "user-1").
					Return(nil, fmt.Errorf("paymentmethods.List: %w",
						&apperr.GatewayError{Code: "api_error", Message: "gateway unavailable"}))
			},
			expectedStatus: http.StatusBadGateway,
			expectedBody:   `"error":"gateway unavailable"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(ServiceMock)
			tt.setup(service)

			req := httptest.NewRequest(http.MethodGet, "/payment-methods", nil)
			if tt.userID != "" {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserID, tt.userID))
			}
			rr := httptest.NewRecorder()

			New(logger, service).ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			service.AssertExpectations(t)
		})
	}
}
