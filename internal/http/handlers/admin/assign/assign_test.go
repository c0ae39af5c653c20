package assign

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
	"github.com/magabrotheeeer/subscription-billing/internal/services/billing"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Assign(ctx context.Context, userID, planID string, opts billing.AssignOptions) (*models.UserPackage, error) {
	args := m.Called(ctx, userID, planID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserPackage), args.Error(1)
}

func TestHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	tests := []struct {
		name           string
		body           string
		setup          func(m *ServiceMock)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "промо пакет",
			body: `{"userId":"user-1","planId":"plan-1"}`,
			setup: func(m *ServiceMock) {
				m.On("Assign", mock.Anything, "user-1", "plan-1", billing.AssignOptions{Billing: false}).
					Return(&models.UserPackage{ID: "pkg-1", RemainingMonths: 12}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"id":"pkg-1"`,
		},
		{
			name: "пакет с регулярными списаниями",
			body: `{"userId":"user-1","planId":"plan-1","billing":true}`,
			setup: func(m *ServiceMock) {
				m.On("Assign", mock.Anything, "user-1", "plan-1", billing.AssignOptions{Billing: true}).
					Return(&models.UserPackage{ID: "pkg-2"}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"id":"pkg-2"`,
		},
		{
			name:           "нет пользователя",
			body:           `{"planId":"plan-1"}`,
			setup:          func(_ *ServiceMock) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field UserID is a required field`,
		},
		{
			name: "план не найден",
			body: `{"userId":"user-1","planId":"missing"}`,
			setup: func(m *ServiceMock) {
				m.On("Assign", mock.Anything, "user-1", "missing", billing.AssignOptions{}).
					Return(nil, apperr.NotFound("plan"))
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"error":"plan not found"`,
		},
		{
			name: "ошибка хранилища",
			body: `{"userId":"user-1","planId":"plan-1"}`,
			setup: func(m *ServiceMock) {
				m.On("Assign", mock.Anything, "user-1", "plan-1", billing.AssignOptions{}).
					Return(nil, errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"internal error"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(ServiceMock)
			tt.setup(service)
			rr := httptest.NewRecorder()

			New(logger, service).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/packages", strings.NewReader(tt.body)))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			service.AssertExpectations(t)
		})
	}
}
