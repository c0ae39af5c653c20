package plancreate

import (
	"context"
	"fmt"
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
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Create(ctx context.Context, req models.PlanCreate) (*models.Plan, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}

func TestHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	isGold := mock.MatchedBy(func(p models.PlanCreate) bool {
		return p.Name == "Gold" && p.Interval == "month" && p.Price.String() == "100"
	})

	tests := []struct {
		name           string
		body           string
		setup          func(m *ServiceMock)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "план создан",
			body: `{"name":"Gold","price":"100","interval":"month"}`,
			setup: func(m *ServiceMock) {
				m.On("Create", mock.Anything, isGold).Return(&models.Plan{ID: "plan-1", Name: "Gold"}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"id":"plan-1"`,
		},
		{
			name:           "неизвестный интервал",
			body:           `{"name":"Gold","price":"100","interval":"decade"}`,
			setup:          func(_ *ServiceMock) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field Interval must be one of`,
		},
		{
			name: "шлюз недоступен",
			body: `{"name":"Gold","price":"100","interval":"month"}`,
			setup: func(m *ServiceMock) {
				m.On("Create", mock.Anything, isGold).
					Return(nil, fmt.Errorf("plans.Create: %w", &apperr.GatewayError{Message: "stripe unavailable"}))
			},
			expectedStatus: http.StatusBadGateway,
			expectedBody:   `"error":"stripe unavailable"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(ServiceMock)
			tt.setup(service)
			rr := httptest.NewRecorder()

			New(logger, service).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/plans", strings.NewReader(tt.body)))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			service.AssertExpectations(t)
		})
	}
}
