package changeplan

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subscription-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-billing/internal/paymentgateway"
	"github.com/magabrotheeeer/subscription-billing/internal/services/billing"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) ChangePlan(ctx context.Context, userID, packageID string, req billing.ChangePlanRequest) (*paymentgateway.Subscription, error) {
	args := m.Called(ctx, userID, packageID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentgateway.Subscription), args.Error(1)
}

func TestHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	tests := []struct {
		name           string
		userID         string
		body           string
		setup          func(m *ServiceMock)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "смена плана со счётом сразу",
			userID: "user-1",
			body:   `{"planId":"plan-2","invoiceNow":true}`,
			setup: func(m *ServiceMock) {
				m.On("ChangePlan", mock.Anything, "user-1", "pkg-1",
					billing.ChangePlanRequest{PlanID: "plan-2", InvoiceNow: true}).
					Return(&paymentgateway.Subscription{ID: "sub_1", Status: "active"}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"subscriptionId":"sub_1"`,
		},
		{
			name:           "нет planId",
			userID:         "user-1",
			body:           `{"invoiceNow":true}`,
			setup:          func(_ *ServiceMock) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   "field PlanID is a required field",
		},
		{
			name:           "битое тело",
			userID:         "user-1",
			body:           `{"planId":`,
			setup:          func(_ *ServiceMock) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"invalid request body"`,
		},
		{
			name:           "нет пользователя в контексте",
			body:           `{"planId":"plan-2"}`,
			setup:          func(_ *ServiceMock) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"error":"unauthorized"`,
		},
		{
			name:   "у пакета нет соглашения",
			userID: "user-1",
			body:   `{"planId":"plan-2"}`,
			setup: func(m *ServiceMock) {
				m.On("ChangePlan", mock.Anything, "user-1", "pkg-1", billing.ChangePlanRequest{PlanID: "plan-2"}).
					Return(nil, fmt.Errorf("billing.ChangePlan: %w", apperr.Conflict("package has no subscription")))
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"error":"package has no subscription"`,
		},
		{
			name:   "план не найден",
			userID: "user-1",
			body:   `{"planId":"plan-9"}`,
			setup: func(m *ServiceMock) {
				m.On("ChangePlan", mock.Anything, "user-1", "pkg-1", billing.ChangePlanRequest{PlanID: "plan-9"}).
					Return(nil, fmt.Errorf("billing.ChangePlan: %w", apperr.NotFound("plan")))
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"error":"plan not found"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(ServiceMock)
			tt.setup(service)

			req := httptest.NewRequest(http.MethodPost, "/subscriptions/pkg-1/plan", strings.NewReader(tt.body))
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", "pkg-1")
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			if tt.userID != "" {
				ctx = context.WithValue(ctx, middlewarectx.UserID, tt.userID)
			}
			rr := httptest.NewRecorder()

			New(logger, service).ServeHTTP(rr, req.WithContext(ctx))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			service.AssertExpectations(t)
		})
	}
}
