package list

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subscription-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) ListPackages(ctx context.Context, userID string) ([]*models.UserPackage, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UserPackage), args.Error(1)
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
			name:   "пакеты пользователя",
			userID: "user-1",
			setup: func(m *ServiceMock) {
				m.On("ListPackages", mock.Anything, "user-1").Return([]*models.UserPackage{
					{ID: "pkg-1", UserID: "user-1", PlanID: "plan-1", Status: models.PackageActive},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"ACTIVE"`,
		},
		{
			name:   "пакетов нет",
			userID: "user-1",
			setup: func(m *ServiceMock) {
				m.On("ListPackages", mock.Anything, "user-1").Return([]*models.UserPackage{}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"packages":[]`,
		},
		{
			name:           "нет пользователя в контексте",
			setup:          func(_ *ServiceMock) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"error":"unauthorized"`,
		},
		{
			name:   "ошибка хранилища не раскрывается",
			userID: "user-1",
			setup: func(m *ServiceMock) {
				m.On("ListPackages", mock.Anything, "user-1").
					Return(nil, fmt.Errorf("storage.ListPackagesByUser: %w", errors.New("connection refused")))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"internal error"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(ServiceMock)
			tt.setup(service)

			req := httptest.NewRequest(http.MethodGet, "/packages", nil)
			if tt.userID != "" {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserID, tt.userID))
			}
			rr := httptest.NewRecorder()

			New(logger, service).ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			assert.NotContains(t, rr.Body.String(), "connection refused")
			service.AssertExpectations(t)
		})
	}
}
