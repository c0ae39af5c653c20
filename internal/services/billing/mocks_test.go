package billing

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subscription-billing/internal/models"
	"github.com/magabrotheeeer/subscription-billing/internal/paymentgateway"
)

type RepositoryMock struct {
	mock.Mock
}

func (m *RepositoryMock) GetUser(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepositoryMock) SetExternalCustomerRef(ctx context.Context, userID, customerRef string) error {
	return m.Called(ctx, userID, customerRef).Error(0)
}

func (m *RepositoryMock) GetPlan(ctx context.Context, planID string) (*models.Plan, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}

func (m *RepositoryMock) GetPackage(ctx context.Context, packageID string) (*models.UserPackage, error) {
	args := m.Called(ctx, packageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserPackage), args.Error(1)
}

func (m *RepositoryMock) ListPackagesByUser(ctx context.Context, userID string) ([]*models.UserPackage, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UserPackage), args.Error(1)
}

func (m *RepositoryMock) CreatePackage(ctx context.Context, np models.NewPackage) error {
	return m.Called(ctx, np).Error(0)
}

func (m *RepositoryMock) SetPackageSubscriptionRef(ctx context.Context, packageID, subscriptionRef string) error {
	return m.Called(ctx, packageID, subscriptionRef).Error(0)
}

func (m *RepositoryMock) CompleteSettlement(ctx context.Context, st models.Settlement) (*models.UserPackage, error) {
	args := m.Called(ctx, st)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserPackage), args.Error(1)
}

func (m *RepositoryMock) RemovePackage(ctx context.Context, packageID string) (*models.UserPackage, bool, error) {
	args := m.Called(ctx, packageID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.UserPackage), args.Bool(1), args.Error(2)
}

func (m *RepositoryMock) UpdateDashboard(ctx context.Context, packageID string, upd models.DashboardUpdate) (*models.UserPackage, error) {
	args := m.Called(ctx, packageID, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserPackage), args.Error(1)
}

func (m *RepositoryMock) MarkWebhookEvent(ctx context.Context, eventID, eventType string) (bool, error) {
	args := m.Called(ctx, eventID, eventType)
	return args.Bool(0), args.Error(1)
}

func (m *RepositoryMock) ApplyInvoicePaid(ctx context.Context, inv models.InvoicePaid) (*models.UserPackage, bool, error) {
	args := m.Called(ctx, inv)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.UserPackage), args.Bool(1), args.Error(2)
}

func (m *RepositoryMock) StopBillingBySubscriptionRef(ctx context.Context, eventID, eventType, subscriptionRef string) (int, bool, error) {
	args := m.Called(ctx, eventID, eventType, subscriptionRef)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *RepositoryMock) InsertSubscriptionPayment(ctx context.Context, p models.SubscriptionPayment) error {
	return m.Called(ctx, p).Error(0)
}

func (m *RepositoryMock) MarkSubscriptionCanceled(ctx context.Context, packageID string, canceledAt time.Time, endDate *time.Time) error {
	return m.Called(ctx, packageID, canceledAt, endDate).Error(0)
}

func (m *RepositoryMock) RecordPlanChange(ctx context.Context, packageID, newPlanID, previousPlanID string) error {
	return m.Called(ctx, packageID, newPlanID, previousPlanID).Error(0)
}

func (m *RepositoryMock) ListPaymentsByUser(ctx context.Context, userID string) ([]*models.SubscriptionPayment, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SubscriptionPayment), args.Error(1)
}

func (m *RepositoryMock) ListBillingLogs(ctx context.Context, packageID string) ([]models.BillingLog, error) {
	args := m.Called(ctx, packageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BillingLog), args.Error(1)
}

func (m *RepositoryMock) ListRefundLogs(ctx context.Context, packageID string) ([]models.RefundLog, error) {
	args := m.Called(ctx, packageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RefundLog), args.Error(1)
}

type GatewayMock struct {
	mock.Mock
}

func (m *GatewayMock) CreateCustomer(ctx context.Context, userID, email, name string) (string, error) {
	args := m.Called(ctx, userID, email, name)
	return args.String(0), args.Error(1)
}

func (m *GatewayMock) DefaultPaymentMethod(ctx context.Context, customerRef string) (string, error) {
	args := m.Called(ctx, customerRef)
	return args.String(0), args.Error(1)
}

func (m *GatewayMock) Charge(ctx context.Context, req paymentgateway.ChargeRequest) (*paymentgateway.Charge, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentgateway.Charge), args.Error(1)
}

func (m *GatewayMock) CreateSubscription(ctx context.Context, req paymentgateway.SubscriptionRequest) (*paymentgateway.Subscription, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentgateway.Subscription), args.Error(1)
}

func (m *GatewayMock) GetSubscription(ctx context.Context, subscriptionRef string) (*paymentgateway.Subscription, error) {
	args := m.Called(ctx, subscriptionRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentgateway.Subscription), args.Error(1)
}

func (m *GatewayMock) SetCancelAtPeriodEnd(ctx context.Context, subscriptionRef string, cancel bool) (*paymentgateway.Subscription, error) {
	args := m.Called(ctx, subscriptionRef, cancel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentgateway.Subscription), args.Error(1)
}

func (m *GatewayMock) ChangeSubscriptionPrice(ctx context.Context, subscriptionRef, itemID, priceRef, proration string) (*paymentgateway.Subscription, error) {
	args := m.Called(ctx, subscriptionRef, itemID, priceRef, proration)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentgateway.Subscription), args.Error(1)
}

func (m *GatewayMock) CancelSubscription(ctx context.Context, subscriptionRef string) error {
	return m.Called(ctx, subscriptionRef).Error(0)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) Send(ctx context.Context, subject, email, html string) {
	m.Called(ctx, subject, email, html)
}

type AlerterMock struct {
	mock.Mock
}

func (m *AlerterMock) Raise(ctx context.Context, alert models.OpsAlert) {
	m.Called(ctx, alert)
}

var fixedNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	repo     *RepositoryMock
	gateway  *GatewayMock
	notifier *NotifierMock
	alerts   *AlerterMock
}

func newFixture() *fixture {
	f := &fixture{
		repo:     new(RepositoryMock),
		gateway:  new(GatewayMock),
		notifier: new(NotifierMock),
		alerts:   new(AlerterMock),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	f.svc = New(f.repo, f.gateway, f.notifier, f.alerts, log)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) assertExpectations(t mock.TestingT) {
	f.repo.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
	f.alerts.AssertExpectations(t)
}

func strPtr(s string) *string { return &s }
