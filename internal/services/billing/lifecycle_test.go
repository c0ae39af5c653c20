package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
	"github.com/magabrotheeeer/subscription-billing/internal/paymentgateway"
	"github.com/magabrotheeeer/subscription-billing/internal/services/alerts"
	"github.com/magabrotheeeer/subscription-billing/internal/services/notifier"
)

func invoiceEvent(id, reason, amount string) *paymentgateway.Event {
	return &paymentgateway.Event{
		ID:              id,
		Type:            paymentgateway.EventInvoicePaid,
		SubscriptionRef: "sub_1",
		Invoice: &paymentgateway.Invoice{
			ID:              "in_1",
			CustomerEmail:   "billing@example.com",
			SubscriptionRef: "sub_1",
			BillingReason:   reason,
			AmountPaid:      dec(amount),
			ChargeRef:       "pi_1",
		},
	}
}

func TestService_HandleInvoicePaid(t *testing.T) {
	ctx := context.Background()
	advanced := &models.UserPackage{ID: "pkg-1", UserID: "user-1", PlanID: "plan-1",
		Status: models.PackageActive, PaidMonths: 2, RemainingMonths: 10}

	tests := []struct {
		name    string
		reason  string
		subject string
	}{
		{name: "first invoice", reason: paymentgateway.BillingReasonSubscriptionCreate, subject: notifier.SubjectSubscriptionActivated},
		{name: "renewal", reason: "subscription_cycle", subject: notifier.SubjectPaymentSucceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.repo.On("ApplyInvoicePaid", ctx, mock.MatchedBy(func(inv models.InvoicePaid) bool {
				return inv.EventID == "evt_1" && inv.SubscriptionRef == "sub_1" &&
					inv.NextBillingDate.Equal(time.Date(2025, 4, 15, 12, 0, 0, 0, time.UTC)) &&
					inv.Payment.Status == models.PaymentCompleted && inv.Payment.Amount.Equal(dec("100")) &&
					inv.Payment.ExternalChargeRef == "pi_1"
			})).Return(advanced, true, nil).Once()
			f.repo.On("GetUser", ctx, "user-1").Return(testUser(), nil).Once()
			f.repo.On("GetPlan", ctx, "plan-1").Return(testPlan(), nil).Once()
			f.notifier.On("Send", ctx, tt.subject, "user@example.com", mock.Anything).Once()

			require.NoError(t, f.svc.HandleEvent(ctx, invoiceEvent("evt_1", tt.reason, "100")))
			f.assertExpectations(t)
		})
	}

	t.Run("duplicate event is a no-op", func(t *testing.T) {
		f := newFixture()
		f.repo.On("ApplyInvoicePaid", ctx, mock.Anything).Return(nil, false, nil).Once()

		require.NoError(t, f.svc.HandleInvoicePaid(ctx, invoiceEvent("evt_1", "subscription_cycle", "100")))
		f.notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("zero amount invoice only marks the event", func(t *testing.T) {
		f := newFixture()
		f.repo.On("MarkWebhookEvent", ctx, "evt_0", paymentgateway.EventInvoicePaid).Return(true, nil).Once()

		require.NoError(t, f.svc.HandleInvoicePaid(ctx, invoiceEvent("evt_0", paymentgateway.BillingReasonSubscriptionCreate, "0")))
		f.repo.AssertNotCalled(t, "ApplyInvoicePaid", mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("unknown agreement surfaces not found", func(t *testing.T) {
		f := newFixture()
		f.repo.On("ApplyInvoicePaid", ctx, mock.Anything).Return(nil, false, apperr.NotFound("package")).Once()

		err := f.svc.HandleInvoicePaid(ctx, invoiceEvent("evt_2", "subscription_cycle", "100"))
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestService_HandleInvoiceFailed(t *testing.T) {
	ctx := context.Background()
	evt := invoiceEvent("evt_f", "subscription_cycle", "100")
	evt.Type = paymentgateway.EventInvoiceFailed

	t.Run("notifies without touching the package", func(t *testing.T) {
		f := newFixture()
		f.repo.On("MarkWebhookEvent", ctx, "evt_f", paymentgateway.EventInvoiceFailed).Return(true, nil).Once()
		f.notifier.On("Send", ctx, notifier.SubjectPaymentFailed, "billing@example.com", mock.Anything).Once()

		require.NoError(t, f.svc.HandleEvent(ctx, evt))
		f.assertExpectations(t)
	})

	t.Run("redelivery sends nothing", func(t *testing.T) {
		f := newFixture()
		f.repo.On("MarkWebhookEvent", ctx, "evt_f", paymentgateway.EventInvoiceFailed).Return(false, nil).Once()

		require.NoError(t, f.svc.HandleEvent(ctx, evt))
		f.assertExpectations(t)
	})
}

func TestService_HandleSubscriptionDeleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.repo.On("StopBillingBySubscriptionRef", ctx, "evt_d", paymentgateway.EventSubscriptionDeleted, "sub_1").
		Return(1, true, nil).Once()

	err := f.svc.HandleEvent(ctx, &paymentgateway.Event{
		ID: "evt_d", Type: paymentgateway.EventSubscriptionDeleted, SubscriptionRef: "sub_1",
	})
	require.NoError(t, err)
	f.assertExpectations(t)

	assert.NoError(t, f.svc.HandleEvent(ctx, &paymentgateway.Event{ID: "evt_x", Type: "customer.created"}))
}

func TestService_Remove(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels agreement of removed package", func(t *testing.T) {
		f := newFixture()
		f.repo.On("RemovePackage", ctx, "pkg-1").Return(&models.UserPackage{
			ID: "pkg-1", Status: models.PackageRemoved, ExternalSubscriptionRef: strPtr("sub_1"),
		}, true, nil).Once()
		f.gateway.On("CancelSubscription", ctx, "sub_1").Return(nil).Once()

		pkg, err := f.svc.Remove(ctx, "pkg-1")
		require.NoError(t, err)
		assert.Equal(t, models.PackageRemoved, pkg.Status)
		f.assertExpectations(t)
	})

	t.Run("second removal is a no-op", func(t *testing.T) {
		f := newFixture()
		f.repo.On("RemovePackage", ctx, "pkg-1").Return(&models.UserPackage{
			ID: "pkg-1", Status: models.PackageRemoved, ExternalSubscriptionRef: strPtr("sub_1"),
		}, false, nil).Once()

		_, err := f.svc.Remove(ctx, "pkg-1")
		require.NoError(t, err)
		f.gateway.AssertNotCalled(t, "CancelSubscription", mock.Anything, mock.Anything)
	})

	t.Run("completed payout cannot be removed", func(t *testing.T) {
		f := newFixture()
		f.repo.On("RemovePackage", ctx, "pkg-1").
			Return(nil, false, apperr.Conflict("package payout already completed")).Once()

		_, err := f.svc.Remove(ctx, "pkg-1")
		assert.ErrorIs(t, err, apperr.ErrConflict)
	})
}

func TestService_UpdateDashboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	paid := 5
	f.repo.On("UpdateDashboard", ctx, "pkg-1", mock.MatchedBy(func(u models.DashboardUpdate) bool {
		return u.PaidMonths != nil && *u.PaidMonths == 5 && u.RemainingMonths != nil && *u.RemainingMonths == 7
	})).Return(&models.UserPackage{ID: "pkg-1", PaidMonths: 5, RemainingMonths: 7}, nil).Once()

	pkg, err := f.svc.UpdateDashboard(ctx, "pkg-1", models.DashboardUpdate{PaidMonths: &paid})
	require.NoError(t, err)
	assert.Equal(t, 7, pkg.RemainingMonths)
	f.assertExpectations(t)
}

func TestService_CancelSubscription(t *testing.T) {
	ctx := context.Background()
	periodEnd := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	owned := func() *models.UserPackage {
		return &models.UserPackage{ID: "pkg-1", UserID: "user-1", Status: models.PackageActive,
			ExternalSubscriptionRef: strPtr("sub_1")}
	}

	t.Run("schedules cancellation", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetPackage", ctx, "pkg-1").Return(owned(), nil).Once()
		f.gateway.On("SetCancelAtPeriodEnd", ctx, "sub_1", true).
			Return(&paymentgateway.Subscription{ID: "sub_1", CancelAtPeriodEnd: true, CurrentPeriodEnd: periodEnd}, nil).Once()
		f.repo.On("MarkSubscriptionCanceled", ctx, "pkg-1", fixedNow, &periodEnd).Return(nil).Once()
		f.repo.On("GetUser", ctx, "user-1").Return(testUser(), nil).Once()
		f.notifier.On("Send", ctx, notifier.SubjectSubscriptionCanceled, "user@example.com", mock.Anything).Once()

		sub, err := f.svc.CancelSubscription(ctx, "user-1", "pkg-1")
		require.NoError(t, err)
		assert.True(t, sub.CancelAtPeriodEnd)
		f.assertExpectations(t)
	})

	t.Run("store failure reverts the gateway", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetPackage", ctx, "pkg-1").Return(owned(), nil).Once()
		f.gateway.On("SetCancelAtPeriodEnd", ctx, "sub_1", true).
			Return(&paymentgateway.Subscription{ID: "sub_1", CurrentPeriodEnd: periodEnd}, nil).Once()
		f.repo.On("MarkSubscriptionCanceled", ctx, "pkg-1", fixedNow, &periodEnd).
			Return(errors.New("connection reset")).Once()
		f.gateway.On("SetCancelAtPeriodEnd", ctx, "sub_1", false).
			Return(&paymentgateway.Subscription{ID: "sub_1"}, nil).Once()

		_, err := f.svc.CancelSubscription(ctx, "user-1", "pkg-1")
		assert.Error(t, err)
		f.alerts.AssertNotCalled(t, "Raise", mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("failed revert raises alert", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetPackage", ctx, "pkg-1").Return(owned(), nil).Once()
		f.gateway.On("SetCancelAtPeriodEnd", ctx, "sub_1", true).
			Return(&paymentgateway.Subscription{ID: "sub_1", CurrentPeriodEnd: periodEnd}, nil).Once()
		f.repo.On("MarkSubscriptionCanceled", ctx, "pkg-1", fixedNow, &periodEnd).
			Return(errors.New("connection reset")).Once()
		f.gateway.On("SetCancelAtPeriodEnd", ctx, "sub_1", false).
			Return(nil, &apperr.GatewayError{Message: "timeout"}).Once()
		f.alerts.On("Raise", ctx, mock.MatchedBy(func(a models.OpsAlert) bool {
			return a.Kind == alerts.KindCompensationFailed && a.Fields["subscription_ref"] == "sub_1"
		})).Once()

		_, err := f.svc.CancelSubscription(ctx, "user-1", "pkg-1")
		assert.Error(t, err)
		f.assertExpectations(t)
	})

	t.Run("package without agreement", func(t *testing.T) {
		f := newFixture()
		pkg := owned()
		pkg.ExternalSubscriptionRef = nil
		f.repo.On("GetPackage", ctx, "pkg-1").Return(pkg, nil).Once()

		_, err := f.svc.CancelSubscription(ctx, "user-1", "pkg-1")
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}

func TestService_ChangePlan(t *testing.T) {
	ctx := context.Background()
	owned := func() *models.UserPackage {
		return &models.UserPackage{ID: "pkg-1", UserID: "user-1", PlanID: "plan-1", Status: models.PackageActive,
			ExternalSubscriptionRef: strPtr("sub_1")}
	}
	platinum := &models.Plan{ID: "plan-2", Name: "Platinum", Price: dec("200"), ExternalPriceRef: "price_2", Active: true}

	tests := []struct {
		name      string
		invoice   bool
		proration string
	}{
		{name: "prorated", invoice: false, proration: paymentgateway.ProrationCreate},
		{name: "invoice now", invoice: true, proration: paymentgateway.ProrationAlwaysInvoice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.repo.On("GetPackage", ctx, "pkg-1").Return(owned(), nil).Once()
			f.repo.On("GetPlan", ctx, "plan-2").Return(platinum, nil).Once()
			f.gateway.On("GetSubscription", ctx, "sub_1").Return(&paymentgateway.Subscription{
				ID: "sub_1", Items: []paymentgateway.SubscriptionItem{{ID: "si_1", PriceRef: "price_1"}},
			}, nil).Once()
			f.gateway.On("ChangeSubscriptionPrice", ctx, "sub_1", "si_1", "price_2", tt.proration).
				Return(&paymentgateway.Subscription{ID: "sub_1"}, nil).Once()
			f.repo.On("RecordPlanChange", ctx, "pkg-1", "plan-2", "plan-1").Return(nil).Once()

			_, err := f.svc.ChangePlan(ctx, "user-1", "pkg-1", ChangePlanRequest{PlanID: "plan-2", InvoiceNow: tt.invoice})
			require.NoError(t, err)
			f.assertExpectations(t)
		})
	}

	t.Run("agreement with several items is rejected", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetPackage", ctx, "pkg-1").Return(owned(), nil).Once()
		f.repo.On("GetPlan", ctx, "plan-2").Return(platinum, nil).Once()
		f.gateway.On("GetSubscription", ctx, "sub_1").Return(&paymentgateway.Subscription{
			ID: "sub_1", Items: []paymentgateway.SubscriptionItem{{ID: "si_1"}, {ID: "si_2"}},
		}, nil).Once()

		_, err := f.svc.ChangePlan(ctx, "user-1", "pkg-1", ChangePlanRequest{PlanID: "plan-2"})
		assert.ErrorIs(t, err, apperr.ErrConflict)
		f.gateway.AssertNotCalled(t, "ChangeSubscriptionPrice",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("same plan", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetPackage", ctx, "pkg-1").Return(owned(), nil).Once()

		_, err := f.svc.ChangePlan(ctx, "user-1", "pkg-1", ChangePlanRequest{PlanID: "plan-1"})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}

func TestService_PackageHistory(t *testing.T) {
	ctx := context.Background()
	pkg := &models.UserPackage{ID: "pkg-1", UserID: "user-1", Status: models.PackageActive}

	t.Run("owner sees both journals", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetPackage", ctx, "pkg-1").Return(pkg, nil).Once()
		f.repo.On("ListBillingLogs", ctx, "pkg-1").Return([]models.BillingLog{
			{ID: 1, PackageID: "pkg-1", Amount: dec("100"), MonthNumber: 1, Status: models.BillingSucceeded},
		}, nil).Once()
		f.repo.On("ListRefundLogs", ctx, "pkg-1").Return([]models.RefundLog{
			{ID: 1, PackageID: "pkg-1", Milestone: "DAY_90", Percent: dec("15"), Amount: dec("15")},
		}, nil).Once()

		history, err := f.svc.PackageHistory(ctx, "user-1", "pkg-1")
		require.NoError(t, err)
		assert.Equal(t, "pkg-1", history.Package.ID)
		assert.Len(t, history.BillingLogs, 1)
		assert.Len(t, history.RefundLogs, 1)
		f.assertExpectations(t)
	})

	t.Run("foreign package", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetPackage", ctx, "pkg-1").Return(pkg, nil).Once()

		_, err := f.svc.PackageHistory(ctx, "user-2", "pkg-1")
		assert.ErrorIs(t, err, apperr.ErrForbidden)
		f.repo.AssertNotCalled(t, "ListBillingLogs", mock.Anything, mock.Anything)
	})

	t.Run("journal read fails", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetPackage", ctx, "pkg-1").Return(pkg, nil).Once()
		f.repo.On("ListBillingLogs", ctx, "pkg-1").Return(nil, errors.New("db down")).Once()

		_, err := f.svc.PackageHistory(ctx, "user-1", "pkg-1")
		assert.Error(t, err)
	})
}

func TestService_ListPayments(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.repo.On("ListPaymentsByUser", ctx, "user-1").Return([]*models.SubscriptionPayment{
		{ID: "pay-1", UserID: "user-1", PackageID: "pkg-1", Amount: dec("100"), Status: models.PaymentCompleted},
	}, nil).Once()

	payments, err := f.svc.ListPayments(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "pay-1", payments[0].ID)
}
