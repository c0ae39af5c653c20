// Package billing управляет жизненным циклом пакета пользователя:
// назначение плана, регулярные списания по вебхукам шлюза, оплата токенами,
// погашение остатка перед выплатой, отмена и смена плана.
package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
	"github.com/magabrotheeeer/subscription-billing/internal/paymentgateway"
	"github.com/magabrotheeeer/subscription-billing/internal/services/alerts"
	"github.com/magabrotheeeer/subscription-billing/internal/services/notifier"
)

// Repository: операции хранилища, нужные биллингу.
type Repository interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	SetExternalCustomerRef(ctx context.Context, userID, customerRef string) error
	GetPlan(ctx context.Context, planID string) (*models.Plan, error)

	GetPackage(ctx context.Context, packageID string) (*models.UserPackage, error)
	ListPackagesByUser(ctx context.Context, userID string) ([]*models.UserPackage, error)
	CreatePackage(ctx context.Context, np models.NewPackage) error
	SetPackageSubscriptionRef(ctx context.Context, packageID, subscriptionRef string) error
	CompleteSettlement(ctx context.Context, st models.Settlement) (*models.UserPackage, error)
	RemovePackage(ctx context.Context, packageID string) (*models.UserPackage, bool, error)
	UpdateDashboard(ctx context.Context, packageID string, upd models.DashboardUpdate) (*models.UserPackage, error)

	MarkWebhookEvent(ctx context.Context, eventID, eventType string) (bool, error)
	ApplyInvoicePaid(ctx context.Context, inv models.InvoicePaid) (*models.UserPackage, bool, error)
	StopBillingBySubscriptionRef(ctx context.Context, eventID, eventType, subscriptionRef string) (int, bool, error)

	InsertSubscriptionPayment(ctx context.Context, p models.SubscriptionPayment) error
	MarkSubscriptionCanceled(ctx context.Context, packageID string, canceledAt time.Time, endDate *time.Time) error
	RecordPlanChange(ctx context.Context, packageID, newPlanID, previousPlanID string) error
	ListPaymentsByUser(ctx context.Context, userID string) ([]*models.SubscriptionPayment, error)

	ListBillingLogs(ctx context.Context, packageID string) ([]models.BillingLog, error)
	ListRefundLogs(ctx context.Context, packageID string) ([]models.RefundLog, error)
}

// Gateway: операции платёжного шлюза.
type Gateway interface {
	CreateCustomer(ctx context.Context, userID, email, name string) (string, error)
	DefaultPaymentMethod(ctx context.Context, customerRef string) (string, error)
	Charge(ctx context.Context, req paymentgateway.ChargeRequest) (*paymentgateway.Charge, error)
	CreateSubscription(ctx context.Context, req paymentgateway.SubscriptionRequest) (*paymentgateway.Subscription, error)
	GetSubscription(ctx context.Context, subscriptionRef string) (*paymentgateway.Subscription, error)
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionRef string, cancel bool) (*paymentgateway.Subscription, error)
	ChangeSubscriptionPrice(ctx context.Context, subscriptionRef, itemID, priceRef, proration string) (*paymentgateway.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionRef string) error
}

// Notifier отправляет письма без ожидания доставки.
type Notifier interface {
	Send(ctx context.Context, subject, email, html string)
}

// Alerter поднимает событие для ручного разбора.
type Alerter interface {
	Raise(ctx context.Context, alert models.OpsAlert)
}

// Service: менеджер жизненного цикла пакетов.
type Service struct {
	repo     Repository
	gateway  Gateway
	notifier Notifier
	alerts   Alerter
	log      *slog.Logger
	now      func() time.Time
}

// New создаёт Service.
func New(repo Repository, gateway Gateway, notifier Notifier, alerts Alerter, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		gateway:  gateway,
		notifier: notifier,
		alerts:   alerts,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ensureCustomer возвращает ID клиента в шлюзе, создавая его при первом обращении.
func (s *Service) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.ExternalCustomerRef != nil && *user.ExternalCustomerRef != "" {
		return *user.ExternalCustomerRef, nil
	}
	ref, err := s.gateway.CreateCustomer(ctx, user.ID, user.Email, user.Username)
	if err != nil {
		return "", err
	}
	if err := s.repo.SetExternalCustomerRef(ctx, user.ID, ref); err != nil {
		return "", err
	}
	user.ExternalCustomerRef = &ref
	return ref, nil
}

// defaultPaymentMethod возвращает клиента и его способ оплаты по умолчанию.
func (s *Service) defaultPaymentMethod(ctx context.Context, user *models.User) (customerRef, pmRef string, err error) {
	customerRef, err = s.ensureCustomer(ctx, user)
	if err != nil {
		return "", "", err
	}
	pmRef, err = s.gateway.DefaultPaymentMethod(ctx, customerRef)
	if err != nil {
		return "", "", err
	}
	if pmRef == "" {
		return "", "", apperr.Validation("default payment method is required")
	}
	return customerRef, pmRef, nil
}

func activePlan(ctx context.Context, repo Repository, planID string) (*models.Plan, error) {
	plan, err := repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, apperr.Validation("plan is not active")
	}
	return plan, nil
}

// ownedPackage загружает пакет и проверяет владельца.
func (s *Service) ownedPackage(ctx context.Context, packageID, userID string) (*models.UserPackage, error) {
	pkg, err := s.repo.GetPackage(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if pkg.UserID != userID {
		return nil, fmt.Errorf("package %s: %w", packageID, apperr.ErrForbidden)
	}
	return pkg, nil
}

// notify рендерит шаблон и публикует письмо. Ошибки только логируются.
func (s *Service) notify(ctx context.Context, subject, email string, data notifier.Data) {
	html, err := notifier.Render(subject, data)
	if err != nil {
		s.log.Error("failed to render notification", slog.String("subject", subject), sl.Err(err))
		return
	}
	s.notifier.Send(ctx, subject, email, html)
}

// reconcile поднимает алерт о расхождении между шлюзом и хранилищем.
func (s *Service) reconcile(ctx context.Context, msg string, err error, fields map[string]string) {
	if fields == nil {
		fields = map[string]string{}
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	s.alerts.Raise(ctx, models.OpsAlert{Kind: alerts.KindReconciliation, Message: msg, Fields: fields})
}

func minDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
