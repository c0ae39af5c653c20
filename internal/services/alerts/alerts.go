// Package alerts оповещает операторов о событиях, требующих ручного вмешательства:
// неудачная компенсация в шлюзе, списание без записи в хранилище.
package alerts

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/metrics"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

// Виды оповещений.
const (
	KindCompensationFailed = "compensation_failed"
	KindReconciliation     = "reconciliation_required"
)

// Publisher: часть клиента SNS, нужная для публикации.
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Service пишет оповещение в лог и, если задан топик, публикует его в SNS.
type Service struct {
	client   Publisher
	topicARN string
	log      *slog.Logger
}

// New создаёт Service. client может быть nil, тогда оповещения только логируются.
func New(client Publisher, topicARN string, log *slog.Logger) *Service {
	return &Service{
		client:   client,
		topicARN: topicARN,
		log:      log,
	}
}

// Raise фиксирует оповещение. Ошибки публикации логируются и не возвращаются.
func (s *Service) Raise(ctx context.Context, alert models.OpsAlert) {
	attrs := []any{slog.String("kind", alert.Kind)}
	for k, v := range alert.Fields {
		attrs = append(attrs, slog.String(k, v))
	}
	s.log.Error("manual intervention required: "+alert.Message, attrs...)
	metrics.OpsAlerts.WithLabelValues(alert.Kind).Inc()

	if s.client == nil || s.topicARN == "" {
		return
	}
	body, err := json.Marshal(alert)
	if err != nil {
		s.log.Error("failed to marshal alert", sl.Err(err))
		return
	}
	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  aws.String("billing: " + alert.Kind),
		Message:  aws.String(string(body)),
	})
	if err != nil {
		s.log.Error("failed to publish alert", slog.String("kind", alert.Kind), sl.Err(err))
	}
}
