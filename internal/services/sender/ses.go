package sender

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

// SESAPI: часть клиента SES, нужная для отправки.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer отправляет письма через AWS SES.
type SESMailer struct {
	client SESAPI
	from   string
}

// NewSESMailer создаёт SESMailer с адресом отправителя from.
func NewSESMailer(client SESAPI, from string) *SESMailer {
	return &SESMailer{client: client, from: from}
}

// Name возвращает метку транспорта для метрик.
func (m *SESMailer) Name() string {
	return "ses"
}

// Send отправляет HTML-письмо одному получателю.
func (m *SESMailer) Send(ctx context.Context, msg models.EmailMessage) error {
	const op = "sender.SESMailer.Send"
	_, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
			},
		},
		Source: aws.String(m.from),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
