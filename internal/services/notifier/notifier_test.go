package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

type ChannelMock struct {
	mock.Mock
}

func (m *ChannelMock) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestPublisher_Send(t *testing.T) {
	t.Run("publishes email message", func(t *testing.T) {
		ch := new(ChannelMock)
		ch.On("Publish", rabbitmq.Exchange, rabbitmq.EmailRoutingKey, false, false,
			mock.MatchedBy(func(p amqp.Publishing) bool {
				var msg models.EmailMessage
				return json.Unmarshal(p.Body, &msg) == nil &&
					msg.To == "user@example.com" && msg.Subject == SubjectPaymentFailed
			})).Return(nil).Once()

		New(ch, noopLogger()).Send(context.Background(), SubjectPaymentFailed, "user@example.com", "<p>x</p>")
		ch.AssertExpectations(t)
	})

	t.Run("broker failure does not panic", func(t *testing.T) {
		ch := new(ChannelMock)
		ch.On("Publish", mock.Anything, mock.Anything, false, false, mock.Anything).
			Return(errors.New("channel closed")).Once()

		assert.NotPanics(t, func() {
			New(ch, noopLogger()).Send(context.Background(), SubjectPaymentFailed, "user@example.com", "")
		})
		ch.AssertExpectations(t)
	})

	t.Run("empty recipient is skipped", func(t *testing.T) {
		ch := new(ChannelMock)
		New(ch, noopLogger()).Send(context.Background(), SubjectPaymentFailed, "", "")
		ch.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRender(t *testing.T) {
	html, err := Render(SubjectPaymentSucceeded, Data{
		Username:        "alice",
		Amount:          decimal.RequireFromString("100"),
		PaidMonths:      3,
		RemainingMonths: 9,
		Date:            "2025-04-01",
	})
	require.NoError(t, err)
	assert.Contains(t, html, "100.00")
	assert.Contains(t, html, "remaining: 9")

	escaped, err := Render(SubjectPaymentFailed, Data{Username: "<script>"})
	require.NoError(t, err)
	assert.NotContains(t, escaped, "<script>")

	_, err = Render("unknown", Data{})
	assert.Error(t, err)
}
