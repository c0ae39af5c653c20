package sender

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/smtp"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect(ctx context.Context) (smtp.Client, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(smtp.Client), args.Error(1)
}

func (m *MockTransport) GetSMTPUser() string {
	args := m.Called()
	return args.String(0)
}

type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) Mail(from string) error {
	args := m.Called(from)
	return args.Error(0)
}

func (m *MockSMTPClient) Rcpt(to string) error {
	args := m.Called(to)
	return args.Error(0)
}

func (m *MockSMTPClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

func (m *MockSMTPClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockSMTPClient) Quit() error {
	args := m.Called()
	return args.Error(0)
}

type bufferWriter struct {
	strings.Builder
	closed bool
}

func (b *bufferWriter) Close() error {
	b.closed = true
	return nil
}

type MockSES struct {
	mock.Mock
}

func (m *MockSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ses.SendEmailOutput), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

const validBody = `{"to":"user@example.com","subject":"Monthly Payment Successful","html":"<p>ok</p>"}`

func TestService_HandleMessage_SMTP(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		setupMocks   func(*MockTransport, *MockSMTPClient, *bufferWriter)
		errorMessage string
	}{
		{
			name: "success",
			body: validBody,
			setupMocks: func(tr *MockTransport, c *MockSMTPClient, w *bufferWriter) {
				tr.On("GetSMTPUser").Return("billing@example.com")
				tr.On("Connect", mock.Anything).Return(c, nil).Once()
				c.On("Mail", "billing@example.com").Return(nil).Once()
				c.On("Rcpt", "user@example.com").Return(nil).Once()
				c.On("Data").Return(w, nil).Once()
				c.On("Quit").Return(nil).Once()
				c.On("Close").Return(nil).Once()
			},
		},
		{
			name:         "invalid JSON",
			body:         `invalid json`,
			setupMocks:   func(*MockTransport, *MockSMTPClient, *bufferWriter) {},
			errorMessage: "error unmarshalling message",
		},
		{
			name:         "missing recipient",
			body:         `{"subject":"Payment Failed"}`,
			setupMocks:   func(*MockTransport, *MockSMTPClient, *bufferWriter) {},
			errorMessage: ErrNoRecipient.Error(),
		},
		{
			name: "connection error",
			body: validBody,
			setupMocks: func(tr *MockTransport, _ *MockSMTPClient, _ *bufferWriter) {
				tr.On("GetSMTPUser").Return("billing@example.com")
				tr.On("Connect", mock.Anything).Return(nil, errors.New("connection refused")).Once()
			},
			errorMessage: "connection refused",
		},
		{
			name: "recipient rejected",
			body: validBody,
			setupMocks: func(tr *MockTransport, c *MockSMTPClient, _ *bufferWriter) {
				tr.On("GetSMTPUser").Return("billing@example.com")
				tr.On("Connect", mock.Anything).Return(c, nil).Once()
				c.On("Mail", "billing@example.com").Return(nil).Once()
				c.On("Rcpt", "user@example.com").Return(errors.New("550 no such user")).Once()
				c.On("Close").Return(nil).Once()
			},
			errorMessage: "550 no such user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := new(MockTransport)
			client := new(MockSMTPClient)
			writer := &bufferWriter{}
			tt.setupMocks(transport, client, writer)

			svc := New(NewSMTPMailer(transport, newNoopLogger()), newNoopLogger())
			err := svc.HandleMessage([]byte(tt.body))

			if tt.errorMessage != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMessage)
			} else {
				require.NoError(t, err)
				assert.True(t, writer.closed)
				assert.Contains(t, writer.String(), "To: user@example.com")
				assert.Contains(t, writer.String(), "Content-Type: text/html")
				assert.Contains(t, writer.String(), "<p>ok</p>")
			}
			transport.AssertExpectations(t)
			client.AssertExpectations(t)
		})
	}
}

func TestService_HandleMessage_SES(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client := new(MockSES)
		client.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *ses.SendEmailInput) bool {
			return aws.ToString(in.Source) == "no-reply@example.com" &&
				in.Destination.ToAddresses[0] == "user@example.com" &&
				aws.ToString(in.Message.Subject.Data) == "Monthly Payment Successful"
		})).Return(&ses.SendEmailOutput{}, nil).Once()

		svc := New(NewSESMailer(client, "no-reply@example.com"), newNoopLogger())
		require.NoError(t, svc.HandleMessage([]byte(validBody)))
		client.AssertExpectations(t)
	})

	t.Run("ses error", func(t *testing.T) {
		client := new(MockSES)
		client.On("SendEmail", mock.Anything, mock.Anything).Return(nil, errors.New("MessageRejected")).Once()

		svc := New(NewSESMailer(client, "no-reply@example.com"), newNoopLogger())
		assert.ErrorContains(t, svc.HandleMessage([]byte(validBody)), "MessageRejected")
	})
}
