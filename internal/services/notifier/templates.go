package notifier

import (
	"bytes"
	"html/template"

	"github.com/shopspring/decimal"
)

// Темы писем.
const (
	SubjectSubscriptionActivated = "Subscription Activated"
	SubjectPaymentSucceeded      = "Monthly Payment Successful"
	SubjectPaymentFailed         = "Payment Failed"
	SubjectSettlementCompleted   = "Balance Settled"
	SubjectPayoutRequested       = "Payout Request Received"
	SubjectPayoutApproved        = "Payout Approved"
	SubjectSubscriptionCanceled  = "Subscription Cancellation Scheduled"
)

// Data: поля, подставляемые в шаблон письма.
type Data struct {
	Username        string
	PlanName        string
	Amount          decimal.Decimal
	PaidMonths      int
	RemainingMonths int
	Tokens          decimal.Decimal
	Date            string
	WalletAddress   string
	Network         string
}

var templates = template.Must(template.New("").Parse(`
{{define "Subscription Activated"}}<p>Hi {{.Username}},</p>
<p>Your subscription to <b>{{.PlanName}}</b> is active. First payment: {{.Amount.StringFixed 2}}.</p>
<p>Next billing date: {{.Date}}.</p>{{end}}
{{define "Monthly Payment Successful"}}<p>Hi {{.Username}},</p>
<p>We received your monthly payment of {{.Amount.StringFixed 2}}.
Paid months: {{.PaidMonths}}, remaining: {{.RemainingMonths}}.</p>
<p>Next billing date: {{.Date}}.</p>{{end}}
{{define "Payment Failed"}}<p>Hi {{.Username}},</p>
<p>We could not process your subscription payment{{if .PlanName}} for <b>{{.PlanName}}</b>{{end}}. Please update your payment method.</p>{{end}}
{{define "Balance Settled"}}<p>Hi {{.Username}},</p>
<p>The remaining balance of your package was settled. Charged: {{.Amount.StringFixed 2}}.
Your package is now eligible for payout.</p>{{end}}
{{define "Payout Request Received"}}<p>Hi {{.Username}},</p>
<p>We received your payout request to {{.WalletAddress}} ({{.Network}}). It will be reviewed shortly.</p>{{end}}
{{define "Payout Approved"}}<p>Hi {{.Username}},</p>
<p>Your payout request was approved on {{.Date}}.</p>{{end}}
{{define "Subscription Cancellation Scheduled"}}<p>Hi {{.Username}},</p>
<p>Your subscription will end on {{.Date}}. You will not be charged again.</p>{{end}}
`))

// Render возвращает HTML письма для темы subject.
func Render(subject string, data Data) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, subject, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
