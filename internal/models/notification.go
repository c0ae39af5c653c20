package models

// EmailMessage: сообщение для отправки через очередь уведомлений.
type EmailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// OpsAlert: событие, требующее ручного вмешательства.
type OpsAlert struct {
	Kind    string            `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}
