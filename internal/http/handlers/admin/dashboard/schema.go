package dashboard

// updateSchema описывает тело PATCH: только известные поля, хотя бы одно из них.
const updateSchema = `{
	"type": "object",
	"additionalProperties": false,
	"minProperties": 1,
	"properties": {
		"activeDeals":     {"type": "integer", "minimum": 0},
		"completedDeals":  {"type": "integer", "minimum": 0},
		"tokens":          {"type": ["number", "string"]},
		"payoutAmount":    {"type": ["number", "string"]},
		"payoutDate":      {"type": "string", "format": "date-time"},
		"status":          {"enum": ["ACTIVE", "PAYOUT_PENDING", "PAYOUT_COMPLETED", "REMOVED"]},
		"remainingMonths": {"type": "integer", "minimum": 0, "maximum": 12},
		"paidMonths":      {"type": "integer", "minimum": 0, "maximum": 12},
		"nextBillingDate": {"type": "string", "format": "date-time"}
	}
}`
