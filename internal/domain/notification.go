package domain

import "time"

// TemplateType keys the notification template catalog. Unknown types are
// rejected at send time.
type TemplateType string

const (
	TemplatePayoutCompleted  TemplateType = "payout_completed"
	TemplatePayoutFailed     TemplateType = "payout_failed"
	TemplatePayoutProcessing TemplateType = "payout_processing"
	TemplatePayoutRetry      TemplateType = "payout_retry"
	TemplateFraudAlert       TemplateType = "fraud_alert"
	TemplateReauthRequired   TemplateType = "reauth_required"
)

// NotificationRecord: one rendered notification handed to the delivery
// transport. The record is the audit trail; delivery itself is external.
type NotificationRecord struct {
	ID           string       `json:"id"`
	RecipientID  string       `json:"recipientId"`
	TemplateType TemplateType `json:"templateType"`
	Title        string       `json:"title"`
	Body         string       `json:"body"`
	CreatedAt    time.Time    `json:"createdAt"`
}
