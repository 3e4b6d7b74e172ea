package domain

import "time"

// PaymentStatus is the gateway-visible state of one payment.
type PaymentStatus string

const (
	PaymentCompleted  PaymentStatus = "completed"
	PaymentProcessing PaymentStatus = "processing"
	PaymentFailed     PaymentStatus = "failed"
)

// PaymentRequest: one payout to execute against the payment gateway.
type PaymentRequest struct {
	PayoutID      string `json:"payoutId"`
	RecipientID   string `json:"recipientId"`
	RecipientName string `json:"recipientName"`
	BankCode      string `json:"bankCode"`
	AccountNumber string `json:"accountNumber"`
	Amount        int64  `json:"amount"` // rupiah
	Currency      string `json:"currency"`
	Reference     string `json:"reference"`
}

// PaymentResult: the terminal outcome of one payment, including how many
// retry attempts it took to get there.
type PaymentResult struct {
	PayoutID      string        `json:"payoutId"`
	TransactionID string        `json:"transactionId,omitempty"`
	Status        PaymentStatus `json:"status"`
	Attempts      int           `json:"attempts"`
	FailureReason string        `json:"failureReason,omitempty"`
	CompletedAt   time.Time     `json:"completedAt"`
}
