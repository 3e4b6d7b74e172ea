// Package payment executes payout transfers against a payment gateway with
// bounded retries, status polling, and concurrent batch processing.
package payment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

// GatewayProvider abstracts the payment gateway. Implementations must be safe
// for concurrent use.
type GatewayProvider interface {
	// ProcessPayment submits one transfer. A returned result may still be in
	// status processing; the caller polls CheckStatus until terminal.
	ProcessPayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResult, error)
	// CheckStatus reads the current state of a submitted transfer.
	CheckStatus(ctx context.Context, transactionID string) (*domain.PaymentResult, error)
	// Cancel aborts a transfer that has not completed.
	Cancel(ctx context.Context, transactionID string) error
	// History lists transfers previously submitted for a recipient.
	History(ctx context.Context, recipientID string, limit int) ([]domain.PaymentResult, error)
}

// HTTPGateway talks to a REST payment gateway.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPGateway creates an HTTP gateway adapter.
func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type gatewayTransferResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason"`
}

// ProcessPayment submits the transfer to POST /v1/transfers.
func (g *HTTPGateway) ProcessPayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResult, error) {
	payload, err := json.Marshal(map[string]any{
		"reference":      req.Reference,
		"recipient_id":   req.RecipientID,
		"recipient_name": req.RecipientName,
		"bank_code":      req.BankCode,
		"account_number": req.AccountNumber,
		"amount":         req.Amount,
		"currency":       req.Currency,
	})
	if err != nil {
		return nil, apperrors.NewGatewayError("http", "process_payment", false, err)
	}

	var resp gatewayTransferResponse
	if err := g.do(ctx, http.MethodPost, "/v1/transfers", payload, &resp); err != nil {
		return nil, err
	}
	return g.toResult(req.PayoutID, resp), nil
}

// CheckStatus reads GET /v1/transfers/{id}.
func (g *HTTPGateway) CheckStatus(ctx context.Context, transactionID string) (*domain.PaymentResult, error) {
	var resp gatewayTransferResponse
	path := "/v1/transfers/" + url.PathEscape(transactionID)
	if err := g.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return g.toResult("", resp), nil
}

// Cancel issues POST /v1/transfers/{id}/cancel.
func (g *HTTPGateway) Cancel(ctx context.Context, transactionID string) error {
	path := "/v1/transfers/" + url.PathEscape(transactionID) + "/cancel"
	return g.do(ctx, http.MethodPost, path, nil, nil)
}

// History reads GET /v1/transfers?recipient_id=&limit=.
func (g *HTTPGateway) History(ctx context.Context, recipientID string, limit int) ([]domain.PaymentResult, error) {
	if limit <= 0 {
		limit = 20
	}
	var resp struct {
		Transfers []gatewayTransferResponse `json:"transfers"`
	}
	path := fmt.Sprintf("/v1/transfers?recipient_id=%s&limit=%d", url.QueryEscape(recipientID), limit)
	if err := g.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.PaymentResult, 0, len(resp.Transfers))
	for _, t := range resp.Transfers {
		results = append(results, *g.toResult("", t))
	}
	return results, nil
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return apperrors.NewGatewayError("http", "build_request", false, err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		// Network failures are transient from the gateway's perspective.
		return apperrors.NewGatewayError("http", method+" "+path, true, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperrors.NewGatewayError("http", method+" "+path, true, err)
	}
	if resp.StatusCode >= 400 {
		transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return apperrors.NewGatewayError("http", method+" "+path, transient,
			fmt.Errorf("gateway returned %d: %s", resp.StatusCode, truncateBody(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.NewGatewayError("http", method+" "+path, false, err)
	}
	return nil
}

func (g *HTTPGateway) toResult(payoutID string, resp gatewayTransferResponse) *domain.PaymentResult {
	status := domain.PaymentProcessing
	switch resp.Status {
	case "completed", "success":
		status = domain.PaymentCompleted
	case "failed", "rejected":
		status = domain.PaymentFailed
	}
	result := &domain.PaymentResult{
		PayoutID:      payoutID,
		TransactionID: resp.TransactionID,
		Status:        status,
		FailureReason: resp.FailureReason,
	}
	if status != domain.PaymentProcessing {
		result.CompletedAt = time.Now()
	}
	return result
}

func truncateBody(data []byte) string {
	const limit = 256
	if len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}
