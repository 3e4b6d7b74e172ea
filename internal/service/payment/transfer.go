package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

// SandboxGateway: an in-memory gateway for development and tests. Transfers
// complete after a configurable number of status polls, and failure behavior
// can be scripted per reference via FailNext.
type SandboxGateway struct {
	mu           sync.Mutex
	transfers    map[string]*sandboxTransfer
	byRecipient  map[string][]string
	pollsToClear int
	failures     map[string]failureScript
}

type sandboxTransfer struct {
	payoutID    string
	recipientID string
	status      domain.PaymentStatus
	reason      string
	pollsLeft   int
	createdAt   time.Time
}

type failureScript struct {
	transientFailures int
	permanent         bool
	reason            string
}

// NewSandboxGateway creates a sandbox that completes transfers after
// pollsToClear status checks (0 completes immediately on submission).
func NewSandboxGateway(pollsToClear int) *SandboxGateway {
	if pollsToClear < 0 {
		pollsToClear = 0
	}
	return &SandboxGateway{
		transfers:    make(map[string]*sandboxTransfer),
		byRecipient:  make(map[string][]string),
		pollsToClear: pollsToClear,
		failures:     make(map[string]failureScript),
	}
}

// FailNext scripts the next submissions for a reference: transientFailures
// submissions fail with a retryable error first; permanent makes the
// transfer terminally fail instead of completing.
func (g *SandboxGateway) FailNext(reference string, transientFailures int, permanent bool, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[reference] = failureScript{
		transientFailures: transientFailures,
		permanent:         permanent,
		reason:            reason,
	}
}

// ProcessPayment accepts the transfer into the sandbox ledger.
func (g *SandboxGateway) ProcessPayment(_ context.Context, req domain.PaymentRequest) (*domain.PaymentResult, error) {
	if req.Amount <= 0 {
		return nil, apperrors.NewGatewayError("sandbox", "process_payment", false,
			fmt.Errorf("non-positive amount %d", req.Amount))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if script, ok := g.failures[req.Reference]; ok && script.transientFailures > 0 {
		script.transientFailures--
		g.failures[req.Reference] = script
		return nil, apperrors.NewGatewayError("sandbox", "process_payment", true,
			fmt.Errorf("scripted transient failure: %s", script.reason))
	}

	transfer := &sandboxTransfer{
		payoutID:    req.PayoutID,
		recipientID: req.RecipientID,
		status:      domain.PaymentProcessing,
		pollsLeft:   g.pollsToClear,
		createdAt:   time.Now(),
	}
	if script, ok := g.failures[req.Reference]; ok && script.permanent {
		transfer.status = domain.PaymentFailed
		transfer.reason = script.reason
	} else if transfer.pollsLeft == 0 {
		transfer.status = domain.PaymentCompleted
	}

	txID := uuid.NewString()
	g.transfers[txID] = transfer
	g.byRecipient[req.RecipientID] = append(g.byRecipient[req.RecipientID], txID)

	return g.resultLocked(txID, transfer), nil
}

// CheckStatus advances and reads a transfer's state.
func (g *SandboxGateway) CheckStatus(_ context.Context, transactionID string) (*domain.PaymentResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	transfer, ok := g.transfers[transactionID]
	if !ok {
		return nil, apperrors.NewGatewayError("sandbox", "check_status", false,
			fmt.Errorf("unknown transaction %s", transactionID))
	}
	if transfer.status == domain.PaymentProcessing {
		transfer.pollsLeft--
		if transfer.pollsLeft <= 0 {
			transfer.status = domain.PaymentCompleted
		}
	}
	return g.resultLocked(transactionID, transfer), nil
}

// Cancel fails a transfer that has not completed yet.
func (g *SandboxGateway) Cancel(_ context.Context, transactionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	transfer, ok := g.transfers[transactionID]
	if !ok {
		return apperrors.NewGatewayError("sandbox", "cancel", false,
			fmt.Errorf("unknown transaction %s", transactionID))
	}
	if transfer.status == domain.PaymentCompleted {
		return apperrors.NewGatewayError("sandbox", "cancel", false,
			fmt.Errorf("transaction %s already completed", transactionID))
	}
	transfer.status = domain.PaymentFailed
	transfer.reason = "cancelled"
	return nil
}

// History lists a recipient's transfers, newest first.
func (g *SandboxGateway) History(_ context.Context, recipientID string, limit int) ([]domain.PaymentResult, error) {
	if limit <= 0 {
		limit = 20
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := g.byRecipient[recipientID]
	results := make([]domain.PaymentResult, 0, min(limit, len(ids)))
	for i := len(ids) - 1; i >= 0 && len(results) < limit; i-- {
		results = append(results, *g.resultLocked(ids[i], g.transfers[ids[i]]))
	}
	return results, nil
}

func (g *SandboxGateway) resultLocked(txID string, t *sandboxTransfer) *domain.PaymentResult {
	result := &domain.PaymentResult{
		PayoutID:      t.payoutID,
		TransactionID: txID,
		Status:        t.status,
		FailureReason: t.reason,
	}
	if t.status != domain.PaymentProcessing {
		result.CompletedAt = time.Now()
	}
	return result
}
