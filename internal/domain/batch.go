package domain

import "time"

// BatchStatus is the lifecycle state of a settlement batch.
type BatchStatus string

const (
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
	BatchFailed    BatchStatus = "failed"
)

// PayoutJobResult: the outcome of settling one promoter/campaign pair within
// a batch. Failed jobs carry the error text; the batch itself keeps going.
type PayoutJobResult struct {
	PromoterID string             `json:"promoterId"`
	CampaignID string             `json:"campaignId"`
	Payout     *PayoutCalculation `json:"payout,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// Succeeded reports whether the job produced a payout.
func (r PayoutJobResult) Succeeded() bool { return r.Error == "" }

// PayoutBatch: one scheduled (or manually triggered) settlement run across
// all active promoter/campaign pairs. Mutated only by the owning batch
// coordinator while running; immutable after Close. The reconciliation
// invariant CompletedJobs + FailedJobs = TotalJobs holds on close.
type PayoutBatch struct {
	ID            string            `json:"id"`
	Date          time.Time         `json:"date"`
	TotalJobs     int               `json:"totalJobs"`
	CompletedJobs int               `json:"completedJobs"`
	FailedJobs    int               `json:"failedJobs"`
	TotalAmount   int64             `json:"totalAmount"` // sum of net amounts, rupiah
	Status        BatchStatus       `json:"status"`
	StartedAt     time.Time         `json:"startedAt"`
	CompletedAt   time.Time         `json:"completedAt"`
	Results       []PayoutJobResult `json:"results"`
}

// Append records one job result and updates the running counters.
func (b *PayoutBatch) Append(result PayoutJobResult) {
	b.Results = append(b.Results, result)
	if result.Succeeded() {
		b.CompletedJobs++
		if result.Payout != nil {
			b.TotalAmount += result.Payout.NetAmount
		}
	} else {
		b.FailedJobs++
	}
}

// Close marks the batch terminal. The batch fails only when every job failed;
// partial failure is still a completed batch with failed jobs recorded.
func (b *PayoutBatch) Close(now time.Time) {
	b.CompletedAt = now
	if b.TotalJobs > 0 && b.FailedJobs == b.TotalJobs {
		b.Status = BatchFailed
		return
	}
	b.Status = BatchCompleted
}
