package domain

import (
	"strconv"
	"time"
)

// CollectionJob: one metrics-collection task carried over the job queue as a
// flat field map. Validator tags reject malformed jobs before any network
// call; mapstructure tags bind the stream fields back into the struct.
type CollectionJob struct {
	JobID      string `mapstructure:"job_id" validate:"required"`
	Platform   string `mapstructure:"platform" validate:"required"`
	ContentID  string `mapstructure:"content_id" validate:"required"`
	PromoterID string `mapstructure:"promoter_id" validate:"required"`
	CampaignID string `mapstructure:"campaign_id" validate:"required"`
	UserID     string `mapstructure:"user_id" validate:"required"`
	Attempt    int    `mapstructure:"attempt"`
	// NotBefore is a durable retry-at timestamp (unix seconds). A consumer
	// seeing a job before this time parks it in the deferred set instead of
	// running it, so retry scheduling survives a process restart.
	NotBefore  int64 `mapstructure:"not_before"`
	EnqueuedAt int64 `mapstructure:"enqueued_at"`
}

// Ready reports whether the job's retry-at time has passed.
func (j CollectionJob) Ready(now time.Time) bool {
	return j.NotBefore == 0 || now.Unix() >= j.NotBefore
}

// Fields flattens the job into the string map carried on the stream.
func (j CollectionJob) Fields() map[string]string {
	return map[string]string{
		"job_id":      j.JobID,
		"platform":    j.Platform,
		"content_id":  j.ContentID,
		"promoter_id": j.PromoterID,
		"campaign_id": j.CampaignID,
		"user_id":     j.UserID,
		"attempt":     strconv.Itoa(j.Attempt),
		"not_before":  strconv.FormatInt(j.NotBefore, 10),
		"enqueued_at": strconv.FormatInt(j.EnqueuedAt, 10),
	}
}
