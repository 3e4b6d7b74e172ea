package ingest

import (
	"context"
	"log/slog"
	"strings"

	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	"github.com/rendoarsandi/content-boost-sub002/internal/repository"
	"github.com/rendoarsandi/content-boost-sub002/internal/service/verification"
	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

// ContentVerifier checks that a submitted content URL exists on the claimed
// platform. *verification.Verifier satisfies this.
type ContentVerifier interface {
	VerifyContent(ctx context.Context, platform domain.Platform, rawURL string) (*verification.Result, error)
}

// Registration: one request to put a content item under metrics collection.
type Registration struct {
	Platform   string `json:"platform" binding:"required"`
	ContentID  string `json:"contentId" binding:"required"`
	ContentURL string `json:"contentUrl" binding:"required"`
	PromoterID string `json:"promoterId" binding:"required"`
	CampaignID string `json:"campaignId" binding:"required"`
	UserID     string `json:"userId" binding:"required"`
}

// Registrar verifies submitted content and registers it for collection.
// Unverifiable content is recorded with the reason but never tracked, so a
// dead or mismatched URL cannot earn views.
type Registrar struct {
	repo     *repository.Repository
	verifier ContentVerifier
	logger   *slog.Logger
}

// NewRegistrar creates a Registrar.
func NewRegistrar(repo *repository.Repository, verifier ContentVerifier, logger *slog.Logger) *Registrar {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registrar{repo: repo, verifier: verifier, logger: logger}
}

// Register verifies the content URL and upserts the tracked item. The stored
// row carries the verification outcome; tracking activates only on a pass.
func (r *Registrar) Register(ctx context.Context, reg Registration) (*repository.TrackedContentRow, error) {
	platform, ok := domain.ParsePlatform(reg.Platform)
	if !ok {
		return nil, apperrors.NewValidationError("platform", "unsupported platform: "+reg.Platform)
	}
	for field, value := range map[string]string{
		"contentId":  reg.ContentID,
		"contentUrl": reg.ContentURL,
		"promoterId": reg.PromoterID,
		"campaignId": reg.CampaignID,
		"userId":     reg.UserID,
	} {
		if strings.TrimSpace(value) == "" {
			return nil, apperrors.NewValidationError(field, "required")
		}
	}

	result, err := r.verifier.VerifyContent(ctx, platform, reg.ContentURL)
	if err != nil {
		return nil, err
	}

	row := repository.TrackedContentRow{
		Platform:       string(platform),
		ContentID:      reg.ContentID,
		ContentURL:     reg.ContentURL,
		PromoterID:     reg.PromoterID,
		CampaignID:     reg.CampaignID,
		UserID:         reg.UserID,
		Verified:       result.Verified,
		VerifyReason:   result.Reason,
		TrackingActive: result.Verified,
	}
	if err := r.repo.UpsertTrackedContent(ctx, row); err != nil {
		return nil, err
	}

	if result.Verified {
		r.logger.Info("content_registered",
			"platform", platform, "content_id", reg.ContentID, "promoter_id", reg.PromoterID)
	} else {
		r.logger.Warn("content_rejected",
			"platform", platform, "content_id", reg.ContentID, "reason", result.Reason)
	}
	return &row, nil
}
