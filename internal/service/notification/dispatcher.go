// Package notification renders templated user notifications and records them
// for delivery. Delivery itself is pluggable; the default transport only
// logs, which keeps the pipeline honest in environments without a push
// channel.
package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
)

// Recorder persists rendered notifications. *repository.Repository satisfies
// this.
type Recorder interface {
	SaveNotifications(ctx context.Context, records []domain.NotificationRecord) error
}

// Delivery hands a rendered notification to an outbound channel.
type Delivery interface {
	Deliver(ctx context.Context, record domain.NotificationRecord) error
}

// LogDelivery: the default transport, logs instead of sending.
type LogDelivery struct {
	Logger *slog.Logger
}

// Deliver logs the notification.
func (d LogDelivery) Deliver(_ context.Context, record domain.NotificationRecord) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification_delivered",
		"recipient_id", record.RecipientID,
		"template", record.TemplateType,
		"title", record.Title,
	)
	return nil
}

// Dispatcher renders, persists, and delivers notifications.
type Dispatcher struct {
	catalog  Catalog
	recorder Recorder
	delivery Delivery
	logger   *slog.Logger
	now      func() time.Time
}

// NewDispatcher creates a Dispatcher. A nil delivery falls back to logging.
func NewDispatcher(catalog Catalog, recorder Recorder, delivery Delivery, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if delivery == nil {
		delivery = LogDelivery{Logger: logger}
	}
	return &Dispatcher{
		catalog:  catalog,
		recorder: recorder,
		delivery: delivery,
		logger:   logger,
		now:      time.Now,
	}
}

// Send renders one notification, persists the record, and delivers it.
// Rendering failures (unknown type, missing variables) abort the send;
// delivery failures are logged but do not, since the record is already the
// durable audit trail.
func (d *Dispatcher) Send(ctx context.Context, recipientID string, templateType domain.TemplateType, variables map[string]string) (*domain.NotificationRecord, error) {
	title, body, err := d.catalog.Render(templateType, variables)
	if err != nil {
		return nil, err
	}

	record := domain.NotificationRecord{
		ID:           uuid.NewString(),
		RecipientID:  recipientID,
		TemplateType: templateType,
		Title:        title,
		Body:         body,
		CreatedAt:    d.now(),
	}
	if d.recorder != nil {
		if err := d.recorder.SaveNotifications(ctx, []domain.NotificationRecord{record}); err != nil {
			return nil, err
		}
	}
	if err := d.delivery.Deliver(ctx, record); err != nil {
		d.logger.Warn("notification_delivery_failed",
			"recipient_id", recipientID, "template", templateType, "err", err)
	}
	return &record, nil
}
