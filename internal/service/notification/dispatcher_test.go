package notification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

type fakeRecorder struct {
	saved []domain.NotificationRecord
	err   error
}

func (r *fakeRecorder) SaveNotifications(_ context.Context, records []domain.NotificationRecord) error {
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, records...)
	return nil
}

type failingDelivery struct{ calls int }

func (d *failingDelivery) Deliver(context.Context, domain.NotificationRecord) error {
	d.calls++
	return errors.New("push channel down")
}

func testCatalog(t *testing.T) Catalog {
	t.Helper()
	catalog, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	return catalog
}

func testDispatcher(t *testing.T, recorder Recorder, delivery Delivery) *Dispatcher {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDispatcher(testCatalog(t), recorder, delivery, logger)
}

func TestSendRendersAndRecords(t *testing.T) {
	recorder := &fakeRecorder{}
	d := testDispatcher(t, recorder, nil)

	record, err := d.Send(context.Background(), "promoter-1", domain.TemplatePayoutCompleted, map[string]string{
		"amount":     "95000",
		"campaignId": "campaign-1",
		"reference":  "trf-abc",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if record.ID == "" {
		t.Error("record ID is empty")
	}
	if record.RecipientID != "promoter-1" {
		t.Errorf("RecipientID = %q", record.RecipientID)
	}
	if record.Title != "Payout sent" {
		t.Errorf("Title = %q", record.Title)
	}
	if !strings.Contains(record.Body, "Rp 95000") || !strings.Contains(record.Body, "campaign-1") || !strings.Contains(record.Body, "trf-abc") {
		t.Errorf("Body missing substitutions: %q", record.Body)
	}
	if strings.Contains(record.Body, "{") {
		t.Errorf("Body has unresolved placeholder: %q", record.Body)
	}

	if len(recorder.saved) != 1 {
		t.Fatalf("recorded %d notifications, want 1", len(recorder.saved))
	}
	if recorder.saved[0].ID != record.ID {
		t.Errorf("recorded ID = %q, want %q", recorder.saved[0].ID, record.ID)
	}
}

func TestSendUnknownTemplateType(t *testing.T) {
	recorder := &fakeRecorder{}
	d := testDispatcher(t, recorder, nil)

	_, err := d.Send(context.Background(), "promoter-1", domain.TemplateType("carrier_pigeon"), nil)
	if !apperrors.IsValidation(err) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(recorder.saved) != 0 {
		t.Errorf("recorded %d notifications, want none on render failure", len(recorder.saved))
	}
}

func TestSendMissingRequiredVariable(t *testing.T) {
	d := testDispatcher(t, &fakeRecorder{}, nil)

	_, err := d.Send(context.Background(), "promoter-1", domain.TemplatePayoutFailed, map[string]string{
		"amount":     "95000",
		"campaignId": "campaign-1",
		// reason omitted
	})
	if !apperrors.IsValidation(err) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestSendRecorderFailureAborts(t *testing.T) {
	recorder := &fakeRecorder{err: errors.New("db unavailable")}
	d := testDispatcher(t, recorder, nil)

	_, err := d.Send(context.Background(), "promoter-1", domain.TemplatePayoutProcessing, map[string]string{
		"amount":     "95000",
		"campaignId": "campaign-1",
	})
	if err == nil {
		t.Fatal("expected error when the recorder fails")
	}
}

func TestSendDeliveryFailureIsTolerated(t *testing.T) {
	recorder := &fakeRecorder{}
	delivery := &failingDelivery{}
	d := testDispatcher(t, recorder, delivery)

	record, err := d.Send(context.Background(), "promoter-1", domain.TemplateReauthRequired, map[string]string{
		"platform": "tiktok",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if delivery.calls != 1 {
		t.Errorf("delivery calls = %d, want 1", delivery.calls)
	}
	// The record is persisted even though delivery failed.
	if len(recorder.saved) != 1 {
		t.Fatalf("recorded %d notifications, want 1", len(recorder.saved))
	}
	if !strings.Contains(record.Title, "tiktok") {
		t.Errorf("Title = %q, want platform substituted", record.Title)
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	if _, err := LoadCatalog("/nonexistent/templates.yaml"); err == nil {
		t.Fatal("expected error for missing catalog file")
	}
}
