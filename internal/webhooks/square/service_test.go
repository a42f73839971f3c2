package squarewebhook

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/angelmondragon/seedfund-backend/internal/reconciler"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
)

type recordingReconciler struct {
	events []reconciler.PaymentEvent
}

func (r *recordingReconciler) OnPaymentEvent(ctx context.Context, event reconciler.PaymentEvent) error {
	r.events = append(r.events, event)
	return nil
}

func decodeEvent(t *testing.T, raw string) *SquareWebhookEvent {
	t.Helper()
	var event SquareWebhookEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return &event
}

func TestService_HandlePaymentUpdatedForwardsStatus(t *testing.T) {
	rec := &recordingReconciler{}
	svc, err := NewService(ServiceParams{Reconciler: rec})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	cases := []struct {
		status string
		want   enums.PaymentStatus
	}{
		{"COMPLETED", enums.PaymentStatusApproved},
		{"FAILED", enums.PaymentStatusRejected},
		{"APPROVED", enums.PaymentStatusApproved},
		{"PENDING", enums.PaymentStatusPending},
	}
	for _, tc := range cases {
		event := decodeEvent(t, `{"event_id":"evt_1","type":"payment.updated","data":{"type":"payment","id":"pay_1","object":{"payment":{"id":"pay_1","status":"`+tc.status+`"}}}}`)
		if err := svc.HandleEvent(context.Background(), event); err != nil {
			t.Fatalf("handle %s: %v", tc.status, err)
		}
		got := rec.events[len(rec.events)-1]
		if got.ExternalPaymentID != "pay_1" || got.Status != tc.want || got.Provider != enums.PaymentProviderSquare {
			t.Fatalf("status %s: unexpected event %+v", tc.status, got)
		}
	}
}

func TestService_IgnoresOtherEvents(t *testing.T) {
	rec := &recordingReconciler{}
	svc, err := NewService(ServiceParams{Reconciler: rec})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	event := decodeEvent(t, `{"event_id":"evt_2","type":"refund.created","data":{"type":"refund","id":"ref_1","object":{}}}`)
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(rec.events) != 0 {
		t.Fatalf("expected no forwarded events, got %d", len(rec.events))
	}
}

func TestService_RejectsMissingPayment(t *testing.T) {
	svc, err := NewService(ServiceParams{Reconciler: &recordingReconciler{}})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	event := decodeEvent(t, `{"event_id":"evt_3","type":"payment.created","data":{"type":"payment","id":"pay_9","object":{}}}`)
	err = svc.HandleEvent(context.Background(), event)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !pkgerrors.IsCode(svc.HandleEvent(context.Background(), nil), pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for nil event")
	}
}

func TestNewService_RequiresReconciler(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatalf("expected error")
	}
}
