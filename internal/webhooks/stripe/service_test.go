package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stripe/stripe-go/v84"

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

func intentEvent(t *testing.T, eventType stripe.EventType, intent *stripe.PaymentIntent) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(intent)
	if err != nil {
		t.Fatalf("marshal intent: %v", err)
	}
	return &stripe.Event{ID: "evt_1", Type: eventType, Data: &stripe.EventData{Raw: raw}}
}

func TestService_HandlePaymentIntentEvents(t *testing.T) {
	rec := &recordingReconciler{}
	svc, err := NewService(ServiceParams{Reconciler: rec})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	cases := []struct {
		eventType stripe.EventType
		intent    *stripe.PaymentIntent
		want      enums.PaymentStatus
	}{
		{stripe.EventTypePaymentIntentSucceeded, &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusSucceeded}, enums.PaymentStatusApproved},
		{stripe.EventTypePaymentIntentCanceled, &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusCanceled}, enums.PaymentStatusRejected},
		{stripe.EventTypePaymentIntentPaymentFailed, &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusRequiresPaymentMethod}, enums.PaymentStatusRejected},
		{stripe.EventTypePaymentIntentProcessing, &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusProcessing}, enums.PaymentStatusPending},
	}
	for _, tc := range cases {
		if err := svc.HandleEvent(context.Background(), intentEvent(t, tc.eventType, tc.intent)); err != nil {
			t.Fatalf("handle %s: %v", tc.eventType, err)
		}
		got := rec.events[len(rec.events)-1]
		if got.ExternalPaymentID != "pi_1" || got.Status != tc.want || got.Provider != enums.PaymentProviderStripe {
			t.Fatalf("%s: unexpected event %+v", tc.eventType, got)
		}
	}
}

func TestService_IgnoresUnrelatedEvents(t *testing.T) {
	rec := &recordingReconciler{}
	svc, err := NewService(ServiceParams{Reconciler: rec})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	event := &stripe.Event{ID: "evt_2", Type: stripe.EventTypeCustomerCreated, Data: &stripe.EventData{Raw: []byte(`{}`)}}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(rec.events) != 0 {
		t.Fatalf("expected nothing forwarded")
	}
}

func TestService_RejectsMalformedIntent(t *testing.T) {
	svc, err := NewService(ServiceParams{Reconciler: &recordingReconciler{}})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	event := &stripe.Event{ID: "evt_3", Type: stripe.EventTypePaymentIntentSucceeded, Data: &stripe.EventData{Raw: []byte(`{"status":"succeeded"}`)}}
	if err := svc.HandleEvent(context.Background(), event); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
