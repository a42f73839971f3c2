package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/seedfund-backend/api/responses"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

// providers send small JSON documents; anything larger is not theirs
const maxPayloadBytes = 1 << 20

// webhookGuard remembers processed provider event ids.
type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// delivery is a verified provider event ready to apply.
type delivery struct {
	eventID string
	apply   func(ctx context.Context) error
}

// verifier authenticates the raw payload and decodes it into a delivery.
type verifier func(r *http.Request, payload []byte) (*delivery, error)

// receive runs the shared webhook pipeline: read, verify, drop replays,
// apply. A failed apply forgets the event id so the provider's redelivery is
// processed.
func receive(provider string, guard webhookGuard, logg *logger.Logger, verify verifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithField(ctx, "webhook_provider", provider)
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, provider+" webhook guard unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body"))
			return
		}
		d, err := verify(r, payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if d.eventID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, provider+" event id missing"))
			return
		}
		if logg != nil {
			ctx = logg.WithField(ctx, "event_id", d.eventID)
		}

		seen, err := guard.CheckAndMark(ctx, d.eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check webhook replay"))
			return
		}
		if seen {
			responses.WriteSuccess(w, map[string]string{"status": "duplicate"})
			return
		}

		if err := d.apply(ctx); err != nil {
			if delErr := guard.Delete(ctx, d.eventID); delErr != nil && logg != nil {
				logg.Error(ctx, "release webhook event id", delErr)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(ctx, "webhook event applied")
		}
		responses.WriteSuccess(w, map[string]string{"status": "processed"})
	}
}
