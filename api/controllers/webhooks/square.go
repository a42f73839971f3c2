package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	squarewebhook "github.com/angelmondragon/seedfund-backend/internal/webhooks/square"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

const squareSignatureHeader = "X-Square-Hmacsha256-Signature"

type SquareWebhookService interface {
	HandleEvent(ctx context.Context, event *squarewebhook.SquareWebhookEvent) error
}

// SquareSigner supplies the values Square signs notifications with.
type SquareSigner interface {
	SigningSecret() string
	NotificationURL() string
}

// SquareWebhook accepts Square payment notifications. The signature is
// base64(HMAC-SHA256(key, notification URL + body)).
func SquareWebhook(svc SquareWebhookService, signer SquareSigner, guard webhookGuard, logg *logger.Logger) http.HandlerFunc {
	return receive("square", guard, logg, func(r *http.Request, payload []byte) (*delivery, error) {
		if svc == nil || signer == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "square webhook not configured")
		}
		signature := strings.TrimSpace(r.Header.Get(squareSignatureHeader))
		if signature == "" {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "square signature missing")
		}
		if !validSquareSignature(payload, notificationURL(r, signer), signer.SigningSecret(), signature) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid square signature")
		}

		var event squarewebhook.SquareWebhookEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode square event")
		}
		id := strings.TrimSpace(event.EventID)
		if id == "" {
			id = strings.TrimSpace(event.Data.ID)
		}
		return &delivery{
			eventID: id,
			apply:   func(ctx context.Context) error { return svc.HandleEvent(ctx, &event) },
		}, nil
	})
}

// notificationURL prefers the configured subscription URL and otherwise
// rebuilds it from the request as the proxy forwarded it.
func notificationURL(r *http.Request, signer SquareSigner) string {
	if u := signer.NotificationURL(); u != "" {
		return u
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func validSquareSignature(payload []byte, url, key, signature string) bool {
	if key == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(url))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
