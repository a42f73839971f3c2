// Package stripe collects partner remittances through Stripe payment intents.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/seedfund-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

// key prefixes accepted per environment; restricted keys are allowed.
var keyPrefixes = map[string][]string{
	"test": {"sk_test", "rk_test"},
	"live": {"sk_live", "rk_live"},
}

type Client struct {
	api           *stripe.Client
	signingSecret string
}

func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := cfg.Environment()
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return nil, fmt.Errorf("stripe environment %q is not test or live", env)
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("stripe api key is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("stripe webhook secret is required")
	}
	if !hasAnyPrefix(apiKey, prefixes) {
		return nil, fmt.Errorf("stripe %s environment requires a %s key", env, strings.Join(prefixes, "/"))
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_env", env), "stripe client initialized")
	}
	return &Client{api: stripe.NewClient(apiKey), signingSecret: secret}, nil
}

// IntentParams describes the payment intent opened for one remittance.
type IntentParams struct {
	RemittanceID string
	AmountCents  int64
	Currency     string
}

func (p IntentParams) create() (*stripe.PaymentIntentCreateParams, error) {
	remittance := strings.TrimSpace(p.RemittanceID)
	if remittance == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "remittance id is required")
	}
	if p.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent amount must be positive")
	}
	currency := strings.ToLower(strings.TrimSpace(p.Currency))
	if currency == "" {
		currency = "usd"
	}
	params := &stripe.PaymentIntentCreateParams{
		Amount:      stripe.Int64(p.AmountCents),
		Currency:    stripe.String(currency),
		Description: stripe.String("remittance " + remittance),
		Metadata:    map[string]string{"remittance_id": remittance},
	}
	params.SetIdempotencyKey("remit-" + remittance)
	return params, nil
}

// OpenIntent creates the intent the partner confirms client-side. Repeating
// the call for the same remittance returns the original intent.
func (c *Client) OpenIntent(ctx context.Context, params IntentParams) (*stripe.PaymentIntent, error) {
	if c == nil || c.api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe client not configured")
	}
	req, err := params.create()
	if err != nil {
		return nil, err
	}
	intent, err := c.api.V1PaymentIntents.Create(ctx, req)
	if err != nil {
		return nil, mapError(err, "open payment intent")
	}
	return intent, nil
}

func (c *Client) Intent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	if c == nil || c.api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe client not configured")
	}
	if strings.TrimSpace(id) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}
	intent, err := c.api.V1PaymentIntents.Retrieve(ctx, id, nil)
	if err != nil {
		return nil, mapError(err, "get payment intent")
	}
	return intent, nil
}

// SigningSecret verifies webhook signatures.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

func mapError(err error, op string) error {
	msg := "stripe " + op + " failed"
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
	}
	switch {
	case stripeErr.Type == stripe.ErrorTypeIdempotency:
		return pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, msg)
	case stripeErr.Type == stripe.ErrorTypeCard:
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, msg)
	case stripeErr.HTTPStatusCode == http.StatusNotFound:
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, msg)
	case stripeErr.HTTPStatusCode == http.StatusTooManyRequests:
		return pkgerrors.Wrap(pkgerrors.CodeRateLimit, err, msg)
	case stripeErr.HTTPStatusCode == http.StatusUnauthorized:
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg)
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
