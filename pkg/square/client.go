// Package square wraps the Square Payments API calls used to collect
// partner remittances.
package square

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/seedfund-backend/pkg/config"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

var environments = map[string]string{
	"sandbox":    "https://connect.squareupsandbox.com",
	"production": "https://connect.squareup.com",
}

type Client struct {
	sdk           *sqclient.Client
	env           string
	locationID    string
	webhookSecret string
	webhookURL    string
	logg          *logger.Logger
}

// NewClient validates cfg and builds an authenticated SDK client.
func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errors.New("square logger is required")
	}
	env := cfg.Environment()
	baseURL, ok := environments[env]
	if !ok {
		return nil, fmt.Errorf("square environment %q is not sandbox or production", env)
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errors.New("square access token is required")
	}
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		return nil, errors.New("square webhook secret is required")
	}

	c := &Client{
		sdk:           sqclient.NewClient(sqoption.WithBaseURL(baseURL), sqoption.WithToken(token)),
		env:           env,
		locationID:    strings.TrimSpace(cfg.LocationID),
		webhookSecret: secret,
		webhookURL:    strings.TrimSpace(cfg.WebhookURL),
		logg:          logg,
	}
	logg.Info(logg.WithField(ctx, "square_env", env), "square client initialized")
	return c, nil
}

// LocationID is the Square location remittances are collected at.
func (c *Client) LocationID() string {
	if c == nil {
		return ""
	}
	return c.locationID
}

// SigningSecret verifies webhook signatures.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// NotificationURL is the webhook subscription URL, empty when not configured.
func (c *Client) NotificationURL() string {
	if c == nil {
		return ""
	}
	return c.webhookURL
}

// Charge takes a remittance payment. Retrying with the same remittance
// returns the original payment instead of charging twice.
func (c *Client) Charge(ctx context.Context, params ChargeParams) (*sq.Payment, error) {
	req, err := params.request(c.locationID)
	if err != nil {
		return nil, err
	}
	ctx = c.logg.WithFields(ctx, map[string]any{
		"square_op":     "charge",
		"remittance_id": params.RemittanceID,
		"amount_cents":  params.AmountCents,
	})
	resp, err := c.sdk.Payments.Create(ctx, req)
	if err != nil {
		mapped := mapError(err, "create payment")
		c.logg.Error(ctx, "square charge failed", mapped)
		return nil, mapped
	}
	payment := resp.GetPayment()
	c.logg.Info(c.logg.WithFields(ctx, paymentFields(payment)), "square charge accepted")
	return payment, nil
}

// Payment returns the current state of a payment.
func (c *Client) Payment(ctx context.Context, paymentID string) (*sq.Payment, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, errors.New("square payment id is required")
	}
	resp, err := c.sdk.Payments.Get(ctx, &sq.GetPaymentsRequest{PaymentID: paymentID})
	if err != nil {
		mapped := mapError(err, "get payment")
		c.logg.Error(c.logg.WithField(ctx, "payment_id", paymentID), "square payment lookup failed", mapped)
		return nil, mapped
	}
	return resp.GetPayment(), nil
}

func paymentFields(p *sq.Payment) map[string]any {
	fields := map[string]any{}
	if p == nil {
		return fields
	}
	if id := p.GetID(); id != nil {
		fields["payment_id"] = *id
	}
	if status := p.GetStatus(); status != nil {
		fields["payment_status"] = *status
	}
	return fields
}
