package square

import (
	"context"
	"errors"
	"net/http"
	"testing"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/seedfund-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

func TestChargeRequestIsBoundToRemittance(t *testing.T) {
	params := ChargeParams{RemittanceID: "7f1c", AmountCents: 2550, Currency: "usd", SourceID: "cnon:card", Note: " remittance 7f1c "}
	req, err := params.request("loc_1")
	require.NoError(t, err)
	require.Equal(t, "remit-7f1c", req.IdempotencyKey)
	require.Equal(t, int64(2550), *req.AmountMoney.Amount)
	require.Equal(t, sq.Currency("USD"), *req.AmountMoney.Currency)
	require.True(t, *req.Autocomplete)
	require.Equal(t, "7f1c", *req.ReferenceID)
	require.Equal(t, "loc_1", *req.LocationID)
	require.Equal(t, "remittance 7f1c", *req.Note)

	// the same remittance always produces the same key
	again, err := params.request("loc_1")
	require.NoError(t, err)
	require.Equal(t, req.IdempotencyKey, again.IdempotencyKey)
}

func TestChargeRequestValidation(t *testing.T) {
	cases := map[string]ChargeParams{
		"missing remittance": {AmountCents: 1, SourceID: "cnon:card"},
		"zero amount":        {RemittanceID: "r", SourceID: "cnon:card"},
		"missing source":     {RemittanceID: "r", AmountCents: 1},
	}
	for name, params := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := params.request("")
			require.Error(t, err)
		})
	}

	req, err := ChargeParams{RemittanceID: "r", AmountCents: 1, SourceID: "cnon:card"}.request("")
	require.NoError(t, err)
	require.Nil(t, req.LocationID)
	require.Nil(t, req.Note)
	require.Equal(t, sq.Currency("USD"), *req.AmountMoney.Currency)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   pkgerrors.Code
	}{
		{"card declined", http.StatusPaymentRequired, `{"errors":[{"category":"PAYMENT_METHOD_ERROR","code":"CARD_DECLINED"}]}`, pkgerrors.CodeStateConflict},
		{"bad auth", http.StatusUnauthorized, `{"errors":[{"category":"AUTHENTICATION_ERROR","code":"UNAUTHORIZED"}]}`, pkgerrors.CodeUnauthorized},
		{"key reused", http.StatusBadRequest, `{"errors":[{"category":"INVALID_REQUEST_ERROR","code":"IDEMPOTENCY_KEY_REUSED"}]}`, pkgerrors.CodeIdempotency},
		{"not found", http.StatusNotFound, `{"errors":[]}`, pkgerrors.CodeNotFound},
		{"outage", http.StatusBadGateway, `not json`, pkgerrors.CodeDependency},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := mapError(sqcore.NewAPIError(tc.status, errors.New(tc.body)), "create payment")
			require.True(t, pkgerrors.IsCode(err, tc.want), "got %v", err)
		})
	}

	err := mapError(errors.New("dial tcp: timeout"), "get payment")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestNewClientValidatesConfig(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "square-test"})
	ctx := context.Background()

	_, err := NewClient(ctx, config.SquareConfig{WebhookSecret: "s"}, logg)
	require.Error(t, err)
	_, err = NewClient(ctx, config.SquareConfig{AccessToken: "t"}, logg)
	require.Error(t, err)
	_, err = NewClient(ctx, config.SquareConfig{AccessToken: "t", WebhookSecret: "s", Env: "staging"}, logg)
	require.Error(t, err)

	c, err := NewClient(ctx, config.SquareConfig{AccessToken: "t", WebhookSecret: "s", LocationID: " loc_9 ", WebhookURL: "https://api.example.com/api/v1/webhooks/square"}, logg)
	require.NoError(t, err)
	require.Equal(t, "loc_9", c.LocationID())
	require.Equal(t, "s", c.SigningSecret())
	require.Equal(t, "https://api.example.com/api/v1/webhooks/square", c.NotificationURL())
	require.Equal(t, "sandbox", c.env)
}
