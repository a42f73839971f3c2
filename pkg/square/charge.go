package square

import (
	"errors"
	"strings"

	sq "github.com/square/square-go-sdk"
)

const idempotencyPrefix = "remit-"

// ChargeParams describes one remittance payment. SourceID is a card nonce or
// card on file id.
type ChargeParams struct {
	RemittanceID string
	AmountCents  int64
	Currency     string
	SourceID     string
	Note         string
}

func (p ChargeParams) request(locationID string) (*sq.CreatePaymentRequest, error) {
	remittance := strings.TrimSpace(p.RemittanceID)
	switch {
	case remittance == "":
		return nil, errors.New("remittance id is required")
	case p.AmountCents <= 0:
		return nil, errors.New("charge amount must be positive")
	case strings.TrimSpace(p.SourceID) == "":
		return nil, errors.New("payment source is required")
	}

	currency := sq.Currency(strings.ToUpper(strings.TrimSpace(p.Currency)))
	if currency == "" {
		currency = sq.Currency("USD")
	}
	amount := p.AmountCents
	autocomplete := true
	req := &sq.CreatePaymentRequest{
		IdempotencyKey: idempotencyPrefix + remittance,
		SourceID:       strings.TrimSpace(p.SourceID),
		AmountMoney:    &sq.Money{Amount: &amount, Currency: &currency},
		Autocomplete:   &autocomplete,
		ReferenceID:    &remittance,
	}
	if loc := strings.TrimSpace(locationID); loc != "" {
		req.LocationID = &loc
	}
	if note := strings.TrimSpace(p.Note); note != "" {
		req.Note = &note
	}
	return req, nil
}
