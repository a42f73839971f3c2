// Package payments adapts external payment gateways to the two calls
// settlement needs: create a charge and read its status.
package payments

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/seedfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
)

// ChargeRequest asks a provider to collect a remittance.
type ChargeRequest struct {
	Amount    decimal.Decimal
	Currency  string
	Reference string
	SourceID  string
}

// Charge is the provider's answer to CreateCharge.
type Charge struct {
	PaymentID    string                `json:"payment_id"`
	Provider     enums.PaymentProvider `json:"provider"`
	Status       enums.PaymentStatus   `json:"status"`
	ClientSecret string                `json:"client_secret,omitempty"`
}

// Provider is one external payment gateway.
type Provider interface {
	Name() enums.PaymentProvider
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	GetStatus(ctx context.Context, paymentID string) (enums.PaymentStatus, error)
}

// Registry resolves providers by name and knows the default for new charges.
type Registry struct {
	providers map[enums.PaymentProvider]Provider
	def       enums.PaymentProvider
}

// NewRegistry registers providers; the first one is the default unless SetDefault is called.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[enums.PaymentProvider]Provider, len(providers))}
	for _, p := range providers {
		if p == nil {
			continue
		}
		if r.def == "" {
			r.def = p.Name()
		}
		r.providers[p.Name()] = p
	}
	return r
}

// SetDefault selects the provider used for new charges.
func (r *Registry) SetDefault(name enums.PaymentProvider) error {
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("payment provider %q not registered", name)
	}
	r.def = name
	return nil
}

// Default returns the provider used for new charges.
func (r *Registry) Default() (Provider, error) {
	return r.Get(r.def)
}

func (r *Registry) Get(name enums.PaymentProvider) (Provider, error) {
	if r == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment providers not configured")
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("payment provider %q not configured", name))
	}
	return p, nil
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
