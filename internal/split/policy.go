// Package split computes how a confirmed remittance is divided between the
// spender's cashback, the community seed fund and the platform.
package split

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/seedfund-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
)

// Default rates. Spender and remittance rates apply to the purchase amount;
// fund and platform rates apply to the remittance value.
var (
	DefaultRemittanceRate      = decimal.RequireFromString("0.10")
	DefaultSpenderRate         = decimal.RequireFromString("0.05")
	DefaultFundRate            = decimal.RequireFromString("0.25")
	DefaultPlatformRate        = decimal.RequireFromString("0.25")
	DefaultCreatorPoolFraction = decimal.RequireFromString("0.50")
	DefaultRemittanceTolerance = decimal.NewFromInt(1)
)

const moneyPlaces = 2

// Policy is the single source of split rates for settlement and distribution.
type Policy struct {
	RemittanceRate      decimal.Decimal
	SpenderRate         decimal.Decimal
	FundRate            decimal.Decimal
	PlatformRate        decimal.Decimal
	CreatorPoolFraction decimal.Decimal
	RemittanceTolerance decimal.Decimal
}

// Shares is the result of splitting one remittance.
type Shares struct {
	Spender  int64           `json:"spender"`
	Fund     decimal.Decimal `json:"fund"`
	Platform decimal.Decimal `json:"platform"`
}

// Total returns spender + fund + platform.
func (s Shares) Total() decimal.Decimal {
	return decimal.NewFromInt(s.Spender).Add(s.Fund).Add(s.Platform)
}

// DefaultPolicy returns the policy built from the default rates.
func DefaultPolicy() Policy {
	return Policy{
		RemittanceRate:      DefaultRemittanceRate,
		SpenderRate:         DefaultSpenderRate,
		FundRate:            DefaultFundRate,
		PlatformRate:        DefaultPlatformRate,
		CreatorPoolFraction: DefaultCreatorPoolFraction,
		RemittanceTolerance: DefaultRemittanceTolerance,
	}
}

// NewPolicy builds a validated policy from configuration.
func NewPolicy(rates config.SettlementRates) (Policy, error) {
	p := Policy{
		RemittanceRate:      rates.RemittanceRate,
		SpenderRate:         rates.SpenderRate,
		FundRate:            rates.FundRate,
		PlatformRate:        rates.PlatformRate,
		CreatorPoolFraction: rates.CreatorPoolFraction,
		RemittanceTolerance: rates.RemittanceTolerance,
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate rejects negative rates and allocations exceeding the remittance.
func (p Policy) Validate() error {
	named := []struct {
		name string
		rate decimal.Decimal
	}{
		{"remittance rate", p.RemittanceRate},
		{"spender rate", p.SpenderRate},
		{"fund rate", p.FundRate},
		{"platform rate", p.PlatformRate},
		{"creator pool fraction", p.CreatorPoolFraction},
		{"remittance tolerance", p.RemittanceTolerance},
	}
	for _, n := range named {
		if n.rate.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must not be negative", n.name))
		}
	}
	if !p.RemittanceRate.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "remittance rate must be positive")
	}
	if p.CreatorPoolFraction.GreaterThan(decimal.NewFromInt(1)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "creator pool fraction must not exceed 1")
	}
	// spender rate is relative to the purchase, so express it as a fraction of the remittance
	spenderOfRemittance := p.SpenderRate.Div(p.RemittanceRate)
	allocated := spenderOfRemittance.Add(p.FundRate).Add(p.PlatformRate)
	if allocated.GreaterThan(decimal.NewFromInt(1)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "spender, fund and platform rates exceed the remittance").WithDetails(map[string]any{
			"allocated": allocated.String(),
		})
	}
	return nil
}

// ExpectedRemittance is the value a partner owes for a purchase.
func (p Policy) ExpectedRemittance(purchaseAmount decimal.Decimal) decimal.Decimal {
	return purchaseAmount.Mul(p.RemittanceRate).Round(moneyPlaces)
}

// SpenderShare is the cashback in seeds, rounded half-up.
func (p Policy) SpenderShare(purchaseAmount decimal.Decimal) int64 {
	return purchaseAmount.Mul(p.SpenderRate).Round(0).IntPart()
}

// ValidateRemittance fails with VALUE_MISMATCH when value deviates from the expected remittance beyond tolerance.
func (p Policy) ValidateRemittance(purchaseAmount, value decimal.Decimal) error {
	if !value.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "remittance value must be positive")
	}
	expected := p.ExpectedRemittance(purchaseAmount)
	if value.Sub(expected).Abs().GreaterThan(p.RemittanceTolerance) {
		return pkgerrors.New(pkgerrors.CodeValueMismatch, "remittance value does not match the expected percentage").WithDetails(map[string]any{
			"expected":  expected.String(),
			"received":  value.String(),
			"tolerance": p.RemittanceTolerance.String(),
		})
	}
	return nil
}

// Split divides remittanceValue. The platform absorbs rounding residue so the
// three shares always add up to remittanceValue; no share is negative.
func (p Policy) Split(purchaseAmount, remittanceValue decimal.Decimal) (Shares, error) {
	if purchaseAmount.IsNegative() || remittanceValue.IsNegative() {
		return Shares{}, pkgerrors.New(pkgerrors.CodeValidation, "amounts must not be negative")
	}
	spender := p.SpenderShare(purchaseAmount)
	spenderDec := decimal.NewFromInt(spender)
	if spenderDec.GreaterThan(remittanceValue) {
		return Shares{}, pkgerrors.New(pkgerrors.CodeValueMismatch, "spender share exceeds remittance value").WithDetails(map[string]any{
			"spender_share": spender,
			"remittance":    remittanceValue.String(),
		})
	}

	fund := remittanceValue.Mul(p.FundRate)
	platform := remittanceValue.Sub(spenderDec).Sub(fund)
	if platform.IsNegative() {
		// half-up rounding of the spender share can overrun the remittance on tiny amounts
		fund = fund.Add(platform)
		platform = decimal.Zero
	}

	return Shares{Spender: spender, Fund: fund, Platform: platform}, nil
}

// CreatorPool returns the part of a fund total reserved for creators.
func (p Policy) CreatorPool(total decimal.Decimal) decimal.Decimal {
	return total.Mul(p.CreatorPoolFraction)
}
