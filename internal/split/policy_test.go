package split

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/seedfund-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestSplitPurchaseOfOneThousand(t *testing.T) {
	p := DefaultPolicy()

	if got := p.ExpectedRemittance(dec("1000")); !got.Equal(dec("100")) {
		t.Fatalf("expected remittance 100, got %s", got)
	}

	shares, err := p.Split(dec("1000"), dec("100"))
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if shares.Spender != 50 {
		t.Fatalf("expected spender 50, got %d", shares.Spender)
	}
	if !shares.Fund.Equal(dec("25")) {
		t.Fatalf("expected fund 25, got %s", shares.Fund)
	}
	if !shares.Platform.Equal(dec("25")) {
		t.Fatalf("expected platform 25, got %s", shares.Platform)
	}
}

func TestSplitSharesAlwaysSumToRemittance(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct{ purchase, remittance string }{
		{"1000", "100"},
		{"1001", "100.10"},
		{"1010", "101"},
		{"37.37", "3.74"},
		{"10", "1"},
		{"999999.99", "100000"},
	}
	for _, tc := range cases {
		shares, err := p.Split(dec(tc.purchase), dec(tc.remittance))
		if err != nil {
			t.Fatalf("split %s/%s: %v", tc.purchase, tc.remittance, err)
		}
		if !shares.Total().Equal(dec(tc.remittance)) {
			t.Fatalf("split %s/%s: shares sum to %s", tc.purchase, tc.remittance, shares.Total())
		}
		if shares.Spender < 0 || shares.Fund.IsNegative() || shares.Platform.IsNegative() {
			t.Fatalf("split %s/%s: negative share %+v", tc.purchase, tc.remittance, shares)
		}
	}
}

func TestSplitRoundsSpenderHalfUp(t *testing.T) {
	p := DefaultPolicy()
	shares, err := p.Split(dec("1010"), dec("101"))
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if shares.Spender != 51 {
		t.Fatalf("expected 50.5 to round to 51, got %d", shares.Spender)
	}
	if !shares.Platform.Equal(dec("24.75")) {
		t.Fatalf("expected platform to absorb rounding, got %s", shares.Platform)
	}
}

func TestSplitClampsPlatformAtZero(t *testing.T) {
	p := DefaultPolicy()
	shares, err := p.Split(dec("10"), dec("1"))
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if shares.Spender != 1 || !shares.Platform.IsZero() || !shares.Fund.IsZero() {
		t.Fatalf("unexpected shares %+v", shares)
	}
}

func TestSplitRejectsSpenderLargerThanRemittance(t *testing.T) {
	_, err := DefaultPolicy().Split(dec("1000"), dec("10"))
	if !pkgerrors.IsCode(err, pkgerrors.CodeValueMismatch) {
		t.Fatalf("expected value mismatch, got %v", err)
	}
}

func TestValidateRemittanceTolerance(t *testing.T) {
	p := DefaultPolicy()
	if err := p.ValidateRemittance(dec("1000"), dec("100.99")); err != nil {
		t.Fatalf("expected value within tolerance, got %v", err)
	}
	err := p.ValidateRemittance(dec("1000"), dec("98"))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValueMismatch {
		t.Fatalf("expected value mismatch, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok || details["expected"] != "100" {
		t.Fatalf("unexpected details %#v", typed.Details())
	}
	if err := p.ValidateRemittance(dec("1000"), decimal.Zero); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for zero value, got %v", err)
	}
}

func TestPolicyValidate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}

	negative := DefaultPolicy()
	negative.FundRate = dec("-0.1")
	if err := negative.Validate(); err == nil {
		t.Fatalf("expected negative rate to fail")
	}

	overAllocated := DefaultPolicy()
	overAllocated.PlatformRate = dec("0.30")
	if err := overAllocated.Validate(); err == nil {
		t.Fatalf("expected over-allocation to fail")
	}

	zeroRemittance := DefaultPolicy()
	zeroRemittance.RemittanceRate = decimal.Zero
	if err := zeroRemittance.Validate(); err == nil {
		t.Fatalf("expected zero remittance rate to fail")
	}
}

func TestNewPolicyFromConfig(t *testing.T) {
	rates, err := config.SettlementConfig{
		RemittanceRate:      "0.10",
		SpenderRate:         "0.05",
		FundRate:            "0.25",
		PlatformRate:        "0.25",
		CreatorPoolFraction: "0.60",
		RemittanceTolerance: "0.5",
	}.Rates()
	if err != nil {
		t.Fatalf("rates: %v", err)
	}
	p, err := NewPolicy(rates)
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	if got := p.CreatorPool(dec("100")); !got.Equal(dec("60")) {
		t.Fatalf("expected creator pool 60, got %s", got)
	}
}
