package enums

import "fmt"

// SeedHistoryType classifies a seed balance delta.
type SeedHistoryType string

const (
	SeedHistoryEarned    SeedHistoryType = "earned"
	SeedHistorySpent     SeedHistoryType = "spent"
	SeedHistoryRedeemed  SeedHistoryType = "redeemed"
	SeedHistoryWithdrawn SeedHistoryType = "withdrawn"
)

var validSeedHistoryTypes = []SeedHistoryType{
	SeedHistoryEarned,
	SeedHistorySpent,
	SeedHistoryRedeemed,
	SeedHistoryWithdrawn,
}

// IsValid reports whether the value matches the canonical enum.
func (t SeedHistoryType) IsValid() bool {
	for _, candidate := range validSeedHistoryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsCredit reports whether the type increases a balance.
func (t SeedHistoryType) IsCredit() bool {
	return t == SeedHistoryEarned
}

// ParseSeedHistoryType converts raw input into SeedHistoryType.
func ParseSeedHistoryType(value string) (SeedHistoryType, error) {
	for _, candidate := range validSeedHistoryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid seed history type %q", value)
}
