package enums

// BeneficiaryType tags a fund distribution row.
type BeneficiaryType string

const (
	BeneficiaryCreator BeneficiaryType = "creator"
	BeneficiarySpender BeneficiaryType = "spender"
)

// IsValid reports whether the value matches the canonical enum.
func (b BeneficiaryType) IsValid() bool {
	return b == BeneficiaryCreator || b == BeneficiarySpender
}
