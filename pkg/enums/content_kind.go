package enums

// ContentKind identifies which content table a ContentItem lives in.
type ContentKind string

const (
	ContentKindCreator ContentKind = "creator"
	ContentKindPartner ContentKind = "partner"
)

// IsValid reports whether the value matches the canonical enum.
func (k ContentKind) IsValid() bool {
	return k == ContentKindCreator || k == ContentKindPartner
}
