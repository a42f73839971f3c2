package enums

import "fmt"

// CreatorTier maps to the creator_tier enum in Postgres. Ordered lowest first.
type CreatorTier string

const (
	CreatorTierSprout  CreatorTier = "sprout"
	CreatorTierSapling CreatorTier = "sapling"
	CreatorTierTree    CreatorTier = "tree"
	CreatorTierGrove   CreatorTier = "grove"
)

// LowestCreatorTier is where every creator restarts after a cycle reset.
const LowestCreatorTier = CreatorTierSprout

var orderedCreatorTiers = []CreatorTier{
	CreatorTierSprout,
	CreatorTierSapling,
	CreatorTierTree,
	CreatorTierGrove,
}

// IsValid reports whether the value matches the canonical enum.
func (t CreatorTier) IsValid() bool {
	return t.Rank() >= 0
}

// Rank returns the position of the tier, or -1 when unknown.
func (t CreatorTier) Rank() int {
	for i, candidate := range orderedCreatorTiers {
		if candidate == t {
			return i
		}
	}
	return -1
}

// ParseCreatorTier converts raw input into CreatorTier.
func ParseCreatorTier(value string) (CreatorTier, error) {
	tier := CreatorTier(value)
	if !tier.IsValid() {
		return "", fmt.Errorf("invalid creator tier %q", value)
	}
	return tier, nil
}
