package enums

import "strings"

type Tier string

const (
	TierBase Tier = "base"
	TierPlus Tier = "plus"
)

func ParseTier(raw string) (Tier, bool) {
	switch Tier(strings.ToLower(strings.TrimSpace(raw))) {
	case TierBase:
		return TierBase, true
	case TierPlus:
		return TierPlus, true
	default:
		return "", false
	}
}
