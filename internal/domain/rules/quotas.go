package rules

import (
	"time"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
)

const (
	FreeLikesPerDay    = 35
	LikesPerMinute     = 30
	BaseActiveChats    = 1
	PlusActiveChats    = 3
	ActivationCostCent = 500
)

// ChatLimits maps a subscription tier to its number of simultaneously active conversations.
type ChatLimits struct {
	Base int
	Plus int
}

func DefaultChatLimits() ChatLimits {
	return ChatLimits{Base: BaseActiveChats, Plus: PlusActiveChats}
}

func (l ChatLimits) For(tier enums.Tier) int {
	base := l.Base
	if base <= 0 {
		base = BaseActiveChats
	}
	plus := l.Plus
	if plus <= 0 {
		plus = PlusActiveChats
	}

	if tier == enums.TierPlus {
		return plus
	}
	return base
}

func TierFromPlus(isPlus bool) enums.Tier {
	if isPlus {
		return enums.TierPlus
	}
	return enums.TierBase
}

func DayKey(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format("2006-01-02")
}

func NextResetAt(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	return next.UTC()
}
