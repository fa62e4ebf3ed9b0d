package rules

import (
	"sort"
	"time"
)

const promotionWindow = 24 * time.Hour

// SurfacingPolicy bounds how many hidden likes a recipient gets to see and how fast.
type SurfacingPolicy struct {
	MaxVisible       int
	DailyQuota       int
	Delay            time.Duration
	LowActivityDelay time.Duration
	LowActivityAfter time.Duration
	ImmediateFirst   bool
	OnlineWindow     time.Duration
	OnlineBonus      time.Duration
	VisibleTTL       time.Duration
}

func DefaultSurfacingPolicy() SurfacingPolicy {
	return SurfacingPolicy{
		MaxVisible:       3,
		DailyQuota:       10,
		Delay:            2 * time.Hour,
		LowActivityDelay: 15 * time.Minute,
		LowActivityAfter: 72 * time.Hour,
		ImmediateFirst:   true,
		OnlineWindow:     5 * time.Minute,
		OnlineBonus:      30 * time.Minute,
		VisibleTTL:       72 * time.Hour,
	}
}

func (p SurfacingPolicy) Normalize() SurfacingPolicy {
	def := DefaultSurfacingPolicy()
	if p.MaxVisible <= 0 {
		p.MaxVisible = def.MaxVisible
	}
	if p.DailyQuota <= 0 {
		p.DailyQuota = def.DailyQuota
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	if p.LowActivityDelay < 0 {
		p.LowActivityDelay = 0
	}
	if p.LowActivityAfter <= 0 {
		p.LowActivityAfter = def.LowActivityAfter
	}
	if p.OnlineWindow <= 0 {
		p.OnlineWindow = def.OnlineWindow
	}
	if p.OnlineBonus < 0 {
		p.OnlineBonus = 0
	}
	if p.VisibleTTL <= 0 {
		p.VisibleTTL = def.VisibleTTL
	}
	return p
}

func (p SurfacingPolicy) PromotionWindow() time.Duration {
	return promotionWindow
}

// LowActivity classifies a recipient purely from last-seen recency.
func (p SurfacingPolicy) LowActivity(lastSeen *time.Time, now time.Time) bool {
	if lastSeen == nil {
		return true
	}
	return now.Sub(*lastSeen) > p.LowActivityAfter
}

// PromotionDelay is how old a hidden like must be before it can be surfaced,
// ignoring the immediate-first exemption which depends on the visible count.
func (p SurfacingPolicy) PromotionDelay(lastSeen *time.Time, now time.Time) time.Duration {
	if p.LowActivity(lastSeen, now) {
		return p.LowActivityDelay
	}
	return p.Delay
}

func (p SurfacingPolicy) EffectiveDelay(delay time.Duration, visible int) time.Duration {
	if p.ImmediateFirst && visible == 0 {
		return 0
	}
	return delay
}

func (p SurfacingPolicy) Online(lastSeen *time.Time, now time.Time) bool {
	if lastSeen == nil {
		return false
	}
	return !lastSeen.Before(now.Add(-p.OnlineWindow))
}

// PromotionBudget is the lesser of the remaining simultaneous and daily quotas.
func (p SurfacingPolicy) PromotionBudget(visible, promotedLast24h int) int {
	n := p.MaxVisible - visible
	if daily := p.DailyQuota - promotedLast24h; daily < n {
		n = daily
	}
	if n < 0 {
		return 0
	}
	return n
}

type PromotionCandidate struct {
	EdgeID         int64
	CreatedAt      time.Time
	SenderLastSeen *time.Time
}

// Score ranks newer likes higher, with a bonus when the sender is online right now.
func (p SurfacingPolicy) Score(c PromotionCandidate, now time.Time) float64 {
	score := float64(c.CreatedAt.UnixNano()) / float64(time.Second)
	if p.Online(c.SenderLastSeen, now) {
		score += p.OnlineBonus.Seconds()
	}
	return score
}

// SelectForPromotion picks the edge ids to surface, highest score first, ties by id descending.
func (p SurfacingPolicy) SelectForPromotion(candidates []PromotionCandidate, now time.Time, delay time.Duration, visible, promotedLast24h int) []int64 {
	budget := p.PromotionBudget(visible, promotedLast24h)
	if budget == 0 || len(candidates) == 0 {
		return nil
	}

	cutoff := now.Add(-p.EffectiveDelay(delay, visible))
	eligible := make([]PromotionCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.CreatedAt.After(cutoff) {
			continue
		}
		eligible = append(eligible, c)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		si, sj := p.Score(eligible[i], now), p.Score(eligible[j], now)
		if si != sj {
			return si > sj
		}
		return eligible[i].EdgeID > eligible[j].EdgeID
	})

	if len(eligible) > budget {
		eligible = eligible[:budget]
	}
	ids := make([]int64, 0, len(eligible))
	for _, c := range eligible {
		ids = append(ids, c.EdgeID)
	}
	return ids
}
