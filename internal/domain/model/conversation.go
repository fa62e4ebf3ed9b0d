package model

import (
	"time"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
)

type ConversationState struct {
	MatchID             int64                `json:"match_id"`
	UserLowID           int64                `json:"user_low_id"`
	UserHighID          int64                `json:"user_high_id"`
	LowConsentAt        *time.Time           `json:"low_consent_at,omitempty"`
	LowTier             *enums.Tier          `json:"low_tier,omitempty"`
	HighConsentAt       *time.Time           `json:"high_consent_at,omitempty"`
	HighTier            *enums.Tier          `json:"high_tier,omitempty"`
	ActiveAt            *time.Time           `json:"active_at,omitempty"`
	DecisionExpiresAt   time.Time            `json:"decision_expires_at"`
	InactivityExpiresAt *time.Time           `json:"inactivity_expires_at,omitempty"`
	ArchivedAt          *time.Time           `json:"archived_at,omitempty"`
	TerminalState       *enums.TerminalState `json:"terminal_state,omitempty"`
	TerminalAt          *time.Time           `json:"terminal_at,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
}

func (c ConversationState) Has(userID int64) bool {
	return userID > 0 && (c.UserLowID == userID || c.UserHighID == userID)
}

func (c ConversationState) Counterpart(userID int64) int64 {
	if c.UserLowID == userID {
		return c.UserHighID
	}
	return c.UserLowID
}

// ConsentOf returns the consent timestamp and declared tier recorded for the user.
func (c ConversationState) ConsentOf(userID int64) (*time.Time, *enums.Tier) {
	switch userID {
	case c.UserLowID:
		return c.LowConsentAt, c.LowTier
	case c.UserHighID:
		return c.HighConsentAt, c.HighTier
	default:
		return nil, nil
	}
}

func (c ConversationState) BothConsented() bool {
	return c.LowConsentAt != nil && c.HighConsentAt != nil
}

func (c ConversationState) Phase() enums.ConsentPhase {
	switch {
	case c.TerminalState != nil:
		return enums.PhaseTerminal
	case c.ActiveAt != nil:
		return enums.PhaseActive
	case c.BothConsented():
		return enums.PhaseBothConsented
	case c.LowConsentAt != nil || c.HighConsentAt != nil:
		return enums.PhaseOneSidedConsent
	default:
		return enums.PhaseNoConsent
	}
}

// DecisionOverdue reports whether the decision deadline passed before activation.
func (c ConversationState) DecisionOverdue(now time.Time) bool {
	return c.ActiveAt == nil && c.TerminalState == nil && !now.Before(c.DecisionExpiresAt)
}
