package dto

import "time"

type MatchItemResponse struct {
	ID              int64      `json:"id"`
	TargetUserID    int64      `json:"target_user_id"`
	Phase           string     `json:"phase"`
	ViewerConsented bool       `json:"viewer_consented"`
	TargetConsented bool       `json:"target_consented"`
	ActiveAt        *time.Time `json:"active_at,omitempty"`
	ArchivedAt      *time.Time `json:"archived_at,omitempty"`
	TerminalState   *string    `json:"terminal_state,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type MatchesResponse struct {
	Items []MatchItemResponse `json:"items"`
}

type ConsentRequest struct {
	Tier string `json:"tier"`
}

type ChatUsageResponse struct {
	Tier        string `json:"tier"`
	ActiveChats int    `json:"active_chats"`
	Limit       int    `json:"limit"`
	Available   bool   `json:"available"`
}

type ConsentStatusResponse struct {
	MatchID              int64              `json:"match_id"`
	Phase                string             `json:"phase"`
	ViewerConsentAt      *time.Time         `json:"viewer_consent_at,omitempty"`
	ViewerTier           *string            `json:"viewer_tier,omitempty"`
	CounterpartConsented bool               `json:"counterpart_consented"`
	ActiveAt             *time.Time         `json:"active_at,omitempty"`
	DecisionExpiresAt    time.Time          `json:"decision_expires_at"`
	RemainingSeconds     int64              `json:"remaining_seconds"`
	InactivityExpiresAt  *time.Time         `json:"inactivity_expires_at,omitempty"`
	ArchivedAt           *time.Time         `json:"archived_at,omitempty"`
	TerminalState        *string            `json:"terminal_state,omitempty"`
	Usage                *ChatUsageResponse `json:"usage,omitempty"`
}

type BlockRequest struct {
	TargetID int64  `json:"target_id"`
	Reason   string `json:"reason"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type WalletResponse struct {
	BalanceCents int64 `json:"balance_cents"`
}
