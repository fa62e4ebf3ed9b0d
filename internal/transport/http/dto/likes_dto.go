package dto

import "time"

type AnnotationPayload struct {
	Kind    string `json:"kind"`
	Key     string `json:"key,omitempty"`
	Comment string `json:"comment,omitempty"`
}

type LikeRequest struct {
	TargetID   int64              `json:"target_id"`
	Annotation *AnnotationPayload `json:"annotation,omitempty"`
}

type LikeResponse struct {
	IsMatch   bool   `json:"is_match"`
	MatchID   *int64 `json:"match_id"`
	IsPending bool   `json:"is_pending"`
}

type UnlikeResponse struct {
	OK           bool  `json:"ok"`
	RemovedMatch bool  `json:"removed_match"`
	Refunded     bool  `json:"refunded"`
	MatchID      int64 `json:"match_id,omitempty"`
}

type IncomingLikeResponse struct {
	FromUserID int64              `json:"from_user_id"`
	Annotation *AnnotationPayload `json:"annotation,omitempty"`
	PhotoURL   string             `json:"photo_url,omitempty"`
	LikedAt    time.Time          `json:"liked_at"`
	SurfacedAt *time.Time         `json:"surfaced_at,omitempty"`
}

type IncomingLikesResponse struct {
	Items []IncomingLikeResponse `json:"items"`
}

type QuotaResponse struct {
	Tier              string    `json:"tier"`
	LikesLeft         int       `json:"likes_left"`
	ResetAt           time.Time `json:"reset_at"`
	TooFastRetryAfter *int64    `json:"too_fast_retry_after,omitempty"`
}

type PassRequest struct {
	TargetID int64 `json:"target_id"`
}

type AdmirersResponse struct {
	UserIDs []int64 `json:"user_ids"`
}
