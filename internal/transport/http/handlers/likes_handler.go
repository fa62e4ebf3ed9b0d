package handlers

import (
	"errors"
	"net/http"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/model"
	likessvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/likes"
	reversalsvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/reversal"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/transport/http/dto"
	httperrors "github.com/ethanserbantes/wifey-dating-app-sub002/internal/transport/http/errors"
)

type LikesHandler struct {
	likes    *likessvc.Service
	reversal *reversalsvc.Service
}

func NewLikesHandler(likes *likessvc.Service, reversal *reversalsvc.Service) *LikesHandler {
	return &LikesHandler{likes: likes, reversal: reversal}
}

func (h *LikesHandler) Like(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	if h.likes == nil {
		writeInternal(w, "LIKES_SERVICE_UNAVAILABLE", "likes service is unavailable")
		return
	}

	var req dto.LikeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if req.TargetID <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "target_id is required")
		return
	}

	result, err := h.likes.RecordLike(r.Context(), userID, req.TargetID, annotationFromPayload(req.Annotation))
	if err != nil {
		switch {
		case errors.Is(err, likessvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid like request")
		case errors.Is(err, likessvc.ErrDailyLimit):
			httperrors.Write(w, http.StatusTooManyRequests, httperrors.APIError{
				Code:    "LIKE_LIMIT_REACHED",
				Message: "daily likes limit reached",
			})
		case errors.Is(err, likessvc.ErrUnavailable):
			writeNotFound(w, "USER_UNAVAILABLE", "user is not available")
		default:
			if tf, ok := likessvc.IsTooFast(err); ok {
				httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
					Code:          "TOO_FAST",
					Message:       "too many like actions, slow down",
					RetryAfterSec: tf.RetryAfter(),
				})
				return
			}
			writeInternal(w, "INTERNAL_ERROR", "failed to record like")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.LikeResponse{
		IsMatch:   result.IsMatch,
		MatchID:   result.MatchID,
		IsPending: result.IsPending,
	})
}

func (h *LikesHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	if h.reversal == nil {
		writeInternal(w, "REVERSAL_SERVICE_UNAVAILABLE", "reversal service is unavailable")
		return
	}

	targetID, ok := int64URLParam(r, "user_id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid user id")
		return
	}

	result, err := h.reversal.Undo(r.Context(), userID, targetID)
	if err != nil {
		if errors.Is(err, reversalsvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid unlike request")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to remove like")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.UnlikeResponse{
		OK:           true,
		RemovedMatch: result.RemovedMatch,
		Refunded:     len(result.RefundedUserIDs) > 0,
		MatchID:      result.MatchID,
	})
}

func (h *LikesHandler) Incoming(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	if h.likes == nil {
		writeInternal(w, "LIKES_SERVICE_UNAVAILABLE", "likes service is unavailable")
		return
	}

	items, err := h.likes.Incoming(r.Context(), userID)
	if err != nil {
		if errors.Is(err, likessvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid likes request")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to load incoming likes")
		return
	}

	response := dto.IncomingLikesResponse{Items: make([]dto.IncomingLikeResponse, 0, len(items))}
	for _, item := range items {
		response.Items = append(response.Items, dto.IncomingLikeResponse{
			FromUserID: item.FromUserID,
			Annotation: annotationToPayload(item.Annotation),
			PhotoURL:   item.PhotoURL,
			LikedAt:    item.LikedAt,
			SurfacedAt: item.SurfacedAt,
		})
	}

	httperrors.Write(w, http.StatusOK, response)
}

func (h *LikesHandler) Quota(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	if h.likes == nil {
		writeInternal(w, "QUOTA_SERVICE_UNAVAILABLE", "quota service is unavailable")
		return
	}

	snapshot, err := h.likes.Quota(r.Context(), userID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to load quota")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.QuotaResponse{
		Tier:              string(snapshot.Tier),
		LikesLeft:         snapshot.LikesLeft,
		ResetAt:           snapshot.ResetAt.UTC(),
		TooFastRetryAfter: snapshot.TooFastRetryAfter,
	})
}

func annotationFromPayload(p *dto.AnnotationPayload) *model.Annotation {
	if p == nil {
		return nil
	}
	return &model.Annotation{
		Kind:    enums.AnnotationKind(p.Kind),
		Key:     p.Key,
		Comment: p.Comment,
	}
}

func annotationToPayload(a *model.Annotation) *dto.AnnotationPayload {
	if a == nil {
		return nil
	}
	return &dto.AnnotationPayload{
		Kind:    string(a.Kind),
		Key:     a.Key,
		Comment: a.Comment,
	}
}
