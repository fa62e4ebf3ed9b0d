package handlers

import (
	"errors"
	"net/http"

	surfacingsvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/surfacing"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/transport/http/dto"
	httperrors "github.com/ethanserbantes/wifey-dating-app-sub002/internal/transport/http/errors"
)

// FeedHandler serves the admirer boost slot and pass recording.
type FeedHandler struct {
	service *surfacingsvc.Service
}

func NewFeedHandler(service *surfacingsvc.Service) *FeedHandler {
	return &FeedHandler{service: service}
}

func (h *FeedHandler) Admirers(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "FEED_SERVICE_UNAVAILABLE", "feed service is unavailable")
		return
	}

	ids, err := h.service.InboundBoostCandidates(r.Context(), userID)
	if err != nil {
		if errors.Is(err, surfacingsvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid feed request")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to load admirers")
		return
	}
	if ids == nil {
		ids = []int64{}
	}

	httperrors.Write(w, http.StatusOK, dto.AdmirersResponse{UserIDs: ids})
}

func (h *FeedHandler) Pass(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "FEED_SERVICE_UNAVAILABLE", "feed service is unavailable")
		return
	}

	var req dto.PassRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	if err := h.service.RecordPass(r.Context(), userID, req.TargetID); err != nil {
		if errors.Is(err, surfacingsvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid pass request")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to record pass")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}
