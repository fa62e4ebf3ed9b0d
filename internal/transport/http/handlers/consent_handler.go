package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
	admissionsvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/admission"
	consentsvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/consent"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/transport/http/dto"
	httperrors "github.com/ethanserbantes/wifey-dating-app-sub002/internal/transport/http/errors"
)

type ConsentHandler struct {
	service *consentsvc.Service
}

func NewConsentHandler(service *consentsvc.Service) *ConsentHandler {
	return &ConsentHandler{service: service}
}

func (h *ConsentHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, matchID, ok := h.prepare(w, r)
	if !ok {
		return
	}

	var tier *enums.Tier
	if raw := strings.TrimSpace(r.URL.Query().Get("tier")); raw != "" {
		t := enums.Tier(raw)
		tier = &t
	}

	status, err := h.service.GetStatus(r.Context(), matchID, userID, tier)
	if err != nil {
		writeConsentError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, mapConsentStatus(status))
}

func (h *ConsentHandler) Consent(w http.ResponseWriter, r *http.Request) {
	userID, matchID, ok := h.prepare(w, r)
	if !ok {
		return
	}

	var req dto.ConsentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	status, err := h.service.Consent(r.Context(), matchID, userID, enums.Tier(strings.TrimSpace(req.Tier)))
	if err != nil {
		writeConsentError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, mapConsentStatus(status))
}

func (h *ConsentHandler) Archive(w http.ResponseWriter, r *http.Request) {
	userID, matchID, ok := h.prepare(w, r)
	if !ok {
		return
	}

	status, err := h.service.Archive(r.Context(), matchID, userID)
	if err != nil {
		writeConsentError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, mapConsentStatus(status))
}

func (h *ConsentHandler) prepare(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	userID, ok := viewer(w, r)
	if !ok {
		return 0, 0, false
	}
	if h.service == nil {
		writeInternal(w, "CONSENT_SERVICE_UNAVAILABLE", "consent service is unavailable")
		return 0, 0, false
	}
	matchID, ok := int64URLParam(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid match id")
		return 0, 0, false
	}
	return userID, matchID, true
}

func writeConsentError(w http.ResponseWriter, err error) {
	if limit, ok := admissionsvc.IsActiveChatLimit(err); ok {
		httperrors.Write(w, http.StatusConflict, httperrors.ActiveChatLimitError{
			Code:          "ACTIVE_CHAT_LIMIT",
			Message:       "active chat limit reached",
			BlockedUserID: limit.BlockedUserID,
			Limit:         limit.Limit,
		})
		return
	}
	if credit, ok := admissionsvc.IsCreditRequired(err); ok {
		httperrors.Write(w, http.StatusPaymentRequired, httperrors.CreditRequiredError{
			Code:           "DATE_CREDIT_REQUIRED",
			Message:        "date credit required",
			MissingUserIDs: credit.MissingUserIDs,
		})
		return
	}

	switch {
	case errors.Is(err, consentsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid consent request")
	case errors.Is(err, consentsvc.ErrMatchNotFound):
		writeNotFound(w, "MATCH_NOT_FOUND", "match not found")
	case errors.Is(err, consentsvc.ErrNotParticipant):
		httperrors.Write(w, http.StatusForbidden, httperrors.APIError{
			Code:    "FORBIDDEN",
			Message: "not a participant of this match",
		})
	case errors.Is(err, consentsvc.ErrExpired):
		httperrors.Write(w, http.StatusGone, httperrors.APIError{
			Code:    "EXPIRED",
			Message: "decision window expired",
		})
	case errors.Is(err, consentsvc.ErrNoLongerAvailable):
		httperrors.Write(w, http.StatusGone, httperrors.APIError{
			Code:    "NO_LONGER_AVAILABLE",
			Message: "match is no longer available",
		})
	case errors.Is(err, consentsvc.ErrNotActive):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{
			Code:    "NOT_ACTIVE",
			Message: "conversation is not active",
		})
	default:
		writeInternal(w, "INTERNAL_ERROR", "failed to process consent")
	}
}

func mapConsentStatus(status consentsvc.Status) dto.ConsentStatusResponse {
	response := dto.ConsentStatusResponse{
		MatchID:              status.MatchID,
		Phase:                string(status.Phase),
		ViewerConsentAt:      status.ViewerConsentAt,
		CounterpartConsented: status.CounterpartConsented,
		ActiveAt:             status.ActiveAt,
		DecisionExpiresAt:    status.DecisionExpiresAt,
		RemainingSeconds:     status.RemainingSeconds,
		InactivityExpiresAt:  status.InactivityExpiresAt,
		ArchivedAt:           status.ArchivedAt,
		TerminalState:        terminalString(status.TerminalState),
	}
	if status.ViewerTier != nil {
		tier := string(*status.ViewerTier)
		response.ViewerTier = &tier
	}
	if status.Usage != nil {
		response.Usage = &dto.ChatUsageResponse{
			Tier:        string(status.Usage.Tier),
			ActiveChats: status.Usage.ActiveChats,
			Limit:       status.Usage.Limit,
			Available:   status.Usage.Available(),
		}
	}
	return response
}
