package handlers

import (
	"errors"
	"net/http"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
	matchessvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/matches"
	reversalsvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/reversal"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/transport/http/dto"
	httperrors "github.com/ethanserbantes/wifey-dating-app-sub002/internal/transport/http/errors"
)

type MatchesHandler struct {
	matches  *matchessvc.Service
	reversal *reversalsvc.Service
}

func NewMatchesHandler(matches *matchessvc.Service, reversal *reversalsvc.Service) *MatchesHandler {
	return &MatchesHandler{matches: matches, reversal: reversal}
}

// List resumes queued pairs first so a freed slot shows up in the same response.
func (h *MatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	if h.matches == nil {
		writeInternal(w, "MATCHES_SERVICE_UNAVAILABLE", "matches service is unavailable")
		return
	}

	items, err := h.matches.List(r.Context(), userID, parseIntOrDefault(r.URL.Query().Get("limit"), 100))
	if err != nil {
		if errors.Is(err, matchessvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid matches request")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to load matches")
		return
	}

	response := dto.MatchesResponse{Items: make([]dto.MatchItemResponse, 0, len(items))}
	for _, item := range items {
		response.Items = append(response.Items, dto.MatchItemResponse{
			ID:              item.ID,
			TargetUserID:    item.TargetUserID,
			Phase:           string(item.Phase),
			ViewerConsented: item.ViewerConsented,
			TargetConsented: item.TargetConsented,
			ActiveAt:        item.ActiveAt,
			ArchivedAt:      item.ArchivedAt,
			TerminalState:   terminalString(item.TerminalState),
			CreatedAt:       item.CreatedAt,
		})
	}

	httperrors.Write(w, http.StatusOK, response)
}

func (h *MatchesHandler) Block(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	if h.reversal == nil {
		writeInternal(w, "REVERSAL_SERVICE_UNAVAILABLE", "reversal service is unavailable")
		return
	}

	var req dto.BlockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	if _, err := h.reversal.Block(r.Context(), userID, req.TargetID, enums.BlockReason(req.Reason)); err != nil {
		switch {
		case errors.Is(err, reversalsvc.ErrValidation), errors.Is(err, reversalsvc.ErrInvalidBlockReason):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid block request")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to block user")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

func terminalString(ts *enums.TerminalState) *string {
	if ts == nil {
		return nil
	}
	v := string(*ts)
	return &v
}
