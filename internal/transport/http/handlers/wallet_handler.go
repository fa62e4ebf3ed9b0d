package handlers

import (
	"net/http"

	walletsvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/wallet"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/transport/http/dto"
	httperrors "github.com/ethanserbantes/wifey-dating-app-sub002/internal/transport/http/errors"
)

type WalletHandler struct {
	service *walletsvc.Service
}

func NewWalletHandler(service *walletsvc.Service) *WalletHandler {
	return &WalletHandler{service: service}
}

func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "WALLET_SERVICE_UNAVAILABLE", "wallet service is unavailable")
		return
	}

	balance, err := h.service.Balance(r.Context(), userID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to load wallet")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.WalletResponse{BalanceCents: balance})
}
