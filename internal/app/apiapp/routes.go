package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/infra/metrics"
	consentsvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/consent"
	likessvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/likes"
	matchessvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/matches"
	reversalsvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/reversal"
	surfacingsvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/surfacing"
	walletsvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/wallet"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/transport/http/handlers"
)

type Dependencies struct {
	Auth      TokenValidator
	Presence  PresenceToucher
	Health    handlers.Pinger
	Likes     *likessvc.Service
	Matches   *matchessvc.Service
	Surfacing *surfacingsvc.Service
	Consent   *consentsvc.Service
	Reversal  *reversalsvc.Service
	Wallet    *walletsvc.Service
	Logger    *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler(deps.Health)
	likesHandler := handlers.NewLikesHandler(deps.Likes, deps.Reversal)
	feedHandler := handlers.NewFeedHandler(deps.Surfacing)
	matchesHandler := handlers.NewMatchesHandler(deps.Matches, deps.Reversal)
	consentHandler := handlers.NewConsentHandler(deps.Consent)
	walletHandler := handlers.NewWalletHandler(deps.Wallet)

	r.Get("/healthz", healthHandler.Get)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(deps.Auth, deps.Logger))
		r.Use(PresenceMiddleware(deps.Presence, deps.Logger))

		r.Post("/likes", likesHandler.Like)
		r.Get("/likes/incoming", likesHandler.Incoming)
		r.Get("/likes/quota", likesHandler.Quota)
		r.Delete("/likes/{user_id}", likesHandler.Unlike)
		r.Get("/feed/admirers", feedHandler.Admirers)
		r.Post("/passes", feedHandler.Pass)
		r.Get("/matches", matchesHandler.List)
		r.Get("/matches/{id}/consent", consentHandler.Status)
		r.Post("/matches/{id}/consent", consentHandler.Consent)
		r.Post("/matches/{id}/archive", consentHandler.Archive)
		r.Post("/block", matchesHandler.Block)
		r.Get("/wallet", walletHandler.Balance)
	})
}
