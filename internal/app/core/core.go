// Package core assembles the repositories and services shared by the api and worker processes.
package core

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/config"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/rules"
	pgrepo "github.com/ethanserbantes/wifey-dating-app-sub002/internal/repo/postgres"
	redrepo "github.com/ethanserbantes/wifey-dating-app-sub002/internal/repo/redis"
	admissionsvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/admission"
	consentsvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/consent"
	likessvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/likes"
	matchessvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/matches"
	presencesvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/presence"
	ratesvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/rate"
	reversalsvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/reversal"
	surfacingsvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/surfacing"
	walletsvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/wallet"
)

// Infra carries the process-level clients. Any of them may be nil in degraded mode.
type Infra struct {
	Postgres *pgxpool.Pool
	Redis    *goredis.Client
	Photos   likessvc.PhotoSigner
	Notifier likessvc.Notifier
	Logger   *zap.Logger
}

type Repos struct {
	Likes         *pgrepo.LikeRepo
	Matches       *pgrepo.MatchRepo
	Conversations *pgrepo.ConversationRepo
	Messages      *pgrepo.MessageRepo
	Wallets       *pgrepo.WalletRepo
	Escrows       *pgrepo.EscrowRepo
	Blocks        *pgrepo.BlockRepo
	Passes        *pgrepo.PassRepo
	Presence      *pgrepo.PresenceRepo
	Quotas        *pgrepo.QuotaRepo
	Entitlements  *pgrepo.EntitlementRepo
	Users         *pgrepo.UserRepo
}

type Services struct {
	Repos     Repos
	Wallet    *walletsvc.Service
	Admission *admissionsvc.Controller
	Matches   *matchessvc.Service
	Surfacing *surfacingsvc.Service
	Likes     *likessvc.Service
	Consent   *consentsvc.Service
	Reversal  *reversalsvc.Service
	Presence  *presencesvc.Service
}

func Build(cfg config.Config, infra Infra) (*Services, error) {
	log := infra.Logger
	if log == nil {
		log = zap.NewNop()
	}

	pool := infra.Postgres
	repos := Repos{
		Likes:         pgrepo.NewLikeRepo(pool),
		Matches:       pgrepo.NewMatchRepo(pool),
		Conversations: pgrepo.NewConversationRepo(pool),
		Messages:      pgrepo.NewMessageRepo(pool),
		Wallets:       pgrepo.NewWalletRepo(pool),
		Escrows:       pgrepo.NewEscrowRepo(pool),
		Blocks:        pgrepo.NewBlockRepo(pool),
		Passes:        pgrepo.NewPassRepo(pool),
		Presence:      pgrepo.NewPresenceRepo(pool),
		Quotas:        pgrepo.NewQuotaRepo(pool),
		Entitlements:  pgrepo.NewEntitlementRepo(pool),
		Users:         pgrepo.NewUserRepo(pool),
	}
	tx := pgrepo.Runner(pool)
	limits := ChatLimits(cfg.Remote.Limits)

	detector, err := rules.NewContactDetector(cfg.Remote.Contact.PatternsVersion, cfg.Remote.Contact.ExtraKeywords)
	if err != nil {
		return nil, fmt.Errorf("build contact detector: %w", err)
	}

	var (
		limiter     likessvc.RateLimiter
		impressions surfacingsvc.ImpressionStore
		debouncer   presencesvc.Debouncer
	)
	if infra.Redis != nil {
		limiter = ratesvc.NewLimiter(redrepo.NewRateRepo(infra.Redis), cfg.Remote.Limits.LikesPerMinute)
		impressions = redrepo.NewImpressionRepo(infra.Redis)
		debouncer = redrepo.NewPresenceRepo(infra.Redis)
	}

	wallet := walletsvc.NewService(tx, repos.Wallets)
	controller := admissionsvc.NewController(admissionsvc.Dependencies{
		Conversations: repos.Conversations,
		Wallet:        wallet,
		Escrows:       repos.Escrows,
	}, admissionsvc.Config{
		ActivationCostCents: cfg.Remote.Admission.ActivationCostCents,
		Limits:              limits,
	})
	matches := matchessvc.NewService(matchessvc.Dependencies{
		Tx:            tx,
		Likes:         repos.Likes,
		Matches:       repos.Matches,
		Conversations: repos.Conversations,
		Messages:      repos.Messages,
		Tiers:         repos.Entitlements,
		Notifier:      infra.Notifier,
		Logger:        log.Named("matches"),
	}, matchessvc.Config{Limits: limits})
	surfacing := surfacingsvc.NewService(surfacingsvc.Dependencies{
		Tx:          tx,
		Likes:       repos.Likes,
		Presence:    repos.Presence,
		Impressions: impressions,
		Passes:      repos.Passes,
		Logger:      log.Named("surfacing"),
	}, surfacingsvc.Config{
		Policy:             SurfacingPolicy(cfg.Remote.Surfacing),
		BoostCandidates:    cfg.Remote.Surfacing.BoostCandidates,
		ImpressionCooldown: cfg.Remote.Surfacing.ImpressionCooldown,
	})
	likes := likessvc.NewService(likessvc.Dependencies{
		Tx:       tx,
		Likes:    repos.Likes,
		Quotas:   repos.Quotas,
		Blocks:   repos.Blocks,
		Tiers:    repos.Entitlements,
		Matcher:  matches,
		Limiter:  limiter,
		Surfacer: surfacing,
		Notifier: infra.Notifier,
		Photos:   infra.Photos,
		Logger:   log.Named("likes"),
	}, likessvc.Config{
		FreeLikesPerDay: cfg.Remote.Limits.FreeLikesPerDay,
		DefaultTimezone: cfg.Remote.Limits.DefaultTimezone,
		IncomingLimit:   cfg.Remote.Limits.IncomingPageSize,
		PhotoURLTTL:     cfg.S3.PresignTTL,
	})
	consent := consentsvc.NewService(consentsvc.Dependencies{
		Tx:            tx,
		Matches:       repos.Matches,
		Conversations: repos.Conversations,
		Admission:     controller,
		Logger:        log.Named("consent"),
	}, consentsvc.Config{
		DecisionWindow:   cfg.Remote.Consent.DecisionWindow,
		InactivityWindow: cfg.Remote.Consent.InactivityWindow,
		Limits:           limits,
	})
	reversal := reversalsvc.NewService(reversalsvc.Dependencies{
		Tx:            tx,
		Likes:         repos.Likes,
		Matches:       repos.Matches,
		Messages:      repos.Messages,
		Conversations: repos.Conversations,
		Escrows:       repos.Escrows,
		Blocks:        repos.Blocks,
		Wallet:        wallet,
		Contact:       detector,
		Logger:        log.Named("reversal"),
	}, reversalsvc.Config{DecisionWindow: cfg.Remote.Consent.DecisionWindow})
	presence := presencesvc.NewService(debouncer, repos.Presence, cfg.Presence.Debounce)

	return &Services{
		Repos:     repos,
		Wallet:    wallet,
		Admission: controller,
		Matches:   matches,
		Surfacing: surfacing,
		Likes:     likes,
		Consent:   consent,
		Reversal:  reversal,
		Presence:  presence,
	}, nil
}

func ChatLimits(cfg config.LimitsConfig) rules.ChatLimits {
	limits := rules.DefaultChatLimits()
	if cfg.BaseActiveChats > 0 {
		limits.Base = cfg.BaseActiveChats
	}
	if cfg.PlusActiveChats > 0 {
		limits.Plus = cfg.PlusActiveChats
	}
	return limits
}

func SurfacingPolicy(cfg config.SurfacingConfig) rules.SurfacingPolicy {
	return rules.SurfacingPolicy{
		MaxVisible:       cfg.MaxVisible,
		DailyQuota:       cfg.DailyQuota,
		Delay:            cfg.Delay,
		LowActivityDelay: cfg.LowActivityDelay,
		LowActivityAfter: cfg.LowActivityAfter,
		ImmediateFirst:   cfg.ImmediateFirst,
		OnlineWindow:     cfg.OnlineWindow,
		OnlineBonus:      cfg.OnlineBonus,
		VisibleTTL:       cfg.VisibleTTL,
	}.Normalize()
}
