package core

import (
	"testing"
	"time"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/config"
)

func TestChatLimitsFallsBackToDefaults(t *testing.T) {
	limits := ChatLimits(config.LimitsConfig{PlusActiveChats: 5})
	if limits.Base != 1 || limits.Plus != 5 {
		t.Fatalf("unexpected limits: %+v", limits)
	}
}

func TestSurfacingPolicyFromConfig(t *testing.T) {
	cfg := config.Default().Remote.Surfacing
	cfg.MaxVisible = 4
	cfg.Delay = 90 * time.Minute

	policy := SurfacingPolicy(cfg)
	if policy.MaxVisible != 4 || policy.Delay != 90*time.Minute {
		t.Fatalf("unexpected policy: %+v", policy)
	}
	if policy.VisibleTTL != 72*time.Hour || !policy.ImmediateFirst {
		t.Fatalf("defaults must carry over: %+v", policy)
	}
}

func TestBuildWithoutInfraWiresEveryService(t *testing.T) {
	services, err := Build(config.Default(), Infra{})
	if err != nil {
		t.Fatalf("build services: %v", err)
	}
	if services.Likes == nil || services.Matches == nil || services.Consent == nil ||
		services.Reversal == nil || services.Surfacing == nil || services.Wallet == nil || services.Presence == nil {
		t.Fatalf("expected every service to be built: %+v", services)
	}
}
