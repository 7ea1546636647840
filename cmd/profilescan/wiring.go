package main

import (
	"context"

	"github.com/use-agent/profilescan/auth"
	"github.com/use-agent/profilescan/cache"
	"github.com/use-agent/profilescan/cleaner"
	"github.com/use-agent/profilescan/config"
	"github.com/use-agent/profilescan/engine"
	"github.com/use-agent/profilescan/extractor"
	"github.com/use-agent/profilescan/llm"
	"github.com/use-agent/profilescan/scan"
	"github.com/use-agent/profilescan/scraper"
	"github.com/use-agent/profilescan/session"
)

// components is everything a scan needs, built from one Config.
type components struct {
	store   *session.Store
	service *scan.Service
	gateway *llm.Gateway
}

// build wires the scan pipeline. cc may be nil.
func build(ctx context.Context, cfg *config.Config, prompter auth.CodePrompter, cc *cache.Cache) (*components, error) {
	store, err := session.NewStore(cfg.Session.Dir)
	if err != nil {
		return nil, err
	}

	provider, err := llm.NewProvider(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	gateway := llm.NewGateway(provider, cfg.LLM.Model, cfg.LLM.FallbackModel)

	sc := scraper.NewScraper(
		cfg.Scraper,
		engine.NewRodLauncher(cfg.Browser, cfg.Scraper),
		store,
		auth.NewEngine(cfg.Auth, cfg.Scraper.ArtifactDir, prompter),
		extractor.New(cfg.Extractor),
	)

	return &components{
		store:   store,
		service: scan.NewService(sc, gateway, cleaner.NewCleaner(), cc, cfg.Extractor.MaxLength),
		gateway: gateway,
	}, nil
}
