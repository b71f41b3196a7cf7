package main

import (
	"context"
	"errors"

	"linkloom/internal/align"
	"linkloom/internal/autoseed"
	"linkloom/internal/cache"
	"linkloom/internal/config"
	"linkloom/internal/fcsearch"
	"linkloom/internal/llm"
	"linkloom/internal/logging"
	"linkloom/internal/memclient"
	"linkloom/internal/recommend"
	"linkloom/internal/store"
)

// app holds the long-lived services one command needs.
type app struct {
	cfg      config.Config
	cache    *cache.Cache
	db       store.History
	provider llm.Provider
}

func newApp(ctx context.Context, cfg config.Config, withHistory bool) (*app, error) {
	a := &app{cfg: cfg}
	a.cache = cache.New(ctx, cfg.Cache.RedisURL, cfg.Cache.TTL, cfg.Cache.MaxEntries)

	p, err := llm.NewProvider(ctx, cfg.LLM, cfg.Credentials)
	switch {
	case errors.Is(err, llm.ErrDisabled):
		logging.Info("llm_disabled", nil)
	case err != nil:
		logging.Warn("llm_unavailable", map[string]any{"provider": cfg.LLM.Provider, "error": err.Error()})
	default:
		a.provider = p
	}

	if withHistory {
		db, err := store.OpenHistory(ctx, cfg.Storage.PostgresURL, cfg.Storage.DBPath)
		if err != nil {
			a.close()
			return nil, err
		}
		a.db = db
	}
	return a, nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.cache.Close()
}

func (a *app) followers() *memclient.HTTPClient {
	if a.cfg.Credentials.MemoryToken == "" {
		logging.Warn("missing_memory_token", map[string]any{"hint": "set MEMORY_PROTOCOL_API_TOKEN"})
	}
	return memclient.NewHTTPClient(a.cfg.Credentials.MemoryToken).WithCache(a.cache)
}

// purpose tags the provider for logs and metrics; nil stays nil.
func (a *app) llmFor(purpose string) llm.Provider {
	if a.provider == nil {
		return nil
	}
	return llm.WithLogging(a.provider, purpose)
}

func (a *app) searcher() *recommend.Searcher {
	var hist recommend.RunRecorder
	if a.db != nil {
		hist = a.db
	}
	aligner := align.New(a.llmFor("align"), a.cfg.Search.AlignChunkSize)
	return recommend.NewSearcher(a.followers(), aligner, a.llmFor("negative"), hist, a.cfg.Search)
}

func (a *app) seeder() *autoseed.Seeder {
	return autoseed.NewSeeder(a.llmFor("seed"), a.cfg.LLM.MaxTokens)
}

func (a *app) validator() *fcsearch.Client {
	return fcsearch.NewClient()
}
