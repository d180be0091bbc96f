package config

import (
	"context"
	"database/sql"
	"fmt"

	"pastpapers-backend/internal/components/chrono"
	"pastpapers-backend/internal/components/restyutil"
	"pastpapers-backend/internal/components/telemetry"
	"pastpapers-backend/internal/discovery"
	"pastpapers-backend/internal/merge"
	"pastpapers-backend/internal/papers"
	"pastpapers-backend/internal/retrieval"
	"pastpapers-backend/internal/scrapers/fetch"
	"pastpapers-backend/internal/scrapers/papacambridge"
	"pastpapers-backend/internal/scrapers/xtremepapers"
	"pastpapers-backend/internal/subjectcache"

	"golang.org/x/time/rate"
)

// Stack is everything built from a Config.
type Stack struct {
	Orchestrator *discovery.Orchestrator
	Sandbox      retrieval.Sandbox
	// Cache is nil when no cache database is configured.
	Cache *subjectcache.Store

	database *sql.DB
}

func (s *Stack) Close() error {
	if s.database != nil {
		return s.database.Close()
	}
	return nil
}

// Open builds the http client, both adapters, retrieval, merging and the
// optional subject cache, then ties them together in an orchestrator.
func Open(ctx context.Context, cfg Config, tel telemetry.API) (*Stack, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	timeout, _ := cfg.Timeout()
	lifetime, _ := cfg.CacheLifetime()

	opts := fetch.Options{
		UserAgent: cfg.Http.UserAgent,
		Timeout:   timeout,
		Rate:      rate.Limit(cfg.Http.Rate),
		Burst:     cfg.Http.Burst,
	}
	if cfg.Http.DumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(cfg.Http.DumpDir)
		if err != nil {
			return nil, fmt.Errorf("http dump dir: %w", err)
		}
		opts.Output = output
	}
	client := fetch.NewClient(opts, tel)

	xtreme, err := xtremepapers.NewAdapter(xtremepapers.Options{
		BaseUrl:     cfg.Sources.XtremepapersUrl,
		Concurrency: cfg.Concurrency,
	}, client, tel)
	if err != nil {
		return nil, err
	}
	papa, err := papacambridge.NewAdapter(papacambridge.Options{
		BaseUrl:     cfg.Sources.PapacambridgeUrl,
		Concurrency: cfg.Concurrency,
	}, client, tel)
	if err != nil {
		return nil, err
	}

	sandbox, err := retrieval.NewSandbox(cfg.DownloadRoot)
	if err != nil {
		return nil, fmt.Errorf("download root: %w", err)
	}

	stack := &Stack{Sandbox: sandbox}

	var cache discovery.CacheStore
	if cfg.Cache.Database.Enabled() {
		database, err := cfg.Cache.Database.OpenDB()
		if err != nil {
			return nil, fmt.Errorf("open subject cache: %w", err)
		}
		store, err := subjectcache.NewStore(ctx, database, chrono.NewStandardImpl(), lifetime)
		if err != nil {
			database.Close()
			return nil, err
		}
		stack.database = database
		stack.Cache = store
		cache = store
	}

	stack.Orchestrator = discovery.NewOrchestrator(
		[]papers.Source{xtreme, papa},
		retrieval.NewManager(sandbox, client, tel),
		merge.NewEngine(sandbox, merge.Options{Strict: cfg.StrictMerge}, tel),
		cache,
		tel,
		discovery.Options{
			Strict:      cfg.StrictSources,
			Concurrency: cfg.Concurrency,
		},
	)
	return stack, nil
}
