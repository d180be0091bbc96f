// Package discovery ties the source adapters, the categorizer, retrieval and
// merging together behind one entry point used by the http service and the
// cli.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pastpapers-backend/internal/components/assert"
	"pastpapers-backend/internal/components/telemetry"
	"pastpapers-backend/internal/papers"
)

const (
	report_orchestrator_list_subjects  = "orchestrator.list-subjects"
	report_orchestrator_list_documents = "orchestrator.list-documents"
	report_orchestrator_cache          = "orchestrator.cache"
	report_orchestrator_download_batch = "orchestrator.download-batch"
	report_orchestrator_sync_subject   = "orchestrator.sync-subject"
)

// CacheStore persists subject listings, subjectcache.Store implements it.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]papers.Subject, bool, error)
	Put(ctx context.Context, key string, subjects []papers.Subject) error
}

type Retriever interface {
	Retrieve(ctx context.Context, url, filename string) (papers.LocalArtifact, error)
	RetrieveInto(ctx context.Context, url string, dir []string, filename string) (papers.LocalArtifact, error)
}

type Merger interface {
	Merge(ctx context.Context, inputs []string, output string) (papers.MergedArtifact, error)
}

type Options struct {
	// Strict returns adapter transport and parse failures instead of an
	// empty listing.
	Strict bool
	// Concurrency bounds parallel downloads, it defaults to 3.
	Concurrency int
}

type Orchestrator struct {
	sources   map[papers.SourceID]papers.Source
	retriever Retriever
	merger    Merger
	cache     CacheStore
	tel       telemetry.API
	opts      Options
}

// NewOrchestrator creates an orchestrator, cache can be nil.
func NewOrchestrator(
	sources []papers.Source,
	retriever Retriever,
	merger Merger,
	cache CacheStore,
	tel telemetry.API,
	opts Options,
) *Orchestrator {
	assert.NotNil(retriever)
	assert.NotNil(merger)
	assert.NotNil(tel)

	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}

	bySource := make(map[papers.SourceID]papers.Source, len(sources))
	for _, src := range sources {
		bySource[src.ID()] = src
	}

	return &Orchestrator{
		sources:   bySource,
		retriever: retriever,
		merger:    merger,
		cache:     cache,
		tel:       telemetry.NewScopedAPI("discovery", tel),
		opts:      opts,
	}
}

// CacheKey is the key a subject listing is cached under.
func CacheKey(source papers.SourceID, board papers.Board, level papers.Level) string {
	return fmt.Sprintf("%s_%s_%s", source, board, level)
}

func (o *Orchestrator) source(id papers.SourceID, board papers.Board) (papers.Source, error) {
	src, ok := o.sources[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown source '%s'", papers.ErrInvalidRequest, id)
	}
	if !id.Serves(board) {
		return nil, fmt.Errorf("%w: %s does not serve board '%s'", papers.ErrInvalidRequest, id, board)
	}
	return src, nil
}

// collapse applies the empty-on-failure policy to an adapter error.
func (o *Orchestrator) collapse(ctx context.Context, id string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if o.opts.Strict {
		return err
	}
	if errors.Is(err, papers.ErrTransport) || errors.Is(err, papers.ErrParse) {
		o.tel.ReportWarning(id, "returning empty listing", err)
		return nil
	}
	return err
}

func (o *Orchestrator) ListSubjects(ctx context.Context, source papers.SourceID, board papers.Board, level papers.Level) ([]papers.Subject, error) {
	src, err := o.source(source, board)
	if err != nil {
		return nil, err
	}
	if !papers.ValidLevel(board, level) {
		return nil, fmt.Errorf("%w: board %s has no level '%s'", papers.ErrInvalidRequest, board, level)
	}

	key := CacheKey(source, board, level)
	if o.cache != nil {
		cached, ok, err := o.cache.Get(ctx, key)
		if err != nil {
			o.tel.ReportWarning(report_orchestrator_cache, "get", key, err)
		} else if ok {
			o.tel.ReportDebug("subject cache hit", key)
			return cached, nil
		}
	}

	subjects, err := src.ListSubjects(ctx, board, level)
	if err != nil {
		return nil, o.collapse(ctx, report_orchestrator_list_subjects, err)
	}

	if o.cache != nil && len(subjects) > 0 {
		err = o.cache.Put(ctx, key, subjects)
		if err != nil {
			o.tel.ReportWarning(report_orchestrator_cache, "put", key, err)
		}
	}
	return subjects, nil
}

func (o *Orchestrator) ListDocuments(ctx context.Context, source papers.SourceID, subjectUrl string, board papers.Board) ([]papers.CategorizedDocument, error) {
	src, err := o.source(source, board)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(subjectUrl) == "" {
		return nil, fmt.Errorf("%w: empty subject url", papers.ErrInvalidRequest)
	}

	docs, err := src.ListDocuments(ctx, subjectUrl, board)
	if err != nil {
		return nil, o.collapse(ctx, report_orchestrator_list_documents, err)
	}
	return papers.CategorizeAll(docs, board), nil
}

func (o *Orchestrator) Retrieve(ctx context.Context, url, filename string) (papers.LocalArtifact, error) {
	return o.retriever.Retrieve(ctx, url, filename)
}

func (o *Orchestrator) Merge(ctx context.Context, inputs []string, output string) (papers.MergedArtifact, error) {
	return o.merger.Merge(ctx, inputs, output)
}

type downloadResult struct {
	artifact papers.LocalArtifact
	started  bool
	err      error
}

// DownloadBatch retrieves every document into the download root on a bounded
// pool. Repeats of the same url and filename are fetched once, a different url
// under a name already in the batch is saved under a numbered name. Successful
// artifacts are returned in input order together with the joined errors of
// every failed or never started download, so together they account for every
// distinct document.
func (o *Orchestrator) DownloadBatch(ctx context.Context, docs []papers.RawDocument) ([]papers.LocalArtifact, error) {
	targets, _ := o.planTargets(docs, func(int) []string { return nil })
	results := o.fetchTargets(ctx, targets)

	var artifacts []papers.LocalArtifact
	var errs []error
	for _, res := range results {
		if res.err != nil {
			errs = append(errs, res.err)
			continue
		}
		artifacts = append(artifacts, res.artifact)
	}

	o.tel.ReportDebug("download batch", len(targets), len(artifacts))
	return artifacts, errors.Join(errs...)
}

// MergeDocuments downloads a selection and merges it, in selection order, into
// `output`. Any failed download fails the whole merge.
func (o *Orchestrator) MergeDocuments(ctx context.Context, docs []papers.RawDocument, output string) (papers.MergedArtifact, error) {
	if len(docs) == 0 {
		return papers.MergedArtifact{}, fmt.Errorf("%w: no documents to merge", papers.ErrInvalidRequest)
	}

	artifacts, err := o.DownloadBatch(ctx, docs)
	if err != nil {
		return papers.MergedArtifact{}, err
	}

	inputs := make([]string, len(artifacts))
	for i, a := range artifacts {
		inputs[i] = a.Path
	}
	return o.merger.Merge(ctx, inputs, output)
}
