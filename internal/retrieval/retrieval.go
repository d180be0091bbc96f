// Package retrieval downloads documents into a sandboxed directory.
package retrieval

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"pastpapers-backend/internal/components/assert"
	"pastpapers-backend/internal/components/telemetry"
	"pastpapers-backend/internal/papers"
)

const report_manager_retrieve = "manager.retrieve"

const chunkSize = 32 * 1024

// Streamer opens a document body, fetch.Client implements it.
type Streamer interface {
	Stream(ctx context.Context, url string) (io.ReadCloser, error)
}

// Manager streams documents to disk. Concurrent calls for the same target are
// not coalesced, the last rename wins.
type Manager struct {
	sandbox Sandbox
	http    Streamer
	tel     telemetry.API
}

func NewManager(sandbox Sandbox, http Streamer, tel telemetry.API) *Manager {
	assert.NotNil(http)
	assert.NotNil(tel)
	assert.NotEmptyStr(sandbox.Root())

	return &Manager{
		sandbox: sandbox,
		http:    http,
		tel:     telemetry.NewScopedAPI("retrieval", tel),
	}
}

func (m *Manager) Sandbox() Sandbox {
	return m.sandbox
}

func (m *Manager) Retrieve(ctx context.Context, url, filename string) (papers.LocalArtifact, error) {
	return m.RetrieveInto(ctx, url, nil, filename)
}

// RetrieveInto downloads into a nested directory of the root, every element
// of `dir` is a single path segment.
func (m *Manager) RetrieveInto(ctx context.Context, url string, dir []string, filename string) (papers.LocalArtifact, error) {
	parts := append(append([]string{}, dir...), filename)
	dest, err := m.sandbox.Resolve(parts...)
	if err != nil {
		m.tel.ReportWarning(report_manager_retrieve, err)
		return papers.LocalArtifact{}, err
	}

	fail := func(err error) (papers.LocalArtifact, error) {
		err = &papers.RetrievalError{Url: url, Filename: filename, Err: err}
		m.tel.ReportWarning(report_manager_retrieve, err)
		return papers.LocalArtifact{}, err
	}

	err = os.MkdirAll(filepath.Dir(dest), 0755)
	if err != nil {
		return fail(err)
	}

	body, err := m.http.Stream(ctx, url)
	if err != nil {
		return fail(err)
	}
	defer body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return fail(err)
	}
	written, err := io.CopyBuffer(struct{ io.Writer }{tmp}, body, make([]byte, chunkSize))
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fail(err)
	}

	err = os.Rename(tmp.Name(), dest)
	if err != nil {
		os.Remove(tmp.Name())
		return fail(err)
	}

	m.tel.ReportDebug("retrieved", filename, written)
	return papers.LocalArtifact{Path: dest}, nil
}
