package retrieval

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pastpapers-backend/internal/components/telemetry"
	"pastpapers-backend/internal/papers"
	"pastpapers-backend/internal/scrapers/fetch"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestSandboxRejectsEscapes(t *testing.T) {
	parent := t.TempDir()
	sandbox, err := NewSandbox(filepath.Join(parent, "downloads"))
	require.NoError(t, err)

	table := [][]string{
		{"../escape.pdf"},
		{"..", "escape.pdf"},
		{"/etc/passwd"},
		{"nested/../../escape.pdf"},
		{"a/b.pdf"},
		{`a\b.pdf`},
		{"."},
		{""},
		{" "},
		{"CAIE", "..", "..", "escape.pdf"},
		{"CAIE", "/tmp", "escape.pdf"},
		{},
	}

	for _, parts := range table {
		t.Run(strings.Join(parts, "|"), func(t *testing.T) {
			_, err := sandbox.Resolve(parts...)
			require.ErrorIs(t, err, papers.ErrPathViolation)

			var violation *papers.PathViolationError
			require.ErrorAs(t, err, &violation)
		})
	}
}

func TestSandboxResolve(t *testing.T) {
	sandbox, err := NewSandbox(t.TempDir())
	require.NoError(t, err)

	path, err := sandbox.Resolve("0580_s20_qp_12.pdf")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(sandbox.Root(), "0580_s20_qp_12.pdf"), path)

	path, err = sandbox.Resolve("CAIE", "IGCSE", "Mathematics (0580)", "qp_1", "0580_s20_qp_12.pdf")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(path, sandbox.Root()+string(filepath.Separator)))

	// dots inside a name are not traversal
	_, err = sandbox.Resolve("..hidden.pdf")
	require.NoError(t, err)
}

const pdfBody = "%PDF-1.4\nnot really a pdf but long enough to span a few writes\n"

func newTestManager(t testing.TB) (*Manager, *httptest.Server, *telemetry.TestAPI) {
	mux := http.NewServeMux()
	mux.HandleFunc("/paper.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat(pdfBody, 2048)))
	})
	mux.HandleFunc("/missing.pdf", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/truncated.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-length", "100000")
		w.Write([]byte(pdfBody))
		w.(http.Flusher).Flush()
		panic(http.ErrAbortHandler)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	sandbox, err := NewSandbox(t.TempDir())
	require.NoError(t, err)

	tel := telemetry.NewTestAPI()
	return NewManager(sandbox, fetch.NewClient(fetch.Options{Rate: rate.Inf}, tel), tel), srv, tel
}

func listFiles(t testing.TB, root string) []string {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			files = append(files, rel)
		}
		return nil
	})
	require.NoError(t, err)
	return files
}

func TestRetrieve(t *testing.T) {
	manager, srv, _ := newTestManager(t)

	artifact, err := manager.Retrieve(context.Background(), srv.URL+"/paper.pdf", "0580_s20_qp_12.pdf")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(manager.Sandbox().Root(), "0580_s20_qp_12.pdf"), artifact.Path)

	contents, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)
	require.Equal(t, strings.Repeat(pdfBody, 2048), string(contents))
	require.Equal(t, []string{"0580_s20_qp_12.pdf"}, listFiles(t, manager.Sandbox().Root()))
}

func TestRetrieveInto(t *testing.T) {
	manager, srv, _ := newTestManager(t)

	artifact, err := manager.RetrieveInto(
		context.Background(),
		srv.URL+"/paper.pdf",
		[]string{"CAIE", "IGCSE", "Mathematics (0580)", "qp_1"},
		"0580_s20_qp_12.pdf",
	)
	require.NoError(t, err)
	require.Equal(
		t,
		filepath.Join(manager.Sandbox().Root(), "CAIE", "IGCSE", "Mathematics (0580)", "qp_1", "0580_s20_qp_12.pdf"),
		artifact.Path,
	)
	_, err = os.Stat(artifact.Path)
	require.NoError(t, err)
}

func TestRetrieveRejectsTraversal(t *testing.T) {
	manager, srv, _ := newTestManager(t)
	outside := filepath.Dir(manager.Sandbox().Root())
	before := listFiles(t, outside)

	for _, name := range []string{"../escape.pdf", "/tmp/escape.pdf", "a/../../escape.pdf"} {
		_, err := manager.Retrieve(context.Background(), srv.URL+"/paper.pdf", name)
		require.ErrorIs(t, err, papers.ErrPathViolation, name)
		require.NotErrorIs(t, err, papers.ErrRetrievalFailure, name)
	}

	require.Equal(t, before, listFiles(t, outside))
	require.Empty(t, listFiles(t, manager.Sandbox().Root()))
}

func TestRetrieveFailures(t *testing.T) {
	manager, srv, tel := newTestManager(t)

	_, err := manager.Retrieve(context.Background(), srv.URL+"/missing.pdf", "missing.pdf")
	require.ErrorIs(t, err, papers.ErrRetrievalFailure)
	require.ErrorIs(t, err, papers.ErrTransport)

	var retrievalErr *papers.RetrievalError
	require.ErrorAs(t, err, &retrievalErr)
	require.Equal(t, "missing.pdf", retrievalErr.Filename)
	require.Equal(t, srv.URL+"/missing.pdf", retrievalErr.Url)

	// a body cut off mid-transfer must not leave a file behind
	_, err = manager.Retrieve(context.Background(), srv.URL+"/truncated.pdf", "truncated.pdf")
	require.ErrorIs(t, err, papers.ErrRetrievalFailure)

	require.Empty(t, listFiles(t, manager.Sandbox().Root()))
	require.NotEmpty(t, tel.Reports("warning"))
}
