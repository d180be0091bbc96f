package papacambridge

import (
	"context"
	"embed"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"pastpapers-backend/internal/components/telemetry"
	"pastpapers-backend/internal/papers"
	"pastpapers-backend/internal/scrapers/fetch"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

//go:embed testdata/*.html
var fixtures embed.FS

const upload = "https://pastpapers.papacambridge.com/directories/CAIE/CAIE-pastpapers/upload/"

var pages = map[string]string{
	"/papers/caie/igcse":                                "igcse.html",
	"/papers/caie/igcse-mathematics-0580":               "subject.html",
	"/papers/caie/igcse-mathematics-0580-2020-may-june": "session_2020.html",
	"/papers/caie/igcse-mathematics-0580-2019-oct-nov":  "session_2019.html",
	"/papers/caie/igcse-mathematics-0580-solved":        "compilation.html",
	"/papers/caie/igcse-mathematics-0580-topical":       "compilation.html",
	"/papers/caie/igcse-accounting-0452":                "empty.html",
}

func newTestAdapter(t testing.TB) (*Adapter, *httptest.Server, *telemetry.TestAPI) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		contents, err := fixtures.ReadFile("testdata/" + name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("content-type", "text/html")
		w.Write(contents)
	}))
	t.Cleanup(srv.Close)

	tel := telemetry.NewTestAPI()
	adapter, err := NewAdapter(
		Options{BaseUrl: srv.URL, Concurrency: 2},
		fetch.NewClient(fetch.Options{Rate: rate.Inf}, tel),
		tel,
	)
	require.NoError(t, err)
	return adapter, srv, tel
}

func TestListSubjects(t *testing.T) {
	adapter, srv, _ := newTestAdapter(t)

	subjects, err := adapter.ListSubjects(context.Background(), papers.BOARD_CAIE, papers.LEVEL_IGCSE)
	require.NoError(t, err)

	// six folder blocks, minus the parent link and the ad
	require.Equal(t, []papers.Subject{
		{Name: "Accounting (0452)", Url: srv.URL + "/papers/caie/igcse-accounting-0452"},
		{Name: "Mathematics (0580)", Url: srv.URL + "/papers/caie/igcse-mathematics-0580"},
		{Name: "Physics (0625)", Url: "https://pastpapers.papacambridge.com/papers/caie/igcse-physics-0625"},
		{Name: "Chemistry (0620)", Url: srv.URL + "/papers/caie/igcse-chemistry-0620"},
	}, subjects)

	for _, s := range subjects {
		parsed, err := url.Parse(s.Url)
		require.NoError(t, err)
		require.True(t, parsed.IsAbs(), s.Url)
	}
}

func TestListSubjectsRejectsUnservedInput(t *testing.T) {
	adapter, _, _ := newTestAdapter(t)

	_, err := adapter.ListSubjects(context.Background(), papers.BOARD_EDEXCEL, papers.LEVEL_INTERNATIONAL_GCSE)
	require.ErrorIs(t, err, papers.ErrInvalidRequest)

	_, err = adapter.ListSubjects(context.Background(), papers.BOARD_CAIE, papers.LEVEL_ADVANCED_LEVEL)
	require.ErrorIs(t, err, papers.ErrInvalidRequest)
}

func TestListSubjectsTransportFailure(t *testing.T) {
	adapter, _, tel := newTestAdapter(t)

	_, err := adapter.ListSubjects(context.Background(), papers.BOARD_CAIE, papers.LEVEL_O_LEVEL)
	require.ErrorIs(t, err, papers.ErrTransport)
	require.NotEmpty(t, tel.Reports("warning"))
}

func TestListDocumentsFromSubjectPage(t *testing.T) {
	adapter, srv, tel := newTestAdapter(t)

	docs, err := adapter.ListDocuments(
		context.Background(),
		srv.URL+"/papers/caie/igcse-mathematics-0580",
		papers.BOARD_CAIE,
	)
	require.NoError(t, err)

	// sessions in page order, compilations excluded, the missing 2018 session
	// contributes nothing
	require.Equal(t, []papers.RawDocument{
		{Filename: "0580_s20_qp_12.pdf", Url: upload + "0580_s20_qp_12.pdf", Session: "2020-May-June"},
		{Filename: "0580_s20_ms_12.pdf", Url: upload + "0580_s20_ms_12.pdf", Session: "2020-May-June"},
		{Filename: "0580_s20_er final.pdf", Url: srv.URL + "/directories/CAIE/CAIE-pastpapers/upload/0580_s20_er%20final.pdf", Session: "2020-May-June"},
		{Filename: "0580_w19_qp_11.pdf", Url: upload + "0580_w19_qp_11.pdf", Session: "2019-Oct-Nov"},
		{Filename: "0580_w19_ms_11.pdf", Url: upload + "0580_w19_ms_11.pdf", Session: "2019-Oct-Nov"},
	}, docs)

	warnings := tel.Reports("warning")
	require.NotEmpty(t, warnings)
}

func TestListDocumentsFromSessionPage(t *testing.T) {
	adapter, srv, _ := newTestAdapter(t)

	docs, err := adapter.ListDocuments(
		context.Background(),
		srv.URL+"/papers/caie/igcse-mathematics-0580-2019-oct-nov",
		papers.BOARD_CAIE,
	)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "0580_w19_qp_11.pdf", docs[0].Filename)
	// a session page opened directly has no session folder to report
	require.Empty(t, docs[0].Session)
}

func TestListDocumentsEmptyPage(t *testing.T) {
	adapter, srv, _ := newTestAdapter(t)

	docs, err := adapter.ListDocuments(context.Background(), srv.URL+"/papers/caie/igcse-accounting-0452", papers.BOARD_CAIE)
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestListDocumentsIdempotent(t *testing.T) {
	adapter, srv, _ := newTestAdapter(t)
	subjectUrl := srv.URL + "/papers/caie/igcse-mathematics-0580"

	first, err := adapter.ListDocuments(context.Background(), subjectUrl, papers.BOARD_CAIE)
	require.NoError(t, err)
	second, err := adapter.ListDocuments(context.Background(), subjectUrl, papers.BOARD_CAIE)
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("listing changed between runs (-first +second):\n%s", diff)
	}
}

func TestIsCompilation(t *testing.T) {
	require.True(t, isCompilation("Solved Past Papers"))
	require.True(t, isCompilation("Topical Past Papers"))
	require.False(t, isCompilation("2020-May-June"))
}
