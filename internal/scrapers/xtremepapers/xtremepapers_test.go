package xtremepapers

import (
	"context"
	"embed"
	"net/http"
	"net/http/httptest"
	"strings"
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

const edexcelSubject = "./Edexcel/International GCSE/Mathematics A (4MA1)/"

// dirpath -> fixture file
var listings = map[string]string{
	"./CAIE/IGCSE/":                         "caie_igcse.html",
	"./CAIE/IGCSE/Mathematics (0580)/":      "caie_subject.html",
	edexcelSubject:                          "edexcel_subject.html",
	edexcelSubject + "2019/":                "edexcel_2019.html",
	edexcelSubject + "2019/Question-paper/": "edexcel_2019_qp.html",
	edexcelSubject + "2019/Mark-scheme/":    "edexcel_2019_ms.html",
	edexcelSubject + "2020/":                "edexcel_2020.html",
}

func newTestAdapter(t testing.TB) (*Adapter, *httptest.Server, *telemetry.TestAPI) {
	mux := http.NewServeMux()
	mux.HandleFunc("/index.php", func(w http.ResponseWriter, r *http.Request) {
		name, ok := listings[r.URL.Query().Get("dirpath")]
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
	})
	srv := httptest.NewServer(mux)
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

func names[T any](items []T, name func(T) string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = name(item)
	}
	return out
}

func TestListSubjects(t *testing.T) {
	adapter, srv, _ := newTestAdapter(t)

	subjects, err := adapter.ListSubjects(context.Background(), papers.BOARD_CAIE, papers.LEVEL_IGCSE)
	require.NoError(t, err)
	require.Equal(
		t,
		[]string{"Accounting (0452)", "Mathematics (0580)", "Physics (0625)"},
		names(subjects, func(s papers.Subject) string { return s.Name }),
	)
	for _, s := range subjects {
		require.True(t, strings.HasPrefix(s.Url, srv.URL+"/index.php?"), s.Url)
		require.NotContains(t, s.Url, " ")
	}
}

func TestListSubjectsLevelWithSpaces(t *testing.T) {
	adapter, _, _ := newTestAdapter(t)
	require.Equal(
		t,
		adapter.base.String()+"index.php?dirpath=./Edexcel/International+GCSE/&order=0",
		adapter.subjectsUrl(papers.BOARD_EDEXCEL, papers.LEVEL_INTERNATIONAL_GCSE),
	)
}

func TestListSubjectsTransportFailure(t *testing.T) {
	adapter, _, tel := newTestAdapter(t)

	subjects, err := adapter.ListSubjects(context.Background(), papers.BOARD_CAIE, papers.LEVEL_O_LEVEL)
	require.ErrorIs(t, err, papers.ErrTransport)
	require.Empty(t, subjects)
	require.NotEmpty(t, tel.Reports("warning"))
}

func TestListDocumentsCAIE(t *testing.T) {
	adapter, srv, _ := newTestAdapter(t)

	subjects, err := adapter.ListSubjects(context.Background(), papers.BOARD_CAIE, papers.LEVEL_IGCSE)
	require.NoError(t, err)

	docs, err := adapter.ListDocuments(context.Background(), subjects[1].Url, papers.BOARD_CAIE)
	require.NoError(t, err)
	require.Equal(
		t,
		[]string{"0580_s20_qp_12.pdf", "0580_s20_ms_12.pdf", "0580_s20_er.pdf"},
		names(docs, func(d papers.RawDocument) string { return d.Filename }),
	)
	for _, d := range docs {
		require.True(t, strings.HasPrefix(d.Url, srv.URL+"/CAIE/IGCSE/"), d.Url)
		require.True(t, strings.HasSuffix(d.Url, d.Filename), d.Url)
	}
}

func TestListDocumentsEdexcel(t *testing.T) {
	adapter, srv, tel := newTestAdapter(t)

	subjectUrl := srv.URL + "/index.php?dirpath=" + strings.ReplaceAll(edexcelSubject, " ", "%20") + "&order=0"
	docs, err := adapter.ListDocuments(context.Background(), subjectUrl, papers.BOARD_EDEXCEL)
	require.NoError(t, err)

	// 2019 is the union of the year page and both subfolders, the examiner
	// report folder is not followed and 2021 is missing
	require.Equal(
		t,
		[]string{
			"Paper 1P.pdf",
			"Formulae.pdf",
			"Paper 2R.pdf",
			"Mark-scheme-June-2019.pdf",
			"Paper 1P.pdf",
		},
		names(docs, func(d papers.RawDocument) string { return d.Filename }),
	)

	// last write wins for the duplicate within 2019
	require.Contains(t, docs[1].Url, "Question-paper")
	require.Contains(t, docs[4].Url, "2020")

	// the repeated name is told apart by its year
	require.Equal(
		t,
		[]string{"2019", "2019", "2019", "2019", "2020"},
		names(docs, func(d papers.RawDocument) string { return d.Session }),
	)

	year2019 := map[string]bool{}
	for _, d := range docs[:4] {
		require.False(t, year2019[d.Filename], "duplicate %s", d.Filename)
		year2019[d.Filename] = true
	}

	require.NotEmpty(t, tel.Reports("warning"))
}

func TestListDocumentsIdempotent(t *testing.T) {
	adapter, srv, _ := newTestAdapter(t)
	subjectUrl := srv.URL + "/index.php?dirpath=" + strings.ReplaceAll(edexcelSubject, " ", "%20") + "&order=0"

	first, err := adapter.ListDocuments(context.Background(), subjectUrl, papers.BOARD_EDEXCEL)
	require.NoError(t, err)
	second, err := adapter.ListDocuments(context.Background(), subjectUrl, papers.BOARD_EDEXCEL)
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("listing changed between runs (-first +second):\n%s", diff)
	}

	subjectsA, err := adapter.ListSubjects(context.Background(), papers.BOARD_CAIE, papers.LEVEL_IGCSE)
	require.NoError(t, err)
	subjectsB, err := adapter.ListSubjects(context.Background(), papers.BOARD_CAIE, papers.LEVEL_IGCSE)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(subjectsA, subjectsB))
}

func TestDedupe(t *testing.T) {
	docs := dedupe([]papers.RawDocument{
		{Filename: "a.pdf", Url: "1"},
		{Filename: "b.pdf", Url: "2"},
		{Filename: "a.pdf", Url: "3"},
	})
	require.Equal(t, []papers.RawDocument{
		{Filename: "a.pdf", Url: "3"},
		{Filename: "b.pdf", Url: "2"},
	}, docs)
}
