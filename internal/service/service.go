// Package service exposes the discovery orchestrator over a small JSON http
// api, the same routes the web frontend has always talked to.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"pastpapers-backend/internal/components/assert"
	"pastpapers-backend/internal/components/telemetry"
	"pastpapers-backend/internal/papers"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	report_service_subjects = "handler.subjects"
	report_service_papers   = "handler.papers"
	report_service_download = "handler.download"
	report_service_merge    = "handler.merge"
)

// DiscoveryAPI is the part of discovery.Orchestrator the service needs.
//
// note: fault injection point
type DiscoveryAPI interface {
	ListSubjects(ctx context.Context, source papers.SourceID, board papers.Board, level papers.Level) ([]papers.Subject, error)
	ListDocuments(ctx context.Context, source papers.SourceID, subjectUrl string, board papers.Board) ([]papers.CategorizedDocument, error)
	Retrieve(ctx context.Context, url, filename string) (papers.LocalArtifact, error)
	MergeDocuments(ctx context.Context, docs []papers.RawDocument, output string) (papers.MergedArtifact, error)
}

// RandomAPI generates the names of merged files that were not given one.
//
// note: fault injection point
type RandomAPI interface {
	MergedName() string
}

type defaultRandomAPI struct{}

func (defaultRandomAPI) MergedName() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("merged_%s.pdf", id[:8])
}

type Service struct {
	discovery DiscoveryAPI
	rand      RandomAPI
	gatherer  prometheus.Gatherer
	tel       telemetry.API
}

type Option func(s *Service)

func WithRandomAPI(rand RandomAPI) Option {
	return func(s *Service) {
		s.rand = rand
	}
}

// WithGatherer selects the registry served on /metrics, it defaults to
// prometheus.DefaultGatherer.
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(s *Service) {
		s.gatherer = gatherer
	}
}

func NewService(discovery DiscoveryAPI, tel telemetry.API, options ...Option) *Service {
	assert.NotNil(discovery)
	assert.NotNil(tel)

	s := &Service{
		discovery: discovery,
		rand:      defaultRandomAPI{},
		gatherer:  prometheus.DefaultGatherer,
		tel:       telemetry.NewScopedAPI("service", tel),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Handler returns every route wrapped in a permissive CORS middleware.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /boards", s.handleBoards)
	mux.HandleFunc("GET /levels/{board_id}", s.handleLevels)
	mux.HandleFunc("GET /subjects", s.handleSubjects)
	mux.HandleFunc("GET /papers", s.handlePapers)
	mux.HandleFunc("GET /download", s.handleDownload)
	mux.HandleFunc("POST /merge", s.handleMerge)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return cors(mux)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJson(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(value)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, papers.ErrInvalidRequest), errors.Is(err, papers.ErrPathViolation):
		return http.StatusBadRequest
	case errors.Is(err, papers.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, papers.ErrRetrievalFailure),
		errors.Is(err, papers.ErrTransport),
		errors.Is(err, papers.ErrParse):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Service) fail(w http.ResponseWriter, id string, err error) {
	status := statusOf(err)
	if status >= 500 {
		s.tel.ReportWarning(id, err)
	}
	writeJson(w, status, errorResponse{Error: err.Error()})
}

func (s *Service) handleBoards(w http.ResponseWriter, r *http.Request) {
	writeJson(w, http.StatusOK, papers.BoardOptions())
}

// boardOf accepts either a board option id ("papacambridge_caie") or a bare
// board name.
func boardOf(id string) (papers.Board, error) {
	for _, opt := range papers.BoardOptions() {
		if opt.Id == id {
			return opt.Board, nil
		}
	}
	return papers.ParseBoard(id)
}

func (s *Service) handleLevels(w http.ResponseWriter, r *http.Request) {
	board, err := boardOf(r.PathValue("board_id"))
	if err != nil {
		writeJson(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	writeJson(w, http.StatusOK, papers.LevelsFor(board))
}

func (s *Service) handleSubjects(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	source, err := papers.ParseSourceID(query.Get("source"))
	if err != nil {
		s.fail(w, report_service_subjects, err)
		return
	}
	board, err := papers.ParseBoard(query.Get("board"))
	if err != nil {
		s.fail(w, report_service_subjects, err)
		return
	}
	level, err := papers.ParseLevel(board, query.Get("level"))
	if err != nil {
		s.fail(w, report_service_subjects, err)
		return
	}

	subjects, err := s.discovery.ListSubjects(r.Context(), source, board, level)
	if err != nil {
		s.fail(w, report_service_subjects, err)
		return
	}
	if len(subjects) == 0 {
		writeJson(w, http.StatusNotFound, errorResponse{Error: "No subjects found"})
		return
	}
	writeJson(w, http.StatusOK, subjects)
}

func (s *Service) handlePapers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	source, err := papers.ParseSourceID(query.Get("source"))
	if err != nil {
		s.fail(w, report_service_papers, err)
		return
	}
	board, err := papers.ParseBoard(query.Get("board"))
	if err != nil {
		s.fail(w, report_service_papers, err)
		return
	}

	docs, err := s.discovery.ListDocuments(r.Context(), source, query.Get("subject_url"), board)
	if err != nil {
		s.fail(w, report_service_papers, err)
		return
	}
	if len(docs) == 0 {
		writeJson(w, http.StatusNotFound, errorResponse{Error: "No papers found"})
		return
	}
	writeJson(w, http.StatusOK, docs)
}

func serveAttachment(w http.ResponseWriter, r *http.Request, path string) {
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func (s *Service) handleDownload(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	link := query.Get("url")
	if link == "" {
		s.fail(w, report_service_download, fmt.Errorf("%w: missing url", papers.ErrInvalidRequest))
		return
	}

	artifact, err := s.discovery.Retrieve(r.Context(), link, query.Get("filename"))
	if err != nil {
		s.fail(w, report_service_download, err)
		return
	}
	serveAttachment(w, r, artifact.Path)
}

type mergeRequest struct {
	Papers     []papers.RawDocument `json:"papers"`
	OutputName string               `json:"output_name"`
}

func (s *Service) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		s.fail(w, report_service_merge, fmt.Errorf("%w: decode body: %w", papers.ErrInvalidRequest, err))
		return
	}
	if req.OutputName == "" {
		req.OutputName = s.rand.MergedName()
	}

	merged, err := s.discovery.MergeDocuments(r.Context(), req.Papers, req.OutputName)
	if err != nil {
		s.fail(w, report_service_merge, err)
		return
	}
	serveAttachment(w, r, merged.Path)
}
