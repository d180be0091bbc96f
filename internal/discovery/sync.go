package discovery

import (
	"context"
	"fmt"
	"strings"

	"pastpapers-backend/internal/papers"
)

// SyncResult summarizes the download of a whole subject.
type SyncResult struct {
	Subject    string
	Total      int
	Successful int
	// Failures holds one error per document that could not be retrieved.
	Failures []error
}

// SubjectDir turns a subject or session name into a single directory name.
func SubjectDir(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, `\`, "_")
	name = strings.ReplaceAll(name, "&", "and")
	return strings.TrimSpace(name)
}

// SyncSubject downloads every document of a subject into
// <board>/<level>/<subject>/<category>/<session>/<filename> under the download
// root, the session segment is left out for listings without one. A failed
// document is counted and recorded but never stops the others.
func (o *Orchestrator) SyncSubject(ctx context.Context, source papers.SourceID, board papers.Board, level papers.Level, subject papers.Subject) (SyncResult, error) {
	result := SyncResult{Subject: subject.Name}
	if !papers.ValidLevel(board, level) {
		return result, fmt.Errorf("%w: board %s has no level '%s'", papers.ErrInvalidRequest, board, level)
	}

	docs, err := o.ListDocuments(ctx, source, subject.Url, board)
	if err != nil {
		return result, err
	}
	result.Total = len(docs)
	if len(docs) == 0 {
		o.tel.ReportWarning(report_orchestrator_sync_subject, "no documents", subject.Name)
		return result, nil
	}

	subjectDir := SubjectDir(subject.Name)
	raw := make([]papers.RawDocument, len(docs))
	for i, doc := range docs {
		raw[i] = doc.RawDocument
	}
	targets, slots := o.planTargets(raw, func(i int) []string {
		dir := []string{string(board), string(level), subjectDir, docs[i].Category.String()}
		if session := SubjectDir(docs[i].Session); session != "" {
			dir = append(dir, session)
		}
		return dir
	})
	results := o.fetchTargets(ctx, targets)

	for _, slot := range slots {
		if err := results[slot].err; err != nil {
			result.Failures = append(result.Failures, err)
			continue
		}
		result.Successful++
	}

	o.tel.ReportDebug("synced subject", subject.Name, result.Successful, result.Total)
	return result, nil
}
