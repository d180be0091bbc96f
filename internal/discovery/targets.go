package discovery

import (
	"context"
	"fmt"
	"path"
	"strings"

	"pastpapers-backend/internal/papers"
	"pastpapers-backend/internal/scrapers/fetch"
)

// target is where one distinct document is written, relative to the download
// root.
type target struct {
	doc  papers.RawDocument
	dir  []string
	name string
}

// numbered inserts ` (n)` before the extension, "Paper 1P.pdf" becomes
// "Paper 1P (2).pdf".
func numbered(filename string, n int) string {
	ext := path.Ext(filename)
	return fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(filename, ext), n, ext)
}

// renamable reports whether a filename is a plain path segment. Anything else
// keeps its name so the sandbox still rejects it.
func renamable(filename string) bool {
	return filename != "" && filename != "." && filename != ".." &&
		!strings.ContainsAny(filename, "/\\\x00")
}

// planTargets gives every distinct (url, filename) pair in a directory its own
// file. Repeats of a pair share one target. A different url under a name
// already taken in the same directory gets a numbered name. slots maps every
// input to the index of its target.
func (o *Orchestrator) planTargets(docs []papers.RawDocument, dirOf func(i int) []string) (targets []target, slots []int) {
	slots = make([]int, len(docs))
	byDoc := make(map[string]int, len(docs))
	taken := make(map[string]bool, len(docs))

	for i, doc := range docs {
		dir := dirOf(i)
		prefix := strings.Join(dir, "\x00")

		key := prefix + "\x00" + doc.Url + "\x00" + doc.Filename
		if t, ok := byDoc[key]; ok {
			slots[i] = t
			continue
		}

		name := doc.Filename
		if renamable(name) {
			for n := 2; taken[prefix+"\x00"+name]; n++ {
				name = numbered(doc.Filename, n)
			}
			if name != doc.Filename {
				o.tel.ReportWarning(report_orchestrator_download_batch, "filename collision", doc.Filename, doc.Url, "saved as", name)
			}
		}
		taken[prefix+"\x00"+name] = true

		byDoc[key] = len(targets)
		slots[i] = len(targets)
		targets = append(targets, target{doc: doc, dir: dir, name: name})
	}
	return targets, slots
}

// fetchTargets retrieves every target on the bounded pool. Targets that never
// started carry the cancellation cause as their error.
func (o *Orchestrator) fetchTargets(ctx context.Context, targets []target) []downloadResult {
	results := fetch.Gather(ctx, targets, o.opts.Concurrency, func(ctx context.Context, t target) downloadResult {
		artifact, err := o.retriever.RetrieveInto(ctx, t.doc.Url, t.dir, t.name)
		return downloadResult{artifact: artifact, started: true, err: err}
	})
	for i := range results {
		if !results[i].started {
			results[i].err = fmt.Errorf("download %s: %w", targets[i].name, context.Cause(ctx))
		}
	}
	return results
}
