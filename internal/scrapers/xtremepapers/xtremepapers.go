// Package xtremepapers discovers papers on papers.xtremepape.rs, a plain
// directory listing with one folder per board, level and subject.
package xtremepapers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"pastpapers-backend/internal/components/assert"
	"pastpapers-backend/internal/components/telemetry"
	"pastpapers-backend/internal/papers"
	"pastpapers-backend/internal/scrapers/fetch"
	"pastpapers-backend/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const DefaultBaseUrl = "https://papers.xtremepape.rs/"

const (
	report_adapter_list_subjects  = "adapter.list-subjects"
	report_adapter_list_documents = "adapter.list-documents"
	report_adapter_list_year      = "adapter.list-year"
)

// subfolders some Edexcel years split their documents into
var edexcelSubfolders = []string{"Question-paper", "Mark-scheme"}

type Options struct {
	// BaseUrl defaults to DefaultBaseUrl.
	BaseUrl string
	// Concurrency bounds the number of year folders crawled at once.
	Concurrency int
}

type Adapter struct {
	base        *url.URL
	http        *fetch.Client
	concurrency int
	tel         telemetry.API
}

func NewAdapter(opts Options, http *fetch.Client, tel telemetry.API) (*Adapter, error) {
	assert.NotNil(http)
	assert.NotNil(tel)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	if !strings.HasSuffix(opts.BaseUrl, "/") {
		opts.BaseUrl += "/"
	}
	base, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("xtremepapers: parse base url: %w", err)
	}

	return &Adapter{
		base:        base,
		http:        http,
		concurrency: opts.Concurrency,
		tel:         telemetry.NewScopedAPI("xtremepapers", tel),
	}, nil
}

func (a *Adapter) ID() papers.SourceID {
	return papers.SOURCE_XTREMEPAPERS
}

func (a *Adapter) subjectsUrl(board papers.Board, level papers.Level) string {
	levelPath := strings.ReplaceAll(string(level), " ", "+")
	return fmt.Sprintf("%sindex.php?dirpath=./%s/%s/&order=0", a.base.String(), board, levelPath)
}

// directoryName strips the brackets the listing wraps folder names in.
func directoryName(sel *goquery.Selection) string {
	return strings.Trim(htmlutil.NodeText(sel), "[]")
}

func (a *Adapter) ListSubjects(ctx context.Context, board papers.Board, level papers.Level) ([]papers.Subject, error) {
	link := a.subjectsUrl(board, level)
	doc, err := a.http.Page(ctx, link)
	if err != nil {
		a.tel.ReportWarning(report_adapter_list_subjects, err)
		return nil, err
	}

	var subjects []papers.Subject
	seen := map[string]int{}
	doc.Find("a.directory").Each(func(_ int, sel *goquery.Selection) {
		name := directoryName(sel)
		if name == "" || name == ".." {
			return
		}
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		resolved, err := htmlutil.ResolveHref(a.base, href)
		if err != nil {
			a.tel.ReportWarning(report_adapter_list_subjects, fmt.Errorf("resolve '%s': %w", href, err))
			return
		}

		subject := papers.Subject{Name: name, Url: htmlutil.NormalizeUrl(resolved)}
		if i, ok := seen[name]; ok {
			subjects[i] = subject
			return
		}
		seen[name] = len(subjects)
		subjects = append(subjects, subject)
	})

	a.tel.ReportDebug("list subjects", board, level, len(subjects))
	return subjects, nil
}

// files returns the pdf entries of a listing page.
func (a *Adapter) files(doc *goquery.Document) []papers.RawDocument {
	var docs []papers.RawDocument
	doc.Find("a.file").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || !strings.HasSuffix(strings.ToLower(strings.TrimSpace(href)), ".pdf") {
			return
		}
		resolved, err := htmlutil.ResolveHref(a.base, href)
		if err != nil {
			a.tel.ReportWarning(report_adapter_list_documents, fmt.Errorf("resolve '%s': %w", href, err))
			return
		}
		name := htmlutil.NodeText(sel)
		if name == "" {
			name = resolved.Path[strings.LastIndex(resolved.Path, "/")+1:]
		}
		docs = append(docs, papers.RawDocument{
			Filename: name,
			Url:      htmlutil.NormalizeUrl(resolved),
		})
	})
	return docs
}

// directories returns the named folder links of a listing page, `..` excluded.
func (a *Adapter) directories(doc *goquery.Document) []htmlutil.Anchor {
	var out []htmlutil.Anchor
	doc.Find("a.directory").Each(func(_ int, sel *goquery.Selection) {
		name := directoryName(sel)
		if name == "" || name == ".." {
			return
		}
		anchors := htmlutil.GetAnchors(a.base, sel)
		if len(anchors) == 0 {
			return
		}
		out = append(out, htmlutil.Anchor{Name: name, Url: anchors[0].Url})
	})
	return out
}

func (a *Adapter) ListDocuments(ctx context.Context, subjectUrl string, board papers.Board) ([]papers.RawDocument, error) {
	doc, err := a.http.Page(ctx, subjectUrl)
	if err != nil {
		a.tel.ReportWarning(report_adapter_list_documents, err)
		return nil, err
	}

	if board != papers.BOARD_EDEXCEL {
		docs := dedupe(a.files(doc))
		a.tel.ReportDebug("list documents", subjectUrl, len(docs))
		return docs, nil
	}

	years := a.directories(doc)
	perYear := fetch.Gather(ctx, years, a.concurrency, a.listYear)

	var docs []papers.RawDocument
	for _, yearDocs := range perYear {
		docs = append(docs, yearDocs...)
	}
	a.tel.ReportDebug("list documents", subjectUrl, len(years), len(docs))
	return docs, nil
}

// listYear collects an Edexcel year folder together with its question paper
// and mark scheme subfolders, every document is tagged with the year. A
// failing page contributes nothing.
func (a *Adapter) listYear(ctx context.Context, year htmlutil.Anchor) []papers.RawDocument {
	doc, err := a.http.Page(ctx, year.Url.String())
	if err != nil {
		a.tel.ReportWarning(report_adapter_list_year, year.Name, err)
		return nil
	}

	docs := a.files(doc)
	for _, folder := range a.directories(doc) {
		if !isEdexcelSubfolder(folder.Name) {
			continue
		}
		sub, err := a.http.Page(ctx, folder.Url.String())
		if err != nil {
			a.tel.ReportWarning(report_adapter_list_year, year.Name, folder.Name, err)
			continue
		}
		docs = append(docs, a.files(sub)...)
	}

	docs = dedupe(docs)
	for i := range docs {
		docs[i].Session = year.Name
	}
	return docs
}

func isEdexcelSubfolder(name string) bool {
	for _, sub := range edexcelSubfolders {
		if strings.EqualFold(name, sub) {
			return true
		}
	}
	return false
}

// dedupe drops repeated filenames, the entry stays at its first position and
// takes the value of its last occurrence.
func dedupe(docs []papers.RawDocument) []papers.RawDocument {
	out := make([]papers.RawDocument, 0, len(docs))
	seen := make(map[string]int, len(docs))
	for _, d := range docs {
		if i, ok := seen[d.Filename]; ok {
			out[i] = d
			continue
		}
		seen[d.Filename] = len(out)
		out = append(out, d)
	}
	return out
}
