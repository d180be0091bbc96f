// Package papacambridge discovers CAIE papers on pastpapers.papacambridge.com.
// Subjects link either to a list of session folders or directly to a session
// page holding the documents.
package papacambridge

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"pastpapers-backend/internal/components/assert"
	"pastpapers-backend/internal/components/telemetry"
	"pastpapers-backend/internal/papers"
	"pastpapers-backend/internal/scrapers/fetch"
	"pastpapers-backend/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const DefaultBaseUrl = "https://pastpapers.papacambridge.com/"

const (
	report_adapter_list_subjects  = "adapter.list-subjects"
	report_adapter_list_documents = "adapter.list-documents"
	report_adapter_list_session   = "adapter.list-session"
)

const (
	folderSelector = "div.kt-widget4__item.item-folder-type"
	pdfSelector    = "div.kt-widget4__item.item-pdf-type"
)

var levelSlugs = map[papers.Level]string{
	papers.LEVEL_IGCSE:      "igcse",
	papers.LEVEL_O_LEVEL:    "o-level",
	papers.LEVEL_AS_A_LEVEL: "as-and-a-level",
}

var downloadHref = regexp.MustCompile(`download_file\.php\?files=(.*\.pdf)`)

type Options struct {
	// BaseUrl defaults to DefaultBaseUrl.
	BaseUrl string
	// Concurrency bounds the number of session pages fetched at once.
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
	if !strings.HasSuffix(opts.BaseUrl, "/") {
		opts.BaseUrl += "/"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	base, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("papacambridge: parse base url: %w", err)
	}

	return &Adapter{
		base:        base,
		http:        http,
		concurrency: opts.Concurrency,
		tel:         telemetry.NewScopedAPI("papacambridge", tel),
	}, nil
}

func (a *Adapter) ID() papers.SourceID {
	return papers.SOURCE_PAPACAMBRIDGE
}

// folders parses the folder blocks of a page. Ads, unnamed blocks and the
// parent link are skipped.
func (a *Adapter) folders(doc *goquery.Document) []htmlutil.Anchor {
	var out []htmlutil.Anchor
	doc.Find(folderSelector).Each(func(_ int, item *goquery.Selection) {
		if item.HasClass("adsbygoogle") {
			return
		}
		link := item.Find("a").First()
		if link.Length() == 0 {
			return
		}
		name := htmlutil.NodeText(link.Find("span.wraptext").First())
		if name == "" || name == ".." {
			return
		}
		anchors := htmlutil.GetAnchors(a.base, link)
		if len(anchors) == 0 {
			return
		}
		out = append(out, htmlutil.Anchor{Name: name, Url: anchors[0].Url})
	})
	return out
}

func (a *Adapter) ListSubjects(ctx context.Context, board papers.Board, level papers.Level) ([]papers.Subject, error) {
	if board != papers.BOARD_CAIE {
		return nil, fmt.Errorf("%w: papacambridge does not serve %s", papers.ErrInvalidRequest, board)
	}
	slug, ok := levelSlugs[level]
	if !ok {
		return nil, fmt.Errorf("%w: papacambridge has no level '%s'", papers.ErrInvalidRequest, level)
	}

	link := a.base.JoinPath("papers", "caie", slug).String()
	doc, err := a.http.Page(ctx, link)
	if err != nil {
		a.tel.ReportWarning(report_adapter_list_subjects, err)
		return nil, err
	}

	var subjects []papers.Subject
	seen := map[string]int{}
	for _, folder := range a.folders(doc) {
		subject := papers.Subject{Name: folder.Name, Url: htmlutil.NormalizeUrl(folder.Url)}
		if i, ok := seen[folder.Name]; ok {
			subjects[i] = subject
			continue
		}
		seen[folder.Name] = len(subjects)
		subjects = append(subjects, subject)
	}

	a.tel.ReportDebug("list subjects", level, len(subjects))
	return subjects, nil
}

// isCompilation matches solved and topical collections, they repeat the
// documents of the regular sessions.
func isCompilation(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "solved") || strings.Contains(lower, "topical")
}

func (a *Adapter) ListDocuments(ctx context.Context, subjectUrl string, board papers.Board) ([]papers.RawDocument, error) {
	doc, err := a.http.Page(ctx, subjectUrl)
	if err != nil {
		a.tel.ReportWarning(report_adapter_list_documents, err)
		return nil, err
	}

	isSubjectPage := doc.Find(folderSelector).Length() > 0 && doc.Find(pdfSelector).Length() == 0
	if !isSubjectPage {
		docs := a.documents(doc)
		a.tel.ReportDebug("list documents", subjectUrl, len(docs))
		return docs, nil
	}

	var sessions []papers.Session
	for _, folder := range a.folders(doc) {
		if isCompilation(folder.Name) {
			continue
		}
		sessions = append(sessions, papers.Session{Name: folder.Name, Url: folder.Url.String()})
	}

	perSession := fetch.Gather(ctx, sessions, a.concurrency, a.listSession)

	var docs []papers.RawDocument
	for _, sessionDocs := range perSession {
		docs = append(docs, sessionDocs...)
	}
	a.tel.ReportDebug("list documents", subjectUrl, len(sessions), len(docs))
	return docs, nil
}

func (a *Adapter) listSession(ctx context.Context, session papers.Session) []papers.RawDocument {
	doc, err := a.http.Page(ctx, session.Url)
	if err != nil {
		a.tel.ReportWarning(report_adapter_list_session, session.Name, err)
		return nil
	}
	docs := a.documents(doc)
	for i := range docs {
		docs[i].Session = session.Name
	}
	return docs
}

// documents parses the pdf blocks of a session page. The document url is
// carried in the `files` parameter of the download link.
func (a *Adapter) documents(doc *goquery.Document) []papers.RawDocument {
	var out []papers.RawDocument
	seen := map[string]int{}

	doc.Find(pdfSelector).Each(func(_ int, item *goquery.Selection) {
		var target string
		item.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			href, _ := link.Attr("href")
			groups := downloadHref.FindStringSubmatch(href)
			if len(groups) < 2 {
				return true
			}
			target = groups[1]
			return false
		})
		if target == "" {
			return
		}

		decoded, err := url.PathUnescape(target)
		if err != nil {
			decoded = target
		}
		resolved, err := htmlutil.ResolveHref(a.base, decoded)
		if err != nil {
			a.tel.ReportWarning(report_adapter_list_documents, fmt.Errorf("resolve '%s': %w", decoded, err))
			return
		}

		entry := papers.RawDocument{
			Filename: path.Base(resolved.Path),
			Url:      htmlutil.NormalizeUrl(resolved),
		}
		if i, ok := seen[entry.Filename]; ok {
			out[i] = entry
			return
		}
		seen[entry.Filename] = len(out)
		out = append(out, entry)
	})

	return out
}
