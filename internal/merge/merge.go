// Package merge concatenates retrieved documents into a single pdf.
package merge

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pastpapers-backend/internal/components/assert"
	"pastpapers-backend/internal/components/telemetry"
	"pastpapers-backend/internal/papers"
	"pastpapers-backend/internal/retrieval"

	"github.com/google/uuid"
	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const report_engine_merge = "engine.merge"

func init() {
	// keep pdfcpu from creating a config directory under the user's home
	model.ConfigPath = "disable"
}

type Options struct {
	// Strict fails the merge when any input is missing instead of skipping it.
	Strict bool
}

// SkippedInputsError is returned in strict mode when inputs do not exist.
type SkippedInputsError struct {
	Skipped []string
}

func (e *SkippedInputsError) Error() string {
	return fmt.Sprintf("merge: %d missing inputs: %s", len(e.Skipped), strings.Join(e.Skipped, ", "))
}

func (e *SkippedInputsError) Is(target error) bool {
	return target == papers.ErrNotFound
}

type Engine struct {
	sandbox retrieval.Sandbox
	opts    Options
	tel     telemetry.API
}

func NewEngine(sandbox retrieval.Sandbox, opts Options, tel telemetry.API) *Engine {
	assert.NotNil(tel)
	assert.NotEmptyStr(sandbox.Root())
	return &Engine{
		sandbox: sandbox,
		opts:    opts,
		tel:     telemetry.NewScopedAPI("merge", tel),
	}
}

func (e *Engine) Strict() bool {
	return e.opts.Strict
}

func config() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	// classic xref tables keep the output readable by simpler parsers
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return conf
}

// Merge appends the pages of every existing input, in order, into `output`
// inside the download root.
func (e *Engine) Merge(ctx context.Context, inputs []string, output string) (papers.MergedArtifact, error) {
	dest, err := e.sandbox.Resolve(output)
	if err != nil {
		e.tel.ReportWarning(report_engine_merge, err)
		return papers.MergedArtifact{}, err
	}

	var existing, skipped []string
	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil || info.IsDir() {
			skipped = append(skipped, input)
			continue
		}
		existing = append(existing, input)
	}
	if len(skipped) > 0 {
		e.tel.ReportWarning(report_engine_merge, "skipped missing inputs", skipped)
		if e.opts.Strict {
			return papers.MergedArtifact{}, &SkippedInputsError{Skipped: skipped}
		}
	}
	if len(existing) == 0 {
		return papers.MergedArtifact{}, fmt.Errorf("%w: none of the %d merge inputs exist", papers.ErrNotFound, len(inputs))
	}
	if err := ctx.Err(); err != nil {
		return papers.MergedArtifact{}, err
	}

	tmp := filepath.Join(filepath.Dir(dest), fmt.Sprintf(".%s.%s.part", filepath.Base(dest), uuid.NewString()))
	defer os.Remove(tmp)

	if len(existing) == 1 {
		err = copyFile(existing[0], tmp)
	} else {
		err = api.MergeCreateFile(existing, tmp, false, config())
	}
	if err != nil {
		e.tel.ReportWarning(report_engine_merge, err)
		return papers.MergedArtifact{}, fmt.Errorf("merge %d documents: %w", len(existing), err)
	}

	pages, err := PageCount(tmp)
	if err != nil {
		e.tel.ReportWarning(report_engine_merge, err)
		return papers.MergedArtifact{}, err
	}

	err = os.Rename(tmp, dest)
	if err != nil {
		return papers.MergedArtifact{}, err
	}

	e.tel.ReportDebug("merged", dest, len(existing), pages)
	return papers.MergedArtifact{
		Path:    dest,
		Pages:   pages,
		Skipped: skipped,
	}, nil
}

// PageCount reads the number of pages of a pdf file.
func PageCount(path string) (count int, err error) {
	defer func() {
		// the parser panics on some malformed inputs
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: read %s: %v", papers.ErrParse, path, r)
		}
	}()

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %w", papers.ErrParse, path, err)
	}
	defer f.Close()
	return reader.NumPage(), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	closeErr := out.Close()
	if err != nil {
		return err
	}
	return closeErr
}
