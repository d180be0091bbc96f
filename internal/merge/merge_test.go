package merge

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"pastpapers-backend/internal/components/telemetry"
	"pastpapers-backend/internal/papers"
	"pastpapers-backend/internal/retrieval"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/require"
)

// writePdf writes a minimal single page pdf, the page width tags the file so
// the merged order can be checked.
func writePdf(t testing.TB, path string, width int) {
	var buf bytes.Buffer
	var offsets []int

	buf.WriteString("%PDF-1.4\n")
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d 792] /Resources << >> /Contents 4 0 R >>", width),
		"<< /Length 3 >>\nstream\nq Q\nendstream",
	}
	for i, obj := range objects {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f\r\n")
	for _, offset := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n\r\n", offset)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func pageWidths(t testing.TB, path string) []int {
	f, reader, err := pdflib.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var widths []int
	for i := 1; i <= reader.NumPage(); i++ {
		v := reader.Page(i).V
		for v.Key("MediaBox").IsNull() && !v.Key("Parent").IsNull() {
			v = v.Key("Parent")
		}
		widths = append(widths, int(v.Key("MediaBox").Index(2).Float64()))
	}
	return widths
}

func newTestEngine(t testing.TB, strict bool) (*Engine, retrieval.Sandbox) {
	sandbox, err := retrieval.NewSandbox(t.TempDir())
	require.NoError(t, err)
	return NewEngine(sandbox, Options{Strict: strict}, telemetry.NewTestAPI()), sandbox
}

func TestMergeSkipsMissingInputs(t *testing.T) {
	engine, sandbox := newTestEngine(t, false)

	missing := filepath.Join(sandbox.Root(), "missing.pdf")
	var inputs []string
	for _, width := range []int{300, 100, 0, 200} {
		if width == 0 {
			inputs = append(inputs, missing)
			continue
		}
		path := filepath.Join(sandbox.Root(), fmt.Sprintf("paper_%d.pdf", width))
		writePdf(t, path, width)
		inputs = append(inputs, path)
	}

	artifact, err := engine.Merge(context.Background(), inputs, "merged.pdf")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(sandbox.Root(), "merged.pdf"), artifact.Path)
	require.Equal(t, 3, artifact.Pages)
	require.Equal(t, []string{missing}, artifact.Skipped)
	require.Equal(t, []int{300, 100, 200}, pageWidths(t, artifact.Path))

	pages, err := PageCount(artifact.Path)
	require.NoError(t, err)
	require.Equal(t, 3, pages)
}

func TestMergeStrict(t *testing.T) {
	engine, sandbox := newTestEngine(t, true)
	require.True(t, engine.Strict())

	existing := filepath.Join(sandbox.Root(), "a.pdf")
	writePdf(t, existing, 100)
	missing := filepath.Join(sandbox.Root(), "b.pdf")

	_, err := engine.Merge(context.Background(), []string{existing, missing}, "merged.pdf")
	var skippedErr *SkippedInputsError
	require.ErrorAs(t, err, &skippedErr)
	require.Equal(t, []string{missing}, skippedErr.Skipped)

	_, err = os.Stat(filepath.Join(sandbox.Root(), "merged.pdf"))
	require.True(t, os.IsNotExist(err))
}

func TestMergeSingleInput(t *testing.T) {
	engine, sandbox := newTestEngine(t, false)

	path := filepath.Join(sandbox.Root(), "only.pdf")
	writePdf(t, path, 250)

	artifact, err := engine.Merge(context.Background(), []string{path}, "merged.pdf")
	require.NoError(t, err)
	require.Equal(t, 1, artifact.Pages)
	require.Empty(t, artifact.Skipped)
}

func TestMergeNothingToMerge(t *testing.T) {
	engine, sandbox := newTestEngine(t, false)

	_, err := engine.Merge(
		context.Background(),
		[]string{filepath.Join(sandbox.Root(), "nope.pdf")},
		"merged.pdf",
	)
	require.ErrorIs(t, err, papers.ErrNotFound)

	_, err = engine.Merge(context.Background(), nil, "merged.pdf")
	require.ErrorIs(t, err, papers.ErrNotFound)
}

func TestMergeOutputIsSandboxed(t *testing.T) {
	engine, sandbox := newTestEngine(t, false)

	path := filepath.Join(sandbox.Root(), "a.pdf")
	writePdf(t, path, 100)

	for _, output := range []string{"../merged.pdf", "/tmp/merged.pdf", "sub/merged.pdf"} {
		_, err := engine.Merge(context.Background(), []string{path}, output)
		require.ErrorIs(t, err, papers.ErrPathViolation, output)
	}
}

func TestPageCountRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.pdf")
	require.NoError(t, os.WriteFile(path, []byte("this is not a pdf"), 0644))

	_, err := PageCount(path)
	require.ErrorIs(t, err, papers.ErrParse)
}
