package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sehenaz/docsort/internal/ai/aitest"
	"github.com/sehenaz/docsort/internal/dispatcher"
	"github.com/sehenaz/docsort/internal/export"
	"github.com/sehenaz/docsort/internal/history"
	"github.com/sehenaz/docsort/internal/ingest"
	"github.com/sehenaz/docsort/internal/page"
	"github.com/sehenaz/docsort/internal/pdftest"
	"github.com/sehenaz/docsort/internal/store"
)

// orderWriter remembers the images of the last document it wrote.
type orderWriter struct{ order [][]byte }

func (w *orderWriter) WritePDF(out io.Writer, images [][]byte) error {
	w.order = images
	_, err := out.Write(bytes.Join(images, nil))
	return err
}

type fixture struct {
	renderer *pdftest.Renderer
	oracle   *aitest.Oracle
	ledger   *history.Ledger
	writer   *orderWriter
	deps     Deps
}

func newFixture() *fixture {
	f := &fixture{
		renderer: pdftest.NewRenderer(),
		oracle:   aitest.NewOracle(),
		ledger:   history.New(store.NewMemoryKV()),
		writer:   &orderWriter{},
	}
	now := time.UnixMilli(1_700_000_000_000)
	f.deps = Deps{
		Coordinator: ingest.NewCoordinator(f.renderer, ingest.Options{}),
		Client:      f.oracle,
		Ledger:      f.ledger,
		Exporter:    export.New(f.writer, nil),
		Scheduler:   dispatcher.Config{Timeout: time.Second},
		Now:         func() time.Time { return now },
	}
	return f
}

func src(name string) ingest.Source { return ingest.Source{Name: name, Data: pdftest.PDF(name)} }

func TestSession_ProcessScenario(t *testing.T) {
	f := newFixture()
	f.renderer.WithDocument("A.pdf", 2).WithDocument("B.pdf", 1)
	f.oracle.
		Label("A.pdf", 1, "KYC", "PAN").
		Label("A.pdf", 2, "Photo", "Passport Photo").
		Fail("B.pdf", 1, errors.New("upstream 500"))

	s := NewSession(f.deps)
	rep, err := s.Process(context.Background(), []ingest.Source{src("A.pdf"), src("B.pdf")})
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Pages)
	assert.Equal(t, 1, rep.Summary.Fallbacks)
	assert.Equal(t, "Batch Upload (2 files)", s.Title())
	assert.Equal(t, Progress{Stage: StageDone, Rendered: 3, Total: 3, Classified: 3}, s.Progress())

	pages := s.Store().All()
	require.Len(t, pages, 3)
	assert.Equal(t, page.KYC, pages[0].Category)
	assert.Equal(t, page.Photo, pages[1].Category)
	assert.Equal(t, page.Other, pages[2].Category)
	assert.Equal(t, dispatcher.SubError, pages[2].SubCategory)
	assert.Equal(t, 0, s.Store().Pending())

	entries := f.ledger.ReadAll(context.Background())
	require.Len(t, entries, 2)
	b, a := entries[0], entries[1]
	assert.Equal(t, "A.pdf", a.Name)
	assert.Equal(t, 2, a.PageCount)
	assert.Equal(t, map[string]int{"KYC": 1, "Photo": 1}, a.CategorySummary)
	assert.Equal(t, "B.pdf", b.Name)
	assert.Equal(t, 1, b.PageCount)
	assert.Equal(t, map[string]int{"Other": 1}, b.CategorySummary)
	assert.Equal(t, a.UploadDate, b.UploadDate)
	assert.Equal(t, int64(len(pdftest.PDF("A.pdf"))), a.Size)
	assert.NotEqual(t, a.ID, b.ID)

	// merged export of every page, selected in reverse, comes out A-1, A-2, B-1
	ids := []string{pages[2].ID, pages[1].ID, pages[0].ID}
	art, err := s.Export(context.Background(), ids, export.Merged)
	require.NoError(t, err)
	assert.Equal(t, "Batch_Upload_2_files__merged.pdf", art.Name)
	sorted := export.Selection(s.Store().All(), ids)
	assert.Equal(t, []string{pages[0].ID, pages[1].ID, pages[2].ID}, []string{sorted[0].ID, sorted[1].ID, sorted[2].ID})
	require.Len(t, f.writer.order, 3)
	assert.Equal(t, pages[0].Image, f.writer.order[0])
	assert.Equal(t, pages[1].Image, f.writer.order[1])
	assert.Equal(t, pages[2].Image, f.writer.order[2])
}

func TestSession_IngestFailureRemovesBatch(t *testing.T) {
	f := newFixture()
	f.renderer.WithDocument("A.pdf", 1).WithDocument("B.pdf", 3).FailRender("B.pdf", 2)
	s := NewSession(f.deps)

	// an earlier successful batch stays
	first, err := s.Ingest(context.Background(), []ingest.Source{src("A.pdf")})
	require.NoError(t, err)
	require.Len(t, first.Pages, 1)

	_, err = s.Ingest(context.Background(), []ingest.Source{src("B.pdf")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ingest.ErrIngestion)
	assert.ErrorIs(t, err, pdftest.ErrRender)

	pages := s.Store().All()
	require.Len(t, pages, 1)
	assert.Equal(t, "A.pdf", pages[0].OriginalFileID)
	assert.Equal(t, StageFailed, s.Progress().Stage)
	assert.Equal(t, "A.pdf", s.Title())
	assert.Empty(t, f.ledger.ReadAll(context.Background()))
	assert.Empty(t, f.oracle.Calls)
}

func TestSession_FailedFirstBatchLeavesNoTitle(t *testing.T) {
	f := newFixture()
	f.renderer.FailOpen("A.pdf")
	s := NewSession(f.deps)

	_, err := s.Ingest(context.Background(), []ingest.Source{src("A.pdf")})
	require.ErrorIs(t, err, pdftest.ErrOpen)
	assert.Empty(t, s.Title())
	assert.Equal(t, StageFailed, s.Progress().Stage)
}

func TestSession_ProcessSkipsNonPDF(t *testing.T) {
	f := newFixture()
	f.renderer.WithDocument("A.pdf", 1)
	s := NewSession(f.deps)

	rep, err := s.Process(context.Background(), []ingest.Source{
		src("A.pdf"),
		{Name: "notes.txt", Data: []byte("just some text")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.txt"}, rep.Skipped)
	assert.Equal(t, "A.pdf", s.Title())
	assert.Len(t, f.ledger.ReadAll(context.Background()), 1)

	empty := NewSession(f.deps)
	rep, err = empty.Process(context.Background(), []ingest.Source{{Name: "x.txt", Data: []byte("x")}})
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Pages)
	assert.Equal(t, StageDone, empty.Progress().Stage)
}

func TestSession_EditAndReset(t *testing.T) {
	f := newFixture()
	f.renderer.WithDocument("A.pdf", 2)
	s := NewSession(f.deps)
	_, err := s.Process(context.Background(), []ingest.Source{src("A.pdf")})
	require.NoError(t, err)

	id := s.Store().All()[0].ID
	cat := page.LegalDocument
	sub := "Sale Deed"
	got, err := s.Edit(id, page.Edit{Category: &cat, SubCategory: &sub})
	require.NoError(t, err)
	assert.Equal(t, page.LegalDocument, got.Category)

	bad := page.Category("Invoice")
	_, err = s.Edit(id, page.Edit{Category: &bad})
	assert.ErrorIs(t, err, page.ErrInvalidCategory)
	_, err = s.Edit("missing", page.Edit{Category: &cat})
	assert.ErrorIs(t, err, page.ErrPageNotFound)

	// the history entry was written before the edit and is not rewritten
	entries := f.ledger.ReadAll(context.Background())
	require.Len(t, entries, 1)
	assert.Equal(t, map[string]int{"Other": 2}, entries[0].CategorySummary)

	s.Reset()
	assert.Equal(t, 0, s.Store().Len())
	assert.Equal(t, Progress{Stage: StageIdle}, s.Progress())
	_, err = s.Export(context.Background(), []string{id}, export.Merged)
	assert.ErrorIs(t, err, export.ErrEmptySelection)
}

func TestSession_SameNamedSourcesGetSeparateEntries(t *testing.T) {
	f := newFixture()
	f.renderer.WithDocument("scan.pdf", 1)
	s := NewSession(f.deps)

	_, err := s.Process(context.Background(), []ingest.Source{src("scan.pdf"), src("scan.pdf")})
	require.NoError(t, err)

	assert.Equal(t, 2, s.Store().Len())
	entries := f.ledger.ReadAll(context.Background())
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, 1, e.PageCount)
	}
}

func TestRegistry(t *testing.T) {
	f := newFixture()
	r := NewRegistry(f.deps)

	a := r.Create()
	b := r.Create()
	assert.NotEqual(t, a.ID, b.ID)

	got, ok := r.Get(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Len(t, r.List(), 2)

	assert.True(t, r.Delete(a.ID))
	assert.False(t, r.Delete(a.ID))
	_, ok = r.Get(a.ID)
	assert.False(t, ok)
	assert.Len(t, r.List(), 1)
}
