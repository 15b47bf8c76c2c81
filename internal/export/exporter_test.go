package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sehenaz/docsort/internal/logger"
	"github.com/sehenaz/docsort/internal/page"
	"github.com/sehenaz/docsort/internal/pdftest"
)

// recordingWriter emits the image payloads joined by '|' instead of a PDF.
type recordingWriter struct {
	calls [][][]byte
	err   error
}

func (r *recordingWriter) WritePDF(w io.Writer, images [][]byte) error {
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, images)
	_, err := w.Write(bytes.Join(images, []byte("|")))
	return err
}

type failingSink struct{}

func (failingSink) Put(context.Context, string, string, []byte) (string, error) {
	return "", errors.New("bucket gone")
}

type memSink struct{ names []string }

func (m *memSink) Put(_ context.Context, name, _ string, _ []byte) (string, error) {
	m.names = append(m.names, name)
	return "mem://" + name, nil
}

func mk(doc string, n int, cat page.Category, sub string) page.Page {
	p := page.New(doc, n, []byte(doc+"-"+string(rune('0'+n))), 10, 20, time.UnixMilli(0))
	p.Category, p.SubCategory, p.IsClassifying = cat, sub, false
	return p
}

func ids(pages ...page.Page) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.ID
	}
	return out
}

func unzip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = b
	}
	return out
}

func TestBaseName(t *testing.T) {
	tests := map[string]string{
		"A.pdf":                     "A",
		"My Scan (1).pdf":           "My_Scan_1_",
		"Batch Upload (3 files)":    "Batch_Upload_3_files_",
		"":                          "extracted",
		".pdf":                      "extracted",
		"x.pdf.pdf":                 "x.pdf",
		"  loan   app\t(final).pdf": "_loan_app_final_",
	}
	for in, want := range tests {
		assert.Equal(t, want, BaseName(in), in)
	}
}

func TestSessionTitle(t *testing.T) {
	assert.Equal(t, "A.pdf", SessionTitle([]string{"A.pdf"}))
	assert.Equal(t, "Batch Upload (2 files)", SessionTitle([]string{"A.pdf", "B.pdf"}))
	assert.Equal(t, "", SessionTitle(nil))
}

func TestSanitizeAndSlug(t *testing.T) {
	assert.Equal(t, "Voter_ID_card_", Sanitize("Voter ID/card."))
	assert.Equal(t, "bank_statement", Slug("Bank   Statement"))
	assert.Equal(t, "voter_id_card__", Slug("Voter ID\\card.."))
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"merged": Merged, "Separated": Separated, "images_only": ImagesOnly, "IMAGES": ImagesOnly} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("tarball")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestSelection_OrdersByDocumentThenPage(t *testing.T) {
	b1 := mk("B.pdf", 1, page.Other, "Error")
	a2 := mk("A.pdf", 2, page.Photo, "Passport Photo")
	a1 := mk("A.pdf", 1, page.KYC, "PAN")
	skipped := mk("C.pdf", 1, page.Other, "")

	got := Selection([]page.Page{b1, a2, skipped, a1}, append(ids(b1, a2, a1), "unknown"))
	assert.Equal(t, ids(a1, a2, b1), ids(got...))
}

func TestExport_Merged(t *testing.T) {
	a1, a2, b1 := mk("A.pdf", 1, page.KYC, "PAN"), mk("A.pdf", 2, page.Photo, ""), mk("B.pdf", 1, page.Other, "Error")
	w := &recordingWriter{}
	e := New(w, nil)

	art, err := e.Export(context.Background(), []page.Page{b1, a2, a1}, ids(b1, a1, a2), Merged, "Batch Upload (2 files)")
	require.NoError(t, err)
	assert.Equal(t, "Batch_Upload_2_files__merged.pdf", art.Name)
	assert.Equal(t, ContentTypePDF, art.ContentType)
	assert.Equal(t, "A.pdf-1|A.pdf-2|B.pdf-1", string(art.Data))

	again, err := e.Export(context.Background(), []page.Page{b1, a2, a1}, ids(a2, b1, a1), Merged, "Batch Upload (2 files)")
	require.NoError(t, err)
	assert.Equal(t, art, again)
}

func TestExport_Separated(t *testing.T) {
	pages := []page.Page{
		mk("A.pdf", 1, page.KYC, "PAN"),
		mk("A.pdf", 2, page.KYC, "Aadhar"),
		mk("A.pdf", 3, page.KYC, "PAN"),
		mk("B.pdf", 1, page.Photo, ""),
		mk("B.pdf", 2, page.Other, "Voter ID/card"),
	}
	e := New(&recordingWriter{}, nil)

	art, err := e.Export(context.Background(), pages, ids(pages...), Separated, "A.pdf")
	require.NoError(t, err)
	assert.Equal(t, "A_separated_pdfs.zip", art.Name)
	assert.Equal(t, []string{"PAN.pdf", "Aadhar.pdf", "Photo.pdf", "Voter_ID_card.pdf"}, art.Files)

	members := unzip(t, art.Data)
	assert.Equal(t, "A.pdf-1|A.pdf-3", string(members["PAN.pdf"]))
	assert.Equal(t, "A.pdf-2", string(members["Aadhar.pdf"]))
	assert.Equal(t, "B.pdf-1", string(members["Photo.pdf"]))
	assert.Equal(t, "B.pdf-2", string(members["Voter_ID_card.pdf"]))

	total := 0
	for _, g := range GroupPages(Selection(pages, ids(pages...))) {
		total += len(g.Pages)
	}
	assert.Equal(t, len(pages), total)
}

func TestExport_ImagesOnly(t *testing.T) {
	pages := []page.Page{
		mk("A.pdf", 1, page.KYC, "Bank Statement"),
		mk("A.pdf", 2, page.Photo, ""),
		mk("B.pdf", 1, page.KYC, "Bank Statement"),
	}
	art, err := New(&recordingWriter{}, nil).Export(context.Background(), pages, ids(pages...), ImagesOnly, "Batch Upload (2 files)")
	require.NoError(t, err)

	base := "Batch_Upload_2_files_"
	assert.Equal(t, base+"_images.zip", art.Name)
	assert.Equal(t, []string{
		base + "_bank_statement_A_pdf_p1.jpg",
		base + "_photo_p2.jpg",
		base + "_bank_statement_B_pdf_p1.jpg",
	}, art.Files)
	members := unzip(t, art.Data)
	assert.Equal(t, "A.pdf-2", string(members[base+"_photo_p2.jpg"]))
}

func TestExport_ImagesOnlyNamesStayFlat(t *testing.T) {
	pages := []page.Page{
		mk("A.pdf", 1, page.Other, "../../etc/cron.d/x"),
		mk("A.pdf", 2, page.IncomeCertificate, "Salary/Form16"),
	}
	art, err := New(&recordingWriter{}, nil).Export(context.Background(), pages, ids(pages...), ImagesOnly, "A.pdf")
	require.NoError(t, err)

	assert.Equal(t, []string{"A_______etc_cron_d_x_p1.jpg", "A_salary_form16_p2.jpg"}, art.Files)
	for name := range unzip(t, art.Data) {
		assert.NotContains(t, name, "/")
		assert.NotContains(t, name, `\`)
		assert.NotContains(t, name, "..")
	}
}

func TestExport_LogsUnderExportComponent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, logger.Init(logger.Options{Level: "info", Console: &buf}))
	defer logger.Close()

	p := mk("A.pdf", 1, page.KYC, "PAN")
	_, err := New(&recordingWriter{}, nil).Export(context.Background(), []page.Page{p}, ids(p), Merged, "A.pdf")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"component":"export"`)
	assert.Contains(t, buf.String(), `"artifact":"A_merged.pdf"`)
}

func TestExport_Failures(t *testing.T) {
	p := mk("A.pdf", 1, page.KYC, "PAN")

	_, err := New(&recordingWriter{}, nil).Export(context.Background(), []page.Page{p}, []string{"nope"}, Merged, "A.pdf")
	assert.ErrorIs(t, err, ErrEmptySelection)

	art, err := New(&recordingWriter{err: errors.New("corrupt image")}, nil).Export(context.Background(), []page.Page{p}, ids(p), Separated, "A.pdf")
	assert.ErrorIs(t, err, ErrExport)
	assert.Equal(t, Artifact{}, art)

	_, err = New(&recordingWriter{}, failingSink{}).Export(context.Background(), []page.Page{p}, ids(p), Merged, "A.pdf")
	assert.ErrorIs(t, err, ErrExport)

	_, err = New(&recordingWriter{}, nil).Export(context.Background(), []page.Page{p}, ids(p), Mode("tar"), "A.pdf")
	assert.ErrorIs(t, err, ErrExport)
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestExport_DeliversToSink(t *testing.T) {
	p := mk("A.pdf", 1, page.KYC, "PAN")
	sink := &memSink{}
	art, err := New(&recordingWriter{}, sink).Export(context.Background(), []page.Page{p}, ids(p), Merged, "A.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"A_merged.pdf"}, sink.names)
	assert.Equal(t, "mem://A_merged.pdf", art.Location)
}

func TestPDFWriter_OnePagePerImage(t *testing.T) {
	imgs := [][]byte{pdftest.JPEG(40, 60, 10), pdftest.JPEG(60, 40, 200), pdftest.JPEG(30, 30, 90)}
	var buf bytes.Buffer
	require.NoError(t, NewPDFWriter().WritePDF(&buf, imgs))

	n, err := api.PageCount(bytes.NewReader(buf.Bytes()), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Error(t, NewPDFWriter().WritePDF(&buf, nil))
}
