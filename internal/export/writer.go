package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// DocumentWriter lays out JPEG images as one PDF, one page per image in the
// given order.
type DocumentWriter interface {
	WritePDF(w io.Writer, images [][]byte) error
}

// PDFWriter builds documents with pdfcpu. Each page takes the size of its
// image, so the picture fills the page with its aspect ratio intact.
type PDFWriter struct {
	conf *model.Configuration
}

func NewPDFWriter() *PDFWriter {
	api.DisableConfigDir()
	return &PDFWriter{conf: model.NewDefaultConfiguration()}
}

func (p *PDFWriter) WritePDF(w io.Writer, images [][]byte) error {
	if len(images) == 0 {
		return fmt.Errorf("no images")
	}
	readers := make([]io.Reader, len(images))
	for i, img := range images {
		readers[i] = bytes.NewReader(img)
	}
	imp := pdfcpu.DefaultImportConfig()
	imp.Pos = types.Full
	return api.ImportImages(nil, w, readers, imp, p.conf)
}

type zipMember struct {
	name string
	data []byte
}

// writeZip produces a deterministic archive: fixed member order, no
// timestamps beyond the zero value.
func writeZip(members []zipMember) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: m.name, Method: zip.Deflate})
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(m.data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
