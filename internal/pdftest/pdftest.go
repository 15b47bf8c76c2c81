// Package pdftest provides an in-memory document renderer and fixture helpers
// for exercising the pipeline without MuPDF.
package pdftest

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sync"

	"github.com/sehenaz/docsort/internal/imagerender"
)

// PDF returns a blob that sniffs as a PDF. Its content is only meaningful to Renderer.
func PDF(name string) []byte {
	return []byte("%PDF-1.4\n% " + name + "\n")
}

// JPEG returns a solid-colour JPEG of the given size.
func JPEG(w, h int, shade uint8) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: shade, B: 255 - shade, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

var (
	ErrOpen   = errors.New("malformed document")
	ErrRender = errors.New("render failed")
)

// Renderer serves fixed page counts by document name.
type Renderer struct {
	mu         sync.Mutex
	pages      map[string]int
	failOpen   map[string]bool
	failRender map[string]int // document -> 1-based page that fails
	unsized    bool

	Opened   []string
	Rendered []string // "<doc>#<page>" in call order
	Closed   []string

	inFlight    int
	MaxInFlight int
}

func NewRenderer() *Renderer {
	return &Renderer{pages: map[string]int{}, failOpen: map[string]bool{}, failRender: map[string]int{}}
}

// WithDocument registers a document with n pages.
func (r *Renderer) WithDocument(name string, n int) *Renderer {
	r.pages[name] = n
	return r
}

func (r *Renderer) FailOpen(name string) *Renderer {
	r.failOpen[name] = true
	return r
}

func (r *Renderer) FailRender(name string, pageNumber int) *Renderer {
	r.failRender[name] = pageNumber
	return r
}

// Unsized makes rendered images report no dimensions, leaving callers to
// read them from the JPEG header.
func (r *Renderer) Unsized() *Renderer {
	r.unsized = true
	return r
}

func (r *Renderer) Open(name string, _ []byte) (imagerender.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOpen[name] {
		return nil, ErrOpen
	}
	n, ok := r.pages[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown document %q", ErrOpen, name)
	}
	r.Opened = append(r.Opened, name)
	return &doc{r: r, name: name, n: n}, nil
}

type doc struct {
	r    *Renderer
	name string
	n    int
}

func (d *doc) PageCount() int { return d.n }

func (d *doc) RenderPage(index int, _ float64) (imagerender.Image, error) {
	d.r.mu.Lock()
	d.r.inFlight++
	if d.r.inFlight > d.r.MaxInFlight {
		d.r.MaxInFlight = d.r.inFlight
	}
	fail := d.r.failRender[d.name] == index+1
	unsized := d.r.unsized
	d.r.Rendered = append(d.r.Rendered, fmt.Sprintf("%s#%d", d.name, index+1))
	d.r.mu.Unlock()

	defer func() {
		d.r.mu.Lock()
		d.r.inFlight--
		d.r.mu.Unlock()
	}()
	if fail {
		return imagerender.Image{}, ErrRender
	}
	img := imagerender.Image{Data: JPEG(8, 12, uint8(index*40)), Width: 8, Height: 12}
	if unsized {
		img.Width, img.Height = 0, 0
	}
	return img, nil
}

func (d *doc) Close() error {
	d.r.mu.Lock()
	defer d.r.mu.Unlock()
	d.r.Closed = append(d.r.Closed, d.name)
	return nil
}
