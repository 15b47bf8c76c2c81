package imagerender

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// Defaults match what the classification oracle was tuned against.
const (
	DefaultScale   = 1.5
	DefaultQuality = 85
)

// ColorMode defines the color mode for rendering
type ColorMode string

const (
	ColorRGB  ColorMode = "rgb"
	ColorGray ColorMode = "gray"
)

// Image is one rendered page.
type Image struct {
	Data   []byte
	Width  int
	Height int
}

// Document is an opened source document.
type Document interface {
	PageCount() int
	// RenderPage rasterizes the 0-based page index at the given scale (1.0 = 72 DPI).
	RenderPage(index int, scale float64) (Image, error)
	Close() error
}

// Renderer opens source blobs for rasterization.
type Renderer interface {
	Open(name string, data []byte) (Document, error)
}

// Options configures a FitzRenderer.
type Options struct {
	Quality   int
	ColorMode ColorMode
}

// FitzRenderer renders through MuPDF. MuPDF drawing is not safe for concurrent
// use, so every open and render holds the renderer lock.
type FitzRenderer struct {
	mu      sync.Mutex
	quality int
	color   ColorMode
}

func NewFitzRenderer(opts Options) *FitzRenderer {
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	if opts.ColorMode == "" {
		opts.ColorMode = ColorRGB
	}
	return &FitzRenderer{quality: opts.Quality, color: opts.ColorMode}
}

func (r *FitzRenderer) Open(name string, data []byte) (Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return &fitzDocument{r: r, name: name, doc: doc}, nil
}

type fitzDocument struct {
	r    *FitzRenderer
	name string
	doc  *fitz.Document
}

func (d *fitzDocument) PageCount() int {
	d.r.mu.Lock()
	defer d.r.mu.Unlock()
	return d.doc.NumPage()
}

func (d *fitzDocument) RenderPage(index int, scale float64) (Image, error) {
	if scale <= 0 {
		scale = DefaultScale
	}
	d.r.mu.Lock()
	img, err := d.doc.ImageDPI(index, 72*scale)
	d.r.mu.Unlock()
	if err != nil {
		return Image{}, fmt.Errorf("render %s page %d: %w", d.name, index+1, err)
	}

	data, err := EncodeJPEG(img, d.r.quality, d.r.color)
	if err != nil {
		return Image{}, fmt.Errorf("render %s page %d: %w", d.name, index+1, err)
	}
	b := img.Bounds()
	log.Debug().
		Str("document", d.name).
		Int("page", index+1).
		Int("width", b.Dx()).
		Int("height", b.Dy()).
		Int("jpeg_size", len(data)).
		Msg("rendered page")
	return Image{Data: data, Width: b.Dx(), Height: b.Dy()}, nil
}

func (d *fitzDocument) Close() error {
	d.r.mu.Lock()
	defer d.r.mu.Unlock()
	return d.doc.Close()
}

// EncodeJPEG encodes img at the given quality, converting to grayscale first when asked.
func EncodeJPEG(img image.Image, quality int, mode ColorMode) ([]byte, error) {
	final := img
	if mode == ColorGray {
		gray := image.NewGray(img.Bounds())
		draw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, draw.Src)
		final = gray
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, final, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Dimensions extracts dimensions from JPEG bytes
func Dimensions(data []byte) (width, height int, err error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode jpeg: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
