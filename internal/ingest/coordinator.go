package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sehenaz/docsort/internal/filetype"
	"github.com/sehenaz/docsort/internal/imagerender"
	"github.com/sehenaz/docsort/internal/metrics"
	"github.com/sehenaz/docsort/internal/page"
)

// ErrIngestion marks a batch-level ingestion failure. No page of a failed batch is kept.
var ErrIngestion = errors.New("ingestion failed")

// Error carries the document (and page, when rendering) that broke the batch.
type Error struct {
	Document string
	Page     int // 1-based; 0 when the document failed to open
	Err      error
}

func (e *Error) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("%s: %s page %d: %v", ErrIngestion, e.Document, e.Page, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrIngestion, e.Document, e.Err)
}

func (e *Error) Unwrap() []error { return []error{ErrIngestion, e.Err} }

// Source is one uploaded document.
type Source struct {
	Name string
	Data []byte
}

func (s Source) Size() int64 { return int64(len(s.Data)) }

// FilterPDF splits sources into PDFs and the names of everything else.
func FilterPDF(sources []Source) (accepted []Source, skipped []string) {
	for _, s := range sources {
		if filetype.IsPDF(s.Data) {
			accepted = append(accepted, s)
			continue
		}
		info := filetype.Detect(s.Name, s.Data)
		log.Warn().Str("document", s.Name).Str("mime", info.MIMEType).Msg("skipping non-PDF upload")
		skipped = append(skipped, s.Name)
	}
	return accepted, skipped
}

// EventKind tells subscribers what an Event carries.
type EventKind int

const (
	// EventTotal is sent once, after every document opened, with Total set.
	EventTotal EventKind = iota
	// EventPage is sent per rendered page.
	EventPage
)

// Event is one step of an ingestion run.
type Event struct {
	Kind     EventKind
	Page     page.Page
	Source   int // index into the sources slice, EventPage only
	Rendered int
	Total    int
}

// Options configures a Coordinator.
type Options struct {
	Scale float64
	Now   func() time.Time
}

// Coordinator turns source documents into pages, one at a time, on a single renderer.
type Coordinator struct {
	renderer imagerender.Renderer
	scale    float64
	now      func() time.Time
}

func NewCoordinator(r imagerender.Renderer, opts Options) *Coordinator {
	if opts.Scale <= 0 {
		opts.Scale = imagerender.DefaultScale
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{renderer: r, scale: opts.Scale, now: opts.Now}
}

// Stream is a finite, non-restartable sequence of ingestion events.
type Stream struct {
	events chan Event
	done   chan struct{}
	err    error
}

// Events is closed once the run ends, successfully or not.
func (s *Stream) Events() <-chan Event { return s.events }

// Wait blocks until the run ends and returns its error.
func (s *Stream) Wait() error {
	<-s.done
	return s.err
}

// Start runs ingestion in the background. The caller must drain Events.
func (c *Coordinator) Start(ctx context.Context, sources []Source) *Stream {
	s := &Stream{events: make(chan Event), done: make(chan struct{})}
	go func() {
		defer close(s.done)
		defer close(s.events)
		s.err = c.run(ctx, sources, s.events)
		if s.err != nil {
			metrics.IncIngest("failed")
		} else {
			metrics.IncIngest("success")
		}
	}()
	return s
}

type opened struct {
	src Source
	doc imagerender.Document
	n   int
}

func (c *Coordinator) run(ctx context.Context, sources []Source, out chan<- Event) error {
	docs := make([]opened, 0, len(sources))
	defer func() {
		for _, d := range docs {
			if err := d.doc.Close(); err != nil {
				log.Warn().Err(err).Str("document", d.src.Name).Msg("close document failed")
			}
		}
	}()

	total := 0
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return &Error{Document: src.Name, Err: err}
		}
		doc, err := c.renderer.Open(src.Name, src.Data)
		if err != nil {
			return &Error{Document: src.Name, Err: err}
		}
		n := doc.PageCount()
		docs = append(docs, opened{src: src, doc: doc, n: n})
		total += n
		log.Debug().Str("document", src.Name).Int("pages", n).Msg("document opened")
	}

	if err := send(ctx, out, Event{Kind: EventTotal, Total: total}); err != nil {
		return &Error{Err: err}
	}

	rendered := 0
	for di, d := range docs {
		for i := 0; i < d.n; i++ {
			if err := ctx.Err(); err != nil {
				return &Error{Document: d.src.Name, Page: i + 1, Err: err}
			}
			img, err := d.doc.RenderPage(i, c.scale)
			if err != nil {
				return &Error{Document: d.src.Name, Page: i + 1, Err: err}
			}
			if img.Width <= 0 || img.Height <= 0 {
				if img.Width, img.Height, err = imagerender.Dimensions(img.Data); err != nil {
					return &Error{Document: d.src.Name, Page: i + 1, Err: err}
				}
			}
			p := page.New(d.src.Name, i+1, img.Data, img.Width, img.Height, c.now())
			rendered++
			metrics.IncPagesRendered()
			ev := Event{Kind: EventPage, Page: p, Source: di, Rendered: rendered, Total: total}
			if err := send(ctx, out, ev); err != nil {
				return &Error{Document: d.src.Name, Page: i + 1, Err: err}
			}
		}
	}

	log.Info().Int("documents", len(docs)).Int("pages", total).Msg("ingestion complete")
	return nil
}

func send(ctx context.Context, out chan<- Event, ev Event) error {
	select {
	case out <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
