// Package pipeline ties one upload together: ingestion into a page store,
// windowed classification, history recording and export.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sehenaz/docsort/internal/ai"
	"github.com/sehenaz/docsort/internal/dispatcher"
	"github.com/sehenaz/docsort/internal/export"
	"github.com/sehenaz/docsort/internal/history"
	"github.com/sehenaz/docsort/internal/ingest"
	"github.com/sehenaz/docsort/internal/logger"
	"github.com/sehenaz/docsort/internal/page"
)

type Stage string

const (
	StageIdle        Stage = "idle"
	StageIngesting   Stage = "ingesting"
	StageClassifying Stage = "classifying"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

type Progress struct {
	Stage      Stage `json:"stage"`
	Rendered   int   `json:"rendered"`
	Total      int   `json:"total"`
	Classified int   `json:"classified"`
}

// Deps are the collaborators a session drives. Ledger and Exporter are
// shared between sessions.
type Deps struct {
	Coordinator *ingest.Coordinator
	Client      ai.Client
	Ledger      *history.Ledger
	Exporter    *export.Exporter
	Scheduler   dispatcher.Config
	Now         func() time.Time
}

type Session struct {
	ID        string
	CreatedAt time.Time

	deps  Deps
	store *page.Store
	log   zerolog.Logger

	mu       sync.Mutex
	progress Progress
	title    string
}

func NewSession(deps Deps) *Session {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	id := uuid.NewString()
	return &Session{
		ID:        id,
		CreatedAt: deps.Now(),
		deps:      deps,
		store:     page.NewStore(),
		log:       logger.Component("pipeline").With().Str("session_id", id).Logger(),
		progress:  Progress{Stage: StageIdle},
	}
}

// Store exposes the session's pages for read views and edits.
func (s *Session) Store() *page.Store { return s.store }

func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

func (s *Session) setProgress(fn func(p *Progress)) {
	s.mu.Lock()
	fn(&s.progress)
	s.mu.Unlock()
}

// Batch is the outcome of one ingestion: the sources and their pages in
// arrival order.
type Batch struct {
	Sources []ingest.Source
	Pages   []page.Page
	source  []int
}

// PagesOf returns the pages rendered from Sources[i].
func (b Batch) PagesOf(i int) []page.Page {
	var out []page.Page
	for j, p := range b.Pages {
		if b.source[j] == i {
			out = append(out, p)
		}
	}
	return out
}

func (b Batch) ids() []string {
	out := make([]string, len(b.Pages))
	for i, p := range b.Pages {
		out[i] = p.ID
	}
	return out
}

// Ingest renders sources into the store, appending each page as it arrives.
// A failed batch leaves none of its pages behind.
func (s *Session) Ingest(ctx context.Context, sources []ingest.Source) (Batch, error) {
	names := make([]string, len(sources))
	for i, src := range sources {
		names[i] = src.Name
	}
	s.mu.Lock()
	prevTitle := s.title
	s.title = export.SessionTitle(names)
	s.progress = Progress{Stage: StageIngesting}
	s.mu.Unlock()

	batch := Batch{Sources: sources}
	stream := s.deps.Coordinator.Start(ctx, sources)
	for ev := range stream.Events() {
		switch ev.Kind {
		case ingest.EventTotal:
			s.setProgress(func(p *Progress) { p.Total = ev.Total })
		case ingest.EventPage:
			s.store.Append(ev.Page)
			batch.Pages = append(batch.Pages, ev.Page)
			batch.source = append(batch.source, ev.Source)
			s.setProgress(func(p *Progress) { p.Rendered, p.Total = ev.Rendered, ev.Total })
		}
	}
	if err := stream.Wait(); err != nil {
		removed := s.store.Remove(batch.ids()...)
		s.mu.Lock()
		s.title = prevTitle
		s.progress.Stage = StageFailed
		s.mu.Unlock()
		s.log.Error().Err(err).Int("removed_pages", removed).Msg("ingestion failed")
		return Batch{}, err
	}
	s.log.Info().Int("documents", len(sources)).Int("pages", len(batch.Pages)).Msg("batch ingested")
	return batch, nil
}

// Classify labels the batch and then records one history entry per source.
func (s *Session) Classify(ctx context.Context, batch Batch) dispatcher.Summary {
	s.setProgress(func(p *Progress) {
		p.Stage = StageClassifying
		p.Classified = 0
	})

	sched := dispatcher.New(s.deps.Client, s.store, s.deps.Scheduler)
	sched.OnWindow(func(done, _ int) {
		s.setProgress(func(p *Progress) { p.Classified = done })
	})
	sum := sched.Run(ctx, batch.Pages)

	s.record(ctx, batch)
	s.setProgress(func(p *Progress) { p.Stage = StageDone })
	return sum
}

// record appends history for every source, all stamped with one instant.
// Pages removed from the store since ingestion count with their initial label.
func (s *Session) record(ctx context.Context, batch Batch) {
	if s.deps.Ledger == nil {
		return
	}
	at := s.deps.Now().UnixMilli()
	for i, src := range batch.Sources {
		pages := batch.PagesOf(i)
		final := make([]page.Page, len(pages))
		for j, p := range pages {
			if cur, ok := s.store.Get(p.ID); ok {
				p = cur
			}
			final[j] = p
		}
		s.deps.Ledger.Append(ctx, history.Entry{
			ID:              uuid.NewString(),
			Name:            src.Name,
			Size:            src.Size(),
			UploadDate:      at,
			PageCount:       len(pages),
			CategorySummary: history.Summarize(page.CountByCategory(final)),
		})
	}
}

// Report summarizes Process.
type Report struct {
	Skipped []string
	Pages   int
	Summary dispatcher.Summary
}

// Process drops non-PDF inputs, then ingests and classifies the rest.
func (s *Session) Process(ctx context.Context, sources []ingest.Source) (Report, error) {
	accepted, skipped := ingest.FilterPDF(sources)
	rep := Report{Skipped: skipped}
	if len(accepted) == 0 {
		s.setProgress(func(p *Progress) { p.Stage = StageDone })
		return rep, nil
	}

	batch, err := s.Ingest(ctx, accepted)
	if err != nil {
		return rep, err
	}
	rep.Pages = len(batch.Pages)
	rep.Summary = s.Classify(ctx, batch)
	return rep, nil
}

// Edit applies a manual re-label.
func (s *Session) Edit(id string, e page.Edit) (page.Page, error) {
	p, err := s.store.UpdateByID(id, e)
	if err != nil {
		return page.Page{}, err
	}
	s.log.Info().Str("page", id).Str("category", string(p.Category)).Str("sub_category", p.SubCategory).Msg("page edited")
	return p, nil
}

// Export builds an artifact from the selected page ids.
func (s *Session) Export(ctx context.Context, ids []string, mode export.Mode) (export.Artifact, error) {
	return s.deps.Exporter.Export(ctx, s.store.All(), ids, mode, s.Title())
}

// Reset drops every page. Results of in-flight windows are discarded on merge.
func (s *Session) Reset() {
	s.store.Clear()
	s.mu.Lock()
	s.progress = Progress{Stage: StageIdle}
	s.title = ""
	s.mu.Unlock()
	s.log.Info().Msg("session reset")
}
