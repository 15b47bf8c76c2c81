package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sehenaz/docsort/internal/ai"
	"github.com/sehenaz/docsort/internal/logger"
	mpkg "github.com/sehenaz/docsort/internal/metrics"
	"github.com/sehenaz/docsort/internal/page"
)

const (
	DefaultWindowSize = 3
	DefaultTimeout    = 60 * time.Second

	// Fallback subcategories for pages the oracle could not label.
	SubUnknown = "Unknown"
	SubError   = "Error"
)

// Merger receives each window's results. Unknown ids must be ignored.
type Merger interface {
	MergeByID(results ...page.Result) int
}

type Config struct {
	WindowSize   int
	Timeout      time.Duration
	Model        string
	SystemPrompt string
	UserPrompt   string
}

// Scheduler classifies pages in fixed windows: every call in a window settles
// before the window is merged and the next one is dispatched.
type Scheduler struct {
	client   ai.Client
	store    Merger
	cfg      Config
	onWindow func(classified, total int)
	log      *zerolog.Logger
}

func New(client ai.Client, store Merger, cfg Config) *Scheduler {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultWindowSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = ai.ClassificationPrompt
	}
	if cfg.UserPrompt == "" {
		cfg.UserPrompt = ai.UserPrompt
	}
	return &Scheduler{client: client, store: store, cfg: cfg, log: logger.Component("dispatcher")}
}

// OnWindow registers a callback invoked after each window is merged.
func (s *Scheduler) OnWindow(fn func(classified, total int)) { s.onWindow = fn }

// Summary describes a finished run.
type Summary struct {
	Pages     int
	Merged    int // results that matched a page still in the store
	Fallbacks int
}

// Run classifies pages in order and never fails: a page whose call fails is
// labelled Other with a fallback subcategory.
func (s *Scheduler) Run(ctx context.Context, pages []page.Page) Summary {
	sum := Summary{Pages: len(pages)}
	done := 0
	for start := 0; start < len(pages); start += s.cfg.WindowSize {
		end := min(start+s.cfg.WindowSize, len(pages))
		window := pages[start:end]

		results := make([]page.Result, len(window))
		fellBack := make([]bool, len(window))
		var g errgroup.Group
		for i, p := range window {
			g.Go(func() error {
				label, ok := s.classify(ctx, p)
				results[i] = page.Result{ID: p.ID, Label: label}
				fellBack[i] = !ok
				return nil
			})
		}
		_ = g.Wait()

		sum.Merged += s.store.MergeByID(results...)
		for _, fb := range fellBack {
			if fb {
				sum.Fallbacks++
			}
		}
		done += len(window)
		s.log.Debug().Int("classified", done).Int("total", len(pages)).Msg("classification window merged")
		if s.onWindow != nil {
			s.onWindow(done, len(pages))
		}
	}

	s.log.Info().
		Str("provider", s.client.Name()).
		Int("pages", sum.Pages).
		Int("merged", sum.Merged).
		Int("fallbacks", sum.Fallbacks).
		Msg("classification complete")
	return sum
}

// classify makes exactly one oracle call. The bool is false when the label is a fallback.
func (s *Scheduler) classify(ctx context.Context, p page.Page) (page.Label, bool) {
	if err := ctx.Err(); err != nil {
		return s.fallback(p, err), false
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.client.Do(callCtx, ai.Request{
		PageID:       p.ID,
		Model:        s.cfg.Model,
		Image:        p.Image,
		ImageMIME:    "image/jpeg",
		SystemPrompt: s.cfg.SystemPrompt,
		UserPrompt:   s.cfg.UserPrompt,
		Timeout:      s.cfg.Timeout,
	})
	if err == nil {
		var label page.Label
		var inEnum bool
		label, inEnum, err = ai.ParseLabel(resp.Text)
		if err == nil {
			result := "success"
			if !inEnum {
				result = "invalid_category"
				mpkg.IncFallback(result)
				s.log.Warn().Str("page_id", p.ID).Str("raw_category", label.SubCategory).Msg("oracle category outside enum")
			}
			mpkg.ObserveOracle(s.client.Name(), result, time.Since(start))
			return label, true
		}
	}
	mpkg.ObserveOracle(s.client.Name(), ai.Reason(err), time.Since(start))
	return s.fallback(p, err), false
}

func (s *Scheduler) fallback(p page.Page, err error) page.Label {
	reason := ai.Reason(err)
	mpkg.IncFallback(reason)
	sub := SubError
	if errors.Is(err, ai.ErrEmptyResponse) {
		sub = SubUnknown
	}
	s.log.Warn().
		Err(err).
		Str("page_id", p.ID).
		Str("document", p.OriginalFileID).
		Int("page", p.PageNumber).
		Str("reason", reason).
		Msg("classification fell back")
	return page.Label{Category: page.Other, SubCategory: sub}
}
