// Package orchestrator exposes upload sessions over HTTP.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sehenaz/docsort/internal/export"
	"github.com/sehenaz/docsort/internal/history"
	"github.com/sehenaz/docsort/internal/ingest"
	"github.com/sehenaz/docsort/internal/metrics"
	"github.com/sehenaz/docsort/internal/page"
	"github.com/sehenaz/docsort/internal/pipeline"
	"github.com/sehenaz/docsort/internal/statuscheck"
)

type Dependencies struct {
	Sessions *pipeline.Registry
	Ledger   *history.Ledger
	Status   *statuscheck.Checker
	// BaseContext bounds background processing; defaults to context.Background.
	BaseContext context.Context
	MaxUploadMB int
}

type Orchestrator struct {
	deps Dependencies
}

func New(deps Dependencies) *Orchestrator {
	if deps.BaseContext == nil {
		deps.BaseContext = context.Background()
	}
	if deps.MaxUploadMB <= 0 {
		deps.MaxUploadMB = 200
	}
	return &Orchestrator{deps: deps}
}

func (o *Orchestrator) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /status", o.handleStatus)
	mux.HandleFunc("POST /sessions", o.handleUpload)
	mux.HandleFunc("GET /sessions/{id}", o.handleSession)
	mux.HandleFunc("DELETE /sessions/{id}", o.handleDeleteSession)
	mux.HandleFunc("GET /sessions/{id}/pages/{pageID}/image", o.handlePageImage)
	mux.HandleFunc("PATCH /sessions/{id}/pages/{pageID}", o.handleEditPage)
	mux.HandleFunc("POST /sessions/{id}/export", o.handleExport)
	mux.HandleFunc("GET /history", o.handleHistory)
	mux.HandleFunc("DELETE /history", o.handleClearHistory)
	mux.Handle("GET /metrics", metrics.Handler())
}

type uploadResp struct {
	Status    string            `json:"status"`
	SessionID string            `json:"session_id"`
	Title     string            `json:"title"`
	Skipped   []string          `json:"skipped,omitempty"`
	Progress  pipeline.Progress `json:"progress"`
	Summary   *dispatchSummary  `json:"summary,omitempty"`
}

type dispatchSummary struct {
	Pages     int `json:"pages"`
	Fallbacks int `json:"fallbacks"`
}

// handleUpload accepts multipart "files". Processing runs in the background
// unless wait=true, in which case the response is sent once pages are labelled.
func (o *Orchestrator) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := int64(o.deps.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		http.Error(w, "missing files", http.StatusBadRequest)
		return
	}
	sources := make([]ingest.Source, 0, len(headers))
	for _, hdr := range headers {
		f, err := hdr.Open()
		if err != nil {
			http.Error(w, "cannot read upload", http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			http.Error(w, "cannot read upload", http.StatusBadRequest)
			return
		}
		sources = append(sources, ingest.Source{Name: hdr.Filename, Data: data})
	}

	sess := o.deps.Sessions.Create()
	log.Info().Str("session_id", sess.ID).Int("files", len(sources)).Msg("session created")
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))

	if !wait {
		go func() {
			if _, err := sess.Process(o.deps.BaseContext, sources); err != nil {
				log.Error().Err(err).Str("session_id", sess.ID).Msg("background processing failed")
			}
		}()
		writeJSON(w, http.StatusAccepted, uploadResp{Status: "processing", SessionID: sess.ID, Progress: sess.Progress()})
		return
	}

	rep, err := sess.Process(r.Context(), sources)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusCreated, uploadResp{
		Status:    "ok",
		SessionID: sess.ID,
		Title:     sess.Title(),
		Skipped:   rep.Skipped,
		Progress:  sess.Progress(),
		Summary:   &dispatchSummary{Pages: rep.Summary.Pages, Fallbacks: rep.Summary.Fallbacks},
	})
}

func (o *Orchestrator) session(w http.ResponseWriter, r *http.Request) (*pipeline.Session, bool) {
	sess, ok := o.deps.Sessions.Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

type sessionResp struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Progress pipeline.Progress `json:"progress"`
	Filter   string            `json:"filter"`
	Counts   map[string]int    `json:"counts"`
	Pages    []page.Page       `json:"pages"`
}

// handleSession lists pages, optionally narrowed with ?category=.
func (o *Orchestrator) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := o.session(w, r)
	if !ok {
		return
	}
	filter, err := parseFilter(r.URL.Query().Get("category"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	all := sess.Store().All()
	counts := map[string]int{}
	for c, n := range page.CountByCategory(all) {
		counts[string(c)] = n
	}
	writeJSON(w, http.StatusOK, sessionResp{
		ID:       sess.ID,
		Title:    sess.Title(),
		Progress: sess.Progress(),
		Filter:   string(filter),
		Counts:   counts,
		Pages:    page.Filter(all, filter),
	})
}

func (o *Orchestrator) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !o.deps.Sessions.Delete(r.PathValue("id")) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (o *Orchestrator) handlePageImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := o.session(w, r)
	if !ok {
		return
	}
	p, ok := sess.Store().Get(r.PathValue("pageID"))
	if !ok {
		http.Error(w, "page not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(p.Image)))
	_, _ = w.Write(p.Image)
}

type editReq struct {
	Category    *string `json:"category"`
	SubCategory *string `json:"subCategory"`
}

func (o *Orchestrator) handleEditPage(w http.ResponseWriter, r *http.Request) {
	sess, ok := o.session(w, r)
	if !ok {
		return
	}
	var req editReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	var edit page.Edit
	if req.Category != nil {
		c, ok := page.ParseCategory(*req.Category)
		if !ok {
			http.Error(w, fmt.Sprintf("invalid category %q", *req.Category), http.StatusBadRequest)
			return
		}
		edit.Category = &c
	}
	edit.SubCategory = req.SubCategory

	p, err := sess.Edit(r.PathValue("pageID"), edit)
	switch {
	case errors.Is(err, page.ErrPageNotFound):
		http.Error(w, "page not found", http.StatusNotFound)
		return
	case errors.Is(err, page.ErrInvalidCategory):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type exportReq struct {
	Mode string   `json:"mode"`
	IDs  []string `json:"ids"`
	// All selects every page visible under Category instead of IDs.
	All      bool   `json:"all"`
	Category string `json:"category"`
}

func (o *Orchestrator) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := o.session(w, r)
	if !ok {
		return
	}
	var req exportReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	mode, err := export.ParseMode(req.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ids := req.IDs
	if req.All {
		filter, err := parseFilter(req.Category)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		visible := page.Filter(sess.Store().All(), filter)
		ids = page.SelectedIDs(page.SelectVisible(nil, visible))
	}

	art, err := sess.Export(r.Context(), ids, mode)
	switch {
	case errors.Is(err, export.ErrEmptySelection):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Name))
	if art.Location != "" {
		w.Header().Set("X-Artifact-Location", art.Location)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	_, _ = w.Write(art.Data)
}

type historyResp struct {
	Entries []history.Entry `json:"entries"`
}

func (o *Orchestrator) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, historyResp{Entries: o.deps.Ledger.ReadAll(r.Context())})
}

func (o *Orchestrator) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	o.deps.Ledger.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// handleStatus answers 503 when a session could not run end to end.
func (o *Orchestrator) handleStatus(w http.ResponseWriter, r *http.Request) {
	if o.deps.Status == nil {
		http.Error(w, "status checks disabled", http.StatusNotFound)
		return
	}
	sum := o.deps.Status.Summary(r.Context())
	code := http.StatusOK
	if !sum.Ready() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, sum)
}

func parseFilter(s string) (page.Category, error) {
	if s == "" || s == string(page.FilterAll) {
		return page.FilterAll, nil
	}
	c, ok := page.ParseCategory(s)
	if !ok {
		return "", fmt.Errorf("invalid category %q", s)
	}
	return c, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Serve runs srv until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
