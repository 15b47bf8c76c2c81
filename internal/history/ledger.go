// Package history keeps a bounded most-recent-first list of processed
// documents. Storage problems never surface to callers: the ledger logs and
// degrades to an empty, write-ignoring list.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sehenaz/docsort/internal/metrics"
	"github.com/sehenaz/docsort/internal/page"
	"github.com/sehenaz/docsort/internal/store"
)

const (
	DefaultKey   = "docusort_history_v1"
	DefaultLimit = 50
)

// Entry is one processed source document. Field names match records written
// by earlier releases so existing ledgers load unchanged.
type Entry struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Size            int64          `json:"size"`
	UploadDate      int64          `json:"uploadDate"`
	PageCount       int            `json:"pageCount"`
	CategorySummary map[string]int `json:"categorySummary"`
}

// Uploaded returns UploadDate as a time.
func (e Entry) Uploaded() time.Time { return time.UnixMilli(e.UploadDate) }

// Summarize turns per-category counts into the stored form, dropping zeros.
func Summarize(counts map[page.Category]int) map[string]int {
	out := make(map[string]int, len(counts))
	for _, c := range page.Categories() {
		if n := counts[c]; n > 0 {
			out[string(c)] = n
		}
	}
	return out
}

type Options struct {
	RedisURL    string
	SQLitePath  string
	Key         string
	Limit       int
	DialTimeout time.Duration
}

// Ledger serializes read-modify-write cycles so concurrent appends in one
// process do not lose entries.
type Ledger struct {
	mu      sync.Mutex
	backend store.KV
	key     string
	limit   int
}

// Open picks a backend: redis when a URL is given, else sqlite when a path is
// given, else process memory. A backend that cannot be reached leaves the
// ledger degraded rather than failing startup.
func Open(ctx context.Context, opts Options) *Ledger {
	var (
		kv  store.KV
		err error
	)
	switch {
	case opts.RedisURL != "":
		timeout := opts.DialTimeout
		if timeout <= 0 {
			timeout = 3 * time.Second
		}
		kv, err = store.NewRedisKV(ctx, opts.RedisURL, timeout)
		if err != nil {
			log.Warn().Err(err).Str("backend", "redis").Msg("history backend unavailable, running degraded")
			metrics.IncLedgerDegraded("open")
			kv = nil
		}
	case opts.SQLitePath != "":
		kv, err = store.NewSQLiteKV(ctx, opts.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Str("backend", "sqlite").Msg("history backend unavailable, running degraded")
			metrics.IncLedgerDegraded("open")
			kv = nil
		}
	default:
		kv = store.NewMemoryKV()
	}
	l := New(kv)
	if opts.Key != "" {
		l.key = opts.Key
	}
	if opts.Limit > 0 {
		l.limit = opts.Limit
	}
	return l
}

// New wraps an existing backend. A nil backend yields a degraded ledger.
func New(kv store.KV) *Ledger {
	return &Ledger{backend: kv, key: DefaultKey, limit: DefaultLimit}
}

// Degraded reports whether the ledger has no backend.
func (l *Ledger) Degraded() bool { return l.backend == nil }

// Append prepends e and truncates the list to the limit.
func (l *Ledger) Append(ctx context.Context, e Entry) {
	if l.backend == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.read(ctx)
	next := make([]Entry, 0, len(entries)+1)
	next = append(next, e)
	next = append(next, entries...)
	if len(next) > l.limit {
		next = next[:l.limit]
	}

	b, err := json.Marshal(next)
	if err != nil {
		l.degrade("append", err)
		return
	}
	if err := l.backend.Set(ctx, l.key, b); err != nil {
		l.degrade("append", err)
	}
}

// ReadAll returns entries most recent first. Never nil.
func (l *Ledger) ReadAll(ctx context.Context) []Entry {
	if l.backend == nil {
		return []Entry{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read(ctx)
}

func (l *Ledger) Clear(ctx context.Context) {
	if l.backend == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.backend.Delete(ctx, l.key); err != nil {
		l.degrade("clear", err)
	}
}

func (l *Ledger) Close() error {
	if l.backend == nil {
		return nil
	}
	return l.backend.Close()
}

func (l *Ledger) read(ctx context.Context) []Entry {
	b, err := l.backend.Get(ctx, l.key)
	if errors.Is(err, store.ErrNotFound) {
		return []Entry{}
	}
	if err != nil {
		l.degrade("read", err)
		return []Entry{}
	}
	var entries []Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		l.degrade("decode", err)
		return []Entry{}
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries
}

func (l *Ledger) degrade(op string, err error) {
	metrics.IncLedgerDegraded(op)
	log.Warn().Err(err).Str("op", op).Str("key", l.key).Msg("history ledger degraded")
}
