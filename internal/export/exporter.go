// Package export turns a page selection into one downloadable artifact.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sehenaz/docsort/internal/logger"
	"github.com/sehenaz/docsort/internal/metrics"
	"github.com/sehenaz/docsort/internal/page"
	"github.com/sehenaz/docsort/internal/storage"
)

var (
	ErrExport         = errors.New("export failed")
	ErrEmptySelection = errors.New("no pages selected")
	ErrUnknownMode    = errors.New("unknown export mode")
)

type Mode string

const (
	Merged     Mode = "merged"
	Separated  Mode = "separated"
	ImagesOnly Mode = "images"
)

// ParseMode accepts the mode names case-insensitively, plus "images_only".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "merged", "merge":
		return Merged, nil
	case "separated", "separate":
		return Separated, nil
	case "images", "images_only", "imagesonly":
		return ImagesOnly, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

const (
	ContentTypePDF = "application/pdf"
	ContentTypeZip = "application/zip"
)

// Artifact is a finished export. Files lists archive members in write order,
// or just Name for a single PDF. Location is set when a sink stored it.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
	Files       []string
	Location    string
}

type Exporter struct {
	writer DocumentWriter
	sink   storage.Sink
	log    *zerolog.Logger
}

// New returns an exporter. sink may be nil to skip delivery.
func New(w DocumentWriter, sink storage.Sink) *Exporter {
	return &Exporter{writer: w, sink: sink, log: logger.Component("export")}
}

// Export resolves ids against the snapshot, sorts the selection by source
// document then page number, and builds the artifact for mode. Nothing is
// returned on failure.
func (e *Exporter) Export(ctx context.Context, pages []page.Page, ids []string, mode Mode, title string) (Artifact, error) {
	start := time.Now()
	art, err := e.export(ctx, pages, ids, mode, title)
	result := "success"
	if err != nil {
		result = "failed"
		if errors.Is(err, ErrEmptySelection) {
			result = "empty"
		}
		e.log.Warn().Err(err).Str("mode", string(mode)).Str("title", title).Msg("export failed")
	} else {
		e.log.Info().Str("mode", string(mode)).Str("artifact", art.Name).Int("files", len(art.Files)).
			Dur("took", time.Since(start)).Msg("export complete")
	}
	metrics.ObserveExport(string(mode), result, time.Since(start))
	return art, err
}

func (e *Exporter) export(ctx context.Context, pages []page.Page, ids []string, mode Mode, title string) (Artifact, error) {
	sel := Selection(pages, ids)
	if len(sel) == 0 {
		return Artifact{}, ErrEmptySelection
	}
	base := BaseName(title)

	var (
		art Artifact
		err error
	)
	switch mode {
	case Merged:
		art, err = e.merged(base, sel)
	case Separated:
		art, err = e.separated(ctx, base, sel)
	case ImagesOnly:
		art, err = images(base, sel)
	default:
		return Artifact{}, fmt.Errorf("%w: %w: %q", ErrExport, ErrUnknownMode, mode)
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %w", ErrExport, err)
	}

	if e.sink != nil {
		loc, err := e.sink.Put(ctx, art.Name, art.ContentType, art.Data)
		if err != nil {
			return Artifact{}, fmt.Errorf("%w: deliver %s: %w", ErrExport, art.Name, err)
		}
		art.Location = loc
	}
	return art, nil
}

// Selection keeps the pages named by ids, ordered by OriginalFileID then
// PageNumber. Unknown ids are ignored.
func Selection(pages []page.Page, ids []string) []page.Page {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]page.Page, 0, len(ids))
	for _, p := range pages {
		if _, ok := want[p.ID]; ok {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OriginalFileID != out[j].OriginalFileID {
			return out[i].OriginalFileID < out[j].OriginalFileID
		}
		return out[i].PageNumber < out[j].PageNumber
	})
	return out
}

// Group is one Separated output document.
type Group struct {
	Key   string
	Pages []page.Page
}

// GroupPages buckets pages by sanitized group key in order of first
// appearance.
func GroupPages(sel []page.Page) []Group {
	var groups []Group
	index := map[string]int{}
	for _, p := range sel {
		key := Sanitize(p.GroupKey())
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Pages = append(groups[i].Pages, p)
	}
	return groups
}

func (e *Exporter) pdf(pages []page.Page) ([]byte, error) {
	imgs := make([][]byte, len(pages))
	for i, p := range pages {
		imgs[i] = p.Image
	}
	var buf bytes.Buffer
	if err := e.writer.WritePDF(&buf, imgs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Exporter) merged(base string, sel []page.Page) (Artifact, error) {
	data, err := e.pdf(sel)
	if err != nil {
		return Artifact{}, err
	}
	name := base + "_merged.pdf"
	return Artifact{Name: name, ContentType: ContentTypePDF, Data: data, Files: []string{name}}, nil
}

func (e *Exporter) separated(ctx context.Context, base string, sel []page.Page) (Artifact, error) {
	groups := GroupPages(sel)
	members := make([]zipMember, 0, len(groups))
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return Artifact{}, err
		}
		data, err := e.pdf(g.Pages)
		if err != nil {
			return Artifact{}, fmt.Errorf("group %s: %w", g.Key, err)
		}
		members = append(members, zipMember{name: g.Key + ".pdf", data: data})
	}
	return archive(base+"_separated_pdfs.zip", members)
}

func images(base string, sel []page.Page) (Artifact, error) {
	names := ImageNames(base, sel)
	members := make([]zipMember, len(sel))
	for i, p := range sel {
		members[i] = zipMember{name: names[i], data: p.Image}
	}
	return archive(base+"_images.zip", members)
}

// ImageNames returns the archive member name for each page of sel. A name
// shared by pages of different documents gets the sanitized document name
// inserted for every page that shares it.
func ImageNames(base string, sel []page.Page) []string {
	plain := make([]string, len(sel))
	count := map[string]int{}
	for i, p := range sel {
		plain[i] = fmt.Sprintf("%s_%s_p%d.jpg", base, Slug(p.GroupKey()), p.PageNumber)
		count[plain[i]]++
	}
	out := make([]string, len(sel))
	for i, p := range sel {
		if count[plain[i]] > 1 {
			out[i] = fmt.Sprintf("%s_%s_%s_p%d.jpg", base, Slug(p.GroupKey()), Sanitize(p.OriginalFileID), p.PageNumber)
			continue
		}
		out[i] = plain[i]
	}
	return out
}

func archive(name string, members []zipMember) (Artifact, error) {
	data, err := writeZip(members)
	if err != nil {
		return Artifact{}, fmt.Errorf("zip %s: %w", name, err)
	}
	files := make([]string, len(members))
	for i, m := range members {
		files[i] = m.name
	}
	return Artifact{Name: name, ContentType: ContentTypeZip, Data: data, Files: files}, nil
}
