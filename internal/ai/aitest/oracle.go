// Package aitest provides a scripted classification oracle for tests.
package aitest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sehenaz/docsort/internal/ai"
)

type answer struct {
	text string
	err  error
}

// Oracle answers by page: rules match on "<document>-<pageNumber>-", the
// prefix every page id starts with. Unmatched pages get Default.
type Oracle struct {
	mu      sync.Mutex
	rules   map[string]answer
	Default string
	Calls   []string
}

func NewOracle() *Oracle {
	return &Oracle{rules: map[string]answer{}, Default: `{"category":"Other","subCategory":"Misc"}`}
}

func key(document string, pageNumber int) string { return fmt.Sprintf("%s-%d-", document, pageNumber) }

// Label scripts a successful answer.
func (o *Oracle) Label(document string, pageNumber int, category, sub string) *Oracle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rules[key(document, pageNumber)] = answer{text: fmt.Sprintf(`{"category":%q,"subCategory":%q}`, category, sub)}
	return o
}

// Fail scripts a failed call.
func (o *Oracle) Fail(document string, pageNumber int, err error) *Oracle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rules[key(document, pageNumber)] = answer{err: err}
	return o
}

func (o *Oracle) Name() string { return "scripted" }

func (o *Oracle) Do(ctx context.Context, req ai.Request) (ai.Response, error) {
	if err := ctx.Err(); err != nil {
		return ai.Response{}, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Calls = append(o.Calls, req.PageID)
	best := ""
	for k := range o.rules {
		if strings.HasPrefix(req.PageID, k) && len(k) > len(best) {
			best = k
		}
	}
	if best == "" {
		return ai.Response{Text: o.Default}, nil
	}
	a := o.rules[best]
	return ai.Response{Text: a.text}, a.err
}
