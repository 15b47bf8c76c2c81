package page

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category is the closed set of labels a page can carry.
type Category string

const (
	KYC               Category = "KYC"
	ApplicationForm   Category = "ApplicationForm"
	Photo             Category = "Photo"
	IncomeCertificate Category = "IncomeCertificate"
	CreditScore       Category = "CreditScore"
	TaxReturn         Category = "TaxReturn"
	LegalDocument     Category = "LegalDocument"
	Other             Category = "Other"
)

var categories = []Category{KYC, ApplicationForm, Photo, IncomeCertificate, CreditScore, TaxReturn, LegalDocument, Other}

// short codes used by older ledgers and some oracle prompts
var legacyCodes = map[string]Category{
	"af":    ApplicationForm,
	"ic":    IncomeCertificate,
	"cibil": CreditScore,
	"tir":   TaxReturn,
	"ld":    LegalDocument,
}

// Categories returns every category in declaration order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory maps s to a Category. Unknown values return (Other, false).
func ParseCategory(s string) (Category, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return Other, false
	}
	for _, c := range categories {
		if strings.ToLower(string(c)) == v {
			return c, true
		}
	}
	if c, ok := legacyCodes[v]; ok {
		return c, true
	}
	return Other, false
}

func (c Category) Valid() bool {
	for _, k := range categories {
		if k == c {
			return true
		}
	}
	return false
}

func (c Category) String() string { return string(c) }

// Page is one rasterized page of a source document.
type Page struct {
	ID             string   `json:"id"`
	PageNumber     int      `json:"pageNumber"`
	OriginalFileID string   `json:"originalFileId"`
	Image          []byte   `json:"-"`
	Width          int      `json:"width"`
	Height         int      `json:"height"`
	Category       Category `json:"category"`
	SubCategory    string   `json:"subCategory,omitempty"`
	IsClassifying  bool     `json:"isClassifying"`
}

// New builds a freshly rendered page: Other, waiting for classification.
func New(document string, pageNumber int, img []byte, width, height int, at time.Time) Page {
	return Page{
		ID:             NewID(document, pageNumber, at),
		PageNumber:     pageNumber,
		OriginalFileID: document,
		Image:          img,
		Width:          width,
		Height:         height,
		Category:       Other,
		IsClassifying:  true,
	}
}

// NewID derives a page id from the document name, page number and creation instant.
// The uuid suffix keeps ids distinct for same-named documents rendered within one millisecond.
func NewID(document string, pageNumber int, at time.Time) string {
	return fmt.Sprintf("%s-%d-%d-%s", document, pageNumber, at.UnixMilli(), uuid.NewString()[:8])
}

// GroupKey is the label pages are bucketed by on export.
func (p Page) GroupKey() string {
	if p.SubCategory != "" {
		return p.SubCategory
	}
	return string(p.Category)
}

// Label is a classification outcome for a single page.
type Label struct {
	Category    Category `json:"category"`
	SubCategory string   `json:"subCategory"`
}

// Result pairs a label with the page it belongs to.
type Result struct {
	ID string
	Label
}

// Edit is a user change to a page label. Nil fields are left alone.
type Edit struct {
	Category    *Category `json:"category,omitempty"`
	SubCategory *string   `json:"subCategory,omitempty"`
}
