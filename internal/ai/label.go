package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sehenaz/docsort/internal/page"
)

// ClassificationPrompt instructs the oracle to answer with a single JSON object.
var ClassificationPrompt = buildPrompt()

// UserPrompt accompanies the page image.
const UserPrompt = "Classify this document page. Return JSON only."

func buildPrompt() string {
	names := make([]string, 0, len(page.Categories()))
	for _, c := range page.Categories() {
		names = append(names, "'"+string(c)+"'")
	}
	var b strings.Builder
	b.WriteString("You label scanned pages of loan application bundles.\n")
	b.WriteString("1. Pick one 'category' from: " + strings.Join(names, ", ") + ".\n")
	b.WriteString("2. Give the specific document type as 'subCategory':\n")
	b.WriteString("   - KYC: 'Aadhar', 'PAN', 'Voter ID', 'Driving License', 'Passport', 'Ration Card', 'Identity Card'.\n")
	b.WriteString("   - ApplicationForm: 'Application Form', 'Filled Form'.\n")
	b.WriteString("   - IncomeCertificate: 'Salary Slip', 'Bank Statement', 'Income Certificate'.\n")
	b.WriteString("   - Photo: 'Passport Photo', 'Full Body'.\n")
	b.WriteString("   - anything else: a short descriptive name such as 'Legal Agreement' or 'Tax Receipt'.\n")
	b.WriteString(`Respond with {"category": "...", "subCategory": "..."} and nothing else.`)
	return b.String()
}

type labelJSON struct {
	Category    string `json:"category"`
	SubCategory string `json:"subCategory"`
}

// ParseLabel decodes an oracle answer. The bool reports whether the category
// was inside the enum; when it was not the label is Other with the raw
// category text as subcategory.
func ParseLabel(text string) (page.Label, bool, error) {
	body := stripFences(text)
	if body == "" {
		return page.Label{}, false, ErrEmptyResponse
	}

	var raw labelJSON
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return page.Label{}, false, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	rawCat := strings.TrimSpace(raw.Category)
	sub := strings.TrimSpace(raw.SubCategory)
	if rawCat == "" {
		return page.Label{}, false, ErrEmptyResponse
	}

	cat, ok := page.ParseCategory(rawCat)
	if !ok {
		return page.Label{Category: page.Other, SubCategory: rawCat}, false, nil
	}
	if sub == "" {
		sub = string(cat)
	}
	return page.Label{Category: cat, SubCategory: sub}, true, nil
}

// stripFences drops a surrounding ```json block some models add despite JSON mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
