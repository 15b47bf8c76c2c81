package page

// FilterAll matches every category in Filter.
const FilterAll Category = "ALL"

// Filter returns the pages visible under the category filter f.
func Filter(pages []Page, f Category) []Page {
	if f == FilterAll || f == "" {
		return pages
	}
	var out []Page
	for _, p := range pages {
		if p.Category == f {
			out = append(out, p)
		}
	}
	return out
}

// SelectVisible adds every visible page to the selection.
func SelectVisible(selected map[string]bool, visible []Page) map[string]bool {
	next := make(map[string]bool, len(selected)+len(visible))
	for id, ok := range selected {
		if ok {
			next[id] = true
		}
	}
	for _, p := range visible {
		next[p.ID] = true
	}
	return next
}

// DeselectVisible removes every visible page from the selection and keeps
// pages hidden by the current filter selected.
func DeselectVisible(selected map[string]bool, visible []Page) map[string]bool {
	next := make(map[string]bool, len(selected))
	for id, ok := range selected {
		if ok {
			next[id] = true
		}
	}
	for _, p := range visible {
		delete(next, p.ID)
	}
	return next
}

// SelectedIDs flattens a selection set.
func SelectedIDs(selected map[string]bool) []string {
	out := make([]string, 0, len(selected))
	for id, ok := range selected {
		if ok {
			out = append(out, id)
		}
	}
	return out
}

// CountByCategory counts pages per category. Categories with no pages are absent.
func CountByCategory(pages []Page) map[Category]int {
	out := make(map[Category]int)
	for _, p := range pages {
		out[p.Category]++
	}
	return out
}
