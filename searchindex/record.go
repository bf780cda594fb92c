package searchindex

import "strings"

// Category is the coarse tag that separates heading records from body-text records.
type Category string

const (
	CategorySection Category = "section"
	CategoryPage    Category = "page"
)

var knownCategories = map[Category]struct{}{
	CategorySection: {},
	CategoryPage:    {},
}

func (c Category) IsKnown() bool {
	_, ok := knownCategories[c]
	return ok
}

// Record is one entry of a search index payload.
type Record struct {
	Location string   `json:"location" validate:"valid_location"`
	Page     string   `json:"page"`
	Title    string   `json:"title"`
	Text     string   `json:"text"`
	Category Category `json:"category" validate:"valid_category"`
}

// Path returns the page part of the location, i.e. everything before '#'.
func (r Record) Path() string {
	path, _, _ := strings.Cut(r.Location, "#")
	return path
}

// Anchor returns the part of the location after '#', or "" if there is none.
func (r Record) Anchor() string {
	_, anchor, _ := strings.Cut(r.Location, "#")
	return anchor
}

// Index is the top-level payload: a single "docs" key holding all records in order.
type Index struct {
	Docs []Record `json:"docs"`
}

// Equal reports whether both payloads hold the same records in the same order.
func Equal(a, b *Index) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.Docs) != len(b.Docs) {
		return false
	}
	for i := range a.Docs {
		if a.Docs[i] != b.Docs[i] {
			return false
		}
	}
	return true
}

// CountByCategory returns how many records carry each category.
func (idx *Index) CountByCategory() map[Category]int {
	counts := make(map[Category]int)
	for _, rec := range idx.Docs {
		counts[rec.Category]++
	}
	return counts
}
