package types

import "strings"

// Record is one loosely typed announcement as emitted by a source adapter.
type Record map[string]any

type Announcement struct {
	Title             string
	Description       string
	Organization      string
	Agency            string
	Hashtags          string
	ApplicationPeriod string
	PostedDate        string
	Link              string
	Status            string
	IDCandidates      []string
}

// Usable reports whether the record carries enough to be shown or deduplicated.
func (a Announcement) Usable() bool {
	return strings.TrimSpace(a.Title) != "" || strings.TrimSpace(a.Link) != ""
}

type Category int

// Declaration order is the classification priority.
const (
	CategoryNone Category = iota
	CategoryExport
	CategoryFinancing
	CategoryRnD
	CategoryRegionA
	CategoryRegionB
)

// Categories lists every real category in priority order.
var Categories = []Category{
	CategoryExport,
	CategoryFinancing,
	CategoryRnD,
	CategoryRegionA,
	CategoryRegionB,
}

func (c Category) Key() string {
	switch c {
	case CategoryExport:
		return "export"
	case CategoryFinancing:
		return "financing"
	case CategoryRnD:
		return "rnd"
	case CategoryRegionA:
		return "region_a"
	case CategoryRegionB:
		return "region_b"
	}
	return "none"
}

// Label is the chat-facing name of the category.
func (c Category) Label() string {
	switch c {
	case CategoryExport:
		return "수출"
	case CategoryFinancing:
		return "자금·융자"
	case CategoryRnD:
		return "R&D·사업화"
	case CategoryRegionA:
		return "전북"
	case CategoryRegionB:
		return "충남"
	}
	return "미분류"
}

func (c Category) String() string { return c.Key() }

// ParseCategory maps a key such as "export" back to its Category.
func ParseCategory(key string) (Category, bool) {
	for _, c := range Categories {
		if c.Key() == key {
			return c, true
		}
	}
	return CategoryNone, false
}

// Candidate is an announcement that survived deduplication and filtering.
type Candidate struct {
	Announcement
	ID       string
	Category Category
	Summary  string
}
