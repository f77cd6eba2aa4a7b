// Package slide resolves raw telemetry identifiers to canonical slide keys.
package slide

import (
	"strings"
	"unicode"

	"github.com/zulandar/sessionlens/internal/models"
)

// PagePrefix marks generic navigation dwell entries that are not tied to the
// slide catalog.
const PagePrefix = "page:"

// IsPageID reports whether a raw id names a page entry.
func IsPageID(raw string) bool {
	return strings.HasPrefix(raw, PagePrefix)
}

// Catalog is an immutable lookup over a set of slides.
type Catalog struct {
	byID    map[string]models.Slide
	byTitle map[string]string // normalized title -> id
	ordered []models.Slide
}

// NewCatalog builds a lookup over slides. Slides are matched in the order
// given when a fuzzy title search needs a tie-break.
func NewCatalog(slides []models.Slide) *Catalog {
	c := &Catalog{
		byID:    make(map[string]models.Slide, len(slides)),
		byTitle: make(map[string]string, len(slides)),
	}
	for _, s := range slides {
		if _, dup := c.byID[s.ID]; dup {
			continue
		}
		c.byID[s.ID] = s
		c.ordered = append(c.ordered, s)
		if n := Normalize(s.Title); n != "" {
			if _, taken := c.byTitle[n]; !taken {
				c.byTitle[n] = s.ID
			}
		}
	}
	return c
}

// Len returns the number of slides in the catalog. A nil catalog is empty.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.ordered)
}

// Contains reports whether key names a slide in the catalog.
func (c *Catalog) Contains(key string) bool {
	if c == nil {
		return false
	}
	_, ok := c.byID[key]
	return ok
}

// Title returns the catalog title for key.
func (c *Catalog) Title(key string) string {
	if c == nil {
		return ""
	}
	return c.byID[key].Title
}

// Resolve maps a raw id and title to a slide id: exact id first, then the
// normalized title, then a unique containment match on the normalized title.
func (c *Catalog) Resolve(rawID, title string) (string, bool) {
	if c == nil {
		return "", false
	}
	if _, ok := c.byID[rawID]; ok {
		return rawID, true
	}
	n := Normalize(title)
	if n == "" {
		return "", false
	}
	if id, ok := c.byTitle[n]; ok {
		return id, true
	}

	match := ""
	for _, s := range c.ordered {
		st := Normalize(s.Title)
		if st == "" {
			continue
		}
		if strings.Contains(st, n) || strings.Contains(n, st) {
			if match != "" && match != s.ID {
				return "", false
			}
			match = s.ID
		}
	}
	return match, match != ""
}

// Normalize lowercases s and collapses every run of non-alphanumeric runes
// into a single space.
func Normalize(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}
