// Package segment groups revisit segments of one logical slide or page and
// spreads edited totals back across them.
package segment

import (
	"math"

	"github.com/zulandar/sessionlens/internal/timing"
)

// Default per-entry ceilings, in seconds.
const (
	DefaultSlideCeiling = 180
	DefaultPageCeiling  = 7200
)

// Ceilings holds per-entry duration limits for redistribution.
type Ceilings struct {
	Slide int
	Page  int
}

// DefaultCeilings returns the standard slide and page ceilings.
func DefaultCeilings() Ceilings {
	return Ceilings{Slide: DefaultSlideCeiling, Page: DefaultPageCeiling}
}

// For returns the ceiling for a page or slide group.
func (c Ceilings) For(page bool) int {
	if page {
		if c.Page > 0 {
			return c.Page
		}
		return DefaultPageCeiling
	}
	if c.Slide > 0 {
		return c.Slide
	}
	return DefaultSlideCeiling
}

// Group is the aggregate of every entry sharing one resolved key.
type Group struct {
	Key          string         `json:"key"`
	Title        string         `json:"title"`
	Page         bool           `json:"page"`
	TotalSeconds int            `json:"totalSeconds"`
	EntryIDs     []string       `json:"entryIds"`
	Entries      []timing.Entry `json:"-"`
}

// Segments returns the number of contributing entries.
func (g Group) Segments() int {
	return len(g.EntryIDs)
}

// Aggregate groups entries by key in order of first appearance.
func Aggregate(entries []timing.Entry) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, e := range entries {
		i, ok := index[e.Key]
		if !ok {
			i = len(groups)
			index[e.Key] = i
			groups = append(groups, Group{Key: e.Key, Title: e.Title, Page: e.Page})
		}
		g := &groups[i]
		if g.Title == "" {
			g.Title = e.Title
		}
		g.TotalSeconds += e.DurationSeconds
		g.EntryIDs = append(g.EntryIDs, e.ID)
		g.Entries = append(g.Entries, e)
	}
	return groups
}

// Find returns the group with key.
func Find(groups []Group, key string) (Group, bool) {
	for _, g := range groups {
		if g.Key == key {
			return g, true
		}
	}
	return Group{}, false
}

// Assignment is one entry's redistributed duration.
type Assignment struct {
	Entry           timing.Entry
	DurationSeconds int
}

// Plan spreads target across the group's entries under the group's ceiling.
func Plan(g Group, target int, c Ceilings) []Assignment {
	current := make([]int, len(g.Entries))
	for i, e := range g.Entries {
		current[i] = e.DurationSeconds
	}
	next := Redistribute(current, target, c.For(g.Page))
	out := make([]Assignment, len(g.Entries))
	for i, e := range g.Entries {
		out[i] = Assignment{Entry: e, DurationSeconds: next[i]}
	}
	return out
}

// Redistribute scales current proportionally so the result sums to
// min(max(target, 0), ceiling*len(current)). Each value stays within
// [0, ceiling]. A zero current total splits uniformly.
func Redistribute(current []int, target, ceiling int) []int {
	k := len(current)
	if k == 0 {
		return nil
	}
	if ceiling < 0 {
		ceiling = 0
	}
	goal := target
	if goal < 0 {
		goal = 0
	}
	if limit := ceiling * k; goal > limit {
		goal = limit
	}

	sum := 0
	for _, v := range current {
		if v > 0 {
			sum += v
		}
	}

	ideal := make([]float64, k)
	for i, v := range current {
		if sum == 0 {
			ideal[i] = float64(goal) / float64(k)
			continue
		}
		if v < 0 {
			v = 0
		}
		ideal[i] = float64(v) * float64(goal) / float64(sum)
	}

	out := make([]int, k)
	total := 0
	for i, f := range ideal {
		v := int(math.Round(f))
		if v > ceiling {
			v = ceiling
		}
		if v < 0 {
			v = 0
		}
		out[i] = v
		total += v
	}

	// Nudge toward goal one second at a time, preferring the entry whose
	// rounded value is furthest from its ideal share.
	for total < goal {
		best := -1
		for i := range out {
			if out[i] >= ceiling {
				continue
			}
			if best < 0 || ideal[i]-float64(out[i]) > ideal[best]-float64(out[best]) {
				best = i
			}
		}
		out[best]++
		total++
	}
	for total > goal {
		best := -1
		for i := range out {
			if out[i] <= 0 {
				continue
			}
			if best < 0 || float64(out[i])-ideal[i] > float64(out[best])-ideal[best] {
				best = i
			}
		}
		out[best]--
		total--
	}
	return out
}
