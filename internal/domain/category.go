package domain

import (
	"slices"

	"github.com/rs/zerolog/log"
)

// Category is the editorial grouping a content item points at. Items embed
// their category rather than the category listing its items.
type Category struct {
	Key         string         `json:"key"`
	Rank        *string        `json:"rank"`
	Title       LocalizedValue `json:"title,omitempty"`
	Description LocalizedValue `json:"description,omitempty"`
}

type CategorizedItem[T any] struct {
	Value    T         `json:"value"`
	Category *Category `json:"category,omitempty"`
}

type CategoryGroup[T any] struct {
	Category
	Items []CategorizedItem[T] `json:"items"`
}

// orderedGroups keeps groups in order of first appearance of their key.
type orderedGroups[T any] struct {
	index  map[string]int
	groups []CategoryGroup[T]
}

func newOrderedGroups[T any](capacity int) *orderedGroups[T] {
	return &orderedGroups[T]{index: make(map[string]int, capacity)}
}

// add appends item to the group of c.Key. The first category record seen
// for a key is the one that is kept.
func (o *orderedGroups[T]) add(c *Category, item CategorizedItem[T]) {
	if i, ok := o.index[c.Key]; ok {
		if !sameCategory(&o.groups[i].Category, c) {
			log.Debug().Str("category", c.Key).Msg("duplicate category record with different fields; keeping first")
		}
		o.groups[i].Items = append(o.groups[i].Items, item)
		return
	}
	o.index[c.Key] = len(o.groups)
	o.groups = append(o.groups, CategoryGroup[T]{
		Category: *c,
		Items:    []CategorizedItem[T]{item},
	})
}

func (o *orderedGroups[T]) list() []CategoryGroup[T] { return o.groups }

// GroupByCategory partitions items by category key and orders the groups by
// rank. Uncategorized items are dropped. Item order inside a group and the
// order of equally ranked groups follow the input.
func GroupByCategory[T any](items []CategorizedItem[T]) []CategoryGroup[T] {
	og := newOrderedGroups[T](len(items))
	for _, it := range items {
		if it.Category == nil {
			continue
		}
		og.add(it.Category, it)
	}
	out := og.list()
	if out == nil {
		return []CategoryGroup[T]{}
	}
	slices.SortStableFunc(out, func(a, b CategoryGroup[T]) int {
		return CompareRank(a.Rank, b.Rank)
	})
	return out
}

func sameCategory(a, b *Category) bool {
	return a.Key == b.Key &&
		CompareRank(a.Rank, b.Rank) == 0 &&
		slices.Equal(a.Title, b.Title) &&
		slices.Equal(a.Description, b.Description)
}
