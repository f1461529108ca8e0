// Package results merges place lists and removes duplicates before export.
package results

import "github.com/rendis/sectorscan/internal/model"

// Merge concatenates incoming after existing. Duplicates are kept.
func Merge(existing, incoming []model.Place) []model.Place {
	out := make([]model.Place, 0, len(existing)+len(incoming))
	out = append(out, existing...)
	return append(out, incoming...)
}

// ExportDeduplicated keeps the last occurrence of every place_id. The output
// follows the order of those last occurrences. Places without an identity are
// kept as they cannot be matched.
func ExportDeduplicated(places []model.Place) []model.Place {
	return DedupLast(places, model.Place.ID)
}

// DedupLast keeps, for every non-empty key, only the last item carrying it.
// Items with an empty key are always kept in place.
func DedupLast[T any](items []T, key func(T) string) []T {
	last := make(map[string]int, len(items))
	for i, it := range items {
		if k := key(it); k != "" {
			last[k] = i
		}
	}

	out := make([]T, 0, len(last))
	for i, it := range items {
		k := key(it)
		if k == "" || last[k] == i {
			out = append(out, it)
		}
	}
	return out
}

// CountUnique returns how many distinct identities the list holds.
func CountUnique(places []model.Place) int {
	seen := make(map[string]struct{}, len(places))
	anonymous := 0
	for _, p := range places {
		if id := p.ID(); id != "" {
			seen[id] = struct{}{}
		} else {
			anonymous++
		}
	}
	return len(seen) + anonymous
}
