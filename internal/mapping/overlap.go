package mapping

import (
	"sort"

	"github.com/Veraticus/lmnp-ledger/internal/model"
)

// Overlap is a level_1 value claimed by more than one mapping.
type Overlap struct {
	Level1     string
	Categories []string
}

// FindOverlaps reports every level_1 value claimed by two or more mappings,
// sorted by value.
func FindOverlaps(mappings []model.CategoryMapping) []Overlap {
	owners := make(map[string][]string)
	for _, m := range mappings {
		for _, v := range m.Level1Values {
			owners[v] = append(owners[v], m.CategoryName)
		}
	}

	var overlaps []Overlap
	for v, categories := range owners {
		if len(categories) > 1 {
			sort.Strings(categories)
			overlaps = append(overlaps, Overlap{Level1: v, Categories: categories})
		}
	}
	sort.Slice(overlaps, func(i, j int) bool {
		return overlaps[i].Level1 < overlaps[j].Level1
	})
	return overlaps
}

// Conflicts returns the values of candidate already claimed by another
// mapping of the same property and statement.
func Conflicts(candidate model.CategoryMapping, existing []model.CategoryMapping) map[string]string {
	conflicts := make(map[string]string)
	for _, m := range existing {
		if m.ID == candidate.ID || m.Statement != candidate.Statement || m.PropertyID != candidate.PropertyID {
			continue
		}
		for _, v := range candidate.Level1Values {
			if m.Claims(v) {
				conflicts[v] = m.CategoryName
			}
		}
	}
	return conflicts
}

// Unclaimed lists the level_1 values seen in transactions that no mapping
// claims, sorted.
func Unclaimed(mappings []model.CategoryMapping, txns []model.Transaction) []string {
	claimed := make(map[string]bool)
	for _, m := range mappings {
		for _, v := range m.Level1Values {
			claimed[v] = true
		}
	}

	seen := make(map[string]bool)
	var out []string
	for _, t := range txns {
		if t.Level1 == "" || claimed[t.Level1] || seen[t.Level1] {
			continue
		}
		seen[t.Level1] = true
		out = append(out, t.Level1)
	}
	sort.Strings(out)
	return out
}
