// Package similarity detects duplicate and near-duplicate category/product
// names before they are persisted.
package similarity

import (
	"strings"
	"unicode"

	"posterminal/internal/model"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// DefaultThreshold is the minimum score for a name to be reported as similar.
const DefaultThreshold = 0.75

// ConflictType: "exact" | "similar" | "" (none)
type ConflictType string

const (
	ConflictNone    ConflictType = ""
	ConflictExact   ConflictType = "exact"
	ConflictSimilar ConflictType = "similar"
)

// Conflict is the outcome of FindConflict. Exact conflicts must block the
// write; similar ones are warnings the caller decides on.
type Conflict struct {
	Type       ConflictType
	Match      *model.Category
	Similarity float64
}

// Normalize case-folds, trims and strips all whitespace. Folding has no
// positional rules, so names differing only in case always normalize equal.
func Normalize(s string) string {
	lowered := cases.Fold().String(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, lowered)
}

// Similarity returns 1 for normalized-equal strings, otherwise
// 1 - levenshtein / max(len) over the normalized forms.
func Similarity(a, b string) float64 {
	na, nb := []rune(Normalize(a)), []rune(Normalize(b))
	if string(na) == string(nb) {
		return 1.0
	}
	longest := max(len(na), len(nb))
	return 1 - float64(levenshtein(na, nb))/float64(longest)
}

// levenshtein is the classic two-row DP: cost 1 for insert, delete and substitute.
func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// FindConflict compares candidate against existing with DefaultThreshold.
// excludeID (the record being edited) is skipped; pass uuid.Nil when creating.
func FindConflict(candidate string, existing []model.Category, excludeID uuid.UUID) Conflict {
	return FindConflictWithThreshold(candidate, existing, excludeID, DefaultThreshold)
}

func FindConflictWithThreshold(candidate string, existing []model.Category, excludeID uuid.UUID, threshold float64) Conflict {
	norm := Normalize(candidate)

	pool := make([]*model.Category, 0, len(existing))
	for i := range existing {
		if excludeID != uuid.Nil && existing[i].ID == excludeID {
			continue
		}
		pool = append(pool, &existing[i])
	}

	for _, c := range pool {
		if Normalize(c.Name) == norm {
			return Conflict{Type: ConflictExact, Match: c, Similarity: 1.0}
		}
	}

	var best *model.Category
	bestScore := 0.0
	for _, c := range pool {
		score := Similarity(candidate, c.Name)
		if score >= threshold && score > bestScore {
			best, bestScore = c, score
		}
	}
	if best == nil {
		return Conflict{}
	}
	return Conflict{Type: ConflictSimilar, Match: best, Similarity: bestScore}
}
