package validation

import (
	"fmt"
	"sort"

	"github.com/yourusername/poll-blend/internal/models"
)

// FoldStrategy selects how elections are grouped into held-out folds.
type FoldStrategy string

const (
	// FoldByElection holds out one election per fold.
	FoldByElection FoldStrategy = "by-election"
	// FoldKFold assigns elections round-robin, in sorted order, to k folds.
	FoldKFold FoldStrategy = "k-fold"
)

// Fold is one train/test split. An election is always entirely on one side.
type Fold struct {
	Index     int
	Elections []string
	Train     []models.Observation
	Test      []models.Observation
}

// ElectionIDs returns the distinct election ids in sorted order. Ids are
// expected to sort chronologically, e.g. "2008" before "2012".
func ElectionIDs(obs []models.Observation) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, o := range obs {
		if _, ok := seen[o.ElectionID]; ok {
			continue
		}
		seen[o.ElectionID] = struct{}{}
		ids = append(ids, o.ElectionID)
	}
	sort.Strings(ids)
	return ids
}

// BuildFolds splits obs by election. k is ignored for FoldByElection.
func BuildFolds(obs []models.Observation, strategy FoldStrategy, k int) ([]Fold, error) {
	ids := ElectionIDs(obs)
	if len(ids) < 2 {
		return nil, &models.InsufficientDataError{Count: len(ids), Required: 2, Reason: "elections, cross-validation needs one to hold out"}
	}

	assignment := make(map[string]int, len(ids))
	var groups [][]string
	switch strategy {
	case FoldByElection, "":
		groups = make([][]string, len(ids))
		for i, id := range ids {
			groups[i] = []string{id}
			assignment[id] = i
		}
	case FoldKFold:
		if k < 2 {
			return nil, fmt.Errorf("%w: k-fold needs at least 2 folds, got %d", models.ErrInvalidInput, k)
		}
		if k > len(ids) {
			return nil, &models.InsufficientDataError{Count: len(ids), Required: k, Reason: "elections for the requested number of folds"}
		}
		groups = make([][]string, k)
		for i, id := range ids {
			groups[i%k] = append(groups[i%k], id)
			assignment[id] = i % k
		}
	default:
		return nil, fmt.Errorf("%w: unknown fold strategy %q", models.ErrInvalidInput, strategy)
	}

	folds := make([]Fold, len(groups))
	for i, g := range groups {
		folds[i] = Fold{Index: i, Elections: g}
	}
	for _, o := range obs {
		held := assignment[o.ElectionID]
		for i := range folds {
			if i == held {
				folds[i].Test = append(folds[i].Test, o)
			} else {
				folds[i].Train = append(folds[i].Train, o)
			}
		}
	}
	return folds, nil
}
