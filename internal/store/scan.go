package store

import (
	"context"
	"sort"
	"strings"
)

// ScanIndexBuilder builds generations answered by a linear scan.
// Suitable for small collections and as a reference for the bleve backend.
type ScanIndexBuilder struct{}

// NewScanIndexBuilder returns the linear scan IndexBuilder.
func NewScanIndexBuilder() *ScanIndexBuilder {
	return &ScanIndexBuilder{}
}

// Name implements IndexBuilder.
func (b *ScanIndexBuilder) Name() string {
	return string(IndexBackendScan)
}

type scanEntry struct {
	id        int64
	firstName string
	lastName  string
	email     string
	ssn       string
}

// Build implements IndexBuilder.
func (b *ScanIndexBuilder) Build(ctx context.Context, users []*User) (IndexGeneration, error) {
	entries := make([]scanEntry, len(users))
	for i, u := range users {
		if i%batchCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		entries[i] = scanEntry{
			id:        u.ID,
			firstName: foldCase(u.FirstName),
			lastName:  foldCase(u.LastName),
			email:     foldCase(u.Email),
			ssn:       u.SSN,
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	return &scanGeneration{entries: entries}, nil
}

type scanGeneration struct {
	entries []scanEntry
}

// Search scores each user by the number of satisfied clauses:
// name containment, exact email, exact ssn.
func (g *scanGeneration) Search(ctx context.Context, text string, limit int) ([]Hit, error) {
	text = strings.TrimSpace(text)
	if text == "" || limit <= 0 {
		return []Hit{}, nil
	}
	folded := foldCase(text)

	var hits []Hit
	for i, e := range g.entries {
		if i%batchCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		score := 0
		if strings.Contains(e.firstName, folded) || strings.Contains(e.lastName, folded) {
			score++
		}
		if e.email != "" && e.email == folded {
			score++
		}
		if e.ssn != "" && e.ssn == text {
			score++
		}
		if score > 0 {
			hits = append(hits, Hit{ID: e.id, Score: float64(score)})
		}
	}

	// entries are id-ordered, so a stable sort keeps ascending id within a score.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	if hits == nil {
		hits = []Hit{}
	}
	return hits, nil
}

func (g *scanGeneration) Count() int {
	return len(g.entries)
}

func (g *scanGeneration) Close() error {
	return nil
}

var _ IndexBuilder = (*ScanIndexBuilder)(nil)
