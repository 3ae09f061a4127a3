package store

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

const (
	// LowerKeywordAnalyzerName indexes a whole field value as one case-folded term.
	LowerKeywordAnalyzerName = "lower_keyword"

	fieldFirstName = "firstName"
	fieldLastName  = "lastName"
	fieldEmail     = "email"
	fieldSSN       = "ssn"

	batchCheckEvery = 500
)

// BleveIndexBuilder builds in-memory bleve indexes over users.
type BleveIndexBuilder struct{}

// NewBleveIndexBuilder returns the default IndexBuilder.
func NewBleveIndexBuilder() *BleveIndexBuilder {
	return &BleveIndexBuilder{}
}

// Name implements IndexBuilder.
func (b *BleveIndexBuilder) Name() string {
	return string(IndexBackendBleve)
}

// Build implements IndexBuilder.
func (b *BleveIndexBuilder) Build(ctx context.Context, users []*User) (IndexGeneration, error) {
	indexMapping, err := createUserMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	idx, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	batch := idx.NewBatch()
	for i, u := range users {
		if i%batchCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				_ = idx.Close()
				return nil, err
			}
		}
		doc := map[string]interface{}{
			fieldFirstName: u.FirstName,
			fieldLastName:  u.LastName,
			fieldEmail:     u.Email,
			fieldSSN:       u.SSN,
		}
		if err := batch.Index(docID(u.ID), doc); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("failed to index user %d: %w", u.ID, err)
		}
	}

	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("failed to execute batch: %w", err)
	}

	return &bleveGeneration{index: idx, count: len(users)}, nil
}

// createUserMapping maps name and email fields through the case-folding keyword
// analyzer and ssn through the plain keyword analyzer. Nothing is stored;
// hits are resolved against the Store.
func createUserMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(LowerKeywordAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{CaseFoldFilterName},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	lowerKeyword := bleve.NewTextFieldMapping()
	lowerKeyword.Analyzer = LowerKeywordAnalyzerName
	lowerKeyword.Store = false
	lowerKeyword.IncludeInAll = false
	lowerKeyword.IncludeTermVectors = false

	exact := bleve.NewKeywordFieldMapping()
	exact.Store = false
	exact.IncludeInAll = false
	exact.IncludeTermVectors = false

	userMapping := bleve.NewDocumentStaticMapping()
	userMapping.AddFieldMappingsAt(fieldFirstName, lowerKeyword)
	userMapping.AddFieldMappingsAt(fieldLastName, lowerKeyword)
	userMapping.AddFieldMappingsAt(fieldEmail, lowerKeyword)
	userMapping.AddFieldMappingsAt(fieldSSN, exact)

	indexMapping.DefaultMapping = userMapping
	indexMapping.DefaultAnalyzer = LowerKeywordAnalyzerName

	return indexMapping, nil
}

// docID zero-pads ids so sorting on _id orders numerically.
func docID(id int64) string {
	return fmt.Sprintf("%019d", id)
}

type bleveGeneration struct {
	index bleve.Index
	count int
}

// Search runs the disjunction
//
//	*text* on firstName OR *text* on lastName OR email == text OR ssn == text
//
// sorted by score then ascending id.
func (g *bleveGeneration) Search(ctx context.Context, text string, limit int) ([]Hit, error) {
	text = strings.TrimSpace(text)
	if text == "" || limit <= 0 || g.count == 0 {
		return []Hit{}, nil
	}
	folded := foldCase(text)

	email := bleve.NewTermQuery(folded)
	email.SetField(fieldEmail)
	ssn := bleve.NewTermQuery(text)
	ssn.SetField(fieldSSN)

	q := bleve.NewDisjunctionQuery(
		containsQuery(fieldFirstName, folded),
		containsQuery(fieldLastName, folded),
		email,
		ssn,
	)

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.SortBy([]string{"-_score", "_id"})

	res, err := g.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad document id %q: %w", h.ID, err)
		}
		hits = append(hits, Hit{ID: id, Score: h.Score})
	}
	return hits, nil
}

// containsQuery matches field values containing text. Wildcard syntax in
// the text itself is matched literally through an escaped regexp.
func containsQuery(field, text string) query.Query {
	if strings.ContainsAny(text, "*?") {
		q := bleve.NewRegexpQuery(".*" + regexp.QuoteMeta(text) + ".*")
		q.SetField(field)
		return q
	}
	q := bleve.NewWildcardQuery("*" + text + "*")
	q.SetField(field)
	return q
}

func (g *bleveGeneration) Count() int {
	return g.count
}

func (g *bleveGeneration) Close() error {
	return g.index.Close()
}

var _ IndexBuilder = (*BleveIndexBuilder)(nil)
