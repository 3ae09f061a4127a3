package store

import (
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/registry"
	"golang.org/x/text/cases"
)

// CaseFoldFilterName registers caseFoldFilter with bleve.
const CaseFoldFilterName = "userindex_case_fold"

// foldCase applies Unicode full case folding. Both index backends compare
// folded field values against folded query text, so a final sigma matches
// its capital and medial forms.
func foldCase(s string) string {
	// A Caser keeps state between calls and must not be shared.
	return cases.Fold().String(s)
}

// caseFoldFilter is the bleve token filter counterpart of foldCase.
type caseFoldFilter struct{}

func (caseFoldFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	fold := cases.Fold()
	for _, token := range input {
		token.Term = fold.Bytes(token.Term)
	}
	return input
}

func init() {
	err := registry.RegisterTokenFilter(CaseFoldFilterName,
		func(map[string]interface{}, *registry.Cache) (analysis.TokenFilter, error) {
			return caseFoldFilter{}, nil
		})
	if err != nil {
		panic(err)
	}
}
