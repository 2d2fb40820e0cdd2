package mapper

import (
	"fmt"

	"github.com/pitabwire/docquery/model"
)

// Func adapts a single-document function to model.DocumentMapper.
// MapDocuments applies it to each document in order and stops at the first error.
type Func func(doc model.Document) (any, error)

// MapDocument calls f(doc).
func (f Func) MapDocument(doc model.Document) (any, error) {
	return f(doc)
}

// MapDocuments calls f on every document.
func (f Func) MapDocuments(docs []model.Document) ([]any, error) {
	out := make([]any, 0, len(docs))
	for i, doc := range docs {
		v, err := f(doc)
		if err != nil {
			return nil, fmt.Errorf("mapper: document %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
