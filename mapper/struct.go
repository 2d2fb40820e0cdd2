package mapper

import (
	"encoding/json"
	"fmt"

	"github.com/pitabwire/docquery/model"
)

// Struct maps documents onto values of type T using their JSON field tags.
// Results are T values, not pointers.
type Struct[T any] struct{}

// NewStruct returns a mapper decoding documents into T.
func NewStruct[T any]() Struct[T] {
	return Struct[T]{}
}

// MapDocument decodes doc into a T.
func (Struct[T]) MapDocument(doc model.Document) (any, error) {
	return decode[T](doc)
}

// MapDocuments decodes every document into a T.
func (s Struct[T]) MapDocuments(docs []model.Document) ([]any, error) {
	out := make([]any, 0, len(docs))
	for i, doc := range docs {
		v, err := decode[T](doc)
		if err != nil {
			return nil, fmt.Errorf("mapper: document %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func decode[T any](doc model.Document) (T, error) {
	var v T
	data, err := json.Marshal(doc)
	if err != nil {
		return v, fmt.Errorf("mapper: encode document: %w", err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("mapper: decode into %T: %w", v, err)
	}
	return v, nil
}
