package simplequery

import (
	"fmt"
	"math"
	"net/http"

	"github.com/pitabwire/docquery/dispatch"
	"github.com/pitabwire/docquery/model"
)

// listTable serves FindAll and FindByExample.
func listTable(collection string, mappers model.MapperRegistry) *dispatch.Table[[]any] {
	return dispatch.NewTable[[]any]().
		ForCollection(collection).
		On(http.StatusCreated, dispatch.Transform(func(resp *model.Response) ([]any, error) {
			return mapList(collection, mappers, resp)
		})).
		On(http.StatusBadRequest, dispatch.RaiseInvalidRequest[[]any]()).
		On(http.StatusNotFound, dispatch.RaiseUnknownCollection[[]any]()).
		Otherwise(dispatch.RaiseUnexpected[[]any]())
}

// firstExampleTable serves FindFirstByExample. A 404 means nothing matched.
func firstExampleTable(collection string, mappers model.MapperRegistry) *dispatch.Table[any] {
	return dispatch.NewTable[any]().
		ForCollection(collection).
		On(http.StatusOK, dispatch.Transform(func(resp *model.Response) (any, error) {
			return mapSingle(collection, mappers, resp)
		})).
		On(http.StatusBadRequest, dispatch.RaiseInvalidRequest[any]()).
		On(http.StatusNotFound, dispatch.Value[any](nil)).
		Otherwise(dispatch.RaiseUnexpected[any]())
}

// mutationTable serves RemoveByExample and UpdateByExample, which differ only
// in what a 200 yields.
func mutationTable[T any](collection string, success dispatch.Outcome[T]) *dispatch.Table[T] {
	return dispatch.NewTable[T]().
		ForCollection(collection).
		On(http.StatusOK, success).
		On(http.StatusBadRequest, dispatch.RaiseInvalidRequest[T]()).
		On(http.StatusNotFound, dispatch.RaiseUnknownCollection[T]()).
		Otherwise(dispatch.RaiseUnexpected[T]())
}

func removed(*model.Response) (bool, error) {
	return true, nil
}

func updatedCount(resp *model.Response) (int, error) {
	body, err := resp.BodyAsMap()
	if err != nil {
		return 0, err
	}
	n, ok := body["updated"].(float64)
	if !ok {
		return 0, model.NewMalformedResponseError(`response has no numeric "updated" field`)
	}
	if n != math.Trunc(n) || n < 0 || n >= math.MaxInt {
		return 0, model.NewMalformedResponseError(fmt.Sprintf(`"updated" is not a document count: %v`, n))
	}
	return int(n), nil
}

func mapList(collection string, mappers model.MapperRegistry, resp *model.Response) ([]any, error) {
	body, err := resp.BodyAsMap()
	if err != nil {
		return nil, err
	}
	raw, ok := body["result"].([]any)
	if !ok {
		return nil, model.NewMalformedResponseError(`response has no "result" list`)
	}

	mapper := lookup(collection, mappers)
	if mapper == nil {
		return raw, nil
	}

	docs := make([]model.Document, len(raw))
	for i, item := range raw {
		doc, ok := item.(map[string]any)
		if !ok {
			return nil, model.NewMalformedResponseError(fmt.Sprintf("result item %d is not a document", i))
		}
		docs[i] = doc
	}
	return mapper.MapDocuments(docs)
}

func mapSingle(collection string, mappers model.MapperRegistry, resp *model.Response) (any, error) {
	body, err := resp.BodyAsMap()
	if err != nil {
		return nil, err
	}
	raw, ok := body["document"]
	if !ok {
		return nil, model.NewMalformedResponseError(`response has no "document" field`)
	}

	mapper := lookup(collection, mappers)
	if mapper == nil {
		return raw, nil
	}

	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, model.NewMalformedResponseError("document is not an object")
	}
	return mapper.MapDocument(doc)
}

func lookup(collection string, mappers model.MapperRegistry) model.DocumentMapper {
	if mappers == nil || !mappers.HasMapper(collection) {
		return nil
	}
	return mappers.GetMapper(collection)
}
