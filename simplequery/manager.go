// Package simplequery runs the database's simple query operations: find all,
// find by example, find first by example, remove by example and update by
// example. Each call builds one request, sends it once through a
// model.Transport and dispatches the response on its status code.
package simplequery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/docquery/dispatch"
	"github.com/pitabwire/docquery/internal/observability"
	"github.com/pitabwire/docquery/model"
)

// Simple query endpoints. All of them are called with PUT.
const (
	PathAll             = "/_api/simple/all"
	PathByExample       = "/_api/simple/by-example"
	PathFirstExample    = "/_api/simple/first-example"
	PathRemoveByExample = "/_api/simple/remove-by-example"
	PathUpdateByExample = "/_api/simple/update-by-example"
)

// Operation names used in logs, metrics and spans.
const (
	OpFindAll            = "find_all"
	OpFindByExample      = "find_by_example"
	OpFindFirstByExample = "find_first_by_example"
	OpRemoveByExample    = "remove_by_example"
	OpUpdateByExample    = "update_by_example"
)

type allBody struct {
	Collection string `json:"collection"`
	Skip       int    `json:"skip"`
	Limit      int    `json:"limit"`
}

type byExampleBody struct {
	Collection string        `json:"collection"`
	Example    model.Example `json:"example"`
	Skip       int           `json:"skip"`
	Limit      int           `json:"limit"`
}

type exampleBody struct {
	Collection string        `json:"collection"`
	Example    model.Example `json:"example"`
}

type updateBody struct {
	Collection  string         `json:"collection"`
	Example     model.Example  `json:"example"`
	NewValue    map[string]any `json:"newValue"`
	KeepNull    bool           `json:"keepNull"`
	WaitForSync bool           `json:"waitForSync"`
}

// Manager runs simple queries. It holds no per-call state and is safe for
// concurrent use.
type Manager struct {
	transport    model.Transport
	mappers      model.MapperRegistry
	logger       *zap.Logger
	metrics      *observability.Metrics
	defaultLimit int
}

// NewManager returns a Manager sending through t. A nil mappers registry
// means every result is returned raw.
func NewManager(t model.Transport, mappers model.MapperRegistry, opts ...ManagerOption) *Manager {
	m := &Manager{
		transport:    t,
		mappers:      mappers,
		logger:       zap.NewNop(),
		defaultLimit: DefaultLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FindAll returns the documents of collection, honoring WithSkip and
// WithLimit. Documents pass through the collection's mapper when one is
// registered.
func (m *Manager) FindAll(ctx context.Context, collection string, opts ...Option) ([]any, error) {
	o, err := m.resolveList(opts)
	if err != nil {
		return nil, err
	}
	body := allBody{Collection: collection, Skip: o.skip, Limit: o.limit}
	return execute(ctx, m, OpFindAll, collection, PathAll, nil, body, listTable(collection, m.mappers))
}

// FindByExample returns the documents of collection that match example.
func (m *Manager) FindByExample(ctx context.Context, collection string, example model.Example, opts ...Option) ([]any, error) {
	o, err := m.resolveList(opts)
	if err != nil {
		return nil, err
	}
	body := byExampleBody{Collection: collection, Example: nonNil(example), Skip: o.skip, Limit: o.limit}
	return execute(ctx, m, OpFindByExample, collection, PathByExample, nil, body, listTable(collection, m.mappers))
}

// FindFirstByExample returns one document matching example, or nil when
// none does.
func (m *Manager) FindFirstByExample(ctx context.Context, collection string, example model.Example) (any, error) {
	body := exampleBody{Collection: collection, Example: nonNil(example)}
	return execute(ctx, m, OpFindFirstByExample, collection, PathFirstExample, nil, body, firstExampleTable(collection, m.mappers))
}

// RemoveByExample removes the documents matching example. WithWaitForSync is
// sent as a query parameter.
func (m *Manager) RemoveByExample(ctx context.Context, collection string, example model.Example, opts ...Option) (bool, error) {
	o := m.apply(opts)
	var query url.Values
	if o.waitForSync {
		query = url.Values{"waitForSync": {"true"}}
	}
	body := exampleBody{Collection: collection, Example: nonNil(example)}
	return execute(ctx, m, OpRemoveByExample, collection, PathRemoveByExample, query, body,
		mutationTable(collection, dispatch.Transform(removed)))
}

// UpdateByExample merges newValues into every document matching example and
// returns how many were updated.
func (m *Manager) UpdateByExample(ctx context.Context, collection string, example, newValues model.Example, opts ...Option) (int, error) {
	o := m.apply(opts)
	body := updateBody{
		Collection:  collection,
		Example:     nonNil(example),
		NewValue:    nonNil(newValues),
		KeepNull:    o.keepNull,
		WaitForSync: o.waitForSync,
	}
	return execute(ctx, m, OpUpdateByExample, collection, PathUpdateByExample, nil, body,
		mutationTable(collection, dispatch.Transform(updatedCount)))
}

// execute performs one round-trip and dispatches the response through table.
func execute[T any](
	ctx context.Context,
	m *Manager,
	op, collection, path string,
	query url.Values,
	body any,
	table *dispatch.Table[T],
) (result T, err error) {
	if strings.TrimSpace(collection) == "" {
		return result, model.NewInvalidRequestError("collection name is required")
	}

	ctx, span := observability.StartOperation(ctx, op, collection)
	logger := observability.CallLogger(ctx, m.logger).With(
		zap.String("operation", op),
		zap.String("collection", collection),
	)
	start := time.Now()

	defer func() {
		outcome := outcomeOf(err)
		var errorNum int
		var qe *model.Error
		if errors.As(err, &qe) {
			errorNum = qe.ErrorNum
		}
		observability.EndOperation(span, outcome, errorNum, err)
		m.metrics.RecordOperation(op, collection, outcome, time.Since(start))

		switch {
		case err == nil:
			logger.Debug("simple query completed", zap.Duration("duration", time.Since(start)))
		case errors.Is(err, model.ErrUnexpectedStatus):
			logger.Warn("simple query got an unhandled status",
				zap.Int("status", model.StatusCodeOf(err)),
				zap.Ints("handled_statuses", table.Codes()),
				zap.Error(err),
			)
		case model.StatusCodeOf(err) != 0:
			logger.Warn("simple query rejected", zap.Int("status", model.StatusCodeOf(err)), zap.Error(err))
		default:
			logger.Debug("simple query failed", zap.Error(err))
		}
	}()

	req, err := model.NewRequest(model.MethodPut, path, body)
	if err != nil {
		return result, err
	}
	req.Query = query

	resp, err := m.transport.SendRequest(ctx, req)
	if err != nil {
		return result, fmt.Errorf("simplequery: %s %q: %w", op, collection, err)
	}
	return table.Dispatch(resp)
}

func outcomeOf(err error) string {
	if err == nil {
		return observability.OutcomeSuccess
	}
	if code := model.CodeOf(err); code != "" {
		return strings.ToLower(code)
	}
	return "error"
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
