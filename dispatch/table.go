// Package dispatch maps response status codes to outcomes through a
// declarative table. Each outcome is either a transform producing a result or
// a directive to raise one of the typed errors in package model.
package dispatch

import (
	"fmt"

	"github.com/pitabwire/docquery/model"
)

// Kind identifies what an Outcome does with a response.
type Kind int

const (
	// KindTransform turns the response into a result value.
	KindTransform Kind = iota
	// KindRaiseInvalidRequest raises model.ErrInvalidRequest.
	KindRaiseInvalidRequest
	// KindRaiseUnknownCollection raises model.ErrUnknownCollection.
	KindRaiseUnknownCollection
	// KindRaiseUnexpected raises model.ErrUnexpectedStatus carrying the status code.
	KindRaiseUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindTransform:
		return "transform"
	case KindRaiseInvalidRequest:
		return "raise-invalid-request"
	case KindRaiseUnknownCollection:
		return "raise-unknown-collection"
	case KindRaiseUnexpected:
		return "raise-unexpected"
	default:
		return "unknown"
	}
}

// Outcome is a first-class handler stored in a Table. Build one with
// Transform, Value or one of the Raise constructors.
type Outcome[T any] struct {
	kind      Kind
	transform func(*model.Response) (T, error)
}

// Kind returns the outcome's tag.
func (o Outcome[T]) Kind() Kind {
	return o.kind
}

// Transform returns an outcome that hands the response to fn.
func Transform[T any](fn func(*model.Response) (T, error)) Outcome[T] {
	return Outcome[T]{kind: KindTransform, transform: fn}
}

// Value returns an outcome that yields v regardless of the response body.
func Value[T any](v T) Outcome[T] {
	return Transform(func(*model.Response) (T, error) { return v, nil })
}

// RaiseInvalidRequest returns an outcome raising model.ErrInvalidRequest.
func RaiseInvalidRequest[T any]() Outcome[T] {
	return Outcome[T]{kind: KindRaiseInvalidRequest}
}

// RaiseUnknownCollection returns an outcome raising model.ErrUnknownCollection.
func RaiseUnknownCollection[T any]() Outcome[T] {
	return Outcome[T]{kind: KindRaiseUnknownCollection}
}

// RaiseUnexpected returns an outcome raising model.ErrUnexpectedStatus.
func RaiseUnexpected[T any]() Outcome[T] {
	return Outcome[T]{kind: KindRaiseUnexpected}
}

func (o Outcome[T]) validate() error {
	switch o.kind {
	case KindTransform:
		if o.transform == nil {
			return model.NewConfigurationError("dispatch: transform outcome has no function")
		}
	case KindRaiseInvalidRequest, KindRaiseUnknownCollection, KindRaiseUnexpected:
	default:
		return model.NewConfigurationError(fmt.Sprintf("dispatch: unknown outcome kind %d", o.kind))
	}
	return nil
}

// Table maps literal status codes to outcomes plus one default outcome.
// A table is built and used by a single call; it is not safe for concurrent
// registration.
type Table[T any] struct {
	collection string
	codes      []int
	outcomes   map[int]Outcome[T]
	fallback   *Outcome[T]
	err        error
}

// NewTable creates an empty table with no default outcome.
func NewTable[T any]() *Table[T] {
	return &Table[T]{outcomes: make(map[int]Outcome[T])}
}

// ForCollection records the collection the table serves so raised errors can
// name it.
func (t *Table[T]) ForCollection(name string) *Table[T] {
	t.collection = name
	return t
}

// Register associates a status code with an outcome. Registering the same
// code twice is a configuration error and keeps the first outcome.
func (t *Table[T]) Register(statusCode int, o Outcome[T]) error {
	if err := o.validate(); err != nil {
		return err
	}
	if _, exists := t.outcomes[statusCode]; exists {
		return model.NewConfigurationError(
			fmt.Sprintf("dispatch: status code %d already registered", statusCode),
		)
	}
	t.outcomes[statusCode] = o
	t.codes = append(t.codes, statusCode)
	return nil
}

// RegisterDefault sets the outcome used when no status code matches.
// Setting it twice is a configuration error.
func (t *Table[T]) RegisterDefault(o Outcome[T]) error {
	if err := o.validate(); err != nil {
		return err
	}
	if t.fallback != nil {
		return model.NewConfigurationError("dispatch: default outcome already registered")
	}
	t.fallback = &o
	return nil
}

// On is the chaining form of Register. The first registration error is kept
// and returned by Err and Dispatch.
func (t *Table[T]) On(statusCode int, o Outcome[T]) *Table[T] {
	if err := t.Register(statusCode, o); err != nil && t.err == nil {
		t.err = err
	}
	return t
}

// Otherwise is the chaining form of RegisterDefault.
func (t *Table[T]) Otherwise(o Outcome[T]) *Table[T] {
	if err := t.RegisterDefault(o); err != nil && t.err == nil {
		t.err = err
	}
	return t
}

// Err returns the first error recorded by On or Otherwise.
func (t *Table[T]) Err() error {
	return t.err
}

// Codes returns the registered status codes in registration order.
func (t *Table[T]) Codes() []int {
	out := make([]int, len(t.codes))
	copy(out, t.codes)
	return out
}

// HasDefault reports whether a default outcome is registered.
func (t *Table[T]) HasDefault() bool {
	return t.fallback != nil
}

// Dispatch applies the outcome registered for resp.StatusCode, or the default
// outcome when none is. Raise outcomes return the zero T and a *model.Error.
func (t *Table[T]) Dispatch(resp *model.Response) (T, error) {
	var zero T
	if t.err != nil {
		return zero, t.err
	}
	if !t.HasDefault() {
		return zero, model.NewConfigurationError(
			fmt.Sprintf("dispatch: no default outcome registered (codes %v)", t.Codes()),
		)
	}
	if resp == nil {
		return zero, model.NewMalformedResponseError("dispatch: nil response")
	}

	o, ok := t.outcomes[resp.StatusCode]
	if !ok {
		o = *t.fallback
	}

	switch o.kind {
	case KindTransform:
		return o.transform(resp)
	case KindRaiseInvalidRequest:
		return zero, t.raise(model.ErrCodeInvalidRequest, resp)
	case KindRaiseUnknownCollection:
		return zero, t.raise(model.ErrCodeUnknownCollection, resp)
	default:
		return zero, t.raise(model.ErrCodeUnexpectedStatus, resp)
	}
}

// raise builds the typed error for a raise outcome, enriched with the
// server's error body when one was returned.
func (t *Table[T]) raise(code string, resp *model.Response) *model.Error {
	var e *model.Error
	switch code {
	case model.ErrCodeInvalidRequest:
		e = model.NewInvalidRequestError("the server rejected the request")
	case model.ErrCodeUnknownCollection:
		e = model.NewUnknownCollectionError(t.collection)
	default:
		e = model.NewUnexpectedStatusError(resp.StatusCode)
	}
	e.StatusCode = resp.StatusCode
	e.Collection = t.collection

	if se, ok := resp.ServerError(); ok {
		e.ErrorNum = se.ErrorNum
		if se.ErrorMessage != "" {
			e.Message = se.ErrorMessage
		}
	}
	return e
}
