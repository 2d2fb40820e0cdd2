package simplequery

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/pitabwire/docquery/internal/observability"
	"github.com/pitabwire/docquery/model"
)

// DefaultLimit is the page size used when no limit is given.
const DefaultLimit = 1000

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger. Operations log at debug, and at warn when the
// server rejects a call.
func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics *observability.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// WithDefaultLimit overrides DefaultLimit for list operations. Values below
// one are ignored.
func WithDefaultLimit(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.defaultLimit = n
		}
	}
}

// Option adjusts a single operation. Options that do not apply to an
// operation are ignored by it.
type Option func(*callOptions)

type callOptions struct {
	skip        int
	limit       int
	keepNull    bool
	waitForSync bool
}

// WithSkip skips the first n matching documents. n must be zero or more.
func WithSkip(n int) Option {
	return func(o *callOptions) { o.skip = n }
}

// WithLimit returns at most n documents. n must be positive.
func WithLimit(n int) Option {
	return func(o *callOptions) { o.limit = n }
}

// WithKeepNull keeps attributes set to null in the new values instead of
// removing them from updated documents.
func WithKeepNull(keep bool) Option {
	return func(o *callOptions) { o.keepNull = keep }
}

// WithWaitForSync makes the server sync the change to disk before answering.
func WithWaitForSync(wait bool) Option {
	return func(o *callOptions) { o.waitForSync = wait }
}

func (m *Manager) apply(opts []Option) callOptions {
	o := callOptions{limit: m.defaultLimit}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// resolveList applies opts and checks the paging values the list operations
// send. Other operations call apply and never look at skip or limit.
func (m *Manager) resolveList(opts []Option) (callOptions, error) {
	o := m.apply(opts)
	if o.skip < 0 {
		return o, model.NewInvalidRequestError(fmt.Sprintf("skip must be zero or more, got %d", o.skip))
	}
	if o.limit <= 0 {
		return o, model.NewInvalidRequestError(fmt.Sprintf("limit must be positive, got %d", o.limit))
	}
	return o, nil
}
