package model

import "context"

// Transport sends a request to the database server and returns its response.
// Non-2xx statuses are returned as responses, not errors; errors are reserved
// for failures to complete the round-trip.
type Transport interface {
	SendRequest(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

// SendRequest calls f(ctx, req).
func (f TransportFunc) SendRequest(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// DocumentMapper turns raw documents into application entities.
type DocumentMapper interface {
	MapDocument(doc Document) (any, error)
	MapDocuments(docs []Document) ([]any, error)
}

// MapperRegistry looks up the DocumentMapper registered for a collection.
type MapperRegistry interface {
	HasMapper(collection string) bool
	// GetMapper returns nil when no mapper is registered for collection.
	GetMapper(collection string) DocumentMapper
}
