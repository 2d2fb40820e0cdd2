// Package model holds the request, response, document and error types shared
// by the dispatcher, the simple query facade and the transport.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
)

// Method is an HTTP method understood by the database server.
type Method string

// Supported methods.
const (
	MethodGet    Method = "GET"
	MethodPut    Method = "PUT"
	MethodPost   Method = "POST"
	MethodPatch  Method = "PATCH"
	MethodDelete Method = "DELETE"
	MethodHead   Method = "HEAD"
)

// Document is a raw document as decoded from a response body.
type Document = map[string]any

// Example maps field names to the values a matching document must hold.
type Example = map[string]any

// Request is a single call against the database REST API. It is built fresh
// for each operation and not modified after it is handed to a Transport.
type Request struct {
	Path   string
	Method Method
	Query  url.Values
	Body   []byte
}

// NewRequest builds a request with a JSON-encoded body. A nil body is sent empty.
func NewRequest(method Method, path string, body any) (*Request, error) {
	req := &Request{Path: path, Method: method}
	if body == nil {
		return req, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("model: marshal request body: %w", err)
	}
	req.Body = data
	return req, nil
}

// URI returns the path with the encoded query string appended.
func (r *Request) URI() string {
	if len(r.Query) == 0 {
		return r.Path
	}
	return r.Path + "?" + r.Query.Encode()
}

// Response is what a Transport returns for a Request.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// BodyAsMap decodes the body as a JSON object. Numbers decode as float64.
func (r *Response) BodyAsMap() (map[string]any, error) {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil, NewMalformedResponseError("empty response body")
	}
	var m map[string]any
	if err := json.Unmarshal(r.Body, &m); err != nil {
		return nil, NewMalformedResponseError(fmt.Sprintf("decode response body: %v", err))
	}
	return m, nil
}

// ServerError is the error body returned by the database on failed calls.
type ServerError struct {
	Error        bool   `json:"error"`
	Code         int    `json:"code"`
	ErrorNum     int    `json:"errorNum"`
	ErrorMessage string `json:"errorMessage"`
}

// ServerError decodes the server's error body. ok is false when the body is
// not an error document.
func (r *Response) ServerError() (ServerError, bool) {
	var se ServerError
	if len(r.Body) == 0 {
		return se, false
	}
	if err := json.Unmarshal(r.Body, &se); err != nil {
		return se, false
	}
	return se, se.Error || se.ErrorNum != 0 || se.ErrorMessage != ""
}
