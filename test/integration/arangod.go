package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

// fakeArangod is an in-memory stand-in for the database server's simple
// query API. Documents are kept as decoded JSON.
type fakeArangod struct {
	t      *testing.T
	server *httptest.Server
	secret []byte

	mu          sync.Mutex
	collections map[string][]map[string]any
	received    []recordedRequest
	failNext    int
}

type recordedRequest struct {
	Method   string
	Path     string
	Database string
	Query    string
	Headers  http.Header
	Body     map[string]any
}

func newFakeArangod(t *testing.T, secret []byte) *fakeArangod {
	t.Helper()
	f := &fakeArangod{
		t:           t,
		secret:      secret,
		collections: make(map[string][]map[string]any),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

// URL returns the server endpoint.
func (f *fakeArangod) URL() string { return f.server.URL }

// Seed creates collection holding docs. Documents are passed through JSON
// so their numbers compare like decoded examples do.
func (f *fakeArangod) Seed(collection string, docs ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := f.collections[collection]
	if stored == nil {
		stored = []map[string]any{}
	}
	for _, d := range docs {
		data, err := json.Marshal(d)
		if err != nil {
			f.t.Fatalf("seed %s: %v", collection, err)
		}
		var norm map[string]any
		if err := json.Unmarshal(data, &norm); err != nil {
			f.t.Fatalf("seed %s: %v", collection, err)
		}
		stored = append(stored, norm)
	}
	f.collections[collection] = stored
}

// Docs returns a copy of the documents in collection.
func (f *fakeArangod) Docs(collection string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.collections[collection]...)
}

// FailNext makes the next n requests answer 503.
func (f *fakeArangod) FailNext(n int) {
	f.mu.Lock()
	f.failNext = n
	f.mu.Unlock()
}

// Received returns every request seen so far.
func (f *fakeArangod) Received() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.received...)
}

func (f *fakeArangod) serve(w http.ResponseWriter, r *http.Request) {
	path, database := splitDatabase(r.URL.Path)

	var body map[string]any
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, recordedRequest{
		Method:   r.Method,
		Path:     path,
		Database: database,
		Query:    r.URL.RawQuery,
		Headers:  r.Header.Clone(),
		Body:     body,
	})

	if f.failNext > 0 {
		f.failNext--
		writeError(w, http.StatusServiceUnavailable, 503, "service unavailable")
		return
	}
	if !f.authorized(r) {
		writeError(w, http.StatusUnauthorized, 11, "not authorized to execute this request")
		return
	}

	if path == "/_api/version" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]any{"server": "arango", "version": "3.11.0", "license": "community"})
		return
	}
	if r.Method != http.MethodPut || !strings.HasPrefix(path, "/_api/simple/") {
		writeError(w, http.StatusNotFound, 404, "unknown path")
		return
	}

	name, _ := body["collection"].(string)
	if name == "" {
		writeError(w, http.StatusBadRequest, 10, "expecting string for <collection>")
		return
	}
	docs, ok := f.collections[name]
	if !ok {
		writeError(w, http.StatusNotFound, 1203, "collection or view not found: "+name)
		return
	}

	var example map[string]any
	if path != "/_api/simple/all" {
		example, ok = body["example"].(map[string]any)
		if !ok {
			writeError(w, http.StatusBadRequest, 10, "expecting JSON object for <example>")
			return
		}
	}

	switch path {
	case "/_api/simple/all", "/_api/simple/by-example":
		matched := filter(docs, example)
		writeJSON(w, http.StatusCreated, map[string]any{
			"result":  page(matched, body),
			"hasMore": false,
			"error":   false,
			"code":    201,
		})
	case "/_api/simple/first-example":
		matched := filter(docs, example)
		if len(matched) == 0 {
			writeError(w, http.StatusNotFound, 404, "no match")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"document": matched[0], "error": false, "code": 200})
	case "/_api/simple/remove-by-example":
		kept := docs[:0:0]
		deleted := 0
		for _, d := range docs {
			if matches(d, example) {
				deleted++
				continue
			}
			kept = append(kept, d)
		}
		f.collections[name] = kept
		writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted, "error": false, "code": 200})
	case "/_api/simple/update-by-example":
		newValue, _ := body["newValue"].(map[string]any)
		keepNull, _ := body["keepNull"].(bool)
		updated := 0
		for _, d := range docs {
			if !matches(d, example) {
				continue
			}
			updated++
			for k, v := range newValue {
				if v == nil && !keepNull {
					delete(d, k)
					continue
				}
				d[k] = v
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"updated": updated, "error": false, "code": 200})
	default:
		writeError(w, http.StatusNotFound, 404, "unknown path")
	}
}

func (f *fakeArangod) authorized(r *http.Request) bool {
	if f.secret == nil {
		return true
	}
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return false
	}
	tok, err := jwt.Parse(header[len("bearer "):], func(*jwt.Token) (any, error) {
		return f.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuer("arangodb"))
	return err == nil && tok.Valid
}

func splitDatabase(path string) (rest, database string) {
	if !strings.HasPrefix(path, "/_db/") {
		return path, ""
	}
	trimmed := strings.TrimPrefix(path, "/_db/")
	i := strings.Index(trimmed, "/")
	if i < 0 {
		return "/", trimmed
	}
	return trimmed[i:], trimmed[:i]
}

func filter(docs []map[string]any, example map[string]any) []map[string]any {
	out := []map[string]any{}
	for _, d := range docs {
		if matches(d, example) {
			out = append(out, d)
		}
	}
	return out
}

func matches(doc, example map[string]any) bool {
	for k, want := range example {
		if got, ok := doc[k]; !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func page(docs []map[string]any, body map[string]any) []map[string]any {
	skip, _ := body["skip"].(float64)
	limit, _ := body["limit"].(float64)
	start := min(int(skip), len(docs))
	end := len(docs)
	if limit > 0 {
		end = min(start+int(limit), len(docs))
	}
	return docs[start:end]
}

func writeError(w http.ResponseWriter, status, errorNum int, msg string) {
	writeJSON(w, status, map[string]any{
		"error":        true,
		"code":         status,
		"errorNum":     errorNum,
		"errorMessage": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		panic(fmt.Sprintf("encode: %v", err))
	}
}
