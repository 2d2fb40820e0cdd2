package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/pitabwire/docquery/model"
	"github.com/pitabwire/docquery/simplequery"
)

// usageError marks command line mistakes, which exit with status 2.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

type queryArgs struct {
	collection string
	example    model.Example
	newValue   model.Example
	opts       []simplequery.Option
}

type command struct {
	name     string
	summary  string
	list     bool
	mutation bool
	update   bool
	run      func(ctx context.Context, m *simplequery.Manager, q queryArgs) (any, error)
}

var commands = []command{
	{
		name:    "all",
		summary: "list every document of a collection",
		list:    true,
		run: func(ctx context.Context, m *simplequery.Manager, q queryArgs) (any, error) {
			return m.FindAll(ctx, q.collection, q.opts...)
		},
	},
	{
		name:    "by-example",
		summary: "list the documents matching -example",
		list:    true,
		run: func(ctx context.Context, m *simplequery.Manager, q queryArgs) (any, error) {
			return m.FindByExample(ctx, q.collection, q.example, q.opts...)
		},
	},
	{
		name:    "first-example",
		summary: "print one document matching -example, or null",
		run: func(ctx context.Context, m *simplequery.Manager, q queryArgs) (any, error) {
			return m.FindFirstByExample(ctx, q.collection, q.example)
		},
	},
	{
		name:     "remove-by-example",
		summary:  "remove the documents matching -example",
		mutation: true,
		run: func(ctx context.Context, m *simplequery.Manager, q queryArgs) (any, error) {
			ok, err := m.RemoveByExample(ctx, q.collection, q.example, q.opts...)
			return map[string]bool{"removed": ok}, err
		},
	},
	{
		name:     "update-by-example",
		summary:  "merge -new into the documents matching -example",
		mutation: true,
		update:   true,
		run: func(ctx context.Context, m *simplequery.Manager, q queryArgs) (any, error) {
			n, err := m.UpdateByExample(ctx, q.collection, q.example, q.newValue, q.opts...)
			return map[string]int{"updated": n}, err
		},
	},
}

func findCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// runQuery parses the flags of one query command, runs it and writes the
// result to stdout as indented JSON.
func runQuery(ctx context.Context, m *simplequery.Manager, name string, args []string, stdout, stderr io.Writer) error {
	c, ok := findCommand(name)
	if !ok {
		return usageError{msg: fmt.Sprintf("unknown command %q", name)}
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	database := fs.String("database", "", "database to query instead of the configured one")
	requestID := fs.String("request-id", "", "value sent as X-Request-Id")

	var example, newValue *string
	var skip, limit *int
	var keepNull, waitForSync *bool
	if name != "all" {
		example = fs.String("example", "{}", "JSON object the documents must match")
	}
	if c.list {
		skip = fs.Int("skip", 0, "number of documents to skip")
		limit = fs.Int("limit", 0, "maximum number of documents, 0 uses the configured default")
	}
	if c.mutation {
		waitForSync = fs.Bool("wait-for-sync", false, "wait until the change is synced to disk")
	}
	if c.update {
		newValue = fs.String("new", "", "JSON object merged into matching documents")
		keepNull = fs.Bool("keep-null", false, "keep attributes set to null in -new")
	}

	if err := fs.Parse(args); err != nil {
		return usageError{msg: err.Error()}
	}
	if fs.NArg() != 1 {
		return usageError{msg: fmt.Sprintf("%s: expected exactly one collection name", name)}
	}

	q := queryArgs{collection: fs.Arg(0)}
	var err error
	if example != nil {
		if q.example, err = parseObject("example", *example); err != nil {
			return err
		}
	}
	if newValue != nil {
		if *newValue == "" {
			return usageError{msg: "update-by-example: -new is required"}
		}
		if q.newValue, err = parseObject("new", *newValue); err != nil {
			return err
		}
	}
	if skip != nil {
		q.opts = append(q.opts, simplequery.WithSkip(*skip))
	}
	if limit != nil && *limit != 0 {
		q.opts = append(q.opts, simplequery.WithLimit(*limit))
	}
	if waitForSync != nil {
		q.opts = append(q.opts, simplequery.WithWaitForSync(*waitForSync))
	}
	if keepNull != nil {
		q.opts = append(q.opts, simplequery.WithKeepNull(*keepNull))
	}

	if *database != "" || *requestID != "" {
		ctx = model.WithCallContext(ctx, &model.CallContext{CorrelationID: *requestID, Database: *database})
	}

	result, err := c.run(ctx, m, q)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func parseObject(flagName, raw string) (model.Example, error) {
	var obj model.Example
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, usageError{msg: fmt.Sprintf("-%s must be a JSON object: %v", flagName, err)}
	}
	return obj, nil
}
