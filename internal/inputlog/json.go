package inputlog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"textreplay/internal/event"
)

const schemaURL = "https://textreplay.dev/schema/eventlog-v1.schema.json"

//go:embed schema/eventlog.schema.json
var schemaJSON []byte

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return compiler.Compile(schemaURL)
})

// Schema returns the compiled event log schema.
func Schema() (*jsonschema.Schema, error) {
	return compileSchema()
}

// ReadJSON decodes a JSON event log. With validate set the document is checked
// against the event log schema first.
func ReadJSON(r io.Reader, validate bool) ([]event.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}

	if validate {
		schema, err := Schema()
		if err != nil {
			return nil, fmt.Errorf("compile event log schema: %w", err)
		}
		if err := schema.Validate(doc); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSchema, err)
		}
	}

	items, err := eventItems(doc)
	if err != nil {
		return nil, err
	}

	recs := make([]event.Record, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: event %d is %T, not an object", ErrSchema, i, item)
		}
		rec, err := jsonRecord(obj)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// eventItems unwraps the event list from either accepted document shape.
func eventItems(doc any) ([]any, error) {
	switch v := doc.(type) {
	case []any:
		return v, nil
	case map[string]any:
		session, ok := v["session"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: missing session object", ErrSchema)
		}
		switch events := session["event"].(type) {
		case []any:
			return events, nil
		case map[string]any:
			// A single-event session converts to an object, not a list.
			return []any{events}, nil
		default:
			return nil, fmt.Errorf("%w: missing session.event", ErrSchema)
		}
	default:
		return nil, fmt.Errorf("%w: document is %T", ErrSchema, doc)
	}
}

// jsonRecord converts one event object. Keys lose an attribute "@" prefix and
// null fields are left out.
func jsonRecord(obj map[string]any) (event.Record, error) {
	rec := make(event.Record, len(obj))
	for k, v := range obj {
		name := strings.TrimPrefix(k, "@")
		switch val := v.(type) {
		case nil:
		case string:
			rec[name] = val
		case json.Number:
			rec[name] = numberString(val)
		default:
			return nil, fmt.Errorf("%w: field %q is %T", ErrSchema, k, v)
		}
	}
	return rec, nil
}

// numberString renders integral numbers without a fraction so 3.0 reads as 3.
func numberString(n json.Number) string {
	if _, err := n.Int64(); err == nil {
		return n.String()
	}
	if f, err := n.Float64(); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return n.String()
}
