package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrDocumentNotFound is returned when a document does not exist
	ErrDocumentNotFound = errors.New("document not found")

	// ErrDocumentExists is returned by Create when the id is already taken
	ErrDocumentExists = errors.New("document already exists")
)

// FilterOp is a query comparison operator
type FilterOp string

const (
	OpEqual FilterOp = "=="
	OpIn    FilterOp = "in"
)

// Filter restricts a query on a top-level document field.
// Values of OpIn filters are []string.
type Filter struct {
	Field string
	Op    FilterOp
	Value interface{}
}

// Where builds an equality filter
func Where(field string, value interface{}) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

// WhereIn builds a membership filter
func WhereIn(field string, values []string) Filter {
	return Filter{Field: field, Op: OpIn, Value: values}
}

// QueryOptions controls a collection query
type QueryOptions struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
	Offset     int
}

// Document is a raw query result
type Document struct {
	ID   string
	Data json.RawMessage
}

// Decode unmarshals the document body into dst
func (d Document) Decode(dst interface{}) error {
	if err := json.Unmarshal(d.Data, dst); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", d.ID, err)
	}
	return nil
}

// DocumentStore is a collection/id keyed JSON document database
type DocumentStore interface {
	Get(ctx context.Context, collection, id string, dst interface{}) error
	Query(ctx context.Context, collection string, opts QueryOptions) ([]Document, error)
	Set(ctx context.Context, collection, id string, doc interface{}) error
	Delete(ctx context.Context, collection, id string) error

	// RunInTransaction runs fn atomically. Nothing fn wrote is visible if it
	// returns an error. Implementations may retry fn on contention, so fn
	// must not have side effects outside tx.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx DocumentTx) error) error

	Ping(ctx context.Context) error
	Close() error
}

// DocumentTx is the view of the store inside RunInTransaction.
// Reads lock the document until the transaction ends.
type DocumentTx interface {
	Get(collection, id string, dst interface{}) error
	Create(collection, id string, doc interface{}) error
	Set(collection, id string, doc interface{}) error
	Delete(collection, id string) error
}

// matchesFilters evaluates filters against a decoded document. Values are
// compared by their text form, the same way the Postgres store compares
// data->>'field'.
func matchesFilters(fields map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		v, ok := fields[f.Field]
		if !ok || v == nil {
			return false
		}
		actual := textValue(v)
		switch f.Op {
		case OpIn:
			values, _ := f.Value.([]string)
			found := false
			for _, candidate := range values {
				if candidate == actual {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			if actual != textValue(f.Value) {
				return false
			}
		}
	}
	return true
}

// textValue renders a JSON scalar the way Postgres ->> does
func textValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		b, _ := json.Marshal(t)
		return string(b)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
