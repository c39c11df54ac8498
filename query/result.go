package query

import (
	"context"
)

// Record is one result row; an opaque mapping from field name to value,
// owned by the caller once yielded.
type Record map[string]interface{}

// String returns the value of a field when it is a string, else "".
func (r Record) String(field string) string {
	v, _ := r[field].(string)
	return v
}

// Bool returns the value of a field when it is a bool, else false.
func (r Record) Bool(field string) bool {
	v, _ := r[field].(bool)
	return v
}

// Request is a compiled query in the collaborator's native shape.
type Request struct {
	// Entity scopes the request, e.g. "messages" or "mailFolders/inbox/messages".
	Entity string
	// Filter is the conjunctive $filter expression; empty means match all.
	Filter string
	// OrderBy holds $orderby clauses in precedence order.
	OrderBy []string
	// Select holds the projection; empty means all fields.
	Select []string
	// Top is a page-size hint; zero leaves the collaborator default.
	Top int
}

// Page is one page of results with an opaque continuation link.
type Page struct {
	Records  []Record
	NextLink string
}

// Executor is the injected data-access collaborator a query dispatches to.
type Executor interface {
	// Execute dispatches a compiled request and returns its first page.
	Execute(ctx context.Context, request *Request) (*Page, error)
	// Fetch continues pagination using a link returned by a previous page.
	Fetch(ctx context.Context, nextLink string) (*Page, error)
}

// Counter is implemented by executors with a native count operation.
type Counter interface {
	Count(ctx context.Context, request *Request) (int, error)
}

// ResultSet is a lazy, restartable sequence of records. Subsequent pages are
// fetched transparently during iteration; a fetch failure surfaces via Err
// without invalidating records already yielded. The context passed to Execute
// is carried for the lifetime of the iteration, sql.Rows style.
type ResultSet struct {
	ctx      context.Context
	executor Executor
	request  *Request
	page     *Page
	index    int
	current  Record
	done     bool
	err      error
}

// Next advances to the following record, fetching the next page when the
// current one is exhausted. It returns false at the end of the sequence or on
// the first failure; check Err after iteration.
func (r *ResultSet) Next() bool {
	if r.err != nil || r.done {
		return false
	}
	for r.page == nil || r.index >= len(r.page.Records) {
		if r.page != nil && r.page.NextLink == "" {
			r.done = true
			return false
		}
		var page *Page
		var err error
		if r.page == nil {
			page, err = r.executor.Execute(r.ctx, r.request)
		} else {
			page, err = r.executor.Fetch(r.ctx, r.page.NextLink)
		}
		if err != nil {
			r.err = wrapExecution(err)
			return false
		}
		r.page, r.index = page, 0
	}
	r.current = r.page.Records[r.index]
	r.index++
	return true
}

// Record returns the record yielded by the last successful Next call.
func (r *ResultSet) Record() Record { return r.current }

// Err returns the failure that terminated iteration, if any.
func (r *ResultSet) Err() error { return r.err }

// Reset restarts the sequence. Nothing is cached across restarts: the next
// Next call re-dispatches the underlying request.
func (r *ResultSet) Reset() {
	r.page, r.index, r.current, r.done, r.err = nil, 0, nil, false, nil
}

// All drains the remaining records into a slice.
func (r *ResultSet) All() ([]Record, error) {
	var records []Record
	for r.Next() {
		records = append(records, r.Record())
	}
	return records, r.Err()
}
