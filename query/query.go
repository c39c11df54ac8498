// Package query accumulates declarative filter, ordering and projection
// criteria and compiles them on demand into the native request shape of an
// injected data-access collaborator.
package query

import (
	"context"
	"iter"
	"strings"
)

// Query is a copy-on-write builder: every builder method returns a modified
// clone and leaves the receiver untouched, so chained queries never alias
// shared state. Criteria combine conjunctively; a query with zero criteria
// matches all records. A Query stays reusable after Execute.
type Query struct {
	executor   Executor
	entity     string
	criteria   []Criterion
	order      []OrderSpec
	projection []string
	top        int
	err        error
}

// New returns an empty query scoped to an entity of the given executor.
func New(executor Executor, entity string) *Query {
	return &Query{executor: executor, entity: entity}
}

func (q *Query) clone() *Query {
	ret := *q
	ret.criteria = append([]Criterion(nil), q.criteria...)
	ret.order = append([]OrderSpec(nil), q.order...)
	ret.projection = append([]string(nil), q.projection...)
	return &ret
}

// Filter appends one criterion. The field, operator and comparand are
// validated at call time; a validation failure is pinned on the returned
// query, observable immediately via Err and returned by Compile, Execute and
// Count. The invalid criterion is never appended.
func (q *Query) Filter(field string, operator Operator, value interface{}) *Query {
	ret := q.clone()
	if ret.err != nil {
		return ret
	}
	criterion := Criterion{Field: field, Operator: operator, Value: value}
	if err := criterion.validate(); err != nil {
		ret.err = err
		return ret
	}
	ret.criteria = append(ret.criteria, criterion)
	return ret
}

// OrderBy appends a sort field; earlier calls take tie-break precedence.
func (q *Query) OrderBy(field string, direction Direction) *Query {
	ret := q.clone()
	if direction == "" {
		direction = Ascending
	}
	ret.order = append(ret.order, OrderSpec{Field: field, Direction: direction})
	return ret
}

// Select replaces the projection set; no fields means all fields. Field
// legality is a property of the remote schema and is only checked at
// execution time.
func (q *Query) Select(fields ...string) *Query {
	ret := q.clone()
	ret.projection = append([]string(nil), fields...)
	return ret
}

// Top sets a page-size hint passed through to the collaborator.
func (q *Query) Top(n int) *Query {
	ret := q.clone()
	ret.top = n
	return ret
}

// Err reports a builder-time validation failure pinned by an earlier call.
func (q *Query) Err() error { return q.err }

// Compile translates the accumulated criteria into the collaborator's native
// request. Compilation is pure and deterministic; it performs no I/O.
func (q *Query) Compile() (*Request, error) {
	if q.err != nil {
		return nil, q.err
	}
	request := &Request{Entity: q.entity, Top: q.top}
	if len(q.criteria) > 0 {
		parts := make([]string, 0, len(q.criteria))
		for _, criterion := range q.criteria {
			parts = append(parts, criterion.expression())
		}
		request.Filter = strings.Join(parts, " and ")
	}
	for _, spec := range q.order {
		request.OrderBy = append(request.OrderBy, spec.Field+" "+string(spec.Direction))
	}
	request.Select = append([]string(nil), q.projection...)
	return request, nil
}

// Execute compiles the query and dispatches it once to the collaborator,
// returning a lazy result sequence seeded with the first page. Later pages
// are fetched during iteration. Failures are not retried internally.
func (q *Query) Execute(ctx context.Context) (*ResultSet, error) {
	request, err := q.Compile()
	if err != nil {
		return nil, err
	}
	page, err := q.executor.Execute(ctx, request)
	if err != nil {
		return nil, wrapExecution(err)
	}
	return &ResultSet{ctx: ctx, executor: q.executor, request: request, page: page}, nil
}

// Count returns the number of matching records. When the executor exposes a
// native count the full records are never materialized; otherwise the result
// sequence is consumed and counted.
func (q *Query) Count(ctx context.Context) (int, error) {
	request, err := q.Compile()
	if err != nil {
		return 0, err
	}
	if counter, ok := q.executor.(Counter); ok {
		count, err := counter.Count(ctx, request)
		if err != nil {
			return 0, wrapExecution(err)
		}
		return count, nil
	}
	page, err := q.executor.Execute(ctx, request)
	if err != nil {
		return 0, wrapExecution(err)
	}
	result := &ResultSet{ctx: ctx, executor: q.executor, request: request, page: page}
	count := 0
	for result.Next() {
		count++
	}
	return count, result.Err()
}

// Records executes the query and yields records as a range-over-func
// sequence. A failure yields once with a non-nil error and stops.
func (q *Query) Records(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		result, err := q.Execute(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		for result.Next() {
			if !yield(result.Record(), nil) {
				return
			}
		}
		if err := result.Err(); err != nil {
			yield(nil, err)
		}
	}
}
