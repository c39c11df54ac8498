package query

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
)

// fakeExecutor serves a fixed page sequence chained via "page:N" links and
// can be told to fail fetching a given page index.
type fakeExecutor struct {
	pages       []*Page
	failAtPage  int // 1-based page index that fails; 0 never fails
	failWith    error
	executes    int
	fetches     int
	lastRequest *Request
}

func (f *fakeExecutor) page(index int) (*Page, error) {
	if f.failAtPage == index+1 {
		if f.failWith != nil {
			return nil, f.failWith
		}
		return nil, fmt.Errorf("page %d unavailable", index+1)
	}
	page := *f.pages[index]
	if index+1 < len(f.pages) {
		page.NextLink = "page:" + strconv.Itoa(index+1)
	}
	return &page, nil
}

func (f *fakeExecutor) Execute(_ context.Context, request *Request) (*Page, error) {
	f.executes++
	f.lastRequest = request
	return f.page(0)
}

func (f *fakeExecutor) Fetch(_ context.Context, nextLink string) (*Page, error) {
	f.fetches++
	index, _ := strconv.Atoi(strings.TrimPrefix(nextLink, "page:"))
	return f.page(index)
}

func pagesOf(subjects ...[]string) []*Page {
	var pages []*Page
	for _, page := range subjects {
		var records []Record
		for _, subject := range page {
			records = append(records, Record{"subject": subject})
		}
		pages = append(pages, &Page{Records: records})
	}
	return pages
}

func TestResultSetPagination(t *testing.T) {
	executor := &fakeExecutor{pages: pagesOf([]string{"a", "b"}, []string{"c"})}
	result, err := New(executor, "messages").Execute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []string
	for result.Next() {
		got = append(got, result.Record().String("subject"))
	}
	if err := result.Err(); err != nil {
		t.Fatalf("unexpected iteration error: %v", err)
	}
	if strings.Join(got, ",") != "a,b,c" {
		t.Fatalf("unexpected records: %v", got)
	}
	if executor.executes != 1 || executor.fetches != 1 {
		t.Fatalf("expected 1 execute and 1 fetch, got %d/%d", executor.executes, executor.fetches)
	}
}

func TestResultSetPageFailureAfterYield(t *testing.T) {
	executor := &fakeExecutor{pages: pagesOf([]string{"a", "b"}, []string{"c"}), failAtPage: 2}
	result, err := New(executor, "messages").Execute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []string
	for result.Next() {
		got = append(got, result.Record().String("subject"))
	}
	if strings.Join(got, ",") != "a,b" {
		t.Fatalf("page-1 records lost or replayed: %v", got)
	}
	var execErr *ExecutionError
	if !errors.As(result.Err(), &execErr) {
		t.Fatalf("expected ExecutionError, got %v", result.Err())
	}
	// Iteration stays terminated; nothing is re-yielded.
	if result.Next() {
		t.Fatalf("expected iteration to stay terminated after failure")
	}
}

func TestResultSetQueryErrorPassthrough(t *testing.T) {
	rejected := &QueryError{Code: "BadRequest", Message: "unknown field"}
	executor := &fakeExecutor{pages: pagesOf([]string{"a"}), failAtPage: 1, failWith: rejected}
	_, err := New(executor, "messages").Filter("nosuch", Equals, "x").Execute(context.Background())
	var queryErr *QueryError
	if !errors.As(err, &queryErr) {
		t.Fatalf("expected QueryError surfaced unchanged, got %v", err)
	}
	if queryErr != rejected {
		t.Fatalf("QueryError was wrapped or replaced: %v", err)
	}
}

func TestResultSetReset(t *testing.T) {
	executor := &fakeExecutor{pages: pagesOf([]string{"a"}, []string{"b"})}
	result, err := New(executor, "messages").Execute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, err := result.All()
	if err != nil || len(first) != 2 {
		t.Fatalf("first pass failed: %v %v", first, err)
	}
	// Exhausted state is not reused: restart re-dispatches the request.
	result.Reset()
	second, err := result.All()
	if err != nil || len(second) != 2 {
		t.Fatalf("restart failed: %v %v", second, err)
	}
	if executor.executes != 2 {
		t.Fatalf("expected restart to re-execute, got %d executes", executor.executes)
	}
}

func TestCountFallbackConsumesResultSet(t *testing.T) {
	executor := &fakeExecutor{pages: pagesOf([]string{"a", "b"}, []string{"c"})}
	count, err := New(executor, "messages").Count(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3, got %d", count)
	}
}

// countingExecutor adds a native count to fakeExecutor.
type countingExecutor struct {
	fakeExecutor
	counted int
}

func (c *countingExecutor) Count(_ context.Context, request *Request) (int, error) {
	c.counted++
	c.lastRequest = request
	total := 0
	for _, page := range c.pages {
		total += len(page.Records)
	}
	return total, nil
}

func TestCountPrefersNativeCount(t *testing.T) {
	executor := &countingExecutor{fakeExecutor: fakeExecutor{pages: pagesOf([]string{"a", "b"})}}
	count, err := New(executor, "messages").Filter("isRead", Equals, false).Count(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
	if executor.counted != 1 || executor.executes != 0 {
		t.Fatalf("expected native count without materializing records, got counted=%d executes=%d", executor.counted, executor.executes)
	}
	if executor.lastRequest.Filter != "isRead eq false" {
		t.Fatalf("count did not carry the compiled filter: %q", executor.lastRequest.Filter)
	}
}

func TestRecordsIterator(t *testing.T) {
	executor := &fakeExecutor{pages: pagesOf([]string{"a"}, []string{"b"}), failAtPage: 2}
	var got []string
	var iterErr error
	for record, err := range New(executor, "messages").Records(context.Background()) {
		if err != nil {
			iterErr = err
			break
		}
		got = append(got, record.String("subject"))
	}
	if strings.Join(got, ",") != "a" {
		t.Fatalf("unexpected records before failure: %v", got)
	}
	var execErr *ExecutionError
	if !errors.As(iterErr, &execErr) {
		t.Fatalf("expected ExecutionError from iterator, got %v", iterErr)
	}
}
