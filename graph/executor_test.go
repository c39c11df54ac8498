package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/viant/office/query"
)

func newTestExecutor(t *testing.T, handler http.Handler) (*Executor, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	executor := NewExecutor(NewManager("client", "mem://localhost/office-test"), Account{Alias: "acc"}, DefaultScopes(), nil)
	executor.BaseURL = server.URL
	executor.Authorize = func(context.Context) (string, error) { return "test-token", nil }
	return executor, server
}

func TestExecutorPagination(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("missing bearer token, got %q", got)
		}
		if got := r.URL.Query().Get("$filter"); got != "contains(subject,'invoice')" {
			t.Fatalf("unexpected $filter: %q", got)
		}
		if got := r.URL.Query().Get("$orderby"); got != "receivedDateTime desc" {
			t.Fatalf("unexpected $orderby: %q", got)
		}
		if got := r.URL.Query().Get("$select"); got != "subject,receivedDateTime" {
			t.Fatalf("unexpected $select: %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"value":           []map[string]interface{}{{"subject": "invoice 1"}},
			"@odata.nextLink": server.URL + "/messages/page2",
		})
	})
	mux.HandleFunc("/messages/page2", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"value": []map[string]interface{}{{"subject": "invoice 2"}},
		})
	})
	executor, srv := newTestExecutor(t, mux)
	server = srv

	result, err := query.New(executor, EntityMessages).
		Filter("subject", query.Contains, "invoice").
		OrderBy("receivedDateTime", query.Descending).
		Select("subject", "receivedDateTime").
		Execute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, err := result.All()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 || records[0].String("subject") != "invoice 1" || records[1].String("subject") != "invoice 2" {
		t.Fatalf("unexpected records: %v", records)
	}
}

func TestExecutorSchemaRejection(t *testing.T) {
	executor, _ := newTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"code": "BadRequest", "message": "Could not find a property named 'nosuch'"},
		})
	}))
	_, err := query.New(executor, EntityMessages).
		Filter("nosuch", query.Equals, "x").
		Execute(context.Background())
	var queryErr *query.QueryError
	if !errors.As(err, &queryErr) {
		t.Fatalf("expected QueryError, got %v", err)
	}
	if queryErr.Code != "BadRequest" {
		t.Fatalf("unexpected code: %q", queryErr.Code)
	}
}

func TestExecutorTransportFailureWrapped(t *testing.T) {
	executor, _ := newTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"code": "InvalidAuthenticationToken", "message": "token expired"},
		})
	}))
	_, err := query.New(executor, EntityMessages).Execute(context.Background())
	var execErr *query.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
}

func TestExecutorNativeCount(t *testing.T) {
	executor, _ := newTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages/$count" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("ConsistencyLevel"); got != "eventual" {
			t.Fatalf("missing ConsistencyLevel header, got %q", got)
		}
		if got := r.URL.Query().Get("$filter"); got != "isRead eq false" {
			t.Fatalf("unexpected $filter: %q", got)
		}
		fmt.Fprint(w, "42")
	}))
	count, err := query.New(executor, EntityMessages).
		Filter("isRead", query.Equals, false).
		Count(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 42 {
		t.Fatalf("expected 42, got %d", count)
	}
}

func TestExecutorTopHint(t *testing.T) {
	executor, _ := newTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("$top"); got != "5" {
			t.Fatalf("unexpected $top: %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"value": []map[string]interface{}{}})
	}))
	result, err := query.New(executor, EntityMessages).Top(5).Execute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records, err := result.All(); err != nil || len(records) != 0 {
		t.Fatalf("expected empty result, got %v %v", records, err)
	}
}
