package people

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/viant/office/graph"
	"github.com/viant/office/query"
)

func newTestService(t *testing.T, handler http.Handler) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	executor := graph.NewExecutor(graph.NewManager("client", ""), graph.Account{Alias: "acc"}, graph.DefaultScopes(), nil)
	executor.BaseURL = server.URL
	executor.Authorize = func(context.Context) (string, error) { return "test-token", nil }
	return NewService(executor)
}

func TestByName(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contacts" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("$filter"); got != "displayName eq 'Alice Smith'" {
			t.Fatalf("unexpected $filter: %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"value": []map[string]interface{}{{
				"id":          "c1",
				"displayName": "Alice Smith",
				"givenName":   "Alice",
				"surname":     "Smith",
				"emailAddresses": []map[string]string{
					{"address": "alice@example.com", "name": "Alice Smith"},
					{"address": "asmith@example.org"},
				},
			}},
		})
	}))
	contact, err := svc.ByName(context.Background(), "Alice Smith")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if contact.ID != "c1" || contact.GivenName != "Alice" {
		t.Fatalf("unexpected contact: %+v", contact)
	}
	if contact.MainEmail() != "alice@example.com" {
		t.Fatalf("unexpected main email: %q", contact.MainEmail())
	}
	if len(contact.Emails) != 2 {
		t.Fatalf("unexpected emails: %v", contact.Emails)
	}
}

func TestByNameNotFound(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"value": []map[string]interface{}{}})
	}))
	if _, err := svc.ByName(context.Background(), "Nobody"); err == nil {
		t.Fatalf("expected not-found error")
	}
}

func TestContactQueryScoping(t *testing.T) {
	var paths []string
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"value": []map[string]interface{}{}})
	}))
	for _, q := range []*query.Query{svc.Contacts(), svc.Folders(), svc.FolderContacts("f1")} {
		if _, err := q.Execute(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	want := []string{"/contacts", "/contactFolders", "/contactFolders/f1/contacts"}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("request %d: got %q want %q", i, paths[i], want[i])
		}
	}
}

func TestCreate(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/contacts" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var payload map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["givenName"] != "Bob" {
			t.Fatalf("unexpected payload: %v", payload)
		}
		payload["id"] = "c9"
		_ = json.NewEncoder(w).Encode(payload)
	}))
	created, err := svc.Create(context.Background(), &Contact{GivenName: "Bob", Surname: "Jones", DisplayName: "Bob Jones", Emails: []string{"bob@example.com"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID != "c9" || created.MainEmail() != "bob@example.com" {
		t.Fatalf("unexpected created contact: %+v", created)
	}
}
