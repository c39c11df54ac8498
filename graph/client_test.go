package graph

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
)

func authRecordFixture() azidentity.AuthenticationRecord {
	return azidentity.AuthenticationRecord{Username: "user@example.com", ClientID: "client", TenantID: "tenant"}
}

func TestClientCacheKeyNormalization(t *testing.T) {
	m := NewManager("", "")
	alias, tenant := "aliasA", "tenantX"
	k1 := m.clientKey("default", alias, tenant, []string{"scope2", "scope1"})
	k2 := m.clientKey("default", alias, tenant, []string{"scope1", "scope2"})
	if k1 != k2 {
		t.Fatalf("expected normalized keys to be equal, got %q vs %q", k1, k2)
	}
	if k3 := m.clientKey("other", alias, tenant, []string{"scope1"}); k3 == k1 {
		t.Fatalf("expected namespace to partition the cache")
	}
}

func TestClientReturnsCachedInstance(t *testing.T) {
	m := NewManager("", "")
	alias, tenant := "acc", "ten"
	scopes := []string{"s1", "s2"}
	key := m.clientKey("default", alias, tenant, scopes)
	want := &msgraphsdk.GraphServiceClient{}
	m.mu.Lock()
	m.clients[key] = want
	m.mu.Unlock()

	got, err := m.Client(context.Background(), alias, tenant, []string{"s2", "s1"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("expected cached client to be returned")
	}
}

func TestAuthRecordRoundTrip(t *testing.T) {
	m := NewManager("client", "mem://localhost/office-auth-test")
	ctx := context.Background()
	if m.HasAuthRecord(ctx, "acc") {
		t.Fatalf("expected no auth record before save")
	}
	m.saveAuthRecord(ctx, "default", "acc", authRecordFixture())
	if !m.HasAuthRecord(ctx, "acc") {
		t.Fatalf("expected auth record after save")
	}
	rec, ok := m.loadAuthRecord(ctx, "default", "acc")
	if !ok {
		t.Fatalf("expected auth record to load")
	}
	if rec.Username != "user@example.com" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

// Device login runs on a goroutine that deletes its pending entry on exit
// while HTTP handlers poll DevicePrompt; both sides must be safe under -race.
func TestDevicePromptConcurrentWithLogin(t *testing.T) {
	// Empty secretsBase makes acquireCredential fail fast, so each login
	// goroutine exercises the pending-map delete immediately.
	m := NewManager("client", "")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.StartDeviceLogin(context.Background(), "acc", "tenant", DefaultScopes(), nil)
		}()
		go func() {
			defer wg.Done()
			_ = m.DevicePrompt("acc")
		}()
	}
	wg.Wait()

	holder := &pendingLogin{}
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			holder.set("enter code ABC-123")
		}()
		go func() {
			defer wg.Done()
			_ = holder.get()
		}()
	}
	wg.Wait()
}

func TestDefaultScopesCoverServices(t *testing.T) {
	scopes := strings.Join(DefaultScopes(), " ")
	for _, want := range []string{"Mail.ReadWrite", "Mail.Send", "Contacts.ReadWrite", "Calendars.ReadWrite"} {
		if !strings.Contains(scopes, want) {
			t.Fatalf("default scopes miss %s: %v", want, DefaultScopes())
		}
	}
}

func TestSafePart(t *testing.T) {
	if got := safePart("user@example.com"); got != "user_example.com" {
		t.Fatalf("unexpected safePart: %q", got)
	}
	if got := safePart("a/b:c|d e"); got != "a_b_c_d_e" {
		t.Fatalf("unexpected safePart: %q", got)
	}
}
