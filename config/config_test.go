package config

import (
	"context"
	"testing"
)

func TestAddAndSelectConnection(t *testing.T) {
	cfg := New()
	cfg.AddConnection("work", Connection{ClientID: "id-1", TenantID: "t-1", DefaultEmail: "me@work.com"}, false)
	cfg.AddConnection("personal", Connection{ClientID: "id-2", TenantID: "common"}, false)

	// first registered connection becomes default
	if cfg.DefaultConnection != "work" {
		t.Fatalf("expected first connection as default, got %q", cfg.DefaultConnection)
	}
	conn, err := cfg.Connection("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn.ClientID != "id-1" {
		t.Fatalf("unexpected default connection: %+v", conn)
	}
	if err := cfg.SetDefaultConnection("personal"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn, _ = cfg.Connection(""); conn.ClientID != "id-2" {
		t.Fatalf("default not switched: %+v", conn)
	}
	if err := cfg.SetDefaultConnection("nosuch"); err == nil {
		t.Fatalf("expected error for unknown connection")
	}
	if _, err := cfg.Connection("nosuch"); err == nil {
		t.Fatalf("expected error for unknown connection lookup")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	URL := "mem://localhost/office-config-test/config.json"
	cfg := New()
	cfg.SecretsBase = "mem://localhost/office-config-test/secrets"
	cfg.AddConnection("work", Connection{ClientID: "id-1", TenantID: "t-1", DefaultEmail: "me@work.com"}, true)
	if err := cfg.Save(ctx, URL); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := Load(ctx, URL)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.DefaultConnection != "work" || loaded.SecretsBase != cfg.SecretsBase {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
	conn, err := loaded.Connection("work")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn.DefaultEmail != "me@work.com" {
		t.Fatalf("unexpected connection: %+v", conn)
	}
}
