package auth

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/viant/mcp-protocol/authorization"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestNamespaceDefault(t *testing.T) {
	svc := New()
	ns, err := svc.Namespace(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ns != "default" {
		t.Fatalf("expected default namespace, got %q", ns)
	}
}

func TestNamespaceFromEmailClaim(t *testing.T) {
	svc := New()
	token := signedToken(t, jwt.MapClaims{"email": "user@example.com", "sub": "abc"})
	ctx := context.WithValue(context.Background(), authorization.TokenKey, token)
	ns, err := svc.Namespace(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ns != "user@example.com" {
		t.Fatalf("expected email claim, got %q", ns)
	}
}

func TestNamespaceFallsBackToSub(t *testing.T) {
	svc := New()
	token := signedToken(t, jwt.MapClaims{"sub": "subject-1"})
	ctx := context.WithValue(context.Background(), authorization.TokenKey, token)
	ns, err := svc.Namespace(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ns != "subject-1" {
		t.Fatalf("expected sub claim, got %q", ns)
	}
}
