package blind

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"lectern/api/internal/doc"
)

func TestStubDeterministic(t *testing.T) {
	a, err := Stub("reviewer", "eve", "sekrit")
	if err != nil {
		t.Fatalf("Stub() error = %v", err)
	}
	b, err := Stub("reviewer", "eve", "sekrit")
	if err != nil {
		t.Fatalf("Stub() error = %v", err)
	}
	if a != b {
		t.Fatalf("Stub() is not deterministic: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, Prefix) {
		t.Fatalf("Stub() = %q, want %q prefix", a, Prefix)
	}
}

func TestStubSeparation(t *testing.T) {
	base, _ := Stub("reviewer", "eve", "sekrit")
	cases := []struct {
		name                       string
		roleName, identity, secret string
	}{
		{name: "different role name", roleName: "author", identity: "eve", secret: "sekrit"},
		{name: "different identity", roleName: "reviewer", identity: "eva", secret: "sekrit"},
		{name: "different scope secret", roleName: "reviewer", identity: "eve", secret: "other"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Stub(tc.roleName, tc.identity, tc.secret)
			if err != nil {
				t.Fatalf("Stub() error = %v", err)
			}
			if got == base {
				t.Fatalf("Stub(%q, %q, %q) collided with base", tc.roleName, tc.identity, tc.secret)
			}
		})
	}
}

func TestStubOneWay(t *testing.T) {
	// No identity fragment may survive into its pseudonym, and distinct
	// identities must not collide.
	seen := make(map[string]string, 10000)
	for i := 0; i < 10000; i++ {
		identity := fmt.Sprintf("user-%04d@example.com", i)
		stub, err := Stub("reviewer", identity, "sekrit")
		if err != nil {
			t.Fatalf("Stub() error = %v", err)
		}
		if strings.Contains(stub, identity) {
			t.Fatalf("Stub(%q) = %q leaks its input", identity, stub)
		}
		if prev, dup := seen[stub]; dup {
			t.Fatalf("Stub() collision: %q and %q -> %q", prev, identity, stub)
		}
		seen[stub] = identity
	}
}

func TestStubContractViolations(t *testing.T) {
	if _, err := Stub("", "eve", "sekrit"); !errors.Is(err, doc.ErrIntegrity) {
		t.Fatalf("Stub() without role name: error = %v, want integrity violation", err)
	}
	if _, err := Stub("reviewer", "eve", ""); !errors.Is(err, doc.ErrIntegrity) {
		t.Fatalf("Stub() without secret: error = %v, want integrity violation", err)
	}
}
