package visibility

import (
	"testing"
	"time"

	"lectern/api/internal/doc"
)

func TestHasPublicAudience(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := Resolver{}

	cases := []struct {
		name string
		d    doc.Doc
		want bool
	}{
		{
			name: "unbounded public audience",
			d:    doc.Doc{"audience": map[string]any{"@type": "Audience", "audienceType": "public"}},
			want: true,
		},
		{
			name: "no audience",
			d:    doc.Doc{"@id": "graph:demo"},
			want: false,
		},
		{
			name: "non-public audience only",
			d:    doc.Doc{"audience": map[string]any{"audienceType": "editor"}},
			want: false,
		},
		{
			name: "window still open",
			d: doc.Doc{"audience": map[string]any{
				"audienceType": "public",
				"startDate":    "2025-01-01T00:00:00Z",
			}},
			want: true,
		},
		{
			name: "window not yet open",
			d: doc.Doc{"audience": map[string]any{
				"audienceType": "public",
				"startDate":    "2025-12-01T00:00:00Z",
			}},
			want: false,
		},
		{
			name: "window already closed",
			d: doc.Doc{"audience": map[string]any{
				"audienceType": "public",
				"endDate":      "2025-02-01T00:00:00Z",
			}},
			want: false,
		},
		{
			name: "one of several grants active",
			d: doc.Doc{"audience": []any{
				map[string]any{"audienceType": "public", "endDate": "2025-02-01T00:00:00Z"},
				map[string]any{"audienceType": "public", "startDate": "2025-03-01T00:00:00Z"},
			}},
			want: true,
		},
		{
			name: "malformed date is treated as inactive",
			d: doc.Doc{"audience": map[string]any{
				"audienceType": "public",
				"startDate":    "yesterday",
			}},
			want: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := r.HasPublicAudience(tc.d, now); got != tc.want {
				t.Fatalf("HasPublicAudience() = %v, want %v", got, tc.want)
			}
		})
	}
}

func singleBlindScope() doc.Doc {
	// Reviewers stay hidden from authors; editors see everyone.
	return doc.Doc{
		"@id": "graph:demo",
		"author": map[string]any{
			"@type": "ContributorRole", "roleName": "author",
			"author": map[string]any{"@id": "user:alice"},
		},
		"reviewer": map[string]any{
			"@type": "ContributorRole", "roleName": "reviewer",
			"reviewer": map[string]any{"@id": "user:eve"},
		},
		"editor": map[string]any{
			"@type": "ContributorRole", "roleName": "editor",
			"editor": map[string]any{"@id": "user:ed"},
		},
		"hasDigitalDocumentPermission": []any{
			map[string]any{
				"@type":           "DigitalDocumentPermission",
				"permissionType":  "ViewIdentityPermission",
				"grantee":         []any{map[string]any{"audienceType": "public"}},
				"permissionScope": []any{map[string]any{"audienceType": "author"}, map[string]any{"audienceType": "editor"}},
			},
			map[string]any{
				"@type":           "DigitalDocumentPermission",
				"permissionType":  "ViewIdentityPermission",
				"grantee":         []any{map[string]any{"audienceType": "editor"}},
				"permissionScope": []any{map[string]any{"audienceType": "reviewer"}},
			},
			map[string]any{
				"@type":           "DigitalDocumentPermission",
				"permissionType":  "ViewIdentityPermission",
				"grantee":         []any{map[string]any{"audienceType": "reviewer"}},
				"permissionScope": []any{map[string]any{"audienceType": "reviewer"}},
			},
		},
	}
}

func TestDisclosedRoles(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := Resolver{}
	scope := singleBlindScope()

	cases := []struct {
		name   string
		viewer doc.Doc
		want   map[string]bool
	}{
		{
			name:   "anonymous sees authors and editors only",
			viewer: doc.Doc{},
			want:   map[string]bool{"author": true, "editor": true},
		},
		{
			name:   "author does not see reviewers",
			viewer: doc.Doc{"@id": "user:alice"},
			want:   map[string]bool{"author": true, "editor": true},
		},
		{
			name:   "editor sees reviewers",
			viewer: doc.Doc{"@id": "user:ed"},
			want:   map[string]bool{"author": true, "editor": true, "reviewer": true},
		},
		{
			name:   "reviewer sees fellow reviewers",
			viewer: doc.Doc{"@id": "user:eve"},
			want:   map[string]bool{"author": true, "editor": true, "reviewer": true},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := r.DisclosedRoles(tc.viewer, scope, now, nil)
			if len(got) != len(tc.want) {
				t.Fatalf("DisclosedRoles() = %v, want %v", got, tc.want)
			}
			for name := range tc.want {
				if !got[name] {
					t.Fatalf("DisclosedRoles() = %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestDisclosedRolesMatchesByEmail(t *testing.T) {
	now := time.Now()
	scope := doc.Doc{
		"@id": "graph:demo",
		"editor": map[string]any{
			"@type": "ContributorRole", "roleName": "editor",
			"editor": map[string]any{"@id": "user:ed", "email": "ed@example.com"},
		},
		"hasDigitalDocumentPermission": map[string]any{
			"permissionType":  "ViewIdentityPermission",
			"grantee":         map[string]any{"audienceType": "editor"},
			"permissionScope": map[string]any{"audienceType": "reviewer"},
		},
	}
	got := Resolver{}.DisclosedRoles(doc.Doc{"email": "ed@example.com"}, scope, now, nil)
	if !got["reviewer"] {
		t.Fatalf("DisclosedRoles() = %v, want reviewer disclosed via email match", got)
	}
}

func TestDisclosedRolesExpiredRoleBinding(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	scope := doc.Doc{
		"@id": "graph:demo",
		"editor": map[string]any{
			"@type": "ContributorRole", "roleName": "editor",
			"editor":  map[string]any{"@id": "user:ed"},
			"endTime": "2025-01-01T00:00:00Z",
		},
		"hasDigitalDocumentPermission": map[string]any{
			"permissionType":  "ViewIdentityPermission",
			"grantee":         map[string]any{"audienceType": "editor"},
			"permissionScope": map[string]any{"audienceType": "reviewer"},
		},
	}
	got := Resolver{}.DisclosedRoles(doc.Doc{"@id": "user:ed"}, scope, now, nil)
	if got["reviewer"] {
		t.Fatal("expired role binding should not grant its audience")
	}
}

func TestDisclosedRolesExpiredGrant(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	scope := doc.Doc{
		"@id": "graph:demo",
		"hasDigitalDocumentPermission": map[string]any{
			"permissionType":  "ViewIdentityPermission",
			"grantee":         map[string]any{"audienceType": "public"},
			"permissionScope": map[string]any{"audienceType": "author"},
			"validUntil":      "2025-01-01T00:00:00Z",
		},
	}
	got := Resolver{}.DisclosedRoles(doc.Doc{}, scope, now, nil)
	if got["author"] {
		t.Fatal("expired grant should not disclose")
	}
}

func TestDisclosedRolesPendingInvite(t *testing.T) {
	// An invited reviewer already counts as a reviewer before accepting,
	// so they see whatever reviewers see.
	now := time.Now()
	scope := singleBlindScope()
	invites := []doc.Doc{{
		"@type": "InviteAction",
		"recipient": map[string]any{
			"@type": "ContributorRole", "roleName": "reviewer",
			"reviewer": map[string]any{"@id": "user:invited"},
		},
	}}
	got := Resolver{}.DisclosedRoles(doc.Doc{"@id": "user:invited"}, scope, now, invites)
	if !got["reviewer"] {
		t.Fatalf("DisclosedRoles() = %v, want reviewer disclosed for the invitee", got)
	}
}
