// Package visibility implements the role-visibility oracle consumed by the
// blinding engine: time-bounded public-audience checks and resolution of
// which role names a viewer may see real identities for within a scope.
package visibility

import (
	"time"

	"lectern/api/internal/doc"
)

// Resolver evaluates audience grants and identity-view permissions declared
// on documents. It is stateless; all inputs arrive as documents.
type Resolver struct{}

// HasPublicAudience reports whether d declares at least one public-audience
// grant active at now. Grants are Audience nodes under "audience" with
// optional "startDate"/"endDate" bounds.
func (Resolver) HasPublicAudience(d doc.Doc, now time.Time) bool {
	for _, v := range d.List("audience") {
		aud, ok := doc.AsDoc(v)
		if !ok {
			continue
		}
		if aud.GetString("audienceType") != "public" {
			continue
		}
		if activeAt(aud, "startDate", "endDate", now) {
			return true
		}
	}
	return false
}

// DisclosedRoles resolves the set of role names whose identities the viewer
// may see within scope at now. pendingInvites are active InviteActions whose
// recipients already count as holding the invited role's audience.
//
// The scope document declares its policy as DigitalDocumentPermission nodes
// with permissionType "ViewIdentityPermission": each grants the audiences in
// "permissionScope" to the audiences in "grantee", optionally bounded by
// "validFrom"/"validUntil".
func (r Resolver) DisclosedRoles(viewer doc.Doc, scope doc.Doc, now time.Time, pendingInvites []doc.Doc) map[string]bool {
	audiences := r.viewerAudiences(viewer, scope, now, pendingInvites)
	disclosed := make(map[string]bool)

	for _, v := range scope.List("hasDigitalDocumentPermission") {
		perm, ok := doc.AsDoc(v)
		if !ok || perm.GetString("permissionType") != "ViewIdentityPermission" {
			continue
		}
		if !activeAt(perm, "validFrom", "validUntil", now) {
			continue
		}
		granted := false
		for _, g := range perm.List("grantee") {
			if grantee, ok := doc.AsDoc(g); ok && audiences[grantee.GetString("audienceType")] {
				granted = true
				break
			}
		}
		if !granted {
			continue
		}
		for _, sc := range perm.List("permissionScope") {
			if target, ok := doc.AsDoc(sc); ok {
				if name := target.GetString("audienceType"); name != "" {
					disclosed[name] = true
				}
			}
		}
	}
	return disclosed
}

// viewerAudiences computes the audience types the viewer belongs to within
// scope: "public" always, "user" for any identified viewer, the role name of
// every active role bound to the viewer, and the invited role name of every
// pending invite addressed to the viewer.
func (r Resolver) viewerAudiences(viewer doc.Doc, scope doc.Doc, now time.Time, pendingInvites []doc.Doc) map[string]bool {
	audiences := map[string]bool{"public": true}
	viewerID := viewer.ID()
	viewerEmail := viewer.GetString("email")
	if viewerID != "" || viewerEmail != "" {
		audiences["user"] = true
	}

	matches := func(v any) bool {
		if v == nil {
			return false
		}
		id := doc.NodeID(v)
		if id != "" && id == viewerID {
			return true
		}
		if ref, ok := doc.AsDoc(v); ok {
			if email := ref.GetString("email"); email != "" && email == viewerEmail {
				return true
			}
		}
		return false
	}

	for _, roleName := range doc.ContributorRoles {
		for _, v := range scope.List(roleName) {
			role, ok := doc.AsDoc(v)
			if !ok || !activeAt(role, "startTime", "endTime", now) {
				continue
			}
			if agent, ok := doc.RoleAgent(role); ok && matches(agent) {
				audiences[roleName] = true
			}
		}
	}

	for _, invite := range pendingInvites {
		for _, v := range invite.List("recipient") {
			rec, ok := doc.AsDoc(v)
			if !ok {
				continue
			}
			target := any(rec)
			if agent, ok := doc.RoleAgent(rec); ok {
				target = agent
			}
			if matches(target) {
				if name := rec.GetString("roleName"); name != "" {
					audiences[name] = true
				}
			}
		}
	}
	return audiences
}

// activeAt checks an optional [from, until) validity window on d.
func activeAt(d doc.Doc, fromKey, untilKey string, now time.Time) bool {
	if from := d.GetString(fromKey); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil || now.Before(t) {
			return false
		}
	}
	if until := d.GetString(untilKey); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil || !now.Before(t) {
			return false
		}
	}
	return true
}
