package blind

import (
	"lectern/api/internal/doc"
)

// sensitiveRoleFields are stripped from a role whose identity the viewer
// may not see. They cover everything that could re-identify the agent
// around the pseudonym.
var sensitiveRoleFields = []string{
	"roleContactPoint",
	"contactPoint",
	"affiliation",
	"funder",
	"sponsor",
	"award",
}

// viewerIdentity is the resolved caller identity within one scope.
type viewerIdentity struct {
	id     string
	email  string
	roleID string
}

func (v viewerIdentity) matchesAgent(agent any) bool {
	id := doc.NodeID(agent)
	if id != "" && id == v.id {
		return true
	}
	if node, ok := doc.AsDoc(agent); ok {
		if email := node.GetString("email"); email != "" && email == v.email {
			return true
		}
	}
	return false
}

// fullyOpen reports whether the disclosure set covers every canonical role
// name — the open-review short-circuit.
func fullyOpen(disclosed map[string]bool) bool {
	for _, name := range doc.ContributorRoles {
		if !disclosed[name] {
			return false
		}
	}
	return true
}

// blindRole applies the per-role blinding rule: pass through, attach a
// sameAs pseudonym alias, or replace the identity with an anonymous stub.
// The input role is never mutated.
func blindRole(role doc.Doc, viewer viewerIdentity, disclosed map[string]bool, secret string, correlate bool) (doc.Doc, error) {
	roleName := role.GetString("roleName")
	agent, hasAgent := doc.RoleAgent(role)

	identity := ""
	if hasAgent {
		identity = doc.NodeID(agent)
		if identity == "" {
			if node, ok := doc.AsDoc(agent); ok {
				identity = node.GetString("email")
			}
		}
	}

	// Nothing sensitive to hide: a role without a bound identity carries
	// only its name.
	if identity == "" && !correlate {
		return role, nil
	}

	if fullyOpen(disclosed) {
		return role, nil
	}

	stub, err := Stub(roleName, doc.Unprefix(identity), secret)
	if err != nil {
		return nil, err
	}

	visible := disclosed[roleName] ||
		viewer.matchesAgent(agent) ||
		(viewer.roleID != "" && (role.ID() == viewer.roleID || role.GetString("roleId") == viewer.roleID))

	agentField := "agent"
	if roleName != "" {
		if _, ok := role[roleName]; ok {
			agentField = roleName
		}
	}

	if visible {
		return role.With(map[string]any{agentField: withAlias(agent, stub)}), nil
	}

	anon := anonymousAgent(agent, stub)
	out := role.Without(sensitiveRoleFields...).With(map[string]any{agentField: anon})
	if correlate {
		// Correlated-id mode: the caller needs stable role correlation
		// without learning which scope or identity a role belongs to.
		out = out.Without("@id", "roleId", agentField)
		if embedder, ok := out.Node("isNodeOf"); ok {
			out = out.With(map[string]any{"isNodeOf": map[string]any{"@type": embedder.Type()}})
		} else if out.GetString("isNodeOf") != "" {
			out = out.Without("isNodeOf")
		}
	}
	return out, nil
}

// withAlias appends the pseudonym to the identity's sameAs list without
// touching the original node. Plain id references are promoted to nodes so
// the alias has somewhere to live.
func withAlias(agent any, stub string) map[string]any {
	node, ok := doc.AsDoc(agent)
	if !ok {
		return map[string]any{"@id": doc.NodeID(agent), "sameAs": []any{stub}}
	}
	aliases := append(append([]any{}, node.List("sameAs")...), stub)
	return node.With(map[string]any{"sameAs": aliases})
}

// anonymousAgent is the minimal typed stub standing in for a hidden
// identity.
func anonymousAgent(agent any, stub string) map[string]any {
	typ := "Person"
	if node, ok := doc.AsDoc(agent); ok {
		if t := node.Type(); t != "" {
			typ = t
		}
	}
	return map[string]any{"@id": stub, "@type": typ}
}
