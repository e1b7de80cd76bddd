package app

import (
	"context"
	"time"

	"lectern/api/internal/acl"
	"lectern/api/internal/doc"
	"lectern/api/internal/store"
)

// permissionRank orders capability kinds so stronger grants imply weaker
// ones.
var permissionRank = map[acl.Permission]int{
	acl.PermRead:  1,
	acl.PermWrite: 2,
	acl.PermAdmin: 3,
}

// writerRoles are the role names whose holders may modify scope content.
var writerRoles = map[string]bool{"editor": true, "producer": true}

// scopeCapability is the per-request authorization oracle handed to the ACL
// evaluator. Capabilities come from the scope document itself: active role
// bindings grant Read (Write for editors and producers), and explicit
// DigitalDocumentPermission grants add the rest. Scope lookups within a
// request share a cache.
type scopeCapability struct {
	ctx    context.Context
	docs   store.Fetcher
	viewer doc.Doc
	now    time.Time
	cache  map[string]doc.Doc
}

func newScopeCapability(ctx context.Context, docs store.Fetcher, viewer doc.Doc, now time.Time) *scopeCapability {
	return &scopeCapability{
		ctx:    ctx,
		docs:   docs,
		viewer: viewer,
		now:    now,
		cache:  map[string]doc.Doc{},
	}
}

func (c *scopeCapability) HasPermission(scopeID string, p acl.Permission) bool {
	if c.viewer.ID() == "" && c.viewer.GetString("email") == "" {
		return false
	}
	scopeDoc, err := c.fetch(scopeID)
	if err != nil {
		return false
	}
	return permissionRank[c.strongest(scopeDoc)] >= permissionRank[p]
}

func (c *scopeCapability) strongest(scopeDoc doc.Doc) acl.Permission {
	var best acl.Permission

	upgrade := func(p acl.Permission) {
		if permissionRank[p] > permissionRank[best] {
			best = p
		}
	}

	for _, roleName := range doc.ContributorRoles {
		for _, v := range scopeDoc.List(roleName) {
			role, ok := doc.AsDoc(v)
			if !ok || !c.activeAt(role) {
				continue
			}
			agent, ok := doc.RoleAgent(role)
			if !ok || !c.IsCaller(agent) {
				continue
			}
			if writerRoles[roleName] {
				upgrade(acl.PermWrite)
			} else {
				upgrade(acl.PermRead)
			}
		}
	}

	for _, v := range scopeDoc.List("hasDigitalDocumentPermission") {
		grant, ok := doc.AsDoc(v)
		if !ok {
			continue
		}
		p := acl.Permission(grant.GetString("permissionType"))
		if _, known := permissionRank[p]; !known {
			continue
		}
		for _, g := range grant.List("grantee") {
			if c.IsCaller(g) {
				upgrade(p)
				break
			}
		}
	}
	return best
}

// IsCaller reports whether ref denotes the viewer: a matching id, a
// matching email, or a role container binding either.
func (c *scopeCapability) IsCaller(ref any) bool {
	if ref == nil {
		return false
	}
	viewerID := c.viewer.ID()
	viewerEmail := c.viewer.GetString("email")

	if id := doc.NodeID(ref); id != "" && id == viewerID {
		return true
	}
	node, ok := doc.AsDoc(ref)
	if !ok {
		return false
	}
	if email := node.GetString("email"); email != "" && email == viewerEmail {
		return true
	}
	if agent, ok := doc.RoleAgent(node); ok {
		return c.IsCaller(agent)
	}
	return false
}

func (c *scopeCapability) activeAt(role doc.Doc) bool {
	if start := role.GetString("startTime"); start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil || c.now.Before(t) {
			return false
		}
	}
	if end := role.GetString("endTime"); end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil || !c.now.Before(t) {
			return false
		}
	}
	return true
}

func (c *scopeCapability) fetch(id string) (doc.Doc, error) {
	if d, ok := c.cache[id]; ok {
		return d, nil
	}
	d, err := c.docs.Fetch(c.ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache[id] = d
	return d, nil
}
