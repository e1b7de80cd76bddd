// Package blind rewrites participant identities in documents according to
// the viewer's disclosure rights: identities the viewer may see gain a
// deterministic pseudonym alias, all others are replaced by an opaque
// anonymous stub. Pseudonyms are scoped — the derivation key is the owning
// graph's secret, so the same person blinds identically everywhere within a
// scope and unlinkably across scopes.
package blind

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lectern/api/internal/doc"
	"lectern/api/internal/scope"
	"lectern/api/internal/store"
)

// BotAgent is the system bot identity; it participates in workflow actions
// and is never blinded.
const BotAgent = "user:bot"

// editableOffline lists the action types whose payload is edited out of
// band and contains no hidden identities by construction while the action
// is still editable.
var editableOffline = map[string]bool{
	"ReviewAction":      true,
	"AssessAction":      true,
	"TypesettingAction": true,
	"DeclareAction":     true,
	"PayAction":         true,
}

// Oracle resolves which role names a viewer may see real identities for.
type Oracle interface {
	DisclosedRoles(viewer doc.Doc, scopeDoc doc.Doc, now time.Time, pendingInvites []doc.Doc) map[string]bool
}

// Engine is the identity blinding engine. It never mutates inputs; every
// rewrite produces fresh values over shared unchanged children.
type Engine struct {
	Store  store.Fetcher
	Oracle Oracle
}

// Options carries the viewer context of one Anonymize call.
type Options struct {
	// Viewer is the caller's identity document (at minimum an "@id"
	// and/or "email"). An empty viewer is an anonymous public reader.
	Viewer doc.Doc
	// Correlate strips role ids and identities entirely while keeping
	// pseudonyms stable, for building cross-scope role indexes.
	Correlate bool
	// Disabled passes documents through unchanged.
	Disabled bool
	// Now anchors time-bounded disclosure rules; zero means time.Now().
	Now time.Time
}

// Anonymize rewrites a document or a list of documents for the viewer. The
// result has the same shape as the input. Fetches within one call share a
// cache whose lifetime is exactly this call.
func (e *Engine) Anonymize(ctx context.Context, v any, opt Options) (any, error) {
	if opt.Disabled {
		return v, nil
	}
	if opt.Now.IsZero() {
		opt.Now = time.Now()
	}
	cache := map[string]doc.Doc{}

	switch val := v.(type) {
	case []doc.Doc:
		out := make([]doc.Doc, len(val))
		for i, d := range val {
			blinded, err := e.anonymize(ctx, d, opt, cache)
			if err != nil {
				return nil, err
			}
			out[i] = blinded
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			d, ok := doc.AsDoc(item)
			if !ok {
				out[i] = item
				continue
			}
			blinded, err := e.anonymize(ctx, d, opt, cache)
			if err != nil {
				return nil, err
			}
			out[i] = map[string]any(blinded)
		}
		return out, nil
	}

	d, ok := doc.AsDoc(v)
	if !ok {
		return v, nil
	}
	return e.anonymize(ctx, d, opt, cache)
}

func (e *Engine) anonymize(ctx context.Context, d doc.Doc, opt Options, cache map[string]doc.Doc) (doc.Doc, error) {
	switch dispatchKind(d) {
	case doc.KindGraph, doc.KindRelease:
		return e.blindGraph(ctx, d, opt, cache)

	case doc.KindAction:
		return e.blindAction(ctx, d, opt, cache)

	case doc.KindRole:
		return e.blindStandaloneRole(ctx, d, opt, cache)
	}

	switch d.Type() {
	case "SearchResultList", "HydratedSearchResultList":
		return e.blindSearchResults(ctx, d, opt, cache)
	case "DataFeed":
		return e.rewriteList(ctx, d, "dataFeedElement", opt, cache)
	case "DataFeedItem", "ListItem":
		return e.rewriteList(ctx, d, "item", opt, cache)
	}

	return d, nil
}

// ---- graphs ----------------------------------------------------------------

func (e *Engine) blindGraph(ctx context.Context, graph doc.Doc, opt Options, cache map[string]doc.Doc) (doc.Doc, error) {
	secret := scopeSecret(graph)
	viewer, err := e.resolveViewer(ctx, graph, opt, cache)
	if err != nil {
		return nil, err
	}
	disclosed := e.Oracle.DisclosedRoles(opt.Viewer, graph, opt.Now, pendingInvites(graph))

	// Fully open disclosure: nothing to hide. The scope secret still never
	// leaves the engine.
	if fullyOpen(disclosed) {
		return graph.Without("encryptionKey"), nil
	}

	updates := map[string]any{}
	for _, roleName := range doc.ContributorRoles {
		raw, ok := graph[roleName]
		if !ok || raw == nil {
			continue
		}
		kept := make([]any, 0)
		for _, v := range doc.Values(raw) {
			role, ok := doc.AsDoc(v)
			if !ok {
				kept = append(kept, v)
				continue
			}
			blinded, err := blindRole(role, viewer, disclosed, secret, opt.Correlate)
			if err != nil {
				return nil, err
			}
			kept = append(kept, map[string]any(blinded))
		}
		updates[roleName] = doc.Rewrap(raw, kept)
	}

	if nodes := graph.List("@graph"); len(nodes) > 0 {
		rewritten, err := blindFlatNodes(nodes, viewer, disclosed, secret)
		if err != nil {
			return nil, err
		}
		updates["@graph"] = rewritten
	}

	return graph.With(updates).Without("encryptionKey"), nil
}

// blindFlatNodes walks a flattened node set: roles reference their bound
// identity nodes by id. Disclosed identities gain a sameAs alias; hidden
// ones are replaced by stub nodes and the orphaned identity nodes are
// compacted away. Blank-node ids are never renamed.
func blindFlatNodes(nodes []any, viewer viewerIdentity, disclosed map[string]bool, secret string) ([]any, error) {
	index := make(map[string]doc.Doc, len(nodes))
	order := make([]string, 0, len(nodes))
	for _, v := range nodes {
		if node, ok := doc.AsDoc(v); ok && node.ID() != "" {
			index[node.ID()] = node
			order = append(order, node.ID())
		}
	}

	hidden := map[string]bool{}
	for _, id := range order {
		node := index[id]
		roleName := node.GetString("roleName")
		if !doc.IsContributorRole(roleName) {
			continue
		}
		agentRef, ok := doc.RoleAgent(node)
		if !ok {
			continue
		}
		agentID := doc.NodeID(agentRef)
		agentNode, bound := index[agentID]
		if !bound {
			if inline, ok := doc.AsDoc(agentRef); ok {
				agentNode = inline
			} else {
				continue
			}
		}

		identity := agentID
		if identity == "" {
			identity = agentNode.GetString("email")
		}
		if identity == "" {
			continue
		}
		stub, err := Stub(roleName, doc.Unprefix(identity), secret)
		if err != nil {
			return nil, err
		}

		agentField := "agent"
		if _, ok := node[roleName]; ok {
			agentField = roleName
		}

		visible := disclosed[roleName] ||
			viewer.matchesAgent(agentRef) || viewer.matchesAgent(map[string]any(agentNode)) ||
			(viewer.roleID != "" && id == viewer.roleID)

		if visible {
			if bound {
				index[agentID] = agentNode.With(map[string]any{
					"sameAs": append(append([]any{}, agentNode.List("sameAs")...), stub),
				})
			} else {
				index[id] = node.With(map[string]any{agentField: withAlias(agentRef, stub)})
			}
			continue
		}

		stripped := node.Without(sensitiveRoleFields...).With(map[string]any{agentField: stub})
		index[id] = stripped
		if _, exists := index[stub]; !exists {
			index[stub] = doc.Doc(anonymousAgent(map[string]any(agentNode), stub))
			order = append(order, stub)
		}
		if bound {
			hidden[agentID] = true
		}
	}

	// Compact: identity nodes only reachable through now-rewritten role
	// references are dropped.
	referenced := map[string]bool{}
	for _, id := range order {
		if hidden[id] {
			continue
		}
		collectRefs(map[string]any(index[id]), referenced)
	}
	out := make([]any, 0, len(order))
	for _, id := range order {
		if hidden[id] && !referenced[id] {
			continue
		}
		out = append(out, map[string]any(index[id]))
	}
	return out, nil
}

// collectRefs gathers every id mentioned by a node's fields, excluding the
// node's own id.
func collectRefs(v any, into map[string]bool) {
	switch val := v.(type) {
	case string:
		if strings.ContainsRune(val, ':') {
			into[val] = true
		}
	case []any:
		for _, item := range val {
			collectRefs(item, into)
		}
	case map[string]any:
		for k, item := range val {
			if k == "@id" {
				continue
			}
			collectRefs(item, into)
		}
	case doc.Doc:
		collectRefs(map[string]any(val), into)
	}
}

// ---- actions ---------------------------------------------------------------

func (e *Engine) blindAction(ctx context.Context, action doc.Doc, opt Options, cache map[string]doc.Doc) (doc.Doc, error) {
	scopeID, err := scope.Resolve(action)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(scopeID, "graph:") {
		scopeID = embeddedGraphScope(action)
	}

	out := action
	if scopeID != "" {
		// Editable-offline actions contain no hidden identities by
		// construction until they leave their editable status.
		if !(editableOffline[action.Type()] && action.Status().Editable()) {
			out, err = e.blindActionParticipants(ctx, action, scopeID, opt, cache)
			if err != nil {
				return nil, err
			}
		}
	}
	return e.postProcessAction(ctx, out, opt, cache)
}

func (e *Engine) blindActionParticipants(ctx context.Context, action doc.Doc, scopeID string, opt Options, cache map[string]doc.Doc) (doc.Doc, error) {
	graph, err := e.fetch(ctx, scopeID, cache)
	if err != nil {
		return nil, err
	}
	secret := scopeSecret(graph)
	viewer, err := e.resolveViewer(ctx, graph, opt, cache)
	if err != nil {
		return nil, err
	}
	disclosed := e.Oracle.DisclosedRoles(opt.Viewer, graph, opt.Now, pendingInvites(graph))
	if fullyOpen(disclosed) {
		return action, nil
	}

	updates := map[string]any{}
	for _, field := range []string{"agent", "participant", "recipient"} {
		raw, ok := action[field]
		if !ok || raw == nil {
			continue
		}
		kept := make([]any, 0)
		for _, v := range doc.Values(raw) {
			blinded, err := blindParticipant(v, viewer, disclosed, secret)
			if err != nil {
				return nil, err
			}
			kept = append(kept, blinded)
		}
		updates[field] = doc.Rewrap(raw, kept)
	}
	return action.With(updates), nil
}

// blindParticipant applies the per-role rule to one participant value.
// Audience values and the system bot pass through unchanged.
func blindParticipant(v any, viewer viewerIdentity, disclosed map[string]bool, secret string) (any, error) {
	if doc.NodeID(v) == BotAgent {
		return v, nil
	}
	node, ok := doc.AsDoc(v)
	if !ok {
		// Bare references inside actions denote audiences or the bot by
		// construction; anything else has no role to blind under.
		return v, nil
	}
	switch node.Type() {
	case "Audience", "AudienceRole":
		return v, nil
	}
	blinded, err := blindRole(node, viewer, disclosed, secret, false)
	if err != nil {
		return nil, err
	}
	return map[string]any(blinded), nil
}

// postProcessAction recursively blinds result and nested potential actions
// with the same viewer context. Applies to every action regardless of which
// branch produced it.
func (e *Engine) postProcessAction(ctx context.Context, action doc.Doc, opt Options, cache map[string]doc.Doc) (doc.Doc, error) {
	updates := map[string]any{}
	for _, field := range []string{"result", "potentialAction"} {
		raw, ok := action[field]
		if !ok || raw == nil {
			continue
		}
		kept := make([]any, 0)
		for _, v := range doc.Values(raw) {
			sub, ok := doc.AsDoc(v)
			if !ok {
				kept = append(kept, v)
				continue
			}
			blinded, err := e.anonymize(ctx, sub, opt, cache)
			if err != nil {
				return nil, err
			}
			kept = append(kept, map[string]any(blinded))
		}
		updates[field] = doc.Rewrap(raw, kept)
	}
	if len(updates) == 0 {
		return action, nil
	}
	return action.With(updates), nil
}

// embeddedGraphScope resolves an action into a graph scope through the
// documents it operates on.
func embeddedGraphScope(action doc.Doc) string {
	for _, field := range []string{"object", "result", "instrument", "targetCollection"} {
		for _, v := range doc.Values(action[field]) {
			scopeID, err := scope.Resolve(v)
			if err == nil && strings.HasPrefix(scopeID, "graph:") {
				return scopeID
			}
		}
	}
	return ""
}

// ---- lists and standalone roles --------------------------------------------

func (e *Engine) blindSearchResults(ctx context.Context, list doc.Doc, opt Options, cache map[string]doc.Doc) (doc.Doc, error) {
	raw := list["itemListElement"]
	kept := make([]any, 0)
	for _, v := range doc.Values(raw) {
		entry, ok := doc.AsDoc(v)
		if !ok {
			kept = append(kept, v)
			continue
		}
		item, ok := entry.Node("item")
		if !ok {
			kept = append(kept, v)
			continue
		}
		blinded, err := e.anonymize(ctx, item, opt, cache)
		if err != nil {
			return nil, err
		}
		kept = append(kept, map[string]any(entry.With(map[string]any{"item": map[string]any(blinded)})))
	}

	out := list.With(map[string]any{"itemListElement": doc.Rewrap(raw, kept)})
	if list.Type() != "HydratedSearchResultList" {
		return out, nil
	}

	// Hydration side-loads flat nodes; keep only user identities the
	// surviving items still reference, so nothing leaks around the items.
	referenced := map[string]bool{}
	for _, v := range kept {
		collectRefs(v, referenced)
	}
	nodes := make([]any, 0)
	for _, v := range out.List("@graph") {
		node, ok := doc.AsDoc(v)
		if ok && doc.KindOfID(node.ID()) == doc.KindUser && !referenced[node.ID()] {
			continue
		}
		nodes = append(nodes, v)
	}
	return out.With(map[string]any{"@graph": nodes}), nil
}

func (e *Engine) rewriteList(ctx context.Context, d doc.Doc, field string, opt Options, cache map[string]doc.Doc) (doc.Doc, error) {
	raw, ok := d[field]
	if !ok || raw == nil {
		return d, nil
	}
	kept := make([]any, 0)
	for _, v := range doc.Values(raw) {
		sub, ok := doc.AsDoc(v)
		if !ok {
			kept = append(kept, v)
			continue
		}
		blinded, err := e.anonymize(ctx, sub, opt, cache)
		if err != nil {
			return nil, err
		}
		kept = append(kept, map[string]any(blinded))
	}
	return d.With(map[string]any{field: doc.Rewrap(raw, kept)}), nil
}

// blindStandaloneRole handles roles served outside their graph (role search
// indexes). Only canonical roles bound to a submission graph are blinded.
func (e *Engine) blindStandaloneRole(ctx context.Context, role doc.Doc, opt Options, cache map[string]doc.Doc) (doc.Doc, error) {
	if !doc.IsContributorRole(role.GetString("roleName")) {
		return role, nil
	}
	scopeID, err := scope.Resolve(role)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(scopeID, "graph:") {
		return role, nil
	}

	graph, err := e.fetch(ctx, scopeID, cache)
	if err != nil {
		return nil, err
	}
	viewer, err := e.resolveViewer(ctx, graph, opt, cache)
	if err != nil {
		return nil, err
	}
	disclosed := e.Oracle.DisclosedRoles(opt.Viewer, graph, opt.Now, pendingInvites(graph))
	return blindRole(role, viewer, disclosed, scopeSecret(graph), opt.Correlate)
}

// ---- shared helpers --------------------------------------------------------

// resolveViewer binds the caller to their effective role within the scope
// graph, falling back to the raw viewer. A missing profile during email
// enrichment means "no data", not failure.
func (e *Engine) resolveViewer(ctx context.Context, graph doc.Doc, opt Options, cache map[string]doc.Doc) (viewerIdentity, error) {
	viewer := viewerIdentity{
		id:    opt.Viewer.ID(),
		email: opt.Viewer.GetString("email"),
	}
	if viewer.id == "" && viewer.email == "" {
		return viewer, nil
	}

	if viewer.email == "" && doc.KindOfID(viewer.id) == doc.KindUser {
		profile, err := e.fetch(ctx, "profile:"+doc.Unprefix(viewer.id), cache)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// tolerated: optional prefetch
		case err != nil:
			return viewerIdentity{}, err
		default:
			viewer.email = profile.GetString("email")
		}
	}

	for _, roleName := range doc.ContributorRoles {
		for _, v := range graph.List(roleName) {
			role, ok := doc.AsDoc(v)
			if !ok {
				continue
			}
			if agent, ok := doc.RoleAgent(role); ok && viewer.matchesAgent(agent) {
				viewer.roleID = role.ID()
				return viewer, nil
			}
		}
	}
	return viewer, nil
}

// pendingInvites collects not-yet-accepted invite actions embedded in the
// scope, so invited participants already count for disclosure.
func pendingInvites(scopeDoc doc.Doc) []doc.Doc {
	var invites []doc.Doc
	for _, v := range scopeDoc.List("potentialAction") {
		action, ok := doc.AsDoc(v)
		if !ok || action.Type() != "InviteAction" {
			continue
		}
		switch action.Status() {
		case doc.StatusPotential, doc.StatusActive:
			invites = append(invites, action)
		}
	}
	return invites
}

// scopeSecret extracts the per-scope pseudonym secret.
func scopeSecret(scopeDoc doc.Doc) string {
	switch v := scopeDoc["encryptionKey"].(type) {
	case string:
		return v
	case map[string]any:
		if s, ok := v["value"].(string); ok {
			return s
		}
	}
	return ""
}

func (e *Engine) fetch(ctx context.Context, id string, cache map[string]doc.Doc) (doc.Doc, error) {
	if d, ok := cache[id]; ok {
		return d, nil
	}
	d, err := e.Store.Fetch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("blind: %w", err)
	}
	cache[id] = d
	return d, nil
}

// dispatchKind decodes the engine's dispatch kind: storage key first, id
// namespace second, "...Action" type tags last.
func dispatchKind(d doc.Doc) doc.Kind {
	if key, ok := doc.ParseKey(d.Key()); ok {
		if k := key.Kind(); k != doc.KindUnknown {
			return k
		}
	}
	if k := doc.KindOfID(d.ID()); k != doc.KindUnknown {
		return k
	}
	if strings.HasSuffix(d.Type(), "Action") {
		return doc.KindAction
	}
	return doc.KindUnknown
}
