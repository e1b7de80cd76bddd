package acl

import (
	"strings"

	"lectern/api/internal/doc"
	"lectern/api/internal/scope"
)

// Context carries the precomputed inputs of one synchronous read check.
type Context struct {
	Capability Capability
	// IsPublic is the availability flag computed upstream for the
	// document's relevant ancestry (journal availability for graphs).
	IsPublic bool
	// IsAdmin bypasses every scope rule.
	IsAdmin bool
	// ScopeID overrides scope decoding when the caller already knows it.
	ScopeID string
	// Disabled passes documents through unchecked (trusted internal
	// reads).
	Disabled bool
}

// Check evaluates read access for d. The second return is false on denial;
// denied documents are omitted, never errored. Nested potential actions are
// re-checked individually and the unauthorized subset is stripped from the
// returned copy.
func Check(d doc.Doc, ctx Context) (doc.Doc, bool) {
	if ctx.Disabled {
		return d, true
	}
	if d == nil {
		return nil, false
	}

	d = pruneNestedActions(d, ctx)

	scopeID, kind := decode(d, ctx)
	if scopeID == "" {
		return nil, false
	}

	if allowed(d, kind, scopeID, ctx) {
		return d, true
	}
	return nil, false
}

// pruneNestedActions re-evaluates every nested potentialAction with the
// parent's public flag withdrawn — embedded actions never inherit public
// availability — and rewraps the surviving subset in the original shape.
// Actions parked on a side-branch status (canceled, failed) are workflow
// bookkeeping and are only surfaced to admins.
func pruneNestedActions(d doc.Doc, ctx Context) doc.Doc {
	raw, ok := d["potentialAction"]
	if !ok || raw == nil {
		return d
	}
	nested := ctx
	nested.IsPublic = false
	nested.ScopeID = ""

	kept := make([]any, 0)
	for _, v := range doc.Values(raw) {
		sub, ok := doc.AsDoc(v)
		if !ok {
			continue
		}
		if s := sub.Status(); s != doc.StatusUnknown &&
			!s.AtLeast(doc.StatusPotential) && !ctx.IsAdmin {
			continue
		}
		if out, ok := Check(sub, nested); ok {
			kept = append(kept, map[string]any(out))
		}
	}
	return d.WithRewrapped("potentialAction", raw, kept)
}

// decode extracts (scopeID, kind) from the storage key, falling back to
// id-namespace inference plus scope resolution for documents loaded without
// one. An underivable scope denies.
func decode(d doc.Doc, ctx Context) (string, doc.Kind) {
	if key, ok := doc.ParseKey(d.Key()); ok {
		scopeID := key.ScopeID
		if ctx.ScopeID != "" {
			scopeID = ctx.ScopeID
		}
		return scopeID, key.Kind()
	}

	kind := kindOf(d)
	scopeID := ctx.ScopeID
	if scopeID == "" {
		resolved, err := scope.Resolve(d)
		if err != nil {
			return "", kind
		}
		scopeID = resolved
	}
	return scopeID, kind
}

func allowed(d doc.Doc, kind doc.Kind, scopeID string, ctx Context) bool {
	if ctx.IsAdmin {
		return true
	}
	oracle := ctx.Capability
	if oracle == nil {
		return false
	}

	switch kind {
	case doc.KindGraph, doc.KindRelease:
		journalID := d.GetString("isPartOf")
		hasJournal := journalID != ""
		if ctx.IsPublic && hasJournal && hasAny(oracle, journalID, PermRead, PermWrite, PermAdmin) {
			return true
		}
		if oracle.HasPermission(scopeID, PermRead) && (!hasJournal || !ctx.IsPublic) {
			return true
		}
		return hasAny(oracle, scopeID, PermWrite, PermAdmin)

	case doc.KindRole, doc.KindNode, doc.KindContact, doc.KindAudience:
		return hasAny(oracle, scopeID, PermRead, PermWrite, PermAdmin)

	case doc.KindJournal, doc.KindIssue, doc.KindWorkflow,
		doc.KindUser, doc.KindProfile, doc.KindOrg, doc.KindService:
		return ctx.IsPublic || hasAny(oracle, scopeID, PermRead, PermWrite, PermAdmin)

	case doc.KindAction:
		return actionAllowed(d, scopeID, ctx)
	}

	return false
}

// actionAllowed dispatches on the action's concrete subtype.
func actionAllowed(d doc.Doc, scopeID string, ctx Context) bool {
	oracle := ctx.Capability

	switch d.Type() {
	case "RegisterAction":
		return callerIn(oracle, scopeID, false, d["agent"], d["participant"])

	case "InformAction":
		if callerIn(oracle, scopeID, false,
			d["agent"], d["sender"], d["participant"],
			d["recipient"], d["toRecipient"], d["ccRecipient"], d["bccRecipient"]) {
			return true
		}
		if instr, ok := d.Node("instrument"); ok {
			return callerIn(oracle, scopeID, false,
				instr["sender"], instr["recipient"],
				instr["toRecipient"], instr["ccRecipient"], instr["bccRecipient"])
		}
		return false

	case "CreateGraphAction":
		return callerIn(oracle, scopeID, false, d["agent"]) ||
			hasAny(oracle, scopeID, PermAdmin, PermWrite, PermRead)

	case "ReviewAction", "AssessAction", "ScheduleAction", "CreateReleaseAction",
		"DeclareAction", "PayAction", "TypesettingAction", "CommentAction",
		"PublishAction":
		return hasAny(oracle, scopeID, PermAdmin, PermRead, PermWrite) &&
			callerIn(oracle, scopeID, true, d["agent"], d["participant"], d["recipient"])

	case "ActivateAction", "DeactivateAction", "ArchiveAction", "EndorseAction",
		"StartWorkflowStageAction":
		// Deliberately permissive: these carry no sensitive payload.
		return hasAny(oracle, scopeID, PermRead, PermWrite, PermAdmin)

	case "InviteAction", "JoinAction", "ApplyAction", "AuthorizeContributorAction":
		// No scope check: recipients may not hold scope access yet.
		return callerIn(oracle, scopeID, false, d["agent"], d["participant"], d["recipient"])

	case "TagAction":
		return hasAny(oracle, scopeID, PermAdmin, PermRead, PermWrite) &&
			callerInExcluding(oracle, scopeID, "assigner", d["agent"], d["participant"])
	}

	if oracle.HasPermission(scopeID, PermAdmin) {
		return true
	}
	return hasAny(oracle, scopeID, PermRead, PermWrite) &&
		callerIn(oracle, scopeID, false, d["agent"], d["participant"], d["recipient"])
}

func hasAny(oracle Capability, scopeID string, perms ...Permission) bool {
	for _, p := range perms {
		if oracle.HasPermission(scopeID, p) {
			return true
		}
	}
	return false
}

// callerIn tests caller membership across participant lists. When narrowed,
// role entries bound to a different scope do not count — agent roles are
// scope-local.
func callerIn(oracle Capability, scopeID string, narrowed bool, lists ...any) bool {
	return callerMatch(oracle, scopeID, narrowed, "", lists)
}

// callerInExcluding is callerIn skipping entries holding the excluded role
// name.
func callerInExcluding(oracle Capability, scopeID, excludeRole string, lists ...any) bool {
	return callerMatch(oracle, scopeID, true, excludeRole, lists)
}

func callerMatch(oracle Capability, scopeID string, narrowed bool, excludeRole string, lists []any) bool {
	for _, list := range lists {
		for _, v := range doc.Values(list) {
			if entry, ok := doc.AsDoc(v); ok {
				if excludeRole != "" && entry.GetString("roleName") == excludeRole {
					continue
				}
				if narrowed && strings.TrimSpace(entry.GetString("isNodeOf")) != "" {
					bound, err := scope.Resolve(entry)
					if err != nil || (bound != "" && bound != scopeID) {
						continue
					}
				}
			}
			if oracle.IsCaller(v) {
				return true
			}
		}
	}
	return false
}
