// Package acl decides document read access: an async public-availability
// walk over scope chains, and a synchronous type-dispatched permission
// evaluator. Denial is a zero result, never an error — callers filter
// collections without aborting the response.
package acl

// Permission is the capability kind the authorization oracle answers for.
type Permission string

const (
	PermRead  Permission = "ReadPermission"
	PermWrite Permission = "WritePermission"
	PermAdmin Permission = "AdminPermission"
)

// Capability is the injected authorization oracle: scope-level capability
// checks plus the identity test used for agent/participant/recipient
// membership.
type Capability interface {
	// HasPermission reports whether the caller holds p on the scope.
	HasPermission(scopeID string, p Permission) bool
	// IsCaller reports whether ref (an id string, a person node, or a
	// role container) denotes the caller.
	IsCaller(ref any) bool
}
