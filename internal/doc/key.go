package doc

import "strings"

// Storage keys address a document by its owning scope, decoded type, and
// status or version: "graph:demo::action::active". Scope ids may themselves
// contain a single colon, so segments are joined with a double colon.
const keySep = "::"

// StorageKey is the decoded form of an internal storage key.
type StorageKey struct {
	ScopeID string
	Type    string
	Status  string
}

// EncodeKey builds the storage key for (scopeID, type, status).
func EncodeKey(scopeID, typ, status string) string {
	return scopeID + keySep + typ + keySep + status
}

// ParseKey decodes a storage key. ok is false when the value is not
// key-shaped (callers fall back to public-id inference).
func ParseKey(key string) (StorageKey, bool) {
	parts := strings.Split(key, keySep)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return StorageKey{}, false
	}
	return StorageKey{ScopeID: parts[0], Type: parts[1], Status: parts[2]}, true
}

// Kind returns the Kind of the key's type segment.
func (k StorageKey) Kind() Kind {
	return KindOf(k.Type)
}
