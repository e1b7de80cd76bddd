package doc

import (
	"errors"
	"strings"
)

// ErrIntegrity marks data-corruption class failures: broken references,
// cyclic embedder chains, blinding invoked without its contract inputs.
// These map to 500-class responses, never retries.
var ErrIntegrity = errors.New("integrity violation")

// Kind is the closed set of document families the engine dispatches on.
// It is decoded from the storage key's type segment or, for embeddable
// nodes, from the id namespace prefix.
type Kind int

const (
	KindUnknown Kind = iota
	KindGraph
	KindRelease
	KindJournal
	KindOrg
	KindUser
	KindProfile
	KindService
	KindAction
	KindWorkflow
	KindIssue
	KindRole
	KindNode
	KindContact
	KindAudience
)

var kindNames = map[Kind]string{
	KindGraph:    "graph",
	KindRelease:  "release",
	KindJournal:  "journal",
	KindOrg:      "org",
	KindUser:     "user",
	KindProfile:  "profile",
	KindService:  "service",
	KindAction:   "action",
	KindWorkflow: "workflow",
	KindIssue:    "issue",
	KindRole:     "role",
	KindNode:     "node",
	KindContact:  "contact",
	KindAudience: "audience",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// KindOf maps a storage-key type segment to its Kind.
func KindOf(name string) Kind {
	return kindsByName[name]
}

// KindOfID infers the Kind from an id's namespace prefix. Blank nodes
// ("_:") are embeddable sub-nodes.
func KindOfID(id string) Kind {
	if strings.HasPrefix(id, "_:") {
		return KindNode
	}
	i := strings.IndexByte(id, ':')
	if i <= 0 {
		return KindUnknown
	}
	return kindsByName[id[:i]]
}

// IsEmbeddable reports whether the kind only exists inside an embedder and
// therefore delegates scope and visibility to it.
func (k Kind) IsEmbeddable() bool {
	switch k {
	case KindRole, KindNode, KindContact, KindAudience:
		return true
	}
	return false
}

// IsRootScope reports whether ids of this kind are themselves aggregate
// roots.
func (k Kind) IsRootScope() bool {
	switch k {
	case KindGraph, KindJournal, KindOrg:
		return true
	}
	return false
}

// Unprefix strips the namespace prefix from a CURIE-style id:
// "user:peter" -> "peter". Blank-node and unprefixed ids are returned
// unchanged.
func Unprefix(id string) string {
	if strings.HasPrefix(id, "_:") {
		return id
	}
	if i := strings.IndexByte(id, ':'); i > 0 {
		return id[i+1:]
	}
	return id
}

// StripVersion removes a version query suffix from a root-scope id:
// "graph:demo?version=1.0.0" -> "graph:demo".
func StripVersion(id string) string {
	if i := strings.IndexByte(id, '?'); i >= 0 {
		return id[:i]
	}
	return id
}
