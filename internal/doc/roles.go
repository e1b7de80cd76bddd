package doc

// ContributorRoles are the four canonical role names whose identities are
// subject to disclosure policy. Role list fields on a graph use the same
// names.
var ContributorRoles = []string{"author", "reviewer", "editor", "producer"}

// IsContributorRole reports whether name is one of the canonical role
// names.
func IsContributorRole(name string) bool {
	for _, r := range ContributorRoles {
		if r == name {
			return true
		}
	}
	return false
}

// RoleAgent returns the identity bound by a role container: the field named
// after the roleName when present ("author" roles embed their person under
// "author"), otherwise the generic "agent" field.
func RoleAgent(role Doc) (any, bool) {
	if name := role.GetString("roleName"); name != "" {
		if v, ok := role[name]; ok && v != nil {
			return v, true
		}
	}
	if v, ok := role["agent"]; ok && v != nil {
		return v, true
	}
	return nil, false
}
