package policy

import "strings"

// RBAC checks that a role contains the required action; "*" is a wildcard
// meaning any action is permitted.
type RBAC struct{}

// Allows reports whether role grants requiredAction. Roles are a
// comma-separated list of actions or "*".
func (RBAC) Allows(role, requiredAction string) bool {
	if requiredAction == "" {
		return true
	}
	for _, granted := range strings.Split(role, ",") {
		granted = strings.TrimSpace(granted)
		if granted == "*" || granted == requiredAction {
			return true
		}
	}
	return false
}
