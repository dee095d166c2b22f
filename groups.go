package portal

import "strings"

const (
	// GroupAdmin is the administrators directory group
	GroupAdmin = "Group_A"
	// GroupUser is the standard users directory group
	GroupUser = "Group_B"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// GroupRole maps a directory group onto the stored role label.
type GroupRole struct {
	Group string
	Role  string
}

// GroupRoles is checked in order, first match wins.
var GroupRoles = []GroupRole{
	{Group: GroupAdmin, Role: RoleAdmin},
	{Group: GroupUser, Role: RoleUser},
}

// IsKnownGroup reports whether users may register into group.
func IsKnownGroup(group string) bool {
	for _, gr := range GroupRoles {
		if gr.Group == group {
			return true
		}
	}
	return false
}

// KnownGroups returns the groups users may register into.
func KnownGroups() []string {
	out := make([]string, 0, len(GroupRoles))
	for _, gr := range GroupRoles {
		out = append(out, gr.Group)
	}
	return out
}

// RoleForGroups returns the role of the first matching group, or "" when
// none of the groups carry a role.
func RoleForGroups(groups []string) string {
	for _, gr := range GroupRoles {
		if HasGroup(groups, gr.Group) {
			return gr.Role
		}
	}
	return ""
}

// HasGroup is an exact, case sensitive membership check.
func HasGroup(groups []string, group string) bool {
	if group == "" {
		return false
	}
	for _, g := range groups {
		if g == group {
			return true
		}
	}
	return false
}

// NormalizeGroups trims names, drops blanks and duplicates, keeping order.
func NormalizeGroups(groups []string) []string {
	seen := make(map[string]struct{}, len(groups))
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}
