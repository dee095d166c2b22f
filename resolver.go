package portal

// DashboardRoute binds a group to the landing page its members get.
type DashboardRoute struct {
	Group string
	Path  string
	Label string
}

// DashboardPriority is an ordered list; earlier entries win ties.
type DashboardPriority []DashboardRoute

// DefaultDashboards sends admins to /admin ahead of anything else.
var DefaultDashboards = DashboardPriority{
	{Group: GroupAdmin, Path: "/admin", Label: "Admin Dashboard"},
	{Group: GroupUser, Path: "/user", Label: "User Dashboard"},
}

// Resolve picks exactly one dashboard for user. It returns
// ErrUnauthenticated for a nil user and ErrNoDashboard when no entry
// matches the user's groups.
func (p DashboardPriority) Resolve(user *User) (DashboardRoute, error) {
	if user == nil {
		return DashboardRoute{}, ErrUnauthenticated
	}

	for _, route := range p {
		if user.InGroup(route.Group) {
			return route, nil
		}
	}

	return DashboardRoute{}, ErrNoDashboard
}

// Reachable lists every dashboard the user may open, in priority order.
func (p DashboardPriority) Reachable(user *User) []DashboardRoute {
	if user == nil {
		return nil
	}

	out := make([]DashboardRoute, 0, len(p))
	for _, route := range p {
		if user.InGroup(route.Group) {
			out = append(out, route)
		}
	}
	return out
}

// ResolveDashboard uses DefaultDashboards.
func ResolveDashboard(user *User) (DashboardRoute, error) {
	return DefaultDashboards.Resolve(user)
}
