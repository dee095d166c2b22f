package portal

import (
	"maps"
	"strings"
	"time"

	"github.com/goliatone/go-portal/middleware/csrf"
	"github.com/goliatone/go-router"
)

var TemplateUserKey = "current_user"

// TemplateHelpers returns the static helpers every view gets. In templates:
//
//	{% if in_group(current_user, groups.admin) %}
//	{{ csrf_field|safe }}
//
// Register them with the view engine's func map.
func TemplateHelpers() map[string]any {
	helpers := map[string]any{
		"is_authenticated": isAuthenticated,
		"in_group":         inGroup,
		"format_time":      formatTime,
	}
	maps.Copy(helpers, templateValues())
	return helpers
}

// templateValues are the non func helpers. View data goes through a JSON
// round trip before it reaches the engine, so it cannot carry funcs.
func templateValues() map[string]any {
	values := map[string]any{
		"groups": map[string]string{
			"admin": GroupAdmin,
			"user":  GroupUser,
		},
	}
	maps.Copy(values, csrf.TemplateHelpers("", csrf.DefaultFormFieldName, csrf.DefaultHeaderName))
	return values
}

// TemplateData merges the request's auth state, navigation and CSRF values
// into data. Values already in data win.
func TemplateData(ctx router.Context, data router.ViewContext) router.ViewContext {
	out := router.ViewContext{}
	maps.Copy(out, templateValues())

	if helpers, ok := ctx.Locals(csrf.DefaultTemplateHelpersKey).(map[string]any); ok {
		maps.Copy(out, helpers)
	}

	state := GetAuthState(ctx)
	out["auth_loading"] = state.Loading
	if state.Authenticated() {
		out[TemplateUserKey] = state.User
		out["user_groups"] = strings.Join(state.User.Groups, ", ")
		out["nav_links"] = DefaultDashboards.Reachable(state.User)
	} else {
		out[TemplateUserKey] = nil
		out["nav_links"] = []DashboardRoute{}
	}

	maps.Copy(out, data)
	return out
}

// isAuthenticated and inGroup take either a User or its JSON form, which
// is what templates see after view data is serialized.
func isAuthenticated(user any) bool {
	switch u := user.(type) {
	case *User:
		return u != nil && u.Username != ""
	case User:
		return u.Username != ""
	case map[string]any:
		name, _ := u["username"].(string)
		return name != ""
	}
	return false
}

func inGroup(user any, group string) bool {
	switch u := user.(type) {
	case *User:
		return u.InGroup(group)
	case User:
		return u.InGroup(group)
	case map[string]any:
		groups, _ := u["groups"].([]any)
		for _, g := range groups {
			if g == group {
				return true
			}
		}
	}
	return false
}

// TimeLayout is how views print timestamps.
const TimeLayout = "2006-01-02 15:04"

func formatTime(value any) string {
	switch t := value.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(TimeLayout)
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return t.UTC().Format(TimeLayout)
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil || parsed.IsZero() {
			return ""
		}
		return parsed.UTC().Format(TimeLayout)
	}
	return ""
}
