// Package portal is a small group gated web portal backed by a directory.
//
// Sessions:
//   - Provider is the only writer of session state. Login verifies
//     credentials against the Directory, mints a signed credential whose
//     token id keys a SessionRecord, and saves the record in the
//     SessionStore. Logout deletes it.
//   - Every request gets an AuthState from RouteAuthenticator's session
//     middleware. A store that cannot answer leaves the state loading
//     rather than anonymous.
//
// Access:
//   - Decide applies the guard checks in a fixed order: loading, then
//     authentication, then group membership. Protect and ProtectAPI render
//     the decision as pages or JSON errors.
//   - DashboardPriority resolves the single landing page for a user's
//     groups. Users without a matching group get an explicit page.
//
// Activity sinks:
//   - ActivitySink receives login, registration, access and dashboard
//     events. Sinks run best effort (errors are logged) so a slow audit
//     store never blocks authentication.
package portal
