package portal

import "time"

// DefaultSessionTTL is how long a login stays valid server side.
const DefaultSessionTTL = 24 * time.Hour

// NewSessionRecord builds the record stored for freshly minted claims. The
// record expires with the credential.
func NewSessionRecord(claims *JWTClaims, now time.Time) *SessionRecord {
	if claims == nil {
		return nil
	}

	expires := claims.Expires()
	if expires.IsZero() {
		expires = now.Add(DefaultSessionTTL)
	}

	groups := make([]string, len(claims.UserGroups))
	copy(groups, claims.UserGroups)

	return &SessionRecord{
		ID:        claims.TokenID(),
		Username:  claims.Subject(),
		Email:     claims.Email(),
		Groups:    groups,
		Role:      claims.Role(),
		CreatedAt: now.UTC(),
		ExpiresAt: expires.UTC(),
	}
}
