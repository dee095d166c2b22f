package portal

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-portal/middleware/jwtware"
)

// DefaultSigningKeyID is the kid stamped on tokens when none is configured.
const DefaultSigningKeyID = "current"

// TokenService mints and validates session credentials
type TokenService interface {
	Generate(identity Identity) (string, *JWTClaims, error)
	SignClaims(claims *JWTClaims) (string, error)
	Validate(tokenString string) (AuthClaims, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	keyID           string
	signingKey      []byte
	keyFunc         jwt.Keyfunc
	tokenExpiration time.Duration
	issuer          string
	audience        jwt.ClaimStrings
	logger          Logger
	now             func() time.Time
}

// NewTokenService signs with the current key and accepts tokens signed by
// any previous key still listed in the configuration.
func NewTokenService(cfg Config, logger Logger) *TokenServiceImpl {
	if logger == nil {
		logger = defLogger{}
	}

	keyID := cfg.GetSigningKeyID()
	if keyID == "" {
		keyID = DefaultSigningKeyID
	}

	keys := map[string]jwtware.SigningKey{
		keyID: {JWTAlg: jwt.SigningMethodHS256.Alg(), Key: []byte(cfg.GetSigningKey())},
	}
	for kid, key := range cfg.GetPreviousSigningKeys() {
		if kid == keyID || key == "" {
			continue
		}
		keys[kid] = jwtware.SigningKey{JWTAlg: jwt.SigningMethodHS256.Alg(), Key: []byte(key)}
	}

	expiration := cfg.GetTokenExpiration()
	if expiration <= 0 {
		expiration = DefaultSessionTTL
	}

	return &TokenServiceImpl{
		keyID:           keyID,
		signingKey:      []byte(cfg.GetSigningKey()),
		keyFunc:         jwtware.KeyFunc(keys),
		tokenExpiration: expiration,
		issuer:          cfg.GetIssuer(),
		audience:        cfg.GetAudience(),
		logger:          logger,
		now:             time.Now,
	}
}

// KeyFunc exposes the key lookup so middleware can share it.
func (ts *TokenServiceImpl) KeyFunc() jwt.Keyfunc {
	return ts.keyFunc
}

// TTL is the lifetime of minted credentials.
func (ts *TokenServiceImpl) TTL() time.Duration {
	return ts.tokenExpiration
}

// Generate creates a JWT for identity, embedding its groups
func (ts *TokenServiceImpl) Generate(identity Identity) (string, *JWTClaims, error) {
	if identity == nil {
		return "", nil, errors.New("identity is required", errors.CategoryBadInput)
	}

	now := ts.now()

	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	groups := make([]string, len(identity.Groups()))
	copy(groups, identity.Groups())

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.Username(),
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.tokenExpiration)),
		},
		UserEmail:  identity.Email(),
		UserRole:   identity.Role(),
		UserGroups: groups,
	}

	ensureTokenID(&claims.RegisteredClaims)

	token, err := ts.SignClaims(claims)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// SignClaims signs claims with the current key
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = ts.keyID

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, ts.keyFunc, parserOptions...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		ts.logger.Debug("token validation failed", "error", err)
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode).
			WithCode(ErrTokenMalformed.Code)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.Subject() == "" || claims.TokenID() == "" {
		ts.logger.Error("TokenService validate could not decode or validate claims")
		return nil, ErrUnableToDecodeSession
	}

	return claims, nil
}
