package portal

import "github.com/goliatone/go-portal/middleware/jwtware"

// TokenValidator validates tokens and extracts claims without tying callers
// to a specific signing implementation.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	if f == nil {
		return nil, ErrUnableToDecodeSession
	}
	return f(tokenString)
}

// MiddlewareValidator adapts a TokenValidator to the jwtware middleware.
func MiddlewareValidator(v TokenValidator) jwtware.TokenValidator {
	return middlewareValidator{validator: v}
}

type middlewareValidator struct {
	validator TokenValidator
}

func (v middlewareValidator) Validate(tokenString string) (jwtware.AuthClaims, error) {
	if v.validator == nil {
		return nil, ErrUnableToDecodeSession
	}
	claims, err := v.validator.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
