package portal

import (
	stderrors "errors"
	"net/http"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	TextCodeTooManyAttempts     = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeAccountDisabled     = "ACCOUNT_DISABLED"
	TextCodeAccountExists       = "ACCOUNT_EXISTS"
	TextCodeTokenExpired        = "TOKEN_EXPIRED"
	TextCodeTokenMalformed      = "TOKEN_MALFORMED"
	TextCodeSessionNotFound     = "SESSION_NOT_FOUND"
	TextCodeSessionUnavailable  = "SESSION_STORE_UNAVAILABLE"
	TextCodeDirectoryDown       = "DIRECTORY_UNAVAILABLE"
	TextCodeUnauthenticated     = "UNAUTHENTICATED"
	TextCodeAccessDenied        = "ACCESS_DENIED"
	TextCodeNoDashboard         = "NO_DASHBOARD"
	TextCodeInvalidGroup        = "INVALID_GROUP"
	TextCodeRegistrationInvalid = "REGISTRATION_INVALID"
)

// ErrInvalidCredentials is returned for unknown users and bad passwords alike.
var ErrInvalidCredentials = errors.New("Incorrect username or password", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned while an account is cooling down.
var ErrTooManyLoginAttempts = errors.New("Too many failed login attempts, try again later", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(http.StatusTooManyRequests)

// ErrAccountDisabled is returned when a known account has been deactivated.
var ErrAccountDisabled = errors.New("User account is disabled", errors.CategoryAuth).
	WithTextCode(TextCodeAccountDisabled).
	WithCode(errors.CodeForbidden)

// ErrAccountExists is returned when registering a taken username or email.
var ErrAccountExists = errors.New("Username or email already exists", errors.CategoryConflict).
	WithTextCode(TextCodeAccountExists).
	WithCode(errors.CodeConflict)

var ErrTokenExpired = errors.New("Token has expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

var ErrTokenMalformed = errors.New("Could not validate credentials", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrSessionNotFound means the credential is no longer backed by a session record.
var ErrSessionNotFound = errors.New("session not found", errors.CategoryNotFound).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(errors.CodeNotFound)

// ErrSessionStoreUnavailable means session state could not be determined.
var ErrSessionStoreUnavailable = errors.New("Session store unavailable", errors.CategoryOperation).
	WithTextCode(TextCodeSessionUnavailable).
	WithCode(http.StatusServiceUnavailable)

var ErrDirectoryUnavailable = errors.New("Directory service unavailable", errors.CategoryOperation).
	WithTextCode(TextCodeDirectoryDown).
	WithCode(http.StatusServiceUnavailable)

var ErrUnauthenticated = errors.New("Not authenticated", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(errors.CodeUnauthorized)

var ErrAccessDenied = errors.New("Access denied", errors.CategoryAuthz).
	WithTextCode(TextCodeAccessDenied).
	WithCode(errors.CodeForbidden)

// ErrNoDashboard is returned by the dashboard resolver when no group matches.
var ErrNoDashboard = errors.New("No dashboard available for your groups. Please contact an administrator.", errors.CategoryAuthz).
	WithTextCode(TextCodeNoDashboard).
	WithCode(errors.CodeForbidden)

var ErrInvalidGroup = errors.New("Invalid group", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidGroup).
	WithCode(errors.CodeBadRequest)

// NewValidationError wraps ozzo field errors, keeping the field map in the
// "fields" metadata entry and the first message as the error message.
func NewValidationError(err error, order ...string) *errors.Error {
	fields := FormatValidationErrorToMap(err)
	msg := FirstValidationMessage(fields, order...)
	if msg == "" {
		msg = "Invalid request"
	}
	return errors.Wrap(err, errors.CategoryValidation, msg).
		WithTextCode(TextCodeRegistrationInvalid).
		WithCode(http.StatusUnprocessableEntity).
		WithMetadata(map[string]any{"fields": fields})
}

// ValidationFields returns the field map carried by a NewValidationError.
func ValidationFields(err error) map[string]string {
	var richErr *errors.Error
	if !errors.As(err, &richErr) || richErr.Metadata == nil {
		return nil
	}
	fields, _ := richErr.Metadata["fields"].(map[string]string)
	return fields
}

// ErrUnableToDecodeSession is returned when claims could not be decoded.
var ErrUnableToDecodeSession = stderrors.New("unable to decode session")

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// HasTextCode reports whether err wraps a rich error carrying code.
func HasTextCode(err error, code string) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string, message ...string) validation.RuleFunc {
	msg := "values must match"
	if len(message) > 0 && message[0] != "" {
		msg = message[0]
	}
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return stderrors.New(msg)
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into field -> message.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if stderrors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["form"] = err.Error()
	return out
}

// FirstValidationMessage picks the message shown above a form. Fields listed
// in order win; any remaining field is chosen alphabetically.
func FirstValidationMessage(fields map[string]string, order ...string) string {
	for _, field := range order {
		if msg, ok := fields[field]; ok && msg != "" {
			return msg
		}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if fields[k] != "" {
			return fields[k]
		}
	}
	return ""
}
