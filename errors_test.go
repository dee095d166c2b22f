package portal

import (
	stderrors "errors"
	"net/http"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidationError(t *testing.T) {
	err := NewValidationError(validation.Errors{
		"email":    stderrors.New("Invalid email format"),
		"password": stderrors.New(MsgPasswordTooShort),
	}, RegistrationErrorOrder...)

	assert.Equal(t, MsgPasswordTooShort, err.Message)
	assert.Equal(t, errors.CategoryValidation, err.Category)
	assert.Equal(t, http.StatusUnprocessableEntity, err.Code)
	assert.Equal(t, TextCodeRegistrationInvalid, err.TextCode)

	fields := ValidationFields(err)
	require.Len(t, fields, 2)
	assert.Equal(t, "Invalid email format", fields["email"])
}

func TestValidationFields_NonValidationError(t *testing.T) {
	assert.Nil(t, ValidationFields(ErrAccountExists))
	assert.Nil(t, ValidationFields(stderrors.New("plain")))
}

func TestFirstValidationMessage(t *testing.T) {
	fields := map[string]string{"b": "second", "a": "first", "z": "ordered"}

	assert.Equal(t, "ordered", FirstValidationMessage(fields, "z"))
	assert.Equal(t, "first", FirstValidationMessage(fields))
	assert.Equal(t, "", FirstValidationMessage(map[string]string{}))
}

func TestFormatValidationErrorToMap(t *testing.T) {
	assert.Empty(t, FormatValidationErrorToMap(nil))
	assert.Equal(t, map[string]string{"form": "boom"}, FormatValidationErrorToMap(stderrors.New("boom")))
}

func TestHasTextCode(t *testing.T) {
	wrapped := errors.Wrap(stderrors.New("dial tcp: refused"), ErrDirectoryUnavailable.Category, ErrDirectoryUnavailable.Message).
		WithTextCode(ErrDirectoryUnavailable.TextCode)

	assert.True(t, HasTextCode(wrapped, TextCodeDirectoryDown))
	assert.True(t, HasTextCode(ErrInvalidCredentials, TextCodeInvalidCredentials))
	assert.False(t, HasTextCode(ErrInvalidCredentials, TextCodeAccountExists))
	assert.False(t, HasTextCode(stderrors.New("plain"), TextCodeDirectoryDown))
}

func TestTokenErrorHelpers(t *testing.T) {
	assert.True(t, IsTokenExpiredError(ErrTokenExpired))
	assert.True(t, IsTokenExpiredError(stderrors.New("wrapped: token is expired")))
	assert.False(t, IsTokenExpiredError(nil))

	assert.True(t, IsMalformedError(ErrTokenMalformed))
	assert.True(t, IsMalformedError(stderrors.New("missing or malformed JWT")))
	assert.False(t, IsMalformedError(ErrTokenExpired))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Incorrect username or password", userMessage(ErrInvalidCredentials))
	assert.Equal(t, "An unexpected error occurred, please try again", userMessage(stderrors.New("sql: connection refused")))

	internal := errors.Wrap(stderrors.New("disk full"), errors.CategoryInternal, "failed to write row")
	assert.Equal(t, "An unexpected error occurred, please try again", userMessage(internal))
}
