package portal

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	MinPasswordLength = 6
	MinUsernameLength = 3
	MaxUsernameLength = 50
)

const (
	MsgPasswordsMismatch = "Passwords do not match"
	MsgPasswordTooShort  = "Password must be at least 6 characters long"
	MsgPasswordWeak      = "Password must contain at least one letter and one number"

	msgUsernameFormat = "Username must be 3-50 characters long and contain only alphanumeric characters and underscores"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// LoginRequest is the login form and API payload
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required.Error("Username is required")),
		validation.Field(&r.Password, validation.Required.Error("Password is required")),
	)
}

// RegisterRequest is the registration form and API payload.
type RegisterRequest struct {
	Username        string `form:"username" json:"username"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
	FirstName       string `form:"first_name" json:"first_name"`
	LastName        string `form:"last_name" json:"last_name"`
	Group           string `form:"group" json:"group"`
}

// Normalize trims input and applies the Group_B default.
func (r RegisterRequest) Normalize() RegisterRequest {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Group = strings.TrimSpace(r.Group)
	if r.Group == "" {
		r.Group = GroupUser
	}
	return r
}

// ValidatePasswords runs the two checks a form shows inline, mismatch
// first. An empty ConfirmPassword skips the mismatch check, API clients
// don't send it.
func (r RegisterRequest) ValidatePasswords() error {
	if r.ConfirmPassword != "" && r.Password != r.ConfirmPassword {
		return validation.Errors{"confirm_password": errors.New(MsgPasswordsMismatch)}
	}

	if len(r.Password) < MinPasswordLength {
		return validation.Errors{"password": errors.New(MsgPasswordTooShort)}
	}

	return nil
}

// ValidateForm is Validate for the HTML form, which always carries the
// confirmation field: an empty confirmation counts as a mismatch.
func (r RegisterRequest) ValidateForm() error {
	if r.Password != r.ConfirmPassword {
		return validation.Errors{"confirm_password": errors.New(MsgPasswordsMismatch)}
	}
	return r.Validate()
}

// Validate runs the password checks first and only then the field rules.
func (r RegisterRequest) Validate() error {
	if err := r.ValidatePasswords(); err != nil {
		return err
	}

	return validation.ValidateStruct(&r,
		validation.Field(&r.Username,
			validation.Required.Error("Username is required"),
			validation.Length(MinUsernameLength, MaxUsernameLength).Error(msgUsernameFormat),
			validation.Match(usernamePattern).Error(msgUsernameFormat),
		),
		validation.Field(&r.Email,
			validation.Required.Error("Email is required"),
			is.Email.Error("Invalid email format"),
		),
		validation.Field(&r.Password,
			validation.By(passwordStrength),
		),
		validation.Field(&r.Group,
			validation.In(toAny(KnownGroups())...).Error("Invalid group. Must be either "+strings.Join(KnownGroups(), " or ")),
		),
	)
}

func passwordStrength(value any) error {
	s, _ := value.(string)
	var letter, digit bool
	for _, c := range s {
		switch {
		case unicode.IsLetter(c):
			letter = true
		case unicode.IsDigit(c):
			digit = true
		}
	}
	if !letter || !digit {
		return errors.New(MsgPasswordWeak)
	}
	return nil
}

// RegistrationErrorOrder is the order form messages are surfaced in.
var RegistrationErrorOrder = []string{"confirm_password", "password", "username", "email", "group"}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
