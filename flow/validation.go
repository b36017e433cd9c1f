package flow

import (
	"fmt"
	"net/mail"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	apperrors "github.com/jrsteele09/go-auth-flow/internal/errors"
)

// Form field names used as keys in ValidationError.Fields
const (
	FieldMobile          = "mobile"
	FieldOTP             = "otp"
	FieldUsername        = "username"
	FieldPassword        = "password"
	FieldNewPassword     = "newPassword"
	FieldConfirmPassword = "confirmPassword"
	FieldFirstName       = "firstName"
	FieldLastName        = "lastName"
	FieldEmail           = "email"
)

const minPasswordLength = 6

var (
	mobilePattern   = regexp.MustCompile(`^09[0-9]{9}$`)
	namePattern     = regexp.MustCompile(`^[a-zA-Z\x{0600}-\x{06FF}\s]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9]*$`)
)

// ValidationError carries one message per invalid field. It matches errors.ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func newFieldError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e.Fields[f]))
	}
	return fmt.Sprintf("%v: %s", apperrors.ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrValidation
}

// fieldErrors collects messages, keeping the first one per field
type fieldErrors map[string]string

func (fe fieldErrors) add(field, message string) {
	if _, ok := fe[field]; !ok {
		fe[field] = message
	}
}

func (fe fieldErrors) err() error {
	if len(fe) == 0 {
		return nil
	}
	return &ValidationError{Fields: fe}
}

// ValidateMobile checks an Iranian mobile number: 11 digits starting with 09
func ValidateMobile(mobile string) error {
	switch {
	case mobile == "":
		return newFieldError(FieldMobile, "Please enter your mobile number")
	case !mobilePattern.MatchString(mobile):
		return newFieldError(FieldMobile, "The number must be 11 digits and start with 09 (e.g. 0912...)")
	}
	return nil
}

// ValidatePasswordLogin requires both fields
func ValidatePasswordLogin(username, password string) error {
	fe := fieldErrors{}
	if strings.TrimSpace(username) == "" {
		fe.add(FieldUsername, "Please enter your username")
	}
	if password == "" {
		fe.add(FieldPassword, "Please enter your password")
	}
	return fe.err()
}

// ValidateOTP requires every slot to hold exactly one digit
func ValidateOTP(otp OTP) error {
	for _, d := range otp {
		if !isDigit(d) {
			return newFieldError(FieldOTP, fmt.Sprintf("Please enter the %d-digit code", OTPLength))
		}
	}
	return nil
}

// ValidateResetPassword checks the reset form: a complete code and a confirmed new password
func ValidateResetPassword(otp OTP, newPassword, confirmPassword string) error {
	fe := fieldErrors{}
	if err := ValidateOTP(otp); err != nil {
		fe.add(FieldOTP, err.(*ValidationError).Fields[FieldOTP])
	}
	if len(newPassword) < minPasswordLength {
		fe.add(FieldNewPassword, fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	if newPassword != confirmPassword {
		fe.add(FieldConfirmPassword, "Passwords do not match")
	}
	return fe.err()
}

// ValidateProfile checks the registration form
func ValidateProfile(p ProfileForm) error {
	fe := fieldErrors{}

	if utf8.RuneCountInString(p.FirstName) < 2 {
		fe.add(FieldFirstName, "First name must be at least 2 letters")
	} else if !namePattern.MatchString(p.FirstName) {
		fe.add(FieldFirstName, "First name may only contain Persian or English letters")
	}

	if utf8.RuneCountInString(p.LastName) < 2 {
		fe.add(FieldLastName, "Last name must be at least 2 letters")
	} else if !namePattern.MatchString(p.LastName) {
		fe.add(FieldLastName, "Last name may only contain Persian or English letters")
	}

	if len(p.Username) < 4 {
		fe.add(FieldUsername, "Username must be at least 4 characters")
	} else if !usernamePattern.MatchString(p.Username) {
		fe.add(FieldUsername, "Username must start with an English letter and contain only letters and digits")
	}

	if p.Email != "" {
		if addr, err := mail.ParseAddress(p.Email); err != nil || addr.Address != p.Email {
			fe.add(FieldEmail, "Please enter a valid email (e.g. user@example.com)")
		}
	}

	if len(p.Password) < minPasswordLength {
		fe.add(FieldPassword, fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	return fe.err()
}

func isDigit(s string) bool {
	return len(s) == 1 && s[0] >= '0' && s[0] <= '9'
}
