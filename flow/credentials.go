package flow

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// OTPLength is the number of digits in a one-time code
const OTPLength = 5

// OTP holds one single-digit string per slot; empty slots are ""
type OTP [OTPLength]string

// Code joins the slots
func (o OTP) Code() string {
	return strings.Join(o[:], "")
}

// Complete reports whether every slot holds a digit
func (o OTP) Complete() bool {
	for _, d := range o {
		if d == "" {
			return false
		}
	}
	return true
}

// ParseOTP splits a code of exactly OTPLength digits into slots
func ParseOTP(code string) (OTP, error) {
	if utf8.RuneCountInString(code) != OTPLength {
		return OTP{}, newFieldError(FieldOTP, fmt.Sprintf("The code must be %d digits", OTPLength))
	}
	var o OTP
	i := 0
	for _, r := range code {
		if r < '0' || r > '9' {
			return OTP{}, newFieldError(FieldOTP, "The code may only contain digits")
		}
		o[i] = string(r)
		i++
	}
	return o, nil
}

// ProfileForm is the registration form filled in on RegisterDetails
type ProfileForm struct {
	FirstName string
	LastName  string
	Username  string
	Email     string
	Password  string
}

// Credentials is the scratch data typed into the wizard. It lives only as long as the flow.
type Credentials struct {
	Mobile          string
	OTP             OTP
	Username        string
	Password        string
	NewPassword     string
	ConfirmPassword string
	Profile         ProfileForm
}
