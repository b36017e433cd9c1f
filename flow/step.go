package flow

import "fmt"

// Step is the active screen of the sign-in wizard
type Step int

const (
	MobileEntry Step = iota
	OtpVerify
	PasswordLogin
	RegisterDetails
	ForgotPassword
	ResetPassword
)

// Steps lists every step in declaration order
var Steps = []Step{MobileEntry, OtpVerify, PasswordLogin, RegisterDetails, ForgotPassword, ResetPassword}

func (s Step) String() string {
	switch s {
	case MobileEntry:
		return "mobile-entry"
	case OtpVerify:
		return "otp-verify"
	case PasswordLogin:
		return "password-login"
	case RegisterDetails:
		return "register-details"
	case ForgotPassword:
		return "forgot-password"
	case ResetPassword:
		return "reset-password"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

// header returns the title and subtitle shown above the step's form
func (s Step) header(mobile string) (title, subtitle string) {
	switch s {
	case RegisterDetails:
		return "Complete your registration", "Please fill in the details below to create your account"
	case OtpVerify:
		return "Verify your mobile number", fmt.Sprintf("Enter the %d-digit code sent to %s", OTPLength, mobile)
	case MobileEntry, PasswordLogin, ForgotPassword, ResetPassword:
		return "Sign in to your account", "Please sign in to continue"
	default:
		panic(fmt.Sprintf("unhandled step %s", s))
	}
}

// clearOwned zeroes the credential fields the step is responsible for
func (s Step) clearOwned(c *Credentials) {
	switch s {
	case MobileEntry, ForgotPassword:
		// mobile is shared with the steps reached from here
	case OtpVerify:
		c.OTP = OTP{}
	case PasswordLogin:
		c.Username, c.Password = "", ""
	case ResetPassword:
		c.OTP = OTP{}
		c.NewPassword, c.ConfirmPassword = "", ""
	case RegisterDetails:
		c.Profile = ProfileForm{}
	default:
		panic(fmt.Sprintf("unhandled step %s", s))
	}
}

// back returns the step reached by backward navigation, false when the step has none
func (s Step) back() (Step, bool) {
	switch s {
	case OtpVerify, PasswordLogin:
		return MobileEntry, true
	case ForgotPassword:
		return PasswordLogin, true
	case ResetPassword:
		return ForgotPassword, true
	case MobileEntry, RegisterDetails:
		return s, false
	default:
		panic(fmt.Sprintf("unhandled step %s", s))
	}
}
