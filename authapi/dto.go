package authapi

// LoginResponse is returned by login-otp, login-password and refresh-token.
// It proves a live session but carries no profile; callers fetch users/me for that.
type LoginResponse struct {
	IsProfileCompleted bool   `json:"isProfileCompleted"`
	Message            string `json:"message,omitempty"`
}

type RequestOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type LoginOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Code        string `json:"code"`
}

type LoginPasswordRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CompleteProfileRequest fields are optional; nil fields are left untouched server side.
type CompleteProfileRequest struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Username  *string `json:"username,omitempty"`
	Email     *string `json:"email,omitempty"`
	Password  *string `json:"password,omitempty"`
}

type ForgotPasswordRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type ResetPasswordRequest struct {
	PhoneNumber        string `json:"phoneNumber"`
	Code               string `json:"code"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
}
