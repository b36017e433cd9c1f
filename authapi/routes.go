package authapi

// Endpoint paths relative to the API prefix. Shared with the mock backend so both sides agree.
const (
	PathRequestOTP      = "auth/request-otp"
	PathLoginOTP        = "auth/login-otp"
	PathLoginPassword   = "auth/login-password"
	PathRefreshToken    = "auth/refresh-token"
	PathCompleteProfile = "auth/complete-profile"
	PathLogout          = "auth/logout"
	PathForgotPassword  = "auth/forgot-password"
	PathResetPassword   = "auth/reset-password"
	PathMe              = "users/me"
)
