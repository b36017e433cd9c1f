package mockapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"regexp"

	"github.com/jrsteele09/go-auth-flow/authapi"
	"github.com/jrsteele09/go-auth-flow/internal/utils"
	"github.com/rs/zerolog/log"
)

const minPasswordLength = 6

var phonePattern = regexp.MustCompile(`^09[0-9]{9}$`)

// RequestOTPHandler issues a login code (POST auth/request-otp)
func (s *Server) RequestOTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authapi.RequestOTPRequest
		if !decode(w, r, &req) {
			return
		}
		if !phonePattern.MatchString(req.PhoneNumber) {
			writeError(w, http.StatusBadRequest, "Invalid phone number")
			return
		}
		if !s.sendCode(w, req.PhoneNumber, PurposeLogin) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Code sent"})
	}
}

// LoginOTPHandler exchanges a login code for a session, registering unknown numbers (POST auth/login-otp)
func (s *Server) LoginOTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authapi.LoginOTPRequest
		if !decode(w, r, &req) {
			return
		}
		if !s.otps.Verify(req.PhoneNumber, PurposeLogin, req.Code) {
			writeError(w, http.StatusBadRequest, "Invalid or expired code")
			return
		}

		user, err := s.users.GetByPhone(req.PhoneNumber)
		if errors.Is(err, ErrUserNotFound) {
			user, err = s.users.Upsert(&User{PhoneNumber: req.PhoneNumber, DateJoined: NowTimeFunc()})
		}
		if err != nil {
			log.Err(err).Msg("login-otp: failed to load user")
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		s.startSession(w, user)
	}
}

// LoginPasswordHandler signs in with username and password (POST auth/login-password)
func (s *Server) LoginPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authapi.LoginPasswordRequest
		if !decode(w, r, &req) {
			return
		}
		user, err := s.users.GetByUsername(req.Username)
		if err != nil || !CheckPasswordHash(req.Password, user.PasswordHash) {
			writeError(w, http.StatusBadRequest, "Invalid username or password")
			return
		}
		s.startSession(w, user)
	}
}

// RefreshTokenHandler rotates the refresh cookie and issues a new access cookie (POST auth/refresh-token)
func (s *Server) RefreshTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.refreshCalls.Add(1)

		cookie, err := r.Cookie(refreshCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusUnauthorized, "Refresh token missing")
			return
		}
		userID, newRefresh, err := s.refresh.Rotate(cookie.Value)
		if err != nil {
			s.clearCookies(w)
			writeError(w, http.StatusUnauthorized, "Refresh token invalid")
			return
		}
		user, err := s.users.GetByID(userID)
		if err != nil {
			s.clearCookies(w)
			writeError(w, http.StatusUnauthorized, "Refresh token invalid")
			return
		}
		access, err := s.access.Create(user.ID)
		if err != nil {
			log.Err(err).Msg("refresh-token: failed to sign access token")
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		s.setCookies(w, access, newRefresh)
		writeJSON(w, http.StatusOK, authapi.LoginResponse{IsProfileCompleted: user.IsProfileCompleted()})
	}
}

// CompleteProfileHandler fills in registration details for the signed-in user (POST auth/complete-profile)
func (s *Server) CompleteProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authapi.CompleteProfileRequest
		if !decode(w, r, &req) {
			return
		}
		user, err := s.users.GetByID(userIDFromContext(r.Context()))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		if req.FirstName != nil {
			user.FirstName = *req.FirstName
		}
		if req.LastName != nil {
			user.LastName = *req.LastName
		}
		if req.Username != nil {
			user.Username = *req.Username
		}
		if email := utils.Value(req.Email); email != "" {
			if _, err := mail.ParseAddress(email); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid email address")
				return
			}
			user.Email = email
		}
		if req.Password != nil {
			if len(*req.Password) < minPasswordLength {
				writeError(w, http.StatusBadRequest, "Password must be at least 6 characters")
				return
			}
			hash, err := HashPassword(*req.Password)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			user.PasswordHash = hash
		}

		if _, err := s.users.Upsert(user); err != nil {
			if errors.Is(err, ErrUsernameTaken) {
				writeError(w, http.StatusConflict, "Username is already taken")
				return
			}
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Profile completed"})
	}
}

// MeHandler returns the signed-in user's profile (GET users/me)
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.users.GetByID(userIDFromContext(r.Context()))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// LogoutHandler revokes the refresh token and clears both cookies (POST auth/logout)
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(refreshCookieName); err == nil {
			s.refresh.Delete(cookie.Value)
		}
		s.clearCookies(w)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
	}
}

// ForgotPasswordHandler texts a reset code. Unknown numbers get the same answer. (POST auth/forgot-password)
func (s *Server) ForgotPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authapi.ForgotPasswordRequest
		if !decode(w, r, &req) {
			return
		}
		if !phonePattern.MatchString(req.PhoneNumber) {
			writeError(w, http.StatusBadRequest, "Invalid phone number")
			return
		}
		if _, err := s.users.GetByPhone(req.PhoneNumber); err == nil {
			if !s.sendCode(w, req.PhoneNumber, PurposeReset) {
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "If the number is registered, a code has been sent"})
	}
}

// ResetPasswordHandler sets a new password using a reset code (POST auth/reset-password)
func (s *Server) ResetPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authapi.ResetPasswordRequest
		if !decode(w, r, &req) {
			return
		}
		if req.NewPassword != req.ConfirmNewPassword {
			writeError(w, http.StatusBadRequest, "Passwords do not match")
			return
		}
		if len(req.NewPassword) < minPasswordLength {
			writeError(w, http.StatusBadRequest, "Password must be at least 6 characters")
			return
		}
		if !s.otps.Verify(req.PhoneNumber, PurposeReset, req.Code) {
			writeError(w, http.StatusBadRequest, "Invalid or expired code")
			return
		}
		user, err := s.users.GetByPhone(req.PhoneNumber)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid or expired code")
			return
		}
		hash, err := HashPassword(req.NewPassword)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		user.PasswordHash = hash
		if _, err := s.users.Upsert(user); err != nil {
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		s.refresh.RevokeUser(user.ID)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
	}
}

func (s *Server) sendCode(w http.ResponseWriter, phone string, purpose Purpose) bool {
	code, err := s.otps.Issue(phone, purpose)
	if err == nil {
		err = s.sender.SendCode(phone, purpose, code)
	}
	if err != nil {
		log.Err(err).Str("purpose", string(purpose)).Msg("failed to deliver code")
		writeError(w, http.StatusInternalServerError, "Could not send code")
		return false
	}
	return true
}

func (s *Server) startSession(w http.ResponseWriter, user *User) {
	user.LastLogin = NowTimeFunc()
	if _, err := s.users.Upsert(user); err != nil {
		log.Err(err).Msg("failed to record login")
	}
	access, err := s.access.Create(user.ID)
	if err != nil {
		log.Err(err).Msg("failed to sign access token")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	refresh, err := s.refresh.Create(user.ID)
	if err != nil {
		log.Err(err).Msg("failed to create refresh token")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	s.setCookies(w, access, refresh)
	writeJSON(w, http.StatusOK, authapi.LoginResponse{IsProfileCompleted: user.IsProfileCompleted()})
}

func (s *Server) setCookies(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    access,
		Path:     "/",
		MaxAge:   s.accessMaxAge,
		HttpOnly: true,
		Secure:   s.env != "DEV",
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    refresh,
		Path:     refreshCookiePath,
		MaxAge:   s.refreshMaxAge,
		HttpOnly: true,
		Secure:   s.env != "DEV",
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: accessCookieName, Path: "/", MaxAge: -1, HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: refreshCookieName, Path: refreshCookiePath, MaxAge: -1, HttpOnly: true})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"statusCode": status,
		"message":    message,
	})
}
