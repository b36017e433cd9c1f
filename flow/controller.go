// Package flow drives the sign-in wizard: mobile entry, one-time code, password
// login, registration and password recovery.
//
// A Controller owns all wizard state on a single goroutine (Run). Public methods
// post an event to that goroutine and wait for it to be applied. Network calls run
// on their own goroutines and report back as events tagged with the generation that
// issued them; a completion whose generation has been superseded by navigation, or
// that arrives after the flow ended, is dropped.
package flow

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jrsteele09/go-auth-flow/authapi"
	apperrors "github.com/jrsteele09/go-auth-flow/internal/errors"
	"github.com/jrsteele09/go-auth-flow/internal/utils"
	"github.com/jrsteele09/go-auth-flow/sessions"
	"github.com/rs/zerolog/log"
)

// API is the part of the session API the wizard drives. *authapi.Client implements it.
type API interface {
	RequestOTP(ctx context.Context, req authapi.RequestOTPRequest) error
	LoginOTP(ctx context.Context, req authapi.LoginOTPRequest) (authapi.LoginResponse, error)
	LoginPassword(ctx context.Context, req authapi.LoginPasswordRequest) (authapi.LoginResponse, error)
	CompleteProfile(ctx context.Context, req authapi.CompleteProfileRequest) error
	ForgotPassword(ctx context.Context, req authapi.ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req authapi.ResetPasswordRequest) error
	// GetProfile must record the fetched profile in the session store on success
	GetProfile(ctx context.Context) (*sessions.Profile, error)
}

var _ API = (*authapi.Client)(nil)

const defaultLandingPath = "/dashboard"

type Option func(*Controller)

func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

func WithNavigator(n Navigator) Option {
	return func(c *Controller) { c.navigator = n }
}

// WithReturnTo sets the destination recorded by a guard redirect
func WithReturnTo(path string) Option {
	return func(c *Controller) { c.returnTo = path }
}

// WithLandingPath sets the destination used when no return target was recorded
func WithLandingPath(path string) Option {
	return func(c *Controller) {
		if path != "" {
			c.landing = path
		}
	}
}

// Snapshot is a copy of the wizard state for rendering
type Snapshot struct {
	Step         Step
	Title        string
	Subtitle     string
	Credentials  Credentials
	FieldErrors  map[string]string
	Busy         bool
	Notification *Notification // most recent, nil if none
	Generation   uint64
	Finished     bool   // signed in and navigated away
	Target       string // where the flow navigated to
	Closed       bool
}

type event struct {
	apply func() error
	reply chan error
}

type completion struct {
	gen   uint64
	op    string
	apply func()
}

type Controller struct {
	api       API
	store     *sessions.Store
	notifier  Notifier
	navigator Navigator
	returnTo  string
	landing   string

	events      chan event
	completions chan completion
	quit        chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
	running     atomic.Bool
	reqCtx      context.Context

	// owned by the Run goroutine
	step          Step
	creds         Credentials
	fieldErrs     map[string]string
	busy          bool
	gen           uint64
	autoSubmitted string
	last          *Notification
	finished      bool
	target        string
}

func New(api API, store *sessions.Store, opts ...Option) *Controller {
	c := &Controller{
		api:         api,
		store:       store,
		notifier:    nopNotifier{},
		navigator:   nopNavigator{},
		landing:     defaultLandingPath,
		events:      make(chan event),
		completions: make(chan completion),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		step:        MobileEntry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run applies events until ctx is cancelled or Close is called. It may only be called once.
// In-flight network calls are not cancelled when Run returns; their results are dropped.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return apperrors.New("flow: Run called more than once")
	}
	c.reqCtx = context.WithoutCancel(ctx)
	defer close(c.done)
	defer c.teardown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.quit:
			return nil
		case ev := <-c.events:
			ev.reply <- ev.apply()
		case cmp := <-c.completions:
			c.complete(cmp)
		}
	}
}

// Close stops the loop and discards the credentials. It does not wait; use Done for that.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.quit) })
}

// Done is closed once Run has returned
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) Snapshot() Snapshot {
	var s Snapshot
	if err := c.send(func() error {
		s = c.snapshot()
		return nil
	}); err != nil {
		return Snapshot{Closed: true}
	}
	return s
}

// SubmitMobile requests a login code for mobile and moves to OtpVerify once it is sent
func (c *Controller) SubmitMobile(mobile string) error {
	return c.send(func() error {
		if err := c.ready("submit mobile", MobileEntry); err != nil {
			return err
		}
		c.creds.Mobile = mobile
		if err := c.validate(ValidateMobile(mobile)); err != nil {
			return err
		}

		req := authapi.RequestOTPRequest{PhoneNumber: mobile}
		c.issue(authapi.PathRequestOTP, func(ctx context.Context) func() {
			err := c.api.RequestOTP(ctx, req)
			return func() { c.otpRequested(err) }
		})
		return nil
	})
}

func (c *Controller) SwitchToPassword() error {
	return c.send(func() error {
		if err := c.at("switch to password", MobileEntry); err != nil {
			return err
		}
		c.moveTo(PasswordLogin)
		return nil
	})
}

// SetOTPDigit fills one slot of the code. An empty digit clears the slot.
// Completing the code in OtpVerify submits it.
func (c *Controller) SetOTPDigit(index int, digit string) error {
	return c.send(func() error {
		if err := c.at("enter code", OtpVerify, ResetPassword); err != nil {
			return err
		}
		if index < 0 || index >= OTPLength {
			return apperrors.Wrapf(apperrors.ErrValidation, "code slot %d out of range", index)
		}
		if digit != "" && !isDigit(digit) {
			return c.reject(newFieldError(FieldOTP, "The code may only contain digits"))
		}
		c.creds.OTP[index] = digit
		delete(c.fieldErrs, FieldOTP)
		c.maybeAutoSubmit()
		return nil
	})
}

// SetOTP replaces the whole code, as when pasting. Missing trailing slots are left empty.
func (c *Controller) SetOTP(digits []string) error {
	return c.send(func() error {
		if err := c.at("enter code", OtpVerify, ResetPassword); err != nil {
			return err
		}
		if len(digits) > OTPLength {
			return c.reject(newFieldError(FieldOTP, "The code is too long"))
		}
		var otp OTP
		for i, d := range digits {
			if d != "" && !isDigit(d) {
				return c.reject(newFieldError(FieldOTP, "The code may only contain digits"))
			}
			otp[i] = d
		}
		c.creds.OTP = otp
		delete(c.fieldErrs, FieldOTP)
		c.maybeAutoSubmit()
		return nil
	})
}

// VerifyOTP submits the entered code explicitly
func (c *Controller) VerifyOTP() error {
	return c.send(func() error {
		if err := c.ready("verify code", OtpVerify); err != nil {
			return err
		}
		if err := c.validate(ValidateOTP(c.creds.OTP)); err != nil {
			return err
		}
		c.verify(c.creds.OTP.Code())
		return nil
	})
}

// EditMobile returns from OtpVerify to MobileEntry, discarding the code
func (c *Controller) EditMobile() error {
	return c.send(func() error {
		if err := c.at("edit mobile", OtpVerify); err != nil {
			return err
		}
		c.leave(MobileEntry)
		return nil
	})
}

func (c *Controller) SubmitPassword(username, password string) error {
	return c.send(func() error {
		if err := c.ready("submit password", PasswordLogin); err != nil {
			return err
		}
		c.creds.Username, c.creds.Password = username, password
		if err := c.validate(ValidatePasswordLogin(username, password)); err != nil {
			return err
		}

		req := authapi.LoginPasswordRequest{Username: username, Password: password}
		c.issue(authapi.PathLoginPassword, func(ctx context.Context) func() {
			resp, err := c.api.LoginPassword(ctx, req)
			return func() { c.signedIn(resp, err) }
		})
		return nil
	})
}

// ForgotPassword moves from PasswordLogin to the recovery form
func (c *Controller) ForgotPassword() error {
	return c.send(func() error {
		if err := c.at("forgot password", PasswordLogin); err != nil {
			return err
		}
		c.leave(ForgotPassword)
		return nil
	})
}

// SubmitForgotPassword asks for a reset code and moves to ResetPassword once it is sent
func (c *Controller) SubmitForgotPassword(mobile string) error {
	return c.send(func() error {
		if err := c.ready("submit forgot password", ForgotPassword); err != nil {
			return err
		}
		c.creds.Mobile = mobile
		if err := c.validate(ValidateMobile(mobile)); err != nil {
			return err
		}

		req := authapi.ForgotPasswordRequest{PhoneNumber: mobile}
		c.issue(authapi.PathForgotPassword, func(ctx context.Context) func() {
			err := c.api.ForgotPassword(ctx, req)
			return func() { c.resetCodeRequested(err) }
		})
		return nil
	})
}

// SubmitResetPassword sets a new password. An empty otp uses the digits already entered.
func (c *Controller) SubmitResetPassword(otp, newPassword, confirmPassword string) error {
	return c.send(func() error {
		if err := c.ready("submit reset password", ResetPassword); err != nil {
			return err
		}
		c.creds.NewPassword, c.creds.ConfirmPassword = newPassword, confirmPassword
		if otp != "" {
			parsed, err := ParseOTP(otp)
			if err != nil {
				return c.reject(err)
			}
			c.creds.OTP = parsed
		}
		if err := c.validate(ValidateResetPassword(c.creds.OTP, newPassword, confirmPassword)); err != nil {
			return err
		}

		req := authapi.ResetPasswordRequest{
			PhoneNumber:        c.creds.Mobile,
			Code:               c.creds.OTP.Code(),
			NewPassword:        newPassword,
			ConfirmNewPassword: confirmPassword,
		}
		c.issue(authapi.PathResetPassword, func(ctx context.Context) func() {
			err := c.api.ResetPassword(ctx, req)
			return func() { c.passwordReset(err) }
		})
		return nil
	})
}

// SubmitProfile completes registration, then signs the user in
func (c *Controller) SubmitProfile(form ProfileForm) error {
	return c.send(func() error {
		if err := c.ready("submit profile", RegisterDetails); err != nil {
			return err
		}
		c.creds.Profile = form
		if err := c.validate(ValidateProfile(form)); err != nil {
			return err
		}

		req := authapi.CompleteProfileRequest{
			FirstName: utils.Ptr(form.FirstName),
			LastName:  utils.Ptr(form.LastName),
			Username:  utils.Ptr(form.Username),
			Email:     utils.PtrIfSet(form.Email),
			Password:  utils.Ptr(form.Password),
		}
		c.issue(authapi.PathCompleteProfile, func(ctx context.Context) func() {
			err := c.api.CompleteProfile(ctx, req)
			return func() { c.profileCompleted(err) }
		})
		return nil
	})
}

// Back leaves the current step for the previous one, clearing the fields the current step owns.
// MobileEntry has nowhere to go back to and RegisterDetails must be completed.
func (c *Controller) Back() error {
	return c.send(func() error {
		if err := c.at("back", Steps...); err != nil {
			return err
		}
		prev, ok := c.step.back()
		if !ok {
			return apperrors.Wrapf(apperrors.ErrInvalidTransition, "back from %s", c.step)
		}
		c.leave(prev)
		return nil
	})
}

func (c *Controller) send(apply func() error) error {
	ev := event{apply: apply, reply: make(chan error, 1)}
	select {
	case c.events <- ev:
	case <-c.quit:
		return apperrors.ErrClosed
	case <-c.done:
		return apperrors.ErrClosed
	}
	return <-ev.reply
}

// at checks the flow is still open and on one of the given steps
func (c *Controller) at(action string, steps ...Step) error {
	if c.finished {
		return apperrors.Wrapf(apperrors.ErrClosed, "%s: already signed in", action)
	}
	for _, s := range steps {
		if c.step == s {
			return nil
		}
	}
	return apperrors.Wrapf(apperrors.ErrInvalidTransition, "%s from %s", action, c.step)
}

// ready is at plus the busy guard for actions that issue a request
func (c *Controller) ready(action string, steps ...Step) error {
	if err := c.at(action, steps...); err != nil {
		return err
	}
	if c.busy {
		return apperrors.Wrapf(apperrors.ErrBusy, "%s", action)
	}
	return nil
}

// validate replaces the recorded field errors with err's, or clears them when err is nil
func (c *Controller) validate(err error) error {
	if err == nil {
		c.fieldErrs = nil
		return nil
	}
	return c.reject(err)
}

func (c *Controller) reject(err error) error {
	var verr *ValidationError
	if apperrors.As(err, &verr) {
		c.fieldErrs = make(map[string]string, len(verr.Fields))
		for f, msg := range verr.Fields {
			c.fieldErrs[f] = msg
		}
	}
	return err
}

// issue runs call off the loop. The function it returns is applied on the loop
// if the generation is still current when the call finishes.
func (c *Controller) issue(op string, call func(ctx context.Context) func()) {
	gen := c.gen
	ctx := c.reqCtx
	c.busy = true
	log.Debug().Str("op", op).Uint64("generation", gen).Stringer("step", c.step).Msg("flow request issued")

	go func() {
		then := call(ctx)
		select {
		case c.completions <- completion{gen: gen, op: op, apply: then}:
		case <-c.done:
			log.Debug().Str("op", op).Msg("flow closed, response dropped")
		}
	}()
}

func (c *Controller) complete(cmp completion) {
	if c.finished || cmp.gen != c.gen {
		log.Debug().
			Str("op", cmp.op).
			Uint64("generation", cmp.gen).
			Uint64("current", c.gen).
			Msg("stale response dropped")
		return
	}
	c.busy = false
	cmp.apply()
}

func (c *Controller) moveTo(next Step) {
	log.Debug().Stringer("from", c.step).Stringer("to", next).Msg("flow step changed")
	c.step = next
	c.gen++
	c.busy = false
	c.fieldErrs = nil
}

// leave clears the current step's fields, then moves
func (c *Controller) leave(next Step) {
	c.step.clearOwned(&c.creds)
	if c.step == OtpVerify {
		c.autoSubmitted = ""
	}
	c.moveTo(next)
}

func (c *Controller) maybeAutoSubmit() {
	if c.step != OtpVerify {
		return
	}
	if !c.creds.OTP.Complete() {
		c.autoSubmitted = ""
		return
	}
	code := c.creds.OTP.Code()
	if code == c.autoSubmitted || c.busy {
		return
	}
	c.verify(code)
}

func (c *Controller) verify(code string) {
	c.autoSubmitted = code
	req := authapi.LoginOTPRequest{PhoneNumber: c.creds.Mobile, Code: code}
	c.issue(authapi.PathLoginOTP, func(ctx context.Context) func() {
		resp, err := c.api.LoginOTP(ctx, req)
		return func() { c.signedIn(resp, err) }
	})
}

func (c *Controller) otpRequested(err error) {
	if err != nil {
		c.fail(err)
		return
	}
	c.creds.OTP = OTP{}
	c.autoSubmitted = ""
	c.moveTo(OtpVerify)
	c.notify(LevelSuccess, "A verification code has been sent to your mobile")
}

// signedIn handles login-otp and login-password results
func (c *Controller) signedIn(resp authapi.LoginResponse, err error) {
	if err != nil {
		c.fail(err)
		// a code changed while the previous one was being verified is still owed a submit
		c.maybeAutoSubmit()
		return
	}
	if resp.IsProfileCompleted {
		c.fetchProfile()
		return
	}
	c.leave(RegisterDetails)
	c.notify(LevelInfo, "Please complete your profile to continue")
}

func (c *Controller) profileCompleted(err error) {
	if err != nil {
		c.fail(err)
		return
	}
	c.fetchProfile()
}

func (c *Controller) fetchProfile() {
	c.issue(authapi.PathMe, func(ctx context.Context) func() {
		_, err := c.api.GetProfile(ctx)
		return func() { c.profileFetched(err) }
	})
}

// profileFetched finishes the flow unless the session itself is gone. Any other failure
// leaves a signed-in session without a profile, since the server said the profile is complete.
func (c *Controller) profileFetched(err error) {
	if apperrors.Is(err, apperrors.ErrUnauthorized) {
		c.fail(err)
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("profile fetch failed after sign in")
		c.store.SetCredentials(nil)
		c.notify(LevelWarning, "Signed in, but your profile data may be stale")
	}
	c.finish()
}

func (c *Controller) resetCodeRequested(err error) {
	if err != nil {
		c.fail(err)
		return
	}
	c.creds.OTP = OTP{}
	c.moveTo(ResetPassword)
	c.notify(LevelSuccess, "A reset code has been sent to your mobile")
}

func (c *Controller) passwordReset(err error) {
	if err != nil {
		c.fail(err)
		return
	}
	c.leave(PasswordLogin)
	c.creds.Password = ""
	c.notify(LevelSuccess, "Your password has been changed. Please sign in.")
}

func (c *Controller) finish() {
	target := c.returnTo
	if target == "" {
		target = c.landing
	}
	c.finished = true
	c.target = target
	c.creds = Credentials{}
	c.fieldErrs = nil
	c.gen++

	log.Info().Str("target", target).Msg("signed in")
	c.notify(LevelSuccess, "Signed in successfully")
	c.navigator.Navigate(target)
}

// fail surfaces a remote error; the step never changes on failure
func (c *Controller) fail(err error) {
	log.Err(err).Stringer("step", c.step).Msg("flow request failed")
	c.notify(LevelError, authapi.UserMessage(err))
}

func (c *Controller) notify(level Level, message string) {
	n := Notification{Level: level, Message: message}
	c.last = &n
	c.notifier.Notify(n)
}

func (c *Controller) snapshot() Snapshot {
	s := Snapshot{
		Step:        c.step,
		Credentials: c.creds,
		Busy:        c.busy,
		Generation:  c.gen,
		Finished:    c.finished,
		Target:      c.target,
	}
	s.Title, s.Subtitle = c.step.header(c.creds.Mobile)
	if len(c.fieldErrs) > 0 {
		s.FieldErrors = make(map[string]string, len(c.fieldErrs))
		for f, msg := range c.fieldErrs {
			s.FieldErrors[f] = msg
		}
	}
	if c.last != nil {
		n := *c.last
		s.Notification = &n
	}
	return s
}

func (c *Controller) teardown() {
	c.creds = Credentials{}
	c.fieldErrs = nil
	c.busy = false
	c.autoSubmitted = ""
	log.Debug().Stringer("step", c.step).Bool("finished", c.finished).Msg("flow closed")
}
