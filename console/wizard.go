package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-flow/flow"
	apperrors "github.com/jrsteele09/go-auth-flow/internal/errors"
)

const pollInterval = 50 * time.Millisecond

// Wizard runs the sign-in flow as terminal prompts. It only forwards input to the
// controller and renders its snapshots.
type Wizard struct {
	ctrl   *flow.Controller
	out    io.Writer
	lines  <-chan string
	colour bool

	lastCode string // last complete code entered on OtpVerify
	lastGen  uint64
}

// NewWizard reads answers from lines, see ScanLines
func NewWizard(ctrl *flow.Controller, lines <-chan string, out io.Writer, colour bool) *Wizard {
	return &Wizard{ctrl: ctrl, out: out, lines: lines, colour: colour}
}

// ScanLines feeds trimmed lines from r into the returned channel, closing it at EOF
func ScanLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()
	return lines
}

// Run prompts until the user is signed in and returns where the flow navigated to
func (w *Wizard) Run(ctx context.Context) (string, error) {
	first := true
	for {
		snap, err := w.settle(ctx)
		if err != nil {
			return "", err
		}
		switch {
		case snap.Finished:
			return snap.Target, nil
		case snap.Closed:
			return "", apperrors.ErrClosed
		}

		if first || snap.Generation != w.lastGen {
			w.header(snap)
			w.lastGen = snap.Generation
			w.lastCode = ""
			first = false
		}

		if err := w.prompt(ctx, snap); err != nil {
			if apperrors.Is(err, io.EOF) || ctx.Err() != nil || apperrors.Is(err, apperrors.ErrClosed) {
				return "", err
			}
			w.showError(err)
		}
	}
}

// settle waits for the request in flight, if any
func (w *Wizard) settle(ctx context.Context) (flow.Snapshot, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		snap := w.ctrl.Snapshot()
		if !snap.Busy {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Wizard) prompt(ctx context.Context, snap flow.Snapshot) error {
	switch snap.Step {
	case flow.MobileEntry:
		in, err := w.ask(ctx, "Mobile number ('p' to sign in with a password)")
		if err != nil {
			return err
		}
		if in == "p" {
			return w.ctrl.SwitchToPassword()
		}
		return w.ctrl.SubmitMobile(in)

	case flow.OtpVerify:
		in, err := w.ask(ctx, "Code ('e' to edit the number)")
		if err != nil {
			return err
		}
		if in == "e" {
			return w.ctrl.EditMobile()
		}
		return w.enterCode(in)

	case flow.PasswordLogin:
		username, err := w.ask(ctx, "Username ('b' back, 'f' forgot password)")
		if err != nil {
			return err
		}
		switch username {
		case "b":
			return w.ctrl.Back()
		case "f":
			return w.ctrl.ForgotPassword()
		}
		password, err := w.ask(ctx, "Password")
		if err != nil {
			return err
		}
		return w.ctrl.SubmitPassword(username, password)

	case flow.ForgotPassword:
		in, err := w.ask(ctx, "Mobile number ('b' back)")
		if err != nil {
			return err
		}
		if in == "b" {
			return w.ctrl.Back()
		}
		return w.ctrl.SubmitForgotPassword(in)

	case flow.ResetPassword:
		code, err := w.ask(ctx, "Reset code ('b' back)")
		if err != nil {
			return err
		}
		if code == "b" {
			return w.ctrl.Back()
		}
		answers, err := w.askAll(ctx, "New password", "Confirm new password")
		if err != nil {
			return err
		}
		return w.ctrl.SubmitResetPassword(code, answers[0], answers[1])

	case flow.RegisterDetails:
		answers, err := w.askAll(ctx, "First name", "Last name", "Username", "Email (optional)", "Password")
		if err != nil {
			return err
		}
		return w.ctrl.SubmitProfile(flow.ProfileForm{
			FirstName: answers[0],
			LastName:  answers[1],
			Username:  answers[2],
			Email:     answers[3],
			Password:  answers[4],
		})

	default:
		panic(fmt.Sprintf("unhandled step %s", snap.Step))
	}
}

// enterCode fills the code slots. A complete new code submits itself; the same code
// entered again, or an incomplete one, is submitted explicitly.
func (w *Wizard) enterCode(in string) error {
	digits := strings.Split(in, "")
	if err := w.ctrl.SetOTP(digits); err != nil {
		return err
	}
	if len(digits) == flow.OTPLength && in != w.lastCode {
		w.lastCode = in
		return nil
	}
	return w.ctrl.VerifyOTP()
}

func (w *Wizard) ask(ctx context.Context, label string) (string, error) {
	fmt.Fprintf(w.out, "%s: ", label)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-w.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	}
}

func (w *Wizard) askAll(ctx context.Context, labels ...string) ([]string, error) {
	answers := make([]string, 0, len(labels))
	for _, label := range labels {
		in, err := w.ask(ctx, label)
		if err != nil {
			return nil, err
		}
		answers = append(answers, in)
	}
	return answers, nil
}

func (w *Wizard) header(snap flow.Snapshot) {
	fmt.Fprintf(w.out, "\n%s\n%s\n\n", paint(w.colour, Cyan, snap.Title), paint(w.colour, Gray, snap.Subtitle))
}

func (w *Wizard) showError(err error) {
	var verr *flow.ValidationError
	if !apperrors.As(err, &verr) {
		fmt.Fprintln(w.out, paint(w.colour, Red, err.Error()))
		return
	}
	fields := make([]string, 0, len(verr.Fields))
	for f := range verr.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(w.out, "%s %s\n", paint(w.colour, Red, "*"), verr.Fields[f])
	}
}
