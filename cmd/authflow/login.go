package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jrsteele09/go-auth-flow/authapi"
	"github.com/jrsteele09/go-auth-flow/console"
	"github.com/jrsteele09/go-auth-flow/flow"
	"github.com/jrsteele09/go-auth-flow/guard"
	"github.com/jrsteele09/go-auth-flow/internal/config"
	"github.com/jrsteele09/go-auth-flow/sessions"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var errInputClosed = errors.New("input closed")

// app is everything one interactive session needs
type app struct {
	cfg    config.Config
	store  *sessions.Store
	client *authapi.Client
	routes *guard.Routes
	lines  <-chan string
	out    io.Writer
	colour bool
}

func newLoginCmd(cfg func() config.Config) *cobra.Command {
	var noColour bool
	var target string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in interactively, then inspect or end the session",
		Long: "Opens the protected area, which sends a signed-out user through the sign-in wizard.\n" +
			"Once signed in, the session shell offers whoami and logout.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := cfg()
			displayAppname(cmd, c.GetAppName())

			store := sessions.NewStore()
			client, err := authapi.New(c, store)
			if err != nil {
				return err
			}
			routes := guard.NewRoutes(c, store, client)
			defer routes.Close()

			a := &app{
				cfg:    c,
				store:  store,
				client: client,
				routes: routes,
				lines:  console.ScanLines(cmd.InOrStdin()),
				out:    cmd.OutOrStdout(),
				colour: !noColour && cmd.OutOrStdout() == os.Stdout,
			}

			ctx, stop := signalContext()
			defer stop()
			if target == "" {
				target = c.GetLandingPath()
			}
			err = a.run(ctx, target)
			if errors.Is(err, errInputClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return logErr(err, "login session ended with error")
		},
	}
	cmd.Flags().BoolVar(&noColour, "no-colour", false, "disable ANSI colours")
	cmd.Flags().StringVar(&target, "open", "", "route to open first (default: the landing path)")
	return cmd
}

// run navigates to path and keeps following the decisions of the route table
func (a *app) run(ctx context.Context, path string) error {
	for {
		decision := a.routes.Resolve(ctx, path)
		log.Debug().Str("path", path).Stringer("outcome", decision.Outcome).Str("to", decision.To).Msg("route resolved")

		switch decision.Outcome {
		case guard.Wait:
			fmt.Fprintln(a.out, "Checking your session...")
			if err := a.routes.Await(ctx); err != nil {
				return err
			}
		case guard.Redirect:
			returnTo := decision.From
			path = decision.To
			if path == a.cfg.GetLoginPath() {
				next, err := a.signIn(ctx, returnTo)
				if err != nil {
					return err
				}
				path = next
			}
		case guard.Render:
			if path == a.cfg.GetLoginPath() {
				next, err := a.signIn(ctx, "")
				if err != nil {
					return err
				}
				path = next
				continue
			}
			next, done, err := a.shell(ctx)
			if err != nil || done {
				return err
			}
			path = next
		case guard.NotFound:
			fmt.Fprintf(a.out, "%s: page not found\n", path)
			return nil
		case guard.Nothing:
			return fmt.Errorf("no decision for %s", path)
		default:
			return fmt.Errorf("unhandled outcome %s", decision.Outcome)
		}
	}
}

// signIn runs the wizard and returns where it navigated to
func (a *app) signIn(ctx context.Context, returnTo string) (string, error) {
	nav := console.NewNavigator()
	ctrl := flow.New(a.client, a.store,
		flow.WithNotifier(console.NewNotifier(a.out, a.colour)),
		flow.WithNavigator(nav),
		flow.WithReturnTo(returnTo),
		flow.WithLandingPath(a.cfg.GetLandingPath()),
	)
	go func() {
		if err := ctrl.Run(ctx); err != nil && ctx.Err() == nil {
			log.Err(err).Msg("flow stopped")
		}
	}()
	defer ctrl.Close()

	target, err := console.NewWizard(ctrl, a.lines, a.out, a.colour).Run(ctx)
	if errors.Is(err, io.EOF) {
		return "", errInputClosed
	}
	return target, err
}

// shell is the protected area. It returns the next path to open, or done when the user quits.
func (a *app) shell(ctx context.Context) (next string, done bool, err error) {
	a.printProfile(a.store.Snapshot())
	for {
		fmt.Fprint(a.out, "Command (whoami, logout, quit): ")
		var line string
		select {
		case <-ctx.Done():
			return "", true, ctx.Err()
		case l, ok := <-a.lines:
			if !ok {
				return "", true, nil
			}
			line = l
		}

		switch line {
		case "whoami":
			if _, err := a.client.GetProfile(ctx); err != nil {
				fmt.Fprintln(a.out, authapi.UserMessage(err))
				if !a.store.Snapshot().Authenticated {
					return a.cfg.GetLandingPath(), false, nil
				}
				continue
			}
			a.printProfile(a.store.Snapshot())
		case "logout":
			<-a.client.Logout(ctx)
			fmt.Fprintln(a.out, "Signed out.")
			return a.cfg.GetLandingPath(), false, nil
		case "quit", "exit":
			return "", true, nil
		case "":
		default:
			fmt.Fprintf(a.out, "unknown command %q\n", line)
		}
	}
}

func (a *app) printProfile(s sessions.Session) {
	if !s.HasProfile() {
		fmt.Fprintln(a.out, "Signed in (profile not loaded yet, try whoami).")
		return
	}
	p := s.Profile
	fmt.Fprintf(a.out, "Signed in as %s\n", p.DisplayName())
	fmt.Fprintf(a.out, "  username: %s\n  mobile:   %s\n", p.Username, p.PhoneNumber)
	if p.Email != "" {
		fmt.Fprintf(a.out, "  email:    %s\n", p.Email)
	}
}
