package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-auth-flow/internal/config"
	"github.com/jrsteele09/go-auth-flow/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	var cfg config.Config

	root := &cobra.Command{
		Use:           "authflow",
		Short:         "Mobile and password sign-in against a cookie session API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("loading %s: %w", envFile, err)
			}
			cfg = config.New()
			logging.Setup(cfg.GetEnv(), cfg.GetLogLevel(), cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "file of KEY=value settings loaded before the environment is read")

	root.AddCommand(
		newLoginCmd(func() config.Config { return cfg }),
		newMockServerCmd(func() config.Config { return cfg }),
	)
	return root
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func displayAppname(cmd *cobra.Command, appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(cmd.OutOrStdout(), myFigure.String())
}

func logErr(err error, msg string) error {
	if err != nil {
		log.Err(err).Msg(msg)
	}
	return err
}
