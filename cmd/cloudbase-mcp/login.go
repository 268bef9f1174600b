package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jkaninda/cloudbase-mcp/internal/auth"
	"github.com/jkaninda/cloudbase-mcp/internal/config"
)

var loginForce bool

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in through the browser and pick an environment",
	Long: `Run the interactive sign-in and environment selection once and print the
chosen environment id. Sessions live in memory, so export the printed
CLOUDBASE_ENV_ID (and a static key pair) to reuse the choice in the server.`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().BoolVar(&loginForce, "force", false, "ignore TENCENTCLOUD_SECRETID/TENCENTCLOUD_SECRETKEY and CLOUDBASE_ENV_ID")
}

func runLogin(cmd *cobra.Command, _ []string) error {
	sc, err := initShared(cmd)
	if err != nil {
		return err
	}
	defer sc.Cleanup()
	if sc.Explicit != nil {
		return errors.New("the config file sets explicit cloudbase credentials; nothing to sign in to")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if loginForce {
		sc.Env.Unset(config.EnvEnvID)
	}
	cred, err := sc.Creds.Resolve(ctx, auth.ResolveOptions{
		IgnoreEnvVars: loginForce,
		Region:        sc.Env.Get(config.EnvRegion),
		FromLoginPage: sc.Config.Auth.FromLoginPage,
	})
	if err != nil {
		return fmt.Errorf("sign-in failed: %w", err)
	}
	if cred.EnvIDHint != "" {
		sc.EnvIDs.SetEnvID(cred.EnvIDHint)
	}

	id, err := sc.EnvIDs.Resolve(ctx, sc.IDE)
	if err != nil {
		return err
	}
	sc.Logger.Info("login completed", slog.String("env_id", id), slog.String("source", string(cred.Source)))
	fmt.Printf("Signed in (%s).\nexport %s=%s\n", cred.Source, config.EnvEnvID, id)
	return nil
}
