package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jkaninda/cloudbase-mcp/internal/config"
	"github.com/jkaninda/cloudbase-mcp/internal/manager"
	"github.com/jkaninda/cloudbase-mcp/internal/plugins"
	"github.com/jkaninda/cloudbase-mcp/internal/setup"
	"github.com/jkaninda/cloudbase-mcp/internal/tools"
)

var envJSON bool

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "List the CloudBase environments of the signed-in account",
	RunE:  runEnv,
}

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "Print the plugins serve would register",
	RunE:  runPlugins,
}

func init() {
	envCmd.Flags().BoolVar(&envJSON, "json", false, "print JSON instead of a table")
}

func runEnv(cmd *cobra.Command, _ []string) error {
	sc, err := initShared(cmd)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := sc.Clients.Build(ctx, append(sc.BuildOptions(), manager.WithoutEnvID())...)
	if err != nil {
		return err
	}
	envs, err := setup.ListEnvironments(ctx, client)
	if err != nil {
		return fmt.Errorf("listing environments: %w", err)
	}

	if envJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(envs)
	}
	current := sc.Env.Get(config.EnvEnvID)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\tENV ID\tALIAS\tREGION\tSTATUS")
	for _, e := range envs {
		mark := ""
		if e.EnvID == current {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", mark, e.EnvID, e.Alias, e.Region, e.Status)
	}
	return w.Flush()
}

func runPlugins(cmd *cobra.Command, _ []string) error {
	sc, err := initShared(cmd)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	registry := plugins.NewRegistry(sc.Env, tools.Plugins(), plugins.WithLogger(sc.Logger))
	for _, name := range registry.ResolveEnabled(sc.Config.Plugins.Enabled, sc.Config.Plugins.Disabled) {
		fmt.Println(name)
	}
	return nil
}
