// cloudbase-mcp serves CloudBase tools to AI assistants over MCP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jkaninda/cloudbase-mcp/internal/config"
)

var (
	configPath string
	logLevel   string
	ideName    string
)

var rootCmd = &cobra.Command{
	Use:   "cloudbase-mcp",
	Short: "cloudbase-mcp serves CloudBase tools to AI assistants over MCP.",
	Long: `cloudbase-mcp is a Model Context Protocol server for Tencent CloudBase.
It resolves credentials and the target environment on demand, signing in
through the browser and letting you pick an environment when needed.`,
	RunE:          runServe, // Default to serve.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&ideName, "ide", "", "calling assistant, e.g. cursor or codebuddy")
	rootCmd.AddCommand(serveCmd, loginCmd, envCmd, pluginsCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
