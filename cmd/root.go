package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"clusterwatch/internal/config"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeInvalidConfig indicates settings that failed validation.
	ExitCodeInvalidConfig = 2
)

// configFile is the --config flag shared by every command.
var configFile string

// rootCmd represents the base command for the clusterwatch application.
var rootCmd = &cobra.Command{
	Use:   "clusterwatch",
	Short: "Watch namespaces across the clusters in your kubeconfig",
	Long: `clusterwatch follows a kubeconfig file and keeps a namespace watch open
against its clusters: one per context (fleet mode), one for the current
context (focused mode), or both. Editing the kubeconfig, switching context
or deleting the file is picked up without a restart.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "clusterwatch version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	if errors.Is(err, config.ErrInvalidSetting) {
		return ExitCodeInvalidConfig
	}
	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is $HOME/.config/clusterwatch/config.yaml)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newContextsCmd())
}
