package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"clusterwatch/internal/config"
	"clusterwatch/internal/kubeconfig"
)

func newContextsCmd() *cobra.Command {
	conf := config.New(config.ContextsOptions)
	var output string

	cmd := &cobra.Command{
		Use:   "contexts",
		Short: "List the contexts clusterwatch would watch",
		Long: `Reads the kubeconfig the way the watch command does and lists its contexts
in file order. The current context is marked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := conf.ReadFile(configFile); err != nil {
				return err
			}
			if err := setupLogging(conf, cmd.ErrOrStderr()); err != nil {
				return err
			}

			res := kubeconfig.Resolve(conf.Kubeconfig())
			for _, p := range res.Ignored {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: ignoring additional kubeconfig %s\n", p)
			}

			cfg := kubeconfig.Read(res.Path)
			if !cfg.Valid {
				return fmt.Errorf("kubeconfig %s is not usable: %s", cfg.Path, cfg.Error)
			}
			return printContexts(cmd.OutOrStdout(), cfg, output)
		},
	}

	if err := conf.BindFlags(cmd.Flags(), config.ContextsOptions); err != nil {
		panic(err)
	}
	cmd.Flags().StringVarP(&output, "output", "o", OutputText, "Output format (text, json, yaml)")

	return cmd
}
