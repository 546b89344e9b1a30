package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"clusterwatch/internal/cluster"
	"clusterwatch/internal/config"
	"clusterwatch/internal/kubeconfig"
	"clusterwatch/internal/reconciler"
	"clusterwatch/internal/session"
	"clusterwatch/pkg/logging"
)

func newWatchCmd() *cobra.Command {
	conf := config.New(config.WatchOptions)
	var output string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream namespace events from the clusters in your kubeconfig",
		Long: `Follows the kubeconfig and prints a line for every namespace added to or
removed from the watched clusters, plus warnings and kubeconfig reloads.

Fleet mode (--fleet, default) watches every context; focused mode (--focused)
watches the current context and follows current-context changes.`,
		Example: `  clusterwatch watch
  clusterwatch watch --focused --fleet=false
  clusterwatch watch --kubeconfig ~/.kube/prod --output json --metrics-address :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := conf.ReadFile(configFile); err != nil {
				return err
			}
			if err := conf.Validate(); err != nil {
				return err
			}
			if err := setupLogging(conf, cmd.ErrOrStderr()); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runWatch(ctx, conf, output, cmd.OutOrStdout())
		},
	}

	if err := conf.BindFlags(cmd.Flags(), config.WatchOptions); err != nil {
		panic(err)
	}
	cmd.Flags().StringVarP(&output, "output", "o", OutputText, "Output format (text, json)")

	return cmd
}

func setupLogging(conf *config.Config, w io.Writer) error {
	level, err := logging.ParseLevel(conf.LogLevel())
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidSetting, err)
	}
	logging.InitForCLIWithFormat(level, w, logging.Format(strings.ToLower(conf.LogFormat())))
	logging.BridgeKlog()
	return nil
}

// runWatch runs the engine until ctx is cancelled or the event stream ends.
func runWatch(ctx context.Context, conf *config.Config, output string, out io.Writer) error {
	printer, err := newEventPrinter(out, output)
	if err != nil {
		return err
	}

	res := kubeconfig.Resolve(conf.Kubeconfig())
	logging.Info("Watch", "Following %s (%s)", res.Path, res.Source)

	mc := reconciler.ManagerConfig{
		KubeconfigPath:     res.Path,
		IgnoredKubeconfigs: res.Ignored,
		Fleet:              conf.Fleet(),
		Focused:            conf.Focused(),
		ReconcileInterval:  conf.ReconcileInterval(),
		FileWatchInterval:  conf.FileWatchInterval(),
		FileWatchPoll:      conf.FileWatchPoll(),
		Backoff: session.Backoff{
			Initial: conf.BackoffInitial(),
			Max:     conf.BackoffMax(),
			Jitter:  session.DefaultBackoff().Jitter,
		},
		EventBuffer: conf.EventsBuffer(),
		Client:      cluster.NewKubeClient(res.Path, cluster.WithUserAgent("clusterwatch/"+GetVersion())),
	}

	var ms *metricsServer
	if addr := conf.MetricsAddress(); addr != "" {
		if ms, err = newMetricsServer(addr); err != nil {
			return err
		}
		mc.Metrics = ms.metrics
	}

	manager, err := reconciler.NewManager(mc)
	if err != nil {
		return fmt.Errorf("failed to create reconcile manager: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reconcile manager: %w", err)
	}

	g.Go(func() error {
		<-ctx.Done()
		return manager.Stop()
	})

	g.Go(func() error {
		for ev := range manager.Events() {
			if err := printer.Print(ev); err != nil {
				return fmt.Errorf("failed to write event: %w", err)
			}
		}
		return nil
	})

	if ms != nil {
		g.Go(func() error {
			return ms.Run(ctx)
		})
	}

	return g.Wait()
}
