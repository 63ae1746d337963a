// Command gatecheck resolves feature gates the way the operator does at
// startup and prints the result. It validates STRIMZI_FEATURE_GATES strings,
// simulates remote targeting from a rules file, and can keep watching a
// remote backend while serving Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/strimzi/featuregates"
	"github.com/strimzi/featuregates/evaluation"
	"github.com/strimzi/featuregates/gate"
	"github.com/strimzi/featuregates/gate/legacy"
	"github.com/strimzi/featuregates/provider"
	"github.com/strimzi/featuregates/provider/envvar"
)

var errRemoteWithoutBackend = errors.New("remote provider selected by $" + provider.SelectionEnvVar + ", pass --backend or --rules")

type options struct {
	gates       string
	backend     backendOptions
	cluster     string
	namespace   string
	interval    time.Duration
	timeout     time.Duration
	watch       bool
	metricsAddr string
	debug       bool
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var o options
	root := &cobra.Command{
		Use:   "gatecheck",
		Short: "Resolve and print Strimzi feature gates",
		Long: `gatecheck resolves the feature gate catalog with the env-var provider, or
with a remote backend when --backend is set, and prints every gate with its
value and where the value came from.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("gates") {
				o.gates = ""
				if v, ok := os.LookupEnv(legacy.EnvVar); ok {
					o.gates = v
				}
			}
			return runCheck(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), o)
		},
	}

	fs := root.Flags()
	fs.StringVar(&o.gates, "gates", "", "legacy feature gate string, e.g. +UseKRaft,-KafkaNodePools (default $"+legacy.EnvVar+")")
	fs.StringVar(&o.cluster, "cluster", "", "Kafka cluster name for the evaluation context")
	fs.StringVar(&o.namespace, "namespace", "", "namespace for the evaluation context")
	fs.DurationVar(&o.interval, "interval", 0, "refresh interval while watching; zero relies on backend push only")
	fs.DurationVar(&o.timeout, "timeout", 0, "per-call timeout for the remote backend (default 2s)")
	fs.BoolVar(&o.watch, "watch", false, "keep running and print every new snapshot")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while watching")
	fs.BoolVar(&o.debug, "debug", false, "enable debug logging")
	o.backend.register(fs)

	root.AddCommand(newCatalogCommand())
	return root
}

func newCatalogCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the known feature gates and their defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printCatalog(cmd.OutOrStdout(), gate.Default())
		},
	}
}

func newLogger(w io.Writer, debug bool) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	logger = log.With(logger, "caller", log.DefaultCaller)
	if debug {
		return level.NewFilter(logger, level.AllowDebug())
	}
	return level.NewFilter(logger, level.AllowInfo())
}

func runCheck(ctx context.Context, stdout, stderr io.Writer, o options) error {
	logger := newLogger(stderr, o.debug)

	cfg, err := featuregates.ConfigFromEnv(nil)
	if err != nil {
		level.Error(logger).Log("err", err)
		return err
	}
	if o.timeout > 0 {
		cfg.RemoteTimeout = o.timeout
	}
	if o.interval > 0 {
		cfg.RefreshInterval = o.interval
	}

	ec := evaluation.ForCluster(o.namespace, o.cluster)
	gopts := []featuregates.Option{
		featuregates.WithLogger(logger),
		featuregates.WithEvaluationContext(ec),
		featuregates.WithEnvVarOptions(envvar.WithRaw(o.gates)),
	}

	backend, closer, err := o.backend.build(ctx, logger)
	if err != nil {
		level.Error(logger).Log("backend", o.backend.kind, "err", err)
		return err
	}
	defer closer()
	switch {
	case backend != nil:
		cfg.Provider = provider.Remote
		gopts = append(gopts, featuregates.WithBackend(backend))
	case cfg.Provider == provider.Remote:
		err := errRemoteWithoutBackend
		level.Error(logger).Log("err", err)
		return err
	}

	var m *instrumentation
	if o.metricsAddr != "" {
		m = newInstrumentation()
		gopts = append(gopts, m.options()...)
	}

	gates, err := featuregates.New(ctx, cfg, gopts...)
	if err != nil {
		level.Error(logger).Log("err", err)
		return err
	}
	if err := printSnapshot(stdout, gates.Catalog(), gates.CurrentGates()); err != nil {
		return err
	}
	if !o.watch {
		return nil
	}
	return watch(ctx, stdout, logger, gates, o.metricsAddr)
}

func watch(ctx context.Context, stdout io.Writer, logger log.Logger, gates *featuregates.Gates, metricsAddr string) error {
	var g run.Group
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return gates.Run(ctx)
		}, func(error) {
			cancel()
		})
	}
	{
		snapshots := make(chan *gate.Snapshot, 1)
		gates.State().Register(snapshots)
		<-snapshots // the current snapshot, already printed
		done := make(chan struct{})
		g.Add(func() error {
			for {
				select {
				case s := <-snapshots:
					fmt.Fprintf(stdout, "\n# generation %d\n", gates.State().Generation())
					if err := printSnapshot(stdout, gates.Catalog(), s); err != nil {
						return err
					}
				case <-done:
					return nil
				}
			}
		}, func(error) {
			gates.State().Deregister(snapshots)
			close(done)
		})
	}
	if metricsAddr != "" {
		ln, err := net.Listen("tcp", metricsAddr)
		if err != nil {
			level.Error(logger).Log("transport", "metrics/HTTP", "during", "Listen", "err", err)
			return err
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		g.Add(func() error {
			level.Info(logger).Log("transport", "metrics/HTTP", "addr", ln.Addr())
			return http.Serve(ln, mux)
		}, func(error) {
			ln.Close()
		})
	}
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	err := g.Run()
	var sig run.SignalError
	if errors.As(err, &sig) || err == context.Canceled {
		level.Info(logger).Log("exit", err)
		return nil
	}
	return err
}

func printCatalog(w io.Writer, c *gate.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GATE\tDEFAULT\tDEPENDS ON\tDESCRIPTION")
	for _, d := range c.Definitions() {
		deps := "-"
		if len(d.DependsOn) > 0 {
			deps = fmt.Sprint(d.DependsOn)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Name, d.Default, deps, d.Description)
	}
	return tw.Flush()
}

func printSnapshot(w io.Writer, c *gate.Catalog, s *gate.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GATE\tVALUE\tSOURCE")
	for _, e := range s.Entries() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, e.Value, e.Source)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nprovider: %s\n", s.Provider())
	fmt.Fprintf(w, "%s=%s\n", legacy.EnvVar, legacy.Format(s.Overrides(c)))
	for _, warning := range s.Warnings() {
		fmt.Fprintf(w, "warning: %v\n", warning)
	}
	return nil
}
