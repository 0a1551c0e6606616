// Command radarviz serves the multistatic radar visualiser: it generates a
// random straight-line target track, runs the detection simulator on demand,
// and redraws the plot from the simulator's result log.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/banshee-data/multistatic/internal/config"
	"github.com/banshee-data/multistatic/internal/controller"
	"github.com/banshee-data/multistatic/internal/fsutil"
	"github.com/banshee-data/multistatic/internal/monitor"
	"github.com/banshee-data/multistatic/internal/monitoring"
	"github.com/banshee-data/multistatic/internal/observability"
	"github.com/banshee-data/multistatic/internal/simulator"
	"github.com/banshee-data/multistatic/internal/trajectory"
	"github.com/banshee-data/multistatic/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("radarviz: %v", err)
	}
}

type options struct {
	configPath  string
	listen      string
	logLevel    string
	seed        int64
	showVersion bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("radarviz", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.configPath, "config", "", "Path to a JSON or YAML config file")
	fs.StringVar(&opts.listen, "listen", "", "HTTP listen address (overrides config)")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	fs.Int64Var(&opts.seed, "seed", 0, "Trajectory seed; 0 uses the config value or the clock")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

// applyOverrides folds command-line flags over the loaded configuration.
func applyOverrides(cfg *config.Config, opts *options) {
	if opts.listen != "" {
		cfg.HTTP.Listen = opts.listen
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.seed != 0 {
		cfg.Seed = opts.seed
	}
}

// newSimulator picks the configured runner and wraps it in a supervisor that
// enforces a fresh result log.
func newSimulator(cfg *config.Config, fsys fsutil.FileSystem) (*simulator.Supervisor, error) {
	g, err := cfg.SensorGrid()
	if err != nil {
		return nil, err
	}

	var runner simulator.Runner
	if cfg.UsesBuiltinSimulator() {
		runner = simulator.NewBuiltin(g, fsys, cfg.Files.Trajectory, cfg.Files.Detections, cfg.Simulator.RadarRange)
	} else {
		runner = simulator.NewExternal(simulator.ExternalConfig{
			Command: cfg.Simulator.Command,
			Args:    cfg.Simulator.Args,
			WorkDir: cfg.Simulator.WorkDir,
		}, simulator.NewRealCommandBuilder())
	}
	monitoring.Logf("using %s simulator, result log %s", runner.Name(), cfg.Files.Detections)

	return simulator.NewSupervisor(runner, cfg.Files.Detections,
		simulator.WithFileSystem(fsys),
		simulator.WithSettleDelay(cfg.GetSettleDelay()),
	), nil
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Fprintln(stderr, version.String())
		return nil
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	applyOverrides(cfg, opts)

	_, sink := monitoring.NewZerologSink(stderr, monitoring.ParseLevel(cfg.LogLevel))
	monitoring.SetLogger(sink)
	zerolog.SetGlobalLevel(monitoring.ParseLevel(cfg.LogLevel))
	monitoring.Logf("starting %s", version.String())

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "radarviz",
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing)

	metrics, err := observability.NewCollector(nil)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	g, err := cfg.SensorGrid()
	if err != nil {
		return err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	truth, theta, err := trajectory.Generate(g, cfg.Steps, rand.New(rand.NewSource(seed)))
	if err != nil {
		return fmt.Errorf("generate trajectory: %w", err)
	}

	fsys := fsutil.OSFileSystem{}
	if err := trajectory.Save(fsys, cfg.Files.Trajectory, truth); err != nil {
		return fmt.Errorf("write trajectory: %w", err)
	}
	monitoring.Logf("wrote %d-sample trajectory at %.3f rad (seed %d) to %s", len(truth), theta, seed, cfg.Files.Trajectory)

	sim, err := newSimulator(cfg, fsys)
	if err != nil {
		return err
	}

	ctrl, err := controller.New(controller.Config{
		Grid:           g,
		Steps:          cfg.Steps,
		Margin:         cfg.Margin,
		DetectionsPath: cfg.Files.Detections,
	}, truth, sim, controller.WithFileSystem(fsys), controller.WithMetrics(metrics))
	if err != nil {
		return err
	}

	server := monitor.NewWebServer(monitor.WebServerConfig{
		Address:    cfg.HTTP.Listen,
		Visualizer: ctrl,
		Metrics:    metrics,
	})

	if err := server.Start(ctx); err != nil {
		return err
	}
	monitoring.Logf("radarviz stopped")
	return nil
}
