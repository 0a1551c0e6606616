package simulator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/banshee-data/multistatic/internal/fsutil"
	"github.com/banshee-data/multistatic/internal/monitoring"
	"github.com/banshee-data/multistatic/internal/timeutil"
)

var (
	// ErrOutputMissing is returned when the detection log does not exist after the run.
	ErrOutputMissing = errors.New("simulator produced no detection log")
	// ErrOutputStale is returned when the detection log was not rewritten by the run.
	ErrOutputStale = errors.New("detection log was not updated by the simulator")
)

const tracerName = "github.com/banshee-data/multistatic/internal/simulator"

// Runner runs one simulation for the given number of time steps and returns
// once the simulator has exited.
type Runner interface {
	Run(ctx context.Context, steps int) ([]byte, error)
	Name() string
}

// ExternalConfig describes the external simulator command. The step count is
// appended as the final argument.
type ExternalConfig struct {
	Command string
	Args    []string
	WorkDir string
}

// External runs the simulator as a child process.
type External struct {
	cfg     ExternalConfig
	builder CommandBuilder
}

// NewExternal creates a Runner for an external command. A nil builder uses
// RealCommandBuilder.
func NewExternal(cfg ExternalConfig, builder CommandBuilder) *External {
	if builder == nil {
		builder = NewRealCommandBuilder()
	}
	return &External{cfg: cfg, builder: builder}
}

// Name identifies the runner in logs and metrics.
func (e *External) Name() string { return "external" }

// Run starts the command and blocks until it exits.
func (e *External) Run(ctx context.Context, steps int) ([]byte, error) {
	args := make([]string, 0, len(e.cfg.Args)+1)
	args = append(args, e.cfg.Args...)
	args = append(args, strconv.Itoa(steps))

	cmd := e.builder.BuildCommand(ctx, e.cfg.Command, args...)
	if e.cfg.WorkDir != "" {
		cmd.SetDir(e.cfg.WorkDir)
	}
	monitoring.Logf("simulator: running %s %v (dir=%q)", e.cfg.Command, args, e.cfg.WorkDir)
	return cmd.Run()
}

// OutputState is a stat snapshot of the detection log.
type OutputState struct {
	Exists  bool      `json:"exists"`
	ModTime time.Time `json:"mod_time"`
	Size    int64     `json:"size"`
}

// StatOutput snapshots path. Stat failures are reported as a missing file.
func StatOutput(fsys fsutil.FileSystem, path string) OutputState {
	info, err := fsys.Stat(path)
	if err != nil || info.IsDir() {
		return OutputState{}
	}
	return OutputState{Exists: true, ModTime: info.ModTime(), Size: info.Size()}
}

// ChangedSince reports whether s describes a file written after prev was taken.
func (s OutputState) ChangedSince(prev OutputState) bool {
	if !s.Exists {
		return false
	}
	if !prev.Exists {
		return true
	}
	return !s.ModTime.Equal(prev.ModTime) || s.Size != prev.Size
}

// mtimeGranularity is the coarsest modification time resolution tolerated.
const mtimeGranularity = time.Second

// FreshSince reports whether s is a log written by a run that started at
// started. A byte-identical rewrite on a filesystem with coarse timestamps
// keeps the previous stat, so a modification time within the start's
// granularity window also counts as fresh.
func (s OutputState) FreshSince(prev OutputState, started time.Time) bool {
	if s.ChangedSince(prev) {
		return true
	}
	return s.Exists && !s.ModTime.Before(started.Truncate(mtimeGranularity))
}

// Result describes one completed simulator run.
type Result struct {
	Runner   string
	Output   []byte
	ExitErr  error
	Started  time.Time
	Duration time.Duration
	Log      OutputState
}

// Supervisor runs a Runner and confirms completion by waiting for exit and
// then checking that the detection log exists and was rewritten during the
// run. The exit status alone never decides success.
type Supervisor struct {
	runner     Runner
	fs         fsutil.FileSystem
	clock      timeutil.Clock
	outputPath string
	settle     time.Duration
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithFileSystem sets the filesystem used to inspect the detection log.
func WithFileSystem(fsys fsutil.FileSystem) Option {
	return func(s *Supervisor) { s.fs = fsys }
}

// WithClock sets the clock used for timing and the settle delay.
func WithClock(c timeutil.Clock) Option {
	return func(s *Supervisor) { s.clock = c }
}

// WithSettleDelay waits d after the process exits before checking the log,
// for simulators that hand the write off to a detached child.
func WithSettleDelay(d time.Duration) Option {
	return func(s *Supervisor) { s.settle = d }
}

// NewSupervisor creates a supervisor for runner writing to outputPath.
func NewSupervisor(runner Runner, outputPath string, opts ...Option) *Supervisor {
	s := &Supervisor{
		runner:     runner,
		fs:         fsutil.OSFileSystem{},
		clock:      timeutil.RealClock{},
		outputPath: outputPath,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OutputPath is the detection log the supervisor checks.
func (s *Supervisor) OutputPath() string { return s.outputPath }

// Run invokes the simulator for steps time steps and waits for a fresh log.
func (s *Supervisor) Run(ctx context.Context, steps int) (*Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "simulator.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("simulator.runner", s.runner.Name()),
		attribute.Int("simulator.steps", steps),
	)

	before := StatOutput(s.fs, s.outputPath)
	res := &Result{Runner: s.runner.Name(), Started: s.clock.Now()}

	res.Output, res.ExitErr = s.runner.Run(ctx, steps)
	res.Duration = s.clock.Since(res.Started)

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "cancelled")
		return res, fmt.Errorf("simulator run cancelled: %w", err)
	}
	if res.ExitErr != nil {
		monitoring.Logf("simulator: %s runner exited with error after %v: %v", res.Runner, res.Duration, res.ExitErr)
	}

	if s.settle > 0 {
		select {
		case <-s.clock.After(s.settle):
		case <-ctx.Done():
			return res, fmt.Errorf("simulator settle wait cancelled: %w", ctx.Err())
		}
	}

	res.Log = StatOutput(s.fs, s.outputPath)
	var err error
	switch {
	case !res.Log.Exists:
		err = fmt.Errorf("%w: %s", ErrOutputMissing, s.outputPath)
	case !res.Log.FreshSince(before, res.Started):
		err = fmt.Errorf("%w: %s", ErrOutputStale, s.outputPath)
	}
	if err != nil {
		if res.ExitErr != nil {
			err = fmt.Errorf("%w (exit: %v)", err, res.ExitErr)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}

	span.SetAttributes(attribute.Int64("simulator.log_bytes", res.Log.Size))
	return res, nil
}
