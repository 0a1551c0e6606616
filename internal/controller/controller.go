// Package controller owns the plot state and runs simulation cycles: invoke
// the simulator, parse its detection log and fold the result into the plot.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/banshee-data/multistatic/internal/detection"
	"github.com/banshee-data/multistatic/internal/fsutil"
	"github.com/banshee-data/multistatic/internal/grid"
	"github.com/banshee-data/multistatic/internal/monitoring"
	"github.com/banshee-data/multistatic/internal/observability"
	"github.com/banshee-data/multistatic/internal/render"
	"github.com/banshee-data/multistatic/internal/simulator"
	"github.com/banshee-data/multistatic/internal/timeutil"
	"github.com/banshee-data/multistatic/internal/trajectory"
)

// ErrBusy is returned by Trigger while a cycle is already running.
var ErrBusy = errors.New("simulation already in progress")

const tracerName = "github.com/banshee-data/multistatic/internal/controller"

// State is the controller's lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateSimulating State = "simulating"
)

// Simulator runs the detection simulator to completion.
// *simulator.Supervisor implements it.
type Simulator interface {
	Run(ctx context.Context, steps int) (*simulator.Result, error)
}

// Config holds the fixed parameters of a controller.
type Config struct {
	Grid           grid.Grid
	Steps          int
	Margin         int
	DetectionsPath string
}

// CycleResult summarises one successful trigger cycle.
type CycleResult struct {
	ID         string        `json:"id"`
	Records    int           `json:"records"`
	Segments   int           `json:"segments"`
	Revision   uint64        `json:"revision"`
	Started    time.Time     `json:"started"`
	Duration   time.Duration `json:"duration"`
	Runner     string        `json:"runner"`
	ExitStatus string        `json:"exit_status,omitempty"`
}

// Snapshot is a consistent copy of the controller's state.
type Snapshot struct {
	State       State         `json:"state"`
	Revision    uint64        `json:"revision"`
	Cycles      int           `json:"cycles"`
	Failures    int           `json:"failures"`
	LastCycleID string        `json:"last_cycle_id,omitempty"`
	LastError   string        `json:"last_error,omitempty"`
	Render      *render.State `json:"render"`
}

// Controller serialises all plot mutation. Triggers may arrive from any
// goroutine; at most one cycle runs at a time.
type Controller struct {
	cfg     Config
	sim     Simulator
	fs      fsutil.FileSystem
	clock   timeutil.Clock
	metrics *observability.Collector
	newID   func() string

	mu          sync.Mutex
	state       State
	plot        *render.State
	revision    uint64
	cycles      int
	failures    int
	lastCycleID string
	lastErr     string

	subs *subscribers
}

// Option configures a Controller.
type Option func(*Controller)

// WithFileSystem sets the filesystem the detection log is read from.
func WithFileSystem(fsys fsutil.FileSystem) Option {
	return func(c *Controller) { c.fs = fsys }
}

// WithClock sets the clock used for cycle timing.
func WithClock(clock timeutil.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithMetrics records cycle metrics on m.
func WithMetrics(m *observability.Collector) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithIDGenerator replaces the cycle id generator.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) { c.newID = fn }
}

// New builds a controller and performs the initial render: sensors, the true
// path, no detections and the placeholder attribution segment.
func New(cfg Config, truth trajectory.Trajectory, sim Simulator, opts ...Option) (*Controller, error) {
	if err := cfg.Grid.Validate(); err != nil {
		return nil, err
	}
	if cfg.Steps < 1 {
		return nil, fmt.Errorf("%w: got %d", trajectory.ErrInvalidSteps, cfg.Steps)
	}
	if sim == nil {
		return nil, errors.New("controller needs a simulator")
	}
	if cfg.DetectionsPath == "" {
		return nil, errors.New("controller needs a detection log path")
	}

	c := &Controller{
		cfg:   cfg,
		sim:   sim,
		fs:    fsutil.OSFileSystem{},
		clock: timeutil.RealClock{},
		newID: func() string { return uuid.NewString() },
		state: StateIdle,
		plot:  render.NewState(cfg.Grid, truth, cfg.Margin),
		subs:  newSubscribers(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.metrics.SetRenderCounts(0, 0)
	c.metrics.SetSimulating(false)
	return c, nil
}

// Trigger runs one simulation cycle and blocks until it completes. A cycle
// that fails leaves the plot untouched. Concurrent calls return ErrBusy.
func (c *Controller) Trigger(ctx context.Context) (*CycleResult, error) {
	c.mu.Lock()
	if c.state == StateSimulating {
		c.mu.Unlock()
		c.metrics.ObserveCycle(observability.ResultBusy, 0)
		return nil, ErrBusy
	}
	id := c.newID()
	started := c.clock.Now()
	c.state = StateSimulating
	c.lastCycleID = id
	c.subs.publish(Event{Type: EventState, State: StateSimulating, CycleID: id, Revision: c.revision})
	c.mu.Unlock()

	c.metrics.SetSimulating(true)
	defer c.metrics.SetSimulating(false)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "controller.Trigger")
	defer span.End()
	span.SetAttributes(attribute.String("cycle.id", id), attribute.Int("cycle.steps", c.cfg.Steps))

	monitoring.Logf("controller: cycle %s started (steps=%d)", id, c.cfg.Steps)

	out, err := c.runCycle(ctx)
	duration := c.clock.Since(started)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	c.cycles++

	if err != nil {
		c.failures++
		c.lastErr = err.Error()
		c.subs.publish(Event{Type: EventError, State: StateIdle, CycleID: id, Revision: c.revision, Error: err.Error()})
		c.metrics.ObserveCycle(observability.ResultError, duration)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		monitoring.Logf("controller: cycle %s failed after %v: %v", id, duration, err)
		return nil, err
	}

	c.plot.AppendAttributions(out.segments...)
	c.plot.ReplaceDetections(out.markers)
	c.revision++
	c.lastErr = ""

	res := &CycleResult{
		ID:       id,
		Records:  len(out.markers),
		Segments: len(c.plot.Attributions),
		Revision: c.revision,
		Started:  started,
		Duration: duration,
		Runner:   out.run.Runner,
	}
	if out.run.ExitErr != nil {
		res.ExitStatus = out.run.ExitErr.Error()
	}

	c.subs.publish(Event{Type: EventRedraw, State: StateIdle, CycleID: id, Revision: c.revision})
	c.metrics.ObserveCycle(observability.ResultOK, duration)
	c.metrics.SetRenderCounts(len(c.plot.Detections), len(c.plot.Attributions))
	span.SetAttributes(attribute.Int("cycle.records", res.Records), attribute.Int64("cycle.revision", int64(res.Revision)))
	monitoring.Logf("controller: cycle %s done in %v: %d detections, %d segments total", id, duration, res.Records, res.Segments)
	return res, nil
}

type cycleOutput struct {
	run      *simulator.Result
	markers  []grid.Point
	segments []render.Segment
}

// runCycle does the work that may fail. It touches no controller state.
func (c *Controller) runCycle(ctx context.Context) (out *cycleOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("simulation cycle panicked: %v", r)
		}
	}()

	run, err := c.sim.Run(ctx, c.cfg.Steps)
	if run != nil {
		c.metrics.ObserveSimulator(run.Runner, run.Duration)
	}
	if err != nil {
		return nil, fmt.Errorf("run simulator: %w", err)
	}

	records, err := detection.ParseFile(c.fs, c.cfg.DetectionsPath)
	if err != nil {
		return nil, fmt.Errorf("parse detection log: %w", err)
	}

	out = &cycleOutput{
		run:      run,
		markers:  make([]grid.Point, 0, len(records)),
		segments: make([]render.Segment, 0, len(records)),
	}
	for _, rec := range records {
		out.markers = append(out.markers, rec.Point())
		out.segments = append(out.segments, render.Segment{From: rec.Origin(c.cfg.Grid), To: rec.Point()})
	}
	return out, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a deep copy of the plot and controller counters.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:       c.state,
		Revision:    c.revision,
		Cycles:      c.cycles,
		Failures:    c.failures,
		LastCycleID: c.lastCycleID,
		LastError:   c.lastErr,
		Render:      c.plot.Clone(),
	}
}

// Subscribe registers for redraw notifications. Slow readers only see the
// latest event. Call Unsubscribe with the returned id when done.
func (c *Controller) Subscribe() (int, <-chan Event) {
	return c.subs.add()
}

// Unsubscribe removes a subscription and closes its channel.
func (c *Controller) Unsubscribe(id int) {
	c.subs.remove(id)
}

// Subscribers returns the number of active subscriptions.
func (c *Controller) Subscribers() int {
	return c.subs.count()
}
