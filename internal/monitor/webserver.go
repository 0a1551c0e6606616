// Package monitor serves the visualiser over HTTP: the page with the
// Simulate button, rendered plots, state, and a websocket event stream.
package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/banshee-data/multistatic/internal/controller"
	"github.com/banshee-data/multistatic/internal/httputil"
	"github.com/banshee-data/multistatic/internal/monitoring"
	"github.com/banshee-data/multistatic/internal/observability"
	"github.com/banshee-data/multistatic/internal/render"
	"github.com/banshee-data/multistatic/internal/version"
)

// Visualizer is the controller surface the web server drives.
// *controller.Controller implements it.
type Visualizer interface {
	Trigger(ctx context.Context) (*controller.CycleResult, error)
	Snapshot() controller.Snapshot
	Subscribe() (int, <-chan controller.Event)
	Unsubscribe(id int)
	Subscribers() int
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address    string
	Visualizer Visualizer
	Plots      *render.PlotRenderer
	Charts     *render.ChartRenderer
	Metrics    *observability.Collector
	Templates  TemplateProvider
}

// WebServer exposes the visualiser over HTTP.
type WebServer struct {
	address   string
	viz       Visualizer
	plots     *render.PlotRenderer
	charts    *render.ChartRenderer
	metrics   *observability.Collector
	templates TemplateProvider
	server    *http.Server
	handler   http.Handler

	mu       sync.Mutex
	lifetime context.Context
}

// NewWebServer creates a web server; nil renderers and templates get defaults.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:   config.Address,
		viz:       config.Visualizer,
		plots:     config.Plots,
		charts:    config.Charts,
		metrics:   config.Metrics,
		templates: config.Templates,
		lifetime:  context.Background(),
	}
	if ws.plots == nil {
		ws.plots = render.NewPlotRenderer()
	}
	if ws.charts == nil {
		ws.charts = render.NewChartRenderer()
	}
	if ws.templates == nil {
		ws.templates = NewEmbeddedTemplateProvider()
	}

	ws.handler = ws.setupRoutes()
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           ws.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws
}

// Handler returns the routed handler, for tests and embedding.
func (ws *WebServer) Handler() http.Handler {
	return ws.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
// Simulation cycles started over HTTP are cancelled along with ctx.
func (ws *WebServer) Start(ctx context.Context) error {
	ws.mu.Lock()
	ws.lifetime = ctx
	ws.mu.Unlock()

	ln, err := net.Listen("tcp", ws.address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", ws.address, err)
	}

	serveErr := make(chan error, 1)
	go func() {
		monitoring.Logf("Starting HTTP server on %s", ln.Addr())
		if err := ws.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}

	monitoring.Logf("HTTP server routine stopped")
	return nil
}

// Close shuts down the web server immediately.
func (ws *WebServer) Close() error {
	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}

// requestContext ends when either the request or the server's lifetime ends.
func (ws *WebServer) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	ws.mu.Lock()
	lifetime := ws.lifetime
	ws.mu.Unlock()

	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(lifetime, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", ws.handleIndex)
	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/simulate", ws.handleSimulate)
	mux.HandleFunc("/api/state", ws.handleState)
	mux.HandleFunc("/plot.png", ws.handlePlot(render.FormatPNG, "image/png"))
	mux.HandleFunc("/plot.svg", ws.handlePlot(render.FormatSVG, "image/svg+xml"))
	mux.HandleFunc("/chart", ws.handleChart)
	mux.HandleFunc("/ws", ws.handleEvents)
	mux.Handle("/metrics", ws.metrics.Handler())
	ws.attachDebugRoutes(mux)

	return mux
}

func (ws *WebServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	snap := ws.viz.Snapshot()
	data := struct {
		Title     string
		State     string
		Revision  uint64
		LastError string
	}{
		Title:     snap.Render.Title,
		State:     string(snap.State),
		Revision:  snap.Revision,
		LastError: snap.LastError,
	}

	var buf bytes.Buffer
	if err := ws.templates.ExecuteTemplate(&buf, "index.html", data); err != nil {
		httputil.InternalServerError(w, "render page: "+err.Error())
		return
	}
	httputil.WriteFresh(w, "text/html; charset=utf-8", buf.Bytes())
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":    "ok",
		"service":   "radarviz",
		"state":     ws.viz.Snapshot().State,
		"version":   version.Get(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSimulate runs one cycle and reports it. The request waits for the
// simulator; a second request while one is running is refused with 409.
func (ws *WebServer) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}

	ws.mu.Lock()
	lifetime := ws.lifetime
	ws.mu.Unlock()

	// A browser navigating away must not abort a half-run simulation.
	result, err := ws.viz.Trigger(lifetime)
	switch {
	case errors.Is(err, controller.ErrBusy):
		httputil.Conflict(w, err.Error())
	case err != nil:
		httputil.BadGateway(w, err.Error())
	default:
		httputil.WriteJSONOK(w, result)
	}
}

func (ws *WebServer) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSONOK(w, ws.viz.Snapshot())
}

func (ws *WebServer) handlePlot(format, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := ws.plots.Render(&buf, ws.viz.Snapshot().Render, format); err != nil {
			httputil.InternalServerError(w, "render plot: "+err.Error())
			return
		}
		httputil.WriteFresh(w, contentType, buf.Bytes())
	}
}

func (ws *WebServer) handleChart(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := ws.charts.Render(&buf, ws.viz.Snapshot().Render); err != nil {
		httputil.InternalServerError(w, "render chart: "+err.Error())
		return
	}
	httputil.WriteFresh(w, "text/html; charset=utf-8", buf.Bytes())
}
