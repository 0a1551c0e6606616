package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/multistatic/internal/controller"
	"github.com/banshee-data/multistatic/internal/monitoring"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 2 * time.Second
	// Time allowed between pongs before the peer is considered gone.
	pongWait = 30 * time.Second
	// Pings are sent well inside pongWait.
	pingPeriod = pongWait * 9 / 10
	// Clients never send anything meaningful.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ErrPongDeadlineExceeded is returned when a client stops answering pings.
var ErrPongDeadlineExceeded = errors.New("client disconnect, pong deadline exceeded")

// eventClient forwards controller events to one browser.
type eventClient struct {
	conn       *websocket.Conn
	events     <-chan controller.Event
	pongWait   time.Duration
	pingPeriod time.Duration

	// gorilla connections support one concurrent writer.
	writeMu sync.Mutex
}

func newEventClient(conn *websocket.Conn, events <-chan controller.Event) *eventClient {
	return &eventClient{conn: conn, events: events, pongWait: pongWait, pingPeriod: pingPeriod}
}

func (c *eventClient) write(fn func(*websocket.Conn) error) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	return fn(c.conn)
}

// run blocks until the client disconnects, the event channel closes, or ctx
// is cancelled. A normal disconnect returns nil.
func (c *eventClient) run(ctx context.Context, initial controller.Event) error {
	if err := c.write(func(conn *websocket.Conn) error { return conn.WriteJSON(initial) }); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return c.readMessages() })
	group.Go(func() error { return c.pingPong(groupCtx) })
	group.Go(func() error { return c.publish(groupCtx) })

	// The read pump only returns once the connection is closed.
	go func() {
		<-groupCtx.Done()
		c.conn.Close()
	}()

	err := group.Wait()
	if err == nil || !isUnexpected(err) {
		return nil
	}
	return err
}

func (c *eventClient) readMessages() error {
	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
		return err
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return ErrPongDeadlineExceeded
			}
			return err
		}
	}
}

func (c *eventClient) pingPong(ctx context.Context) error {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := c.write(func(conn *websocket.Conn) error {
				return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			})
			if err != nil {
				return fmt.Errorf("ping failed: %w", err)
			}
		}
	}
}

func (c *eventClient) publish(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-c.events:
			if !ok {
				err := c.write(func(conn *websocket.Conn) error {
					return conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				})
				if err != nil {
					monitoring.Logf("websocket close frame failed: %v", err)
				}
				return nil
			}
			if err := c.write(func(conn *websocket.Conn) error { return conn.WriteJSON(ev) }); err != nil {
				return fmt.Errorf("publish failed: %w", err)
			}
		}
	}
}

func isUnexpected(err error) bool {
	if errors.Is(err, ErrPongDeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, websocket.ErrCloseSent) {
		return false
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
	}
	return false
}

// handleEvents upgrades the request and streams controller events until the
// browser goes away.
func (ws *WebServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		monitoring.Logf("websocket upgrade failed: %v", err)
		return
	}

	id, events := ws.viz.Subscribe()
	defer ws.viz.Unsubscribe(id)

	snap := ws.viz.Snapshot()
	initial := controller.Event{
		Type:     controller.EventState,
		State:    snap.State,
		CycleID:  snap.LastCycleID,
		Revision: snap.Revision,
		Error:    snap.LastError,
	}

	ctx, cancel := ws.requestContext(r.Context())
	defer cancel()

	client := newEventClient(conn, events)
	if err := client.run(ctx, initial); err != nil {
		monitoring.Logf("websocket client %d: %v", id, err)
	}
}
