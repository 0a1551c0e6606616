package monitor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/multistatic/internal/controller"
	"github.com/banshee-data/multistatic/internal/monitoring"
	"github.com/banshee-data/multistatic/internal/testutil"
)

func dialEvents(t *testing.T, ts *testServer) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(ts.ws.Handler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) controller.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev controller.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestEvents_InitialStateThenRedraw(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, testutil.DetectionLog("0,10,20,1,2"))
	conn, cleanup := dialEvents(t, ts)
	defer cleanup()

	initial := readEvent(t, conn)
	assert.Equal(t, controller.EventState, initial.Type)
	assert.Equal(t, controller.StateIdle, initial.State)
	assert.Zero(t, initial.Revision)

	require.Eventually(t, func() bool { return ts.ctrl.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)
	_, err := ts.ctrl.Trigger(context.Background())
	require.NoError(t, err)

	// Intermediate state events may be coalesced; the redraw is last.
	var ev controller.Event
	for ev.Type != controller.EventRedraw {
		ev = readEvent(t, conn)
	}
	assert.Equal(t, uint64(1), ev.Revision)
	assert.Equal(t, controller.StateIdle, ev.State)
}

func TestEvents_ReportsFailure(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, testutil.DetectionLog("not,a,valid,row,here"))
	conn, cleanup := dialEvents(t, ts)
	defer cleanup()
	readEvent(t, conn)

	require.Eventually(t, func() bool { return ts.ctrl.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)
	_, err := ts.ctrl.Trigger(context.Background())
	require.Error(t, err)

	var ev controller.Event
	for ev.Type != controller.EventError {
		ev = readEvent(t, conn)
	}
	assert.NotEmpty(t, ev.Error)
	assert.Zero(t, ev.Revision)
}

func TestEvents_UnsubscribesOnDisconnect(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	conn, cleanup := dialEvents(t, ts)
	defer cleanup()
	readEvent(t, conn)
	require.Eventually(t, func() bool { return ts.ctrl.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	conn.Close()

	assert.Eventually(t, func() bool { return ts.ctrl.Subscribers() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestEventClient_SilentPeerHitsPongDeadline(t *testing.T) {
	t.Parallel()

	errc := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			errc <- err
			return
		}
		client := newEventClient(conn, make(chan controller.Event))
		client.pongWait = 100 * time.Millisecond
		client.pingPeriod = 30 * time.Millisecond
		errc <- client.run(context.Background(), controller.Event{Type: controller.EventState})
	}))
	defer srv.Close()

	// The peer never reads, so it never answers pings.
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrPongDeadlineExceeded)
	case <-time.After(3 * time.Second):
		t.Fatal("client was not dropped after the pong deadline")
	}
}

func TestEventClient_LogsFailedCloseFrame(t *testing.T) {
	original := monitoring.Logf
	defer func() { monitoring.Logf = original }()
	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, v...))
	})

	done := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			done <- err
			return
		}
		events := make(chan controller.Event)
		client := newEventClient(conn, events)
		conn.Close()
		close(events)
		done <- client.publish(context.Background())
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("publish did not return")
	}
	require.NotEmpty(t, logged)
	assert.Contains(t, logged[len(logged)-1], "websocket close frame failed")
}
