// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/multistatic/internal/fsutil"
	"github.com/banshee-data/multistatic/internal/grid"
	"github.com/banshee-data/multistatic/internal/timeutil"
)

// DetectionHeader is the first line of every detection log.
const DetectionHeader = "time_step,x,y,sensor_row,sensor_col\n"

// Epoch is the start time of every mock clock handed out here.
var Epoch = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

// ReferenceGrid is the 4x5 lattice with 125 spacing used throughout tests.
func ReferenceGrid() grid.Grid {
	return grid.Grid{Rows: 4, Cols: 5, Spacing: 125}
}

// DetectionLog builds a detection log body from CSV rows without newlines.
func DetectionLog(rows ...string) string {
	var b strings.Builder
	b.WriteString(DetectionHeader)
	for _, r := range rows {
		b.WriteString(r)
		b.WriteByte('\n')
	}
	return b.String()
}

// NewMemoryEnv returns a mock clock at Epoch and an in-memory filesystem
// that stamps modification times from it.
func NewMemoryEnv() (*timeutil.MockClock, *fsutil.MemoryFileSystem) {
	clock := timeutil.NewMockClock(Epoch)
	return clock, fsutil.NewMemoryFileSystemWithClock(clock)
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewTestRequest creates a test HTTP request with a loopback remote address,
// which debug routes require.
func NewTestRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "127.0.0.1:40000"
	return req
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}
