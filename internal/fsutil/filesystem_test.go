package fsutil

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/multistatic/internal/timeutil"
)

func TestOSFileSystem_RoundTrip(t *testing.T) {
	fsys := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "build")

	if err := fsys.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	path := filepath.Join(dir, "test_plane.csv")
	w, err := fsys.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte("0,1,2\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if !fsys.Exists(path) {
		t.Fatal("expected created file to exist")
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "0,1,2\n" {
		t.Errorf("ReadFile = %q", data)
	}

	info, err := fsys.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 6 {
		t.Errorf("Size = %d, want 6", info.Size())
	}

	if fsys.Exists(filepath.Join(dir, "master_log.csv")) {
		t.Error("expected missing file to not exist")
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := mfs.WriteFile("/test.txt", []byte("hello, world"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := mfs.ReadFile("/test.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "hello, world" {
		t.Errorf("expected %q, got %q", "hello, world", data)
	}
}

func TestMemoryFileSystem_CreateVisibleOnClose(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("/build/master_log.csv")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_, _ = w.Write([]byte("time_step,x,y,sensor_row,sensor_col\n"))

	data, _ := mfs.ReadFile("/build/master_log.csv")
	if len(data) != 0 {
		t.Errorf("expected empty contents before Close, got %q", data)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := mfs.Open("/build/master_log.csv")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(got) != "time_step,x,y,sensor_row,sensor_col\n" {
		t.Errorf("Open contents = %q", got)
	}
}

func TestMemoryFileSystem_ModTimeFollowsClock(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(start)
	mfs := NewMemoryFileSystemWithClock(clock)

	if err := mfs.WriteFile("/log.csv", []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}
	first, err := mfs.Stat("/log.csv")
	if err != nil {
		t.Fatal(err)
	}
	if !first.ModTime().Equal(start) {
		t.Errorf("ModTime = %v, want %v", first.ModTime(), start)
	}

	clock.Advance(time.Second)
	w, _ := mfs.Create("/log.csv")
	_, _ = w.Write([]byte("b"))
	clock.Advance(time.Second)
	_ = w.Close()

	second, _ := mfs.Stat("/log.csv")
	if want := start.Add(2 * time.Second); !second.ModTime().Equal(want) {
		t.Errorf("ModTime after rewrite = %v, want %v", second.ModTime(), want)
	}
}

func TestMemoryFileSystem_MissingFile(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if _, err := mfs.Open("/nope"); err == nil {
		t.Error("expected error opening missing file")
	}
	if _, err := mfs.Stat("/nope"); err == nil {
		t.Error("expected error stating missing file")
	}
	if mfs.Exists("/nope") {
		t.Error("expected missing file to not exist")
	}
}

func TestMemoryFileSystem_MkdirAll(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := mfs.MkdirAll("/a/b/c", 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	for _, dir := range []string{"/a", "/a/b", "/a/b/c"} {
		if !mfs.Exists(dir) {
			t.Errorf("expected %s to exist", dir)
		}
	}
	info, err := mfs.Stat("/a/b")
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDir() {
		t.Error("expected directory")
	}
}
