package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/brigade/pkg/models"
)

func TestFileWatcher_WakesOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := OpenSQLite(path, DriverSQLite)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Migrate(); err != nil {
		t.Fatal(err)
	}

	fw, err := WatchFile(path)
	if err != nil {
		t.Fatalf("WatchFile: %v", err)
	}
	defer fw.Close()

	ch := fw.Changed()
	if err := s.Put(context.Background(), Namespace("w"), "t1", &models.Task{ID: "t1"}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the write")
	}
}

func TestFileWatcher_CloseTwice(t *testing.T) {
	fw, err := WatchFile(filepath.Join(t.TempDir(), "x.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := fw.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
