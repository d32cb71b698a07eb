package history

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lox/bluffbots/internal/stream"
)

func TestManagerRecordsCompletedGame(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(zerolog.New(io.Discard), ManagerConfig{
		Dir:           dir,
		FlushInterval: time.Hour, // rely on the game-over flush request
	})
	t.Cleanup(mgr.Shutdown)

	log := stream.NewLog()
	t.Cleanup(log.Close)

	if _, err := mgr.Attach("game-7", log); err != nil {
		t.Fatalf("Attach error: %v", err)
	}

	for _, e := range syntheticGame("game-7") {
		log.Publish(e.Type, e.Payload)
	}

	path := filepath.Join(dir, "game-7.jsonl")
	deadline := time.Now().Add(2 * time.Second)
	for {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("game record not flushed in time")
		}
		time.Sleep(10 * time.Millisecond)
	}

	record := readRecord(t, path)
	if record.GameID != "game-7" {
		t.Fatalf("GameID = %q, want game-7", record.GameID)
	}
	if record.WinnerName != "Bob" {
		t.Fatalf("WinnerName = %q, want Bob", record.WinnerName)
	}
}

func TestManagerRejectsDuplicateAttach(t *testing.T) {
	mgr := NewManager(zerolog.New(io.Discard), ManagerConfig{Dir: t.TempDir(), FlushInterval: time.Hour})
	t.Cleanup(mgr.Shutdown)

	log := stream.NewLog()
	t.Cleanup(log.Close)

	if _, err := mgr.Attach("game-1", log); err != nil {
		t.Fatalf("first Attach error: %v", err)
	}
	if _, err := mgr.Attach("game-1", log); err == nil {
		t.Fatal("expected error attaching the same game twice")
	}
}

func TestManagerShutdownDetachesWatchers(t *testing.T) {
	mgr := NewManager(zerolog.New(io.Discard), ManagerConfig{Dir: t.TempDir(), FlushInterval: time.Hour})

	log := stream.NewLog()
	t.Cleanup(log.Close)

	if _, err := mgr.Attach("game-1", log); err != nil {
		t.Fatalf("Attach error: %v", err)
	}
	if got := log.SubscriberCount(); got != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", got)
	}

	mgr.Shutdown()

	if got := log.SubscriberCount(); got != 0 {
		t.Fatalf("watchers remain after shutdown: %d", got)
	}
}

func TestManagerRemoveFlushesRecorder(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(zerolog.New(io.Discard), ManagerConfig{Dir: dir, FlushInterval: time.Hour})
	t.Cleanup(mgr.Shutdown)

	log := stream.NewLog()
	t.Cleanup(log.Close)

	recorder, err := mgr.Attach("game-1", log)
	if err != nil {
		t.Fatalf("Attach error: %v", err)
	}

	// Feed the recorder directly so completion does not race the
	// watcher goroutine.
	for _, e := range syntheticGame("game-1") {
		recorder.Observe(e)
	}

	mgr.Remove("game-1")

	record := readRecord(t, filepath.Join(dir, "game-1.jsonl"))
	if record.WinnerID != "p2" {
		t.Fatalf("WinnerID = %q, want p2", record.WinnerID)
	}
}
