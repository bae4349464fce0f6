package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lzhbhlrPython/Markdown-Note-System/internal/models"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func startWatch(t *testing.T, e *env, onDrift DriftFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := Watch(ctx, e.ix, e.dir, onDrift); err != nil {
			t.Errorf("Watch: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
}

func TestWatcher_ExternalEditReportsDrift(t *testing.T) {
	e := newEnv(t)
	pid, nid := e.note(t, "Journal", "Monday", "# Monday\nquiet day")

	var mu sync.Mutex
	var reports []models.HashReport
	startWatch(t, e, func(r models.HashReport) {
		mu.Lock()
		reports = append(reports, r)
		mu.Unlock()
	})

	path := filepath.Join(e.dir, pid, nid+".md")
	if err := os.WriteFile(path, []byte("# Monday\nedited in vim, volcano"), 0o644); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reports) > 0
	}, "expected a drift report")

	mu.Lock()
	if len(reports) > 0 {
		r := reports[0]
		if r.Valid || r.ProjectID != pid || r.NoteID != nid || r.StoredHash == r.CurrentHash {
			t.Errorf("report = %+v", r)
		}
	}
	mu.Unlock()

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		hits, _ := e.ix.Search(context.Background(), "volcano", 5)
		return len(hits) == 1
	}, "edited body not re-indexed")
}

func TestWatcher_NotebookWritesAreNotDrift(t *testing.T) {
	e := newEnv(t)
	pid, nid := e.note(t, "Journal", "Tuesday", "first")

	var mu sync.Mutex
	drifted := 0
	startWatch(t, e, func(models.HashReport) {
		mu.Lock()
		drifted++
		mu.Unlock()
	})

	if _, err := e.nb.UpdateNote(context.Background(), pid, nid, "Tuesday", "second"); err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	time.Sleep(600 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if drifted != 0 {
		t.Errorf("drift reported %d times for a notebook write", drifted)
	}
}

func TestWatcher_RemovedProjectDropped(t *testing.T) {
	e := newEnv(t)
	pid, _ := e.note(t, "Temp", "x", "ephemeral")
	startWatch(t, e, nil)

	if err := os.RemoveAll(filepath.Join(e.dir, pid)); err != nil {
		t.Fatal(err)
	}
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		hashes, _ := e.db.Hashes(pid)
		return len(hashes) == 0
	}, "rows of removed project still indexed")
}
