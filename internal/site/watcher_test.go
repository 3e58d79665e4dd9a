package site

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/cpbuild/internal/testutil"
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

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) record(kind, path string) {
	l.mu.Lock()
	l.events = append(l.events, kind+":"+path)
	l.mu.Unlock()
}

func (l *eventLog) has(event string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e == event {
			return true
		}
	}
	return false
}

func startWatch(t *testing.T, e *testEnv, cb EventCallback) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.b.Watch(ctx, cb)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
}

func TestWatcher_NewFileBuilt(t *testing.T) {
	e := newTestEnv(t)
	var log eventLog
	startWatch(t, e, log.record)

	testutil.WriteFile(t, e.src, "new.md", "<!--?title New-->\nhello")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return testutil.ReadFile(t, e.out, "new.html") != ""
	}, "new file not built by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return log.has("built:new.md")
	}, "expected built:new.md callback")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	e := newTestEnv(t)
	startWatch(t, e, nil)

	subDir := filepath.Join(e.src, "subdir")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.md"), []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return testutil.ReadFile(t, e.out, filepath.Join("subdir", "deep.html")) != ""
	}, "file in new subdir not built by watcher")
}

func TestWatcher_DeleteRemovesOutput(t *testing.T) {
	e := newTestEnv(t)
	testutil.WriteFile(t, e.src, "del.md", "# Delete Me")
	e.build(t)
	if testutil.ReadFile(t, e.out, "del.html") == "" {
		t.Fatal("precondition: page should be built")
	}

	var log eventLog
	startWatch(t, e, log.record)

	_ = os.Remove(filepath.Join(e.src, "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := e.db.GetChecksum("del.md")
		return cs == "" && testutil.ReadFile(t, e.out, "del.html") == ""
	}, "deleted source still has output")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return log.has("removed:del.md")
	}, "expected removed:del.md callback")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	e := newTestEnv(t)
	testutil.WriteFile(t, e.src, "old.md", "# Rename")
	e.build(t)

	startWatch(t, e, nil)

	_ = os.Rename(filepath.Join(e.src, "old.md"), filepath.Join(e.src, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return testutil.ReadFile(t, e.out, "old.html") == "" &&
			testutil.ReadFile(t, e.out, "renamed.html") != ""
	}, "rename reconciliation failed: old output should be removed and new one built")
}

func TestWatcher_TemplateChangeRebuildsAll(t *testing.T) {
	e := newTestEnv(t)
	testutil.WriteFile(t, e.src, "a.md", "<!--?title A-->\n")
	testutil.WriteFile(t, e.src, "b.md", "<!--?title B-->\n")
	e.build(t)

	var log eventLog
	startWatch(t, e, log.record)

	testutil.WriteFile(t, e.tmpl, "default.html", "v2:&title&")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return testutil.ReadFile(t, e.out, "a.html") == "v2:A" &&
			testutil.ReadFile(t, e.out, "b.html") == "v2:B"
	}, "template change did not rebuild pages")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return log.has("built:a.md") && log.has("built:b.md")
	}, "expected built callbacks for every page")
}
