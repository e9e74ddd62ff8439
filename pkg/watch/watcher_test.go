package watch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/stylesync/pkg/bridge"
	"github.com/gnana997/stylesync/pkg/host/snapshot"
	"github.com/gnana997/stylesync/pkg/host/snapshot/snapshottest"
	"github.com/gnana997/stylesync/pkg/style"
	"github.com/gnana997/stylesync/pkg/util"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) record(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func startWatcher(t *testing.T, path string, onChange func(string)) *Watcher {
	t.Helper()
	w, err := New([]string{path}, onChange, Options{Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, func(string) {}, Options{})
	assert.Error(t, err)
	_, err = New([]string{"a.json"}, nil, Options{})
	assert.Error(t, err)
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "design.json")
	writeFile(t, path, "{}")

	rec := &recorder{}
	w := startWatcher(t, path, rec.record)

	for i := 0; i < 5; i++ {
		writeFile(t, path, `{"n":1}`)
	}
	require.Eventually(t, func() bool { return rec.count() >= 1 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)

	assert.Less(t, rec.count(), 5)
	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	rec.mu.Lock()
	assert.Equal(t, abs, rec.paths[0])
	rec.mu.Unlock()

	stats := w.Stats()
	assert.True(t, stats.Running)
	assert.Equal(t, rec.count(), stats.Fired)
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "design.json")
	writeFile(t, path, "{}")

	rec := &recorder{}
	startWatcher(t, path, rec.record)

	writeFile(t, filepath.Join(dir, "other.json"), "{}")
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestWatcher_AtomicSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "design.json")
	writeFile(t, path, "{}")

	rec := &recorder{}
	startWatcher(t, path, rec.record)

	tmp := filepath.Join(dir, ".design.json.tmp")
	writeFile(t, tmp, `{"n":2}`)
	require.NoError(t, os.Rename(tmp, path))

	require.Eventually(t, func() bool { return rec.count() >= 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_Lifecycle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "design.json")
	writeFile(t, path, "{}")

	w, err := New([]string{path}, func(string) {}, Options{})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	assert.Error(t, w.Start())

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	assert.Error(t, w.Start())
	assert.False(t, w.Stats().Running)
}

type inline struct{}

func (inline) Do(fn func(context.Context)) error {
	fn(context.Background())
	return nil
}

func writeSnapshot(t *testing.T, path string, f *snapshot.File) {
	t.Helper()
	data, err := json.Marshal(f)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestSnapshotReloader(t *testing.T) {
	cache := util.NewFileCache(util.DefaultFileCacheConfig())
	t.Cleanup(func() { _ = cache.Close() })

	path := filepath.Join(t.TempDir(), "design.json")
	f := snapshottest.Fixture()
	f.Nodes[0].Name = "Renamed Button"
	writeSnapshot(t, path, f)

	doc := snapshottest.Document()
	reload := SnapshotReloader(cache, doc, inline{}, nil)

	reload(path)
	require.NotEmpty(t, doc.Selection())
	assert.Equal(t, "Renamed Button", doc.Selection()[0].Name)
	assert.Empty(t, doc.Notifications())

	writeFile(t, path, "{")
	reload(path)
	assert.Equal(t, "Renamed Button", doc.Selection()[0].Name)
	notes := doc.Notifications()
	require.Len(t, notes, 1)
	assert.True(t, notes[0].Error)
	assert.Contains(t, notes[0].Message, "Reload failed")
}

func TestWatchReloadsThroughBridge(t *testing.T) {
	cache := util.NewFileCache(util.DefaultFileCacheConfig())
	t.Cleanup(func() { _ = cache.Close() })

	path := filepath.Join(t.TempDir(), "design.json")
	writeSnapshot(t, path, snapshottest.Fixture())

	doc, err := snapshot.Load(cache, path)
	require.NoError(t, err)
	conn, err := bridge.Connect(context.Background(), bridge.HostConfig{Document: doc, Library: doc, Notifier: doc})
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Stop()
		_ = conn.Wait()
	})

	seen := make(chan string, 8)
	conn.Client.OnSelection(func(s *style.ExtractedStyle) {
		if s != nil {
			seen <- s.Name
		}
	})

	startWatcher(t, path, SnapshotReloader(cache, doc, conn.HostEndpoint(), nil))

	f := snapshottest.Fixture()
	f.Nodes[0].Name = "Edited on disk"
	writeSnapshot(t, path, f)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case name := <-seen:
			if name == "Edited on disk" {
				return
			}
		case <-deadline:
			t.Fatal("reload never reached the UI side")
		}
	}
}
