package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestEventTypeOf(t *testing.T) {
	assert.Equal(t, EventTypeCreated, eventTypeOf(fsnotify.Create))
	assert.Equal(t, EventTypeModified, eventTypeOf(fsnotify.Write))
	assert.Equal(t, EventTypeDeleted, eventTypeOf(fsnotify.Remove))
	assert.Equal(t, EventTypeRenamed, eventTypeOf(fsnotify.Rename))
	assert.Equal(t, EventTypeCreated, eventTypeOf(fsnotify.Create|fsnotify.Write))
}

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	d.Add(ChangeEvent{Type: EventTypeCreated, Path: "a.yml"})
	d.Add(ChangeEvent{Type: EventTypeModified, Path: "b.yml"})
	d.Add(ChangeEvent{Type: EventTypeModified, Path: "a.yml"})

	select {
	case events := <-d.Output():
		require.Len(t, events, 2)
		assert.Equal(t, ChangeEvent{Type: EventTypeModified, Path: "a.yml"}, events[0])
		assert.Equal(t, "b.yml", events[1].Path)
	case <-time.After(time.Second):
		t.Fatal("debouncer did not flush")
	}

	select {
	case events := <-d.Output():
		t.Fatalf("unexpected second batch: %v", events)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestDebouncer_Stop(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	d.Add(ChangeEvent{Path: "a.yml"})
	d.Stop()

	select {
	case <-d.Output():
		t.Fatal("stopped debouncer flushed")
	case <-time.After(80 * time.Millisecond):
	}
}

func TestNewConfigWatcher_Validation(t *testing.T) {
	_, err := NewConfigWatcher(filepath.Join(t.TempDir(), "c.yml"), time.Millisecond, nil, nil)
	assert.Error(t, err)

	noop := func(context.Context, []ChangeEvent) error { return nil }
	_, err = NewConfigWatcher(filepath.Join(t.TempDir(), "missing", "c.yml"), time.Millisecond, noop, nil)
	assert.Error(t, err, "parent directory must exist")
}

func TestConfigWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".kbdebug.yml")
	require.NoError(t, os.WriteFile(path, []byte("debug:\n  enabled: false\n"), 0600))

	var reloads atomic.Int32
	cw, err := NewConfigWatcher(path, 50*time.Millisecond, func(context.Context, []ChangeEvent) error {
		reloads.Add(1)
		return nil
	}, nil)
	require.NoError(t, err)
	defer cw.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cw.Start(ctx)

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0600))

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("debug:\n  enabled: true\n"), 0600))
	}

	require.Eventually(t, func() bool { return reloads.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), reloads.Load(), "rapid writes collapse into one reload")
}

func TestConfigWatcher_ReloadErrorKeepsWatching(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".kbdebug.yml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0600))

	var calls atomic.Int32
	cw, err := NewConfigWatcher(path, 20*time.Millisecond, func(context.Context, []ChangeEvent) error {
		calls.Add(1)
		return errors.New("invalid config")
	}, nil)
	require.NoError(t, err)
	defer cw.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cw.Start(ctx)

	require.NoError(t, os.WriteFile(path, []byte("a: 2\n"), 0600))
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("a: 3\n"), 0600))
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestConfigWatcher_StopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yml")
	cw, err := NewConfigWatcher(path, time.Millisecond, func(context.Context, []ChangeEvent) error { return nil }, nil)
	require.NoError(t, err)

	cw.Start(context.Background())
	assert.NoError(t, cw.Stop())
	assert.NoError(t, cw.Stop())
	assert.True(t, filepath.IsAbs(cw.Path()))
}
