// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, store *HistoryStore) <-chan ExternalChange {
	t.Helper()

	changes := make(chan ExternalChange, 8)
	w, err := NewWatcher(store, 30*time.Millisecond, func(c ExternalChange) {
		changes <- c
	})
	require.NoError(t, err)
	require.NoError(t, w.Watch())
	t.Cleanup(func() { w.Close() })
	return changes
}

func TestWatcherIgnoresOwnSaves(t *testing.T) {
	store := NewHistoryStore(filepath.Join(t.TempDir(), HistoryFileName))
	changes := startWatcher(t, store)

	h := NewHistory()
	for i := 0; i < 3; i++ {
		h.CreateNewChat()
		require.NoError(t, store.Save(h))
	}

	select {
	case c := <-changes:
		t.Fatalf("unexpected change reported for own save: %+v", c)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatcherReportsForeignWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), HistoryFileName)
	store := NewHistoryStore(path)
	h := NewHistory()
	h.CreateNewChat()
	require.NoError(t, store.Save(h))

	changes := startWatcher(t, store)

	foreign := `{"conversations": {}, "active_chat": null}`
	require.NoError(t, os.WriteFile(path, []byte(foreign), 0600))

	select {
	case c := <-changes:
		abs, _ := filepath.Abs(path)
		if c.Path != abs {
			t.Errorf("Path = %q, want %q", c.Path, abs)
		}
		if c.Removed {
			t.Error("Removed = true, want false")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("foreign write was not reported")
	}
}

func TestWatcherReportsRemoval(t *testing.T) {
	path := filepath.Join(t.TempDir(), HistoryFileName)
	store := NewHistoryStore(path)
	h := NewHistory()
	h.CreateNewChat()
	require.NoError(t, store.Save(h))

	changes := startWatcher(t, store)
	require.NoError(t, os.Remove(path))

	select {
	case c := <-changes:
		if !c.Removed {
			t.Error("Removed = false, want true")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("removal was not reported")
	}
}
