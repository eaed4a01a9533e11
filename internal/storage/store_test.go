// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	store := NewHistoryStore(filepath.Join(t.TempDir(), HistoryFileName))

	h, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, "", h.ActiveID())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", HistoryFileName)
	store := NewHistoryStore(path)

	h := NewHistory()
	first := h.CreateNewChat()
	require.NoError(t, h.Append(first, UserMessage("What is my account balance?")))
	require.NoError(t, h.Append(first, AssistantMessage("Check the <Accounts> tab & log in.")))
	conv, _ := h.Get(first)
	conv.AdoptTitle("What is my account balance?")

	second := h.CreateNewChat()
	require.NoError(t, h.RenameChat(second, "Überweisung 日本"))
	third := h.CreateNewChat()
	_, err := h.DeleteChat(third)
	require.NoError(t, err)
	require.NoError(t, h.SelectChat(second))

	require.NoError(t, store.Save(h))

	loaded, err := NewHistoryStore(path).Load()
	require.NoError(t, err)

	assert.Equal(t, h.IDs(), loaded.IDs())
	assert.Equal(t, h.ActiveID(), loaded.ActiveID())
	for _, id := range h.IDs() {
		want, _ := h.Get(id)
		got, ok := loaded.Get(id)
		require.True(t, ok, "missing conversation %s", id)
		assert.Equal(t, want.Title, got.Title)
		assert.Equal(t, want.Messages, got.Messages)
	}
}

func TestSaveFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), HistoryFileName)
	store := NewHistoryStore(path)

	h := NewHistory()
	id := h.CreateNewChat()
	require.NoError(t, store.Save(h))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.True(t, strings.HasPrefix(text, "{\n    \"conversations\": {\n        \""+id+"\": {"), "unexpected layout:\n%s", text)
	assert.Contains(t, text, `"active_chat": "`+id+`"`)
	assert.Contains(t, text, DefaultGreeting, "greeting should be stored unescaped")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSaveEmptyWritesNull(t *testing.T) {
	path := filepath.Join(t.TempDir(), HistoryFileName)
	require.NoError(t, NewHistoryStore(path).Save(NewHistory()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"conversations": {}`)
	assert.Contains(t, string(data), `"active_chat": null`)
}

func TestLoadPreservesFileOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), HistoryFileName)
	writeFile(t, path, `{
    "conversations": {
        "zeta": {"title": "Z", "messages": []},
        "alpha": {"title": "A", "messages": []},
        "mid": {"title": "M", "messages": []}
    },
    "active_chat": "missing"
}`)

	h, err := NewHistoryStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, h.IDs())
	assert.Equal(t, "zeta", h.ActiveID(), "unknown active id falls back to the first conversation")
}

func TestLoadActiveInvariant(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"valid", `{"conversations": {"a": {"title": "A", "messages": []}, "b": {"title": "B", "messages": []}}, "active_chat": "b"}`, "b"},
		{"null with conversations", `{"conversations": {"a": {"title": "A", "messages": []}}, "active_chat": null}`, "a"},
		{"missing key", `{"conversations": {"a": {"title": "A", "messages": []}}}`, "a"},
		{"dangling with empty", `{"conversations": {}, "active_chat": "gone"}`, ""},
		{"no conversations key", `{"active_chat": "gone"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), HistoryFileName)
			writeFile(t, path, tt.content)

			h, err := NewHistoryStore(path).Load()
			require.NoError(t, err)
			if h.ActiveID() != tt.want {
				t.Errorf("ActiveID() = %q, want %q", h.ActiveID(), tt.want)
			}
		})
	}
}

func TestLoadLegacyShapes(t *testing.T) {
	path := filepath.Join(t.TempDir(), HistoryFileName)
	writeFile(t, path, `{
    "conversations": {
        "legacy": [
            {"role": "assistant", "text": "Hello!"},
            {"role": "user", "text": "loan rates?"}
        ],
        "untitled": {"messages": [{"role": "user", "text": "hi"}]},
        "bare": {"title": "Only title"}
    },
    "active_chat": "legacy"
}`)

	h, err := NewHistoryStore(path).Load()
	require.NoError(t, err)

	legacy, ok := h.Get("legacy")
	require.True(t, ok)
	assert.Equal(t, DefaultTitle, legacy.Title)
	assert.Equal(t, []Message{
		AssistantMessage("Hello!"),
		UserMessage("loan rates?"),
	}, legacy.Messages)

	untitled, _ := h.Get("untitled")
	assert.Equal(t, DefaultTitle, untitled.Title)
	assert.Len(t, untitled.Messages, 1)

	bare, _ := h.Get("bare")
	assert.Equal(t, "Only title", bare.Title)
	assert.NotNil(t, bare.Messages)
	assert.Empty(t, bare.Messages)

	// Saving rewrites legacy entries in canonical form.
	require.NoError(t, NewHistoryStore(path).Save(h))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"legacy": [`)
}

func TestLoadCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "{ this is not json"},
		{"empty file", ""},
		{"top-level array", `[1, 2, 3]`},
		{"conversations not object", `{"conversations": [1, 2], "active_chat": null}`},
		{"conversation is number", `{"conversations": {"a": 42}, "active_chat": "a"}`},
		{"conversation is null", `{"conversations": {"a": null}, "active_chat": "a"}`},
		{"active not string", `{"conversations": {}, "active_chat": 7}`},
		{"top-level null", `null`},
		{"top-level string", `"conversations"`},
		{"empty conversation id", `{"conversations": {"": {"title": "A", "messages": []}}, "active_chat": ""}`},
		{"unknown role", `{"conversations": {"a": {"title": "A", "messages": [{"role": "system", "text": "x"}]}}, "active_chat": "a"}`},
		{"missing role", `{"conversations": {"a": [{"text": "x"}]}, "active_chat": "a"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), HistoryFileName)
			writeFile(t, path, tt.content)

			_, err := NewHistoryStore(path).Load()
			if !errors.Is(err, ErrCorruptHistory) {
				t.Fatalf("Load() error = %v, want ErrCorruptHistory", err)
			}
			assert.Contains(t, err.Error(), path)
		})
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewHistoryStore(filepath.Join(dir, HistoryFileName))

	h := NewHistory()
	for i := 0; i < 5; i++ {
		h.CreateNewChat()
		require.NoError(t, store.Save(h))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, HistoryFileName, entries[0].Name())
}

func TestStoreTracksOwnContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), HistoryFileName)
	store := NewHistoryStore(path)

	h := NewHistory()
	h.CreateNewChat()
	require.NoError(t, store.Save(h))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, store.isOwnContent(data))
	assert.False(t, store.isOwnContent(append(data, ' ')))
}
