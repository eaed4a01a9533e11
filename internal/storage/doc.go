// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides chat-history persistence for bankbot.
//
// The whole history (every conversation plus the active selection) lives in a
// single JSON document that is read once at session start and rewritten after
// every mutation.
//
// # Key Types
//
//   - History: ordered set of conversations plus the active conversation id
//   - Conversation: a titled, append-only transcript
//   - Message: one {role, text} entry
//   - HistoryStore: loads and atomically saves the document
//   - Watcher: reports writes to the document made by another process
//
// # Usage
//
//	store := storage.NewHistoryStore(path)
//	history, err := store.Load()
//	if history.EnsureConversation() {
//	    err = store.Save(history)
//	}
//
// # File Format
//
//	{
//	    "conversations": {
//	        "<id>": {"title": "New Chat", "messages": [{"role": "assistant", "text": "..."}]}
//	    },
//	    "active_chat": "<id>"
//	}
//
// Older files stored a conversation as the bare message array; Load accepts
// that shape and normalizes it.
//
// # Concurrency
//
// A History is not safe for concurrent use. Two processes sharing one file are
// not supported: the last writer wins.
package storage
