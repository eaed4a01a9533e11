// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"crypto/sha256"
	"os"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/jeranaias/bankbot/internal/util"
)

// HistoryFileName is the default file name of the history document.
const HistoryFileName = "chat_history.json"

// HistoryStore reads and writes the history document at Path.
type HistoryStore struct {
	Path string

	mu  sync.Mutex
	own ownContent
}

// ownContent remembers the digests of the last two documents this process
// read or wrote. The older one covers a save whose rename is still in flight.
type ownContent struct {
	current  [sha256.Size]byte
	previous [sha256.Size]byte
	known    bool
}

// NewHistoryStore creates a store for the document at path.
func NewHistoryStore(path string) *HistoryStore {
	return &HistoryStore{Path: path}
}

// Load reads the history document. A missing file yields an empty history
// with no active conversation. A file that cannot be decoded yields an error
// matching ErrCorruptHistory. The returned history always satisfies the
// active-id invariant.
func (s *HistoryStore) Load() (*History, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", s.Path).Debug("history file not found, starting empty")
			return NewHistory(), nil
		}
		return nil, errors.Wrap(err, "read history")
	}

	h, err := decodeHistory(data)
	if err != nil {
		return nil, &ConversationError{
			Message: ErrCorruptHistory.Message,
			Path:    s.Path,
			Cause:   err,
		}
	}

	before := h.activeID
	if h.repairActive() {
		log.WithFields(log.Fields{
			"path":   s.Path,
			"stored": before,
			"active": h.activeID,
		}).Debug("repaired active conversation")
	}

	s.remember(data)
	return h, nil
}

// Save serializes the whole history and replaces the file atomically. The
// parent directory is created if needed.
func (s *HistoryStore) Save(h *History) error {
	data, err := encodeHistory(h)
	if err != nil {
		return errors.Wrap(err, "encode history")
	}

	// The watcher may see the rename before Save returns.
	prev := s.snapshot()
	s.remember(data)
	if err := util.AtomicWriteFile(s.Path, data, 0600); err != nil {
		s.restore(prev)
		return errors.Wrap(err, "write history")
	}
	return nil
}

// isOwnContent reports whether data matches what this process recently read
// or wrote.
func (s *HistoryStore) isOwnContent(data []byte) bool {
	sum := sha256.Sum256(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.own.known && (sum == s.own.current || sum == s.own.previous)
}

func (s *HistoryStore) remember(data []byte) {
	sum := sha256.Sum256(data)
	s.mu.Lock()
	if s.own.known {
		s.own.previous = s.own.current
	} else {
		s.own.previous = sum
	}
	s.own.current = sum
	s.own.known = true
	s.mu.Unlock()
}

func (s *HistoryStore) snapshot() ownContent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.own
}

func (s *HistoryStore) restore(own ownContent) {
	s.mu.Lock()
	s.own = own
	s.mu.Unlock()
}
