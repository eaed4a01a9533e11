// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/jeranaias/bankbot/internal/session"
	"github.com/jeranaias/bankbot/internal/storage"
)

// =============================================================================
// MESSAGES
// =============================================================================

// ExternalChangeMsg reports that another process wrote the history file.
// Send it with tea.Program.Send from a storage.Watcher callback.
type ExternalChangeMsg storage.ExternalChange

// submitDoneMsg carries the result of a submission.
type submitDoneMsg struct {
	outcome session.Outcome
	err     error
}

// streamTickMsg triggers a frame while a submission is running.
type streamTickMsg struct {
	Time time.Time
}
