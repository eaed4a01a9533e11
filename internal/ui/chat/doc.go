// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the BankBot chat screen, a Bubble Tea model on top of
a session.Controller.

# Layout

	+-----------+----------------------------------+
	| Chats     | transcript (viewport, glamour)   |
	| ● Loans   |                                  |
	| ○ Cards   +----------------------------------+
	|           | input (textarea)                 |
	+-----------+----------------------------------+
	status line: route, elapsed, warnings, shortcuts

# Keys

	enter    send the message (rename mode: apply the title)
	tab      move focus between input and sidebar
	ctrl+n   new conversation
	ctrl+r   rename the active conversation
	ctrl+x   delete the active conversation (asks y/n)
	up/down  switch conversation while the sidebar has focus
	esc      cancel generation, or leave rename/delete mode
	ctrl+c   quit

# Streaming

A submission runs in a tea.Cmd. Generated fragments go into a StreamingBuffer
and are drawn on a 30fps tick. The controller holds its lock for the whole
submission, so the model draws from snapshots taken while idle and refuses
conversation changes until the reply is recorded.
*/
package chat
