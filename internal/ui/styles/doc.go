// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling of the BankBot TUI.

Colors (colors.go) are Lip Gloss AdaptiveColors so one palette serves light
and dark terminals. Theme (theme.go) groups the styles of each screen region:

	Header     - brand and generator name
	Sidebar    - conversation list, selection and active marker
	Transcript - role labels and user text; assistant text is rendered by glamour
	Input      - textarea border, focused and unfocused
	StatusBar  - status line, warnings and shortcut hints

Indicators (●, ○, ⚠, ✗) carry state by shape as well as color.
*/
package styles
