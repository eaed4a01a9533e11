// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the bankbot command tree.
//
// Commands:
//
//	bankbot              full-screen chat (same as "bankbot tui")
//	bankbot chat         line-oriented chat REPL
//	bankbot ask          answer one question without saving it
//	bankbot chats ...    list, show, rename, delete, select and export conversations
//	bankbot faq ...      inspect the FAQ and the banking filter
//	bankbot serve        local JSON API with Prometheus metrics
//	bankbot config ...   show and edit the configuration
//	bankbot version      build information
//
// Every command that touches history goes through a session.Controller, so
// the rules for titles, greetings and the active conversation are the same
// in the TUI, the REPL and the API.
package cli
