// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the bankbot packages.
//
// # Key Functions
//
// File Utilities:
//   - AtomicWriteFile: temp file + fsync + rename, never leaves a torn file
//
// String Utilities:
//   - PrefixRunes: first N characters, no ellipsis (conversation titles)
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth: truncation by terminal display width (sidebar, tables)
//   - SingleLine: collapses newlines for one-line previews
package util
