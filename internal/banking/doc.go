// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package banking decides whether a question belongs to the banking domain
// and answers the ones covered by the static FAQ.
//
// Both checks are plain case-insensitive substring tests:
//
//	classifier := banking.NewClassifier(banking.DefaultKeywords)
//	if classifier.IsInDomain(text) {
//	    if answer, ok := faq.Resolve(text); ok { ... }
//	}
package banking
