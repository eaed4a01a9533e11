// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package banking

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// ============================================================================
// FAQ
// ============================================================================

// FAQFileName is the default file name of the FAQ.
const FAQFileName = "banking_faq.json"

// Entry is one question fragment and its canned answer.
type Entry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// FAQ is an ordered list of entries. The zero value is an empty FAQ.
type FAQ struct {
	entries []Entry
	lowered []string
}

// NewFAQ builds an FAQ from entries in priority order. Entries with an empty
// question or answer are skipped.
func NewFAQ(entries ...Entry) *FAQ {
	f := &FAQ{}
	for _, e := range entries {
		f.add(e)
	}
	return f
}

func (f *FAQ) add(e Entry) bool {
	if strings.TrimSpace(e.Question) == "" || e.Answer == "" {
		return false
	}
	f.entries = append(f.entries, e)
	f.lowered = append(f.lowered, strings.ToLower(e.Question))
	return true
}

// Resolve returns the answer of the first entry whose question occurs in
// question, ignoring case.
func (f *FAQ) Resolve(question string) (string, bool) {
	if f == nil || question == "" {
		return "", false
	}
	lower := strings.ToLower(question)
	for i, q := range f.lowered {
		if strings.Contains(lower, q) {
			return f.entries[i].Answer, true
		}
	}
	return "", false
}

// Len returns the number of entries.
func (f *FAQ) Len() int {
	if f == nil {
		return 0
	}
	return len(f.entries)
}

// Entries returns a copy of the entries in priority order.
func (f *FAQ) Entries() []Entry {
	if f == nil {
		return nil
	}
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}

// LoadFAQ reads an FAQ file. A missing file yields an empty FAQ. Files ending
// in .yaml or .yml are read as a YAML mapping, anything else as a JSON object.
// Entry order follows the file.
func LoadFAQ(path string) (*FAQ, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", path).Debug("FAQ file not found, continuing without FAQ")
			return &FAQ{}, nil
		}
		return nil, errors.Wrap(err, "read FAQ")
	}

	pairs := orderedmap.New[string, string]()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, pairs)
	default:
		err = json.Unmarshal(data, pairs)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parse FAQ %s", path)
	}

	f := &FAQ{}
	for pair := pairs.Oldest(); pair != nil; pair = pair.Next() {
		if !f.add(Entry{Question: pair.Key, Answer: pair.Value}) {
			log.WithFields(log.Fields{
				"path":     path,
				"question": pair.Key,
			}).Warn("skipping FAQ entry with empty question or answer")
		}
	}
	return f, nil
}
