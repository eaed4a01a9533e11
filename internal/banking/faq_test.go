// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package banking

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	faq := NewFAQ(Entry{Question: "atm", Answer: "Automated Teller Machine"})

	got, ok := faq.Resolve("What is an ATM?")
	if !ok || got != "Automated Teller Machine" {
		t.Errorf("Resolve() = %q, %v, want %q, true", got, ok, "Automated Teller Machine")
	}

	if got, ok := faq.Resolve("unrelated text"); ok {
		t.Errorf("Resolve(unrelated) = %q, want no match", got)
	}
}

func TestResolveFirstMatchWins(t *testing.T) {
	faq := NewFAQ(
		Entry{Question: "interest rate", Answer: "Rates start at 3%."},
		Entry{Question: "interest", Answer: "Interest is the cost of borrowing."},
	)

	got, _ := faq.Resolve("What is the current Interest Rate on loans?")
	assert.Equal(t, "Rates start at 3%.", got)

	got, _ = faq.Resolve("how is interest calculated")
	assert.Equal(t, "Interest is the cost of borrowing.", got)
}

func TestNewFAQSkipsEmptyEntries(t *testing.T) {
	faq := NewFAQ(
		Entry{Question: "", Answer: "matches everything"},
		Entry{Question: "loan", Answer: ""},
		Entry{Question: "loan", Answer: "We offer personal loans."},
	)
	assert.Equal(t, 1, faq.Len())

	_, ok := faq.Resolve("weather")
	assert.False(t, ok)
}

func TestNilFAQ(t *testing.T) {
	var faq *FAQ
	_, ok := faq.Resolve("atm")
	assert.False(t, ok)
	assert.Equal(t, 0, faq.Len())
}

func TestLoadFAQ(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		faq, err := LoadFAQ(filepath.Join(dir, "absent.json"))
		require.NoError(t, err)
		assert.Equal(t, 0, faq.Len())
	})

	t.Run("json keeps file order", func(t *testing.T) {
		path := filepath.Join(dir, FAQFileName)
		require.NoError(t, os.WriteFile(path, []byte(`{
    "what is an atm": "An Automated Teller Machine.",
    "atm": "Cash machine.",
    "": "ignored",
    "credit score": "A number from 300 to 850."
}`), 0600))

		faq, err := LoadFAQ(path)
		require.NoError(t, err)
		assert.Equal(t, []Entry{
			{Question: "what is an atm", Answer: "An Automated Teller Machine."},
			{Question: "atm", Answer: "Cash machine."},
			{Question: "credit score", Answer: "A number from 300 to 850."},
		}, faq.Entries())

		got, _ := faq.Resolve("So, what is an ATM exactly?")
		assert.Equal(t, "An Automated Teller Machine.", got)
	})

	t.Run("yaml keeps file order", func(t *testing.T) {
		path := filepath.Join(dir, "faq.yaml")
		require.NoError(t, os.WriteFile(path, []byte(
			"overdraft: Spending more than your balance.\n"+
				"apr: Annual Percentage Rate.\n"), 0600))

		faq, err := LoadFAQ(path)
		require.NoError(t, err)
		require.Equal(t, 2, faq.Len())
		assert.Equal(t, "overdraft", faq.Entries()[0].Question)
		assert.Equal(t, "apr", faq.Entries()[1].Question)
	})

	t.Run("malformed json", func(t *testing.T) {
		path := filepath.Join(dir, "broken.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"atm": `), 0600))

		_, err := LoadFAQ(path)
		assert.Error(t, err)
	})

	t.Run("non-string answer", func(t *testing.T) {
		path := filepath.Join(dir, "numbers.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"atm": 42}`), 0600))

		_, err := LoadFAQ(path)
		assert.Error(t, err)
	})
}
