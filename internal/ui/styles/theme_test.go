// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewThemeExplicit(t *testing.T) {
	tests := []struct {
		name   string
		isDark bool
	}{
		{"dark", true},
		{"light", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			theme := NewTheme(tt.name)
			assert.Equal(t, tt.name, theme.Name)
			assert.Equal(t, tt.isDark, theme.IsDark)
		})
	}
}

func TestNewThemeAutoResolves(t *testing.T) {
	theme := NewTheme("auto")
	assert.Contains(t, []string{"dark", "light"}, theme.Name)
}

func TestFocusedStylesDifferFromUnfocused(t *testing.T) {
	theme := NewTheme("dark")
	assert.NotEqual(t, theme.Sidebar.GetBorderTopForeground(), theme.SidebarFocused.GetBorderTopForeground())
	assert.NotEqual(t, theme.Input.GetBorderTopForeground(), theme.InputFocused.GetBorderTopForeground())
}

func TestRenderDoesNotPanic(t *testing.T) {
	theme := NewTheme("light")
	assert.Contains(t, theme.SidebarSelected.Render("Loans"), "Loans")
	assert.Contains(t, theme.StatusWarning.Render(IndicatorWarning+" changed"), "changed")
}
