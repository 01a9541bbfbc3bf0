// SPDX-License-Identifier: MIT
package tui

import "github.com/charmbracelet/bubbles/key"

type controlKeys struct {
	FrameDown   key.Binding
	FrameUp     key.Binding
	OverlapUp   key.Binding
	OverlapDown key.Binding
	Bypass      key.Binding
	DepthDown   key.Binding
	DepthUp     key.Binding
	RateDown    key.Binding
	RateUp      key.Binding
	Gate        key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func (k controlKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.FrameDown, k.FrameUp, k.OverlapUp, k.Bypass, k.Help, k.Quit}
}

func (k controlKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.FrameDown, k.FrameUp, k.OverlapUp, k.OverlapDown},
		{k.DepthDown, k.DepthUp, k.RateDown, k.RateUp},
		{k.Bypass, k.Gate, k.Help, k.Quit},
	}
}

var defaultControlKeys = controlKeys{
	FrameDown:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "smaller frame")),
	FrameUp:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "larger frame")),
	OverlapUp:   key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "more overlap")),
	OverlapDown: key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "less overlap")),
	Bypass:      key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "bypass")),
	DepthDown:   key.NewBinding(key.WithKeys("["), key.WithHelp("[", "bit depth -")),
	DepthUp:     key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "bit depth +")),
	RateDown:    key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "bit rate -")),
	RateUp:      key.NewBinding(key.WithKeys("=", "+"), key.WithHelp("=", "bit rate +")),
	Gate:        key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "noise gate")),
	Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}
