// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"spectra/internal/analysis"
	"spectra/internal/coordinator"
	"spectra/internal/stft"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	DefaultRefresh = 100 * time.Millisecond
	meterWidth     = 32
)

var (
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8A8A8")).
			Width(12)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

// Engine is the part of the coordinator the control screen drives.
type Engine interface {
	Request(coordinator.Settings) error
	DesiredSettings() coordinator.Settings
	FrameOrders() []int
	SetBypass(bool)
	Bypassed() bool
	Snapshot() coordinator.Status
}

// Effect is the bit-crusher control surface.
type Effect interface {
	BitDepth() int
	BitRate() int
	SetBitDepth(int) error
	SetBitRate(int) error
}

// Gate is the input noise gate switch.
type Gate interface {
	Enabled() bool
	Enable()
	Disable()
}

// Meter reports a level per frequency band.
type Meter interface {
	Bands() []analysis.FrequencyBand
	Compute() []float64
}

// ControlOptions wires the control screen. Effect, Gate and Meter are
// optional.
type ControlOptions struct {
	Engine     Engine
	Effect     Effect
	Gate       Gate
	Meter      Meter
	SampleRate float64
	Refresh    time.Duration
}

type tickMsg time.Time

// ControlModel is the Bubble Tea model for live engine control.
type ControlModel struct {
	opts   ControlOptions
	keys   controlKeys
	help   help.Model
	status coordinator.Status
	levels []float64
	err    error
}

// NewControlModel creates a control model and takes a first snapshot.
func NewControlModel(opts ControlOptions) ControlModel {
	if opts.Refresh <= 0 {
		opts.Refresh = DefaultRefresh
	}
	m := ControlModel{
		opts: opts,
		keys: defaultControlKeys,
		help: help.New(),
	}
	m.keys.Gate.SetEnabled(opts.Gate != nil)
	m.keys.DepthDown.SetEnabled(opts.Effect != nil)
	m.keys.DepthUp.SetEnabled(opts.Effect != nil)
	m.keys.RateDown.SetEnabled(opts.Effect != nil)
	m.keys.RateUp.SetEnabled(opts.Effect != nil)
	m.refresh()
	return m
}

func (m ControlModel) tick() tea.Cmd {
	return tea.Tick(m.opts.Refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the refresh ticker.
func (m ControlModel) Init() tea.Cmd {
	return m.tick()
}

func (m *ControlModel) refresh() {
	m.status = m.opts.Engine.Snapshot()
	if m.opts.Meter != nil {
		m.levels = slices.Clone(m.opts.Meter.Compute())
	}
}

// Update handles input and the refresh ticker.
func (m ControlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width

	case tickMsg:
		m.refresh()
		return m, m.tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.FrameDown):
			m.err = m.stepFrameOrder(-1)
		case key.Matches(msg, m.keys.FrameUp):
			m.err = m.stepFrameOrder(1)
		case key.Matches(msg, m.keys.OverlapUp):
			m.err = m.stepOverlapOrder(1)
		case key.Matches(msg, m.keys.OverlapDown):
			m.err = m.stepOverlapOrder(-1)
		case key.Matches(msg, m.keys.Bypass):
			m.opts.Engine.SetBypass(!m.opts.Engine.Bypassed())
			m.err = nil
		case key.Matches(msg, m.keys.DepthDown):
			m.err = m.opts.Effect.SetBitDepth(m.opts.Effect.BitDepth() - 1)
		case key.Matches(msg, m.keys.DepthUp):
			m.err = m.opts.Effect.SetBitDepth(m.opts.Effect.BitDepth() + 1)
		case key.Matches(msg, m.keys.RateDown):
			m.err = m.opts.Effect.SetBitRate(m.opts.Effect.BitRate() - 1)
		case key.Matches(msg, m.keys.RateUp):
			m.err = m.opts.Effect.SetBitRate(m.opts.Effect.BitRate() + 1)
		case key.Matches(msg, m.keys.Gate):
			if m.opts.Gate.Enabled() {
				m.opts.Gate.Disable()
			} else {
				m.opts.Gate.Enable()
			}
		default:
			return m, nil
		}
		m.refresh()
	}
	return m, nil
}

// stepFrameOrder moves to the neighbouring supported frame order, keeping
// the overlap when it still fits the new frame.
func (m ControlModel) stepFrameOrder(step int) error {
	want := m.opts.Engine.DesiredSettings()
	orders := m.opts.Engine.FrameOrders()
	i, _ := slices.BinarySearch(orders, want.FrameOrder)
	i += step
	if i < 0 || i >= len(orders) {
		return nil
	}
	want.FrameOrder = orders[i]
	want.OverlapOrder = min(want.OverlapOrder, want.FrameOrder-1)
	return m.opts.Engine.Request(want)
}

func (m ControlModel) stepOverlapOrder(step int) error {
	want := m.opts.Engine.DesiredSettings()
	want.OverlapOrder += step
	if want.OverlapOrder < stft.MinOverlapOrder {
		return nil
	}
	return m.opts.Engine.Request(want)
}

// View renders the control screen.
func (m ControlModel) View() string {
	var sb strings.Builder
	st := m.status

	sb.WriteString(titleStyle.Render("Spectra"))
	sb.WriteString("\n\n")

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(label))
		sb.WriteString(infoStyle.Render(value))
		sb.WriteString("\n")
	}

	row("Active", describe(st.Active))
	if st.Desired != st.Active {
		row("Requested", highlightStyle.Render(describe(st.Desired)))
	}
	row("Latency", m.latency(st.Latency))
	if st.Bypassed {
		row("Processing", highlightStyle.Render("bypassed"))
	} else {
		row("Processing", "on")
	}
	if m.opts.Effect != nil {
		row("Bit crusher", fmt.Sprintf("depth %d, rate %d", m.opts.Effect.BitDepth(), m.opts.Effect.BitRate()))
	}
	if m.opts.Gate != nil {
		row("Noise gate", onOff(m.opts.Gate.Enabled()))
	}
	row("Switches", fmt.Sprintf("%d committed, %d deferred, %d resets", st.Commits, st.Deferrals, st.Resets))

	sb.WriteString("\n")
	sb.WriteString(m.renderPool())

	if m.opts.Meter != nil && len(m.levels) > 0 {
		sb.WriteString("\n")
		sb.WriteString(m.renderMeters())
	}

	if m.err != nil {
		sb.WriteString("\n")
		sb.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

func describe(s coordinator.Settings) string {
	frame := 1 << s.FrameOrder
	overlap := 1 << s.OverlapOrder
	return fmt.Sprintf("%d-sample frames, %dx overlap, hop %d", frame, overlap, frame/overlap)
}

func (m ControlModel) latency(samples int) string {
	if m.opts.SampleRate <= 0 {
		return fmt.Sprintf("%d samples", samples)
	}
	return fmt.Sprintf("%d samples (%.1f ms)", samples, float64(samples)/m.opts.SampleRate*1000)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// renderPool shows each channel's phase and the state of every instance.
func (m ControlModel) renderPool() string {
	var sb strings.Builder
	st := m.status
	for ch, phase := range st.Phases {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("Channel %d", ch)))
		sb.WriteString(infoStyle.Render(phase.String()))
		sb.WriteString("  ")
		for _, inst := range st.Instances {
			if inst.Channel != ch {
				continue
			}
			cell := fmt.Sprintf("%d:%s ", inst.FrameSize, inst.State)
			switch inst.State {
			case "active":
				sb.WriteString(highlightStyle.Render(cell))
			case "idle":
				sb.WriteString(dimStyle.Render(cell))
			default:
				sb.WriteString(infoStyle.Render(cell))
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m ControlModel) renderMeters() string {
	var sb strings.Builder
	for i, band := range m.opts.Meter.Bands() {
		if i >= len(m.levels) {
			break
		}
		sb.WriteString(labelStyle.Render(band.Name))
		sb.WriteString(meter(m.levels[i]))
		sb.WriteString("\n")
	}
	return sb.String()
}

// meter draws level (linear, 0 to 1) as a bar and its dBFS value.
func meter(level float64) string {
	filled := int(math.Round(max(0, min(1, level)) * meterWidth))
	bar := highlightStyle.Render(strings.Repeat("█", filled)) +
		dimStyle.Render(strings.Repeat("░", meterWidth-filled))
	if level <= 0 {
		return bar + dimStyle.Render("   -inf dB")
	}
	return bar + infoStyle.Render(fmt.Sprintf(" %6.1f dB", 20*math.Log10(level)))
}

// StartControlUI runs the control screen until the user quits or ctx is
// done.
func StartControlUI(ctx context.Context, opts ControlOptions) error {
	p := tea.NewProgram(
		NewControlModel(opts),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
