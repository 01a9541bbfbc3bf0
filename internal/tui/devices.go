// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"spectra/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)
)

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	ConfigScreen
)

var availableSampleRates = []float64{44100, 48000, 88200, 96000}

// Selection is the device and sample rate picked in the device list.
type Selection struct {
	Device     audio.Device
	SampleRate float64
}

// Flags renders the selection as command line flags.
func (s Selection) Flags() string {
	var parts []string
	if s.Device.MaxInputChannels > 0 {
		parts = append(parts, fmt.Sprintf("--input-device %d", s.Device.ID))
	}
	if s.Device.MaxOutputChannels > 0 {
		parts = append(parts, fmt.Sprintf("--output-device %d", s.Device.ID))
	}
	parts = append(parts, fmt.Sprintf("--sample-rate %.0f", s.SampleRate))
	return strings.Join(parts, " ")
}

// DeviceListModel represents the Bubble Tea model for listing audio devices
type DeviceListModel struct {
	devices       []audio.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType
	selection     *Selection

	sampleRateIndex int

	// Swapped in tests.
	fetch func() ([]audio.Device, error)
}

// Init initializes the Bubble Tea model
func (m DeviceListModel) Init() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		devices, err := fetch()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{devices}
	}
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// Update handles input and updates the model
func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.render()

	case devicesMsg:
		m.devices = msg.devices
		m.render()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, key.NewBinding(key.WithKeys("q", "ctrl+c"))) {
			return m, tea.Quit
		}

		switch m.activeScreen {
		case ListScreen:
			switch {
			case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
				if m.selectedIndex > 0 {
					m.selectedIndex--
				}
			case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
				if m.selectedIndex < len(m.devices)-1 {
					m.selectedIndex++
				}
			case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
				if len(m.devices) > 0 {
					m.activeScreen = ConfigScreen
					m.sampleRateIndex = 0
					for i, rate := range availableSampleRates {
						if rate == m.devices[m.selectedIndex].DefaultSampleRate {
							m.sampleRateIndex = i
							break
						}
					}
				}
			}

		case ConfigScreen:
			switch {
			case key.Matches(msg, key.NewBinding(key.WithKeys("esc"))):
				m.activeScreen = ListScreen
			case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
				if m.sampleRateIndex > 0 {
					m.sampleRateIndex--
				}
			case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
				if m.sampleRateIndex < len(availableSampleRates)-1 {
					m.sampleRateIndex++
				}
			case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
				m.selection = &Selection{
					Device:     m.devices[m.selectedIndex],
					SampleRate: availableSampleRates[m.sampleRateIndex],
				}
				return m, tea.Quit
			}
		}
		m.render()
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *DeviceListModel) render() {
	if !m.ready {
		return
	}
	if m.activeScreen == ConfigScreen {
		m.viewport.SetContent(m.renderDeviceConfig())
	} else {
		m.viewport.SetContent(m.renderDevices())
	}
}

// View renders the UI
func (m DeviceListModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}

	var title, help string
	if m.activeScreen == ListScreen {
		title = titleStyle.Render("Audio Device List")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Configure • q: Quit")
	} else {
		title = titleStyle.Render("Device Configuration")
		help = infoStyle.Render("↑/↓: Change Value • Enter: Use • Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

// renderDevices formats the device list
func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No audio devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		deviceInfo := fmt.Sprintf("[%d] %s (%s)\n", device.ID, device.Name, device.Kind())
		deviceInfo += fmt.Sprintf("    Input channels: %d, Output channels: %d\n",
			device.MaxInputChannels, device.MaxOutputChannels)
		deviceInfo += fmt.Sprintf("    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)

		if i == m.selectedIndex {
			deviceInfo = highlightStyle.Render(deviceInfo)
		}

		sb.WriteString(deviceInfo)
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderDeviceConfig formats the device configuration screen
func (m DeviceListModel) renderDeviceConfig() string {
	var sb strings.Builder
	device := m.devices[m.selectedIndex]

	fmt.Fprintf(&sb, "Configure Device: %s\n\n", device.Name)
	sb.WriteString("Sample Rate:\n")

	for i, rate := range availableSampleRates {
		marker := " "
		if i == m.sampleRateIndex {
			marker = "▶"
		}
		line := fmt.Sprintf("  %s %.0f Hz\n", marker, rate)
		if i == m.sampleRateIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// Selection returns the confirmed choice, or nil if the user quit.
func (m DeviceListModel) Selection() *Selection { return m.selection }

// NewDeviceListModel creates a new device list model
func NewDeviceListModel() DeviceListModel {
	return DeviceListModel{
		activeScreen: ListScreen,
		fetch:        audio.HostDevices,
	}
}

// StartDeviceListUI launches the device browser and returns what the user
// picked, or nil if they quit without choosing.
func StartDeviceListUI() (*Selection, error) {
	p := tea.NewProgram(
		NewDeviceListModel(),
		tea.WithAltScreen(),
	)
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	return final.(DeviceListModel).Selection(), nil
}
