// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/gordonklaus/portaudio"
)

func setupPortAudio(t *testing.T) {
	t.Helper()
	if err := Initialize(); err != nil {
		t.Skipf("PortAudio unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := Terminate(); err != nil {
			t.Errorf("Failed to terminate PortAudio: %v", err)
		}
	})
}

// mockDevices replaces the device list for the duration of the test.
func mockDevices(t *testing.T, devices []*portaudio.DeviceInfo, err error) {
	t.Helper()
	orig := paLibDevicesFunc
	t.Cleanup(func() { paLibDevicesFunc = orig })
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return devices, err
	}
}

func fakeDevices() []*portaudio.DeviceInfo {
	api := &portaudio.HostApiInfo{Name: "Mock"}
	devices := []*portaudio.DeviceInfo{
		{Name: "Mic", HostApi: api, MaxInputChannels: 1, DefaultSampleRate: 48000},
		{Name: "Speakers", HostApi: api, MaxOutputChannels: 2, DefaultSampleRate: 48000},
		{Name: "Interface", HostApi: api, MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 44100},
	}
	api.DefaultInputDevice = devices[0]
	api.DefaultOutputDevice = devices[1]
	return devices
}

func TestHostDevices(t *testing.T) {
	setupPortAudio(t)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) == 0 {
		t.Skip("No audio devices found on system")
	}
	for i, d := range devices {
		if d.ID != i {
			t.Errorf("Device ID mismatch: got %d, want %d", d.ID, i)
		}
		if d.Name == "" {
			t.Errorf("Device %d has empty name", i)
		}
		if d.DefaultSampleRate <= 0 {
			t.Errorf("Device %d has invalid sample rate: %f", i, d.DefaultSampleRate)
		}
	}
}

func TestHostDevicesMocked(t *testing.T) {
	mockDevices(t, fakeDevices(), nil)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("got %d devices, want 3", len(devices))
	}

	want := []struct {
		kind          string
		defaultInput  bool
		defaultOutput bool
	}{
		{"Input", true, false},
		{"Output", false, true},
		{"Input/Output", false, false},
	}
	for i, w := range want {
		d := devices[i]
		if d.Kind() != w.kind {
			t.Errorf("device %d kind = %q, want %q", i, d.Kind(), w.kind)
		}
		if d.IsDefaultInput != w.defaultInput || d.IsDefaultOutput != w.defaultOutput {
			t.Errorf("device %d defaults = %v/%v, want %v/%v", i,
				d.IsDefaultInput, d.IsDefaultOutput, w.defaultInput, w.defaultOutput)
		}
		if d.HostAPI != "Mock" {
			t.Errorf("device %d host API = %q", i, d.HostAPI)
		}
	}
}

func TestHostDevices_paDevicesError(t *testing.T) {
	orig := paDevicesFunc
	defer func() { paDevicesFunc = orig }()
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock error")
	}

	_, err := HostDevices()
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestDeviceLookup(t *testing.T) {
	mockDevices(t, fakeDevices(), nil)

	tests := []struct {
		name   string
		lookup func(int) (*portaudio.DeviceInfo, error)
		id     int
		want   string
		substr string
	}{
		{"Input", InputDevice, 0, "Mic", ""},
		{"Duplex as input", InputDevice, 2, "Interface", ""},
		{"Output", OutputDevice, 1, "Speakers", ""},
		{"Duplex as output", OutputDevice, 2, "Interface", ""},
		{"Negative ID", InputDevice, -2, "", "invalid device ID"},
		{"Too high ID", OutputDevice, 13, "", "invalid device ID"},
		{"Non-input device", InputDevice, 1, "", "does not support input"},
		{"Non-output device", OutputDevice, 0, "", "does not support output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := tt.lookup(tt.id)
			if tt.substr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.substr) {
					t.Errorf("Error = %v, want substring %q", err, tt.substr)
				}
				return
			}
			if err != nil {
				t.Fatalf("lookup(%d) error: %v", tt.id, err)
			}
			if dev.Name != tt.want {
				t.Errorf("got %q, want %q", dev.Name, tt.want)
			}
		})
	}
}

func TestInputDevice_paDevicesError(t *testing.T) {
	orig := paDevicesFunc
	defer func() { paDevicesFunc = orig }()
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock error")
	}

	_, err := InputDevice(-1)
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestDefaultDeviceErrors(t *testing.T) {
	mockDevices(t, fakeDevices(), nil)

	origIn, origOut := paLibDefaultInputDeviceFunc, paLibDefaultOutputDeviceFunc
	defer func() {
		paLibDefaultInputDeviceFunc = origIn
		paLibDefaultOutputDeviceFunc = origOut
	}()
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock default input error")
	}
	paLibDefaultOutputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock default output error")
	}

	if _, err := InputDevice(-1); err == nil || !strings.Contains(err.Error(), "mock default input error") {
		t.Errorf("expected mock input error, got %v", err)
	}
	if _, err := OutputDevice(-1); err == nil || !strings.Contains(err.Error(), "mock default output error") {
		t.Errorf("expected mock output error, got %v", err)
	}
}

func TestErrorInitialize(t *testing.T) {
	orig := paLibInitialize
	defer func() { paLibInitialize = orig }()

	paLibInitialize = func() error { return nil }
	if err := Initialize(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibInitialize = func() error { return fmt.Errorf("mock init error") }
	if err := Initialize(); err == nil || !strings.Contains(err.Error(), "mock init error") {
		t.Errorf("expected mock init error, got %v", err)
	}
}

func TestErrorTerminate(t *testing.T) {
	orig := paLibTerminate
	defer func() { paLibTerminate = orig }()

	paLibTerminate = func() error { return nil }
	if err := Terminate(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibTerminate = func() error { return fmt.Errorf("mock term error") }
	if err := Terminate(); err == nil || !strings.Contains(err.Error(), "mock term error") {
		t.Errorf("expected mock term error, got %v", err)
	}
}

func TestNilDevices(t *testing.T) {
	mockDevices(t, nil, nil)

	devices, err := paDevices()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if devices == nil {
		t.Errorf("expected empty slice, got nil")
	}
	if len(devices) != 0 {
		t.Errorf("expected length 0, got %d", len(devices))
	}
}

func TestPortAudioNotInitialized(t *testing.T) {
	mockDevices(t, nil, fmt.Errorf("PortAudio not initialized"))

	devices, err := paDevices()
	if err == nil || !strings.Contains(err.Error(), "PortAudio not initialized") {
		t.Errorf("expected 'PortAudio not initialized' error, got %v", err)
	}
	if devices != nil {
		t.Errorf("expected devices to be nil on error, got %v", devices)
	}
}

func TestListDevices(t *testing.T) {
	mockDevices(t, fakeDevices(), nil)

	var buf bytes.Buffer
	if err := ListDevices(&buf); err != nil {
		t.Fatalf("ListDevices error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"[0] Mic (Input)", "[1] Speakers (Output)", "[2] Interface (Input/Output)", "44100 Hz"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
