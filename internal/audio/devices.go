// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"io"

	"spectra/internal/config"

	"github.com/gordonklaus/portaudio"
)

var ErrDevice = errors.New("audio: device")

// PortAudio entry points, swapped in tests.
var (
	paLibInitialize              = portaudio.Initialize
	paLibTerminate               = portaudio.Terminate
	paLibDevicesFunc             = portaudio.Devices
	paLibDefaultInputDeviceFunc  = portaudio.DefaultInputDevice
	paLibDefaultOutputDeviceFunc = portaudio.DefaultOutputDevice
	paDevicesFunc                = paDevices
)

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := paLibInitialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
func Terminate() error {
	if err := paLibTerminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// paDevices never returns a nil slice without an error.
func paDevices() ([]*portaudio.DeviceInfo, error) {
	devices, err := paLibDevicesFunc()
	if err != nil {
		return nil, err
	}
	if devices == nil {
		devices = []*portaudio.DeviceInfo{}
	}
	return devices, nil
}

// HostDevices returns every device PortAudio reports, indexed by ID.
func HostDevices() ([]Device, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}
	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = newDevice(i, info)
	}
	return devices, nil
}

// InputDevice retrieves the input device for deviceID. MinDeviceID (-1)
// selects the system default.
func InputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	return lookupDevice(deviceID, paLibDefaultInputDeviceFunc, "input", func(d *portaudio.DeviceInfo) bool {
		return d.MaxInputChannels > 0
	})
}

// OutputDevice retrieves the output device for deviceID. MinDeviceID (-1)
// selects the system default.
func OutputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	return lookupDevice(deviceID, paLibDefaultOutputDeviceFunc, "output", func(d *portaudio.DeviceInfo) bool {
		return d.MaxOutputChannels > 0
	})
}

func lookupDevice(deviceID int, defaultDevice func() (*portaudio.DeviceInfo, error),
	kind string, supports func(*portaudio.DeviceInfo) bool) (*portaudio.DeviceInfo, error) {
	devices, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}

	if deviceID == config.MinDeviceID {
		return defaultDevice()
	}
	if deviceID < 0 || deviceID >= len(devices) {
		return nil, fmt.Errorf("%w: invalid device ID: %d", ErrDevice, deviceID)
	}
	if !supports(devices[deviceID]) {
		return nil, fmt.Errorf("%w: device %d (%s) does not support %s",
			ErrDevice, deviceID, devices[deviceID].Name, kind)
	}
	return devices[deviceID], nil
}

// ListDevices prints information about all available audio devices.
func ListDevices(w io.Writer) error {
	infos, err := paDevicesFunc()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nAvailable Audio Devices\n\n")
	for i, info := range infos {
		d := newDevice(i, info)
		fmt.Fprintf(w, "[%d] %s (%s)\n", d.ID, d.Name, d.Kind())
		fmt.Fprintf(w, "    Input channels: %d, Output channels: %d\n", d.MaxInputChannels, d.MaxOutputChannels)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", d.DefaultSampleRate)
		fmt.Fprintf(w, "    Latency: Low=%.2fms, High=%.2fms\n",
			info.DefaultLowInputLatency.Seconds()*1000,
			info.DefaultHighInputLatency.Seconds()*1000)
		fmt.Fprintln(w)
	}
	return nil
}
