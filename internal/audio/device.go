// SPDX-License-Identifier: MIT
package audio

import "github.com/gordonklaus/portaudio"

// Device represents an audio device
type Device struct {
	ID                int
	Name              string
	HostAPI           string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	IsDefaultInput    bool
	IsDefaultOutput   bool
}

// Kind returns "Input", "Output", "Input/Output" or "".
func (d Device) Kind() string {
	switch {
	case d.MaxInputChannels > 0 && d.MaxOutputChannels > 0:
		return "Input/Output"
	case d.MaxInputChannels > 0:
		return "Input"
	case d.MaxOutputChannels > 0:
		return "Output"
	default:
		return ""
	}
}

func newDevice(id int, info *portaudio.DeviceInfo) Device {
	d := Device{
		ID:                id,
		Name:              info.Name,
		MaxInputChannels:  info.MaxInputChannels,
		MaxOutputChannels: info.MaxOutputChannels,
		DefaultSampleRate: info.DefaultSampleRate,
	}
	if info.HostApi != nil {
		d.HostAPI = info.HostApi.Name
		d.IsDefaultInput = info.HostApi.DefaultInputDevice == info
		d.IsDefaultOutput = info.HostApi.DefaultOutputDevice == info
	}
	return d
}
