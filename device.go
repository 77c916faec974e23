// Copyright 2018 The Cacophony Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fakenect

import (
	"github.com/pkg/errors"

	"github.com/TheCacophonyProject/go-fakenect/kinectframe"
)

// DepthCallback receives depth frames. depth holds raw 11-bit samples,
// or millimetres in registered mode. It is only valid until the
// callback returns.
type DepthCallback func(dev *Device, depth []uint16, timestamp uint32)

// VideoCallback receives RGB frames. rgb is only valid until the
// callback returns.
type VideoCallback func(dev *Device, rgb []byte, timestamp uint32)

// LEDOption is a front panel LED setting.
type LEDOption int

// LED settings accepted by SetLED. Playback ignores them; the values
// match the device's LED codes, so 5 is unused.
const (
	LEDOff LEDOption = iota
	LEDGreen
	LEDRed
	LEDYellow
	LEDBlinkGreen
	_
	LEDBlinkRedYellow
)

// Subdevice flags for SelectSubdevices.
const (
	DeviceMotor = 1 << iota
	DeviceCamera
	DeviceAudio
)

// Device is the one fake device a Context replays. Settings that only
// matter to real hardware are accepted and ignored.
type Device struct {
	ctx *Context

	depthCB      DepthCallback
	videoCB      VideoCallback
	depthRunning bool
	videoRunning bool
	depthMode    kinectframe.Mode
	videoMode    kinectframe.Mode
	depthBuf     []uint16
	videoBuf     []byte
	user         interface{}
}

func newDevice(c *Context) *Device {
	depthMode, _ := kinectframe.FindDepthMode(kinectframe.ResolutionMedium, kinectframe.Depth11Bit)
	videoMode, _ := kinectframe.FindVideoMode(kinectframe.ResolutionMedium, kinectframe.VideoRGB)
	return &Device{
		ctx:       c,
		depthMode: depthMode,
		videoMode: videoMode,
	}
}

// SetDepthCallback sets the function depth frames are delivered to.
func (d *Device) SetDepthCallback(cb DepthCallback) {
	d.depthCB = cb
}

// SetVideoCallback sets the function RGB frames are delivered to.
func (d *Device) SetVideoCallback(cb VideoCallback) {
	d.videoCB = cb
}

// SetDepthMode selects how depth frames are delivered. Recorded 11-bit
// frames can be delivered as is or registered to the color camera.
// Only the resolution and format of mode are looked at.
func (d *Device) SetDepthMode(mode kinectframe.Mode) error {
	mode, err := kinectframe.FindDepthMode(mode.Resolution, mode.DepthFormat)
	if err != nil {
		return err
	}
	if mode.DepthFormat == kinectframe.DepthRegistered {
		if d.ctx.remapper == nil {
			return errors.New("registered depth mode needs registration data")
		}
		d.ctx.log.Info("playing back 11-bit depth in registered mode")
	}
	d.depthMode = mode
	return nil
}

// DepthMode returns the active depth mode.
func (d *Device) DepthMode() kinectframe.Mode {
	return d.depthMode
}

// SetVideoMode checks that mode is the recorded RGB mode. Only the
// resolution and format of mode are looked at.
func (d *Device) SetVideoMode(mode kinectframe.Mode) error {
	mode, err := kinectframe.FindVideoMode(mode.Resolution, mode.VideoFormat)
	if err != nil {
		return err
	}
	d.videoMode = mode
	return nil
}

// VideoMode returns the active video mode.
func (d *Device) VideoMode() kinectframe.Mode {
	return d.videoMode
}

// SetDepthBuffer makes depth frames be decoded into buf rather than an
// internal frame. Pass nil to go back to the internal frame.
func (d *Device) SetDepthBuffer(buf []uint16) error {
	if buf != nil && len(buf) < kinectframe.Pixels {
		return errors.Errorf("depth buffer holds %d samples, need %d", len(buf), kinectframe.Pixels)
	}
	d.depthBuf = buf
	return nil
}

// SetVideoBuffer makes RGB frames be copied into buf before delivery.
// Pass nil to deliver the recorded data directly.
func (d *Device) SetVideoBuffer(buf []byte) error {
	if buf != nil && len(buf) < kinectframe.VideoBytes {
		return errors.Errorf("video buffer holds %d bytes, need %d", len(buf), kinectframe.VideoBytes)
	}
	d.videoBuf = buf
	return nil
}

// StartDepth starts delivering depth frames to the depth callback.
func (d *Device) StartDepth() error {
	d.depthRunning = true
	return nil
}

// StopDepth stops delivering depth frames.
func (d *Device) StopDepth() error {
	d.depthRunning = false
	return nil
}

// StartVideo starts delivering RGB frames to the video callback.
func (d *Device) StartVideo() error {
	d.videoRunning = true
	return nil
}

// StopVideo stops delivering RGB frames.
func (d *Device) StopVideo() error {
	d.videoRunning = false
	return nil
}

// SetUser attaches an arbitrary value to the device.
func (d *Device) SetUser(user interface{}) {
	d.user = user
}

// User returns the value set with SetUser.
func (d *Device) User() interface{} {
	return d.user
}

// TiltState returns the latest accelerometer reading. The state is
// updated in place as accelerometer records are played.
func (d *Device) TiltState() *kinectframe.TiltState {
	return &d.ctx.tilt
}

// UpdateTiltState is a no-op; the state follows the recording.
func (d *Device) UpdateTiltState() error {
	return nil
}

// SetTiltDegs is a no-op; the recording can't be tilted.
func (d *Device) SetTiltDegs(angle float64) error {
	return nil
}

// SetLED is a no-op.
func (d *Device) SetLED(option LEDOption) error {
	return nil
}

// Close is a no-op; the device lives as long as its Context.
func (d *Device) Close() error {
	return nil
}
