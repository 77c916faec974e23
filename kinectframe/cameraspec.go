// Copyright 2020 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

package kinectframe

import "github.com/pkg/errors"

// CameraSpec gives the frame geometry of a stream. NewDepthFrame sizes
// frames from it.
type CameraSpec interface {
	ResX() int
	ResY() int
	FPS() int
}

// Resolution of a frame mode.
type Resolution int

const (
	ResolutionLow Resolution = iota
	ResolutionMedium
	ResolutionHigh
)

// VideoFormat selects the color stream encoding.
type VideoFormat int

const (
	VideoRGB VideoFormat = 0
)

// DepthFormat selects the depth stream encoding.
type DepthFormat int

const (
	Depth11Bit DepthFormat = iota
	Depth10Bit
	Depth11BitPacked
	Depth10BitPacked
	DepthRegistered
	DepthMM
)

// Mode describes the layout of frames delivered on one stream. Only
// the MEDIUM resolution modes that a recording can hold are available.
type Mode struct {
	Resolution          Resolution
	VideoFormat         VideoFormat
	DepthFormat         DepthFormat
	Bytes               int
	Width               int
	Height              int
	DataBitsPerPixel    int
	PaddingBitsPerPixel int
	Framerate           int
	IsValid             bool
}

func (m Mode) ResX() int { return m.Width }
func (m Mode) ResY() int { return m.Height }
func (m Mode) FPS() int  { return m.Framerate }

// FindVideoMode returns the only color mode a recording holds: 640x480
// RGB at 30fps.
func FindVideoMode(res Resolution, f VideoFormat) (Mode, error) {
	if res != ResolutionMedium || f != VideoRGB {
		return Mode{}, errors.Errorf("unsupported video mode (resolution %d, format %d)", res, f)
	}
	return Mode{
		Resolution:       ResolutionMedium,
		VideoFormat:      VideoRGB,
		Bytes:            VideoBytes,
		Width:            Width,
		Height:           Height,
		DataBitsPerPixel: 24,
		Framerate:        30,
		IsValid:          true,
	}, nil
}

// FindDepthMode returns the depth mode for the format requested. Raw
// 11-bit frames can be replayed either as recorded or registered to the
// color camera.
func FindDepthMode(res Resolution, f DepthFormat) (Mode, error) {
	if res != ResolutionMedium || (f != Depth11Bit && f != DepthRegistered) {
		return Mode{}, errors.Errorf("unsupported depth mode (resolution %d, format %d)", res, f)
	}
	return Mode{
		Resolution:          ResolutionMedium,
		DepthFormat:         f,
		Bytes:               DepthBytes,
		Width:               Width,
		Height:              Height,
		DataBitsPerPixel:    11,
		PaddingBitsPerPixel: 5,
		Framerate:           30,
		IsValid:             true,
	}, nil
}
