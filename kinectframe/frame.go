// Copyright 2020 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

package kinectframe

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	Width  = 640
	Height = 480
	Pixels = Width * Height

	// DepthBytes is the size of one depth frame: 16 bits per sample.
	DepthBytes = Pixels * 2
	// VideoBytes is the size of one RGB frame.
	VideoBytes = Pixels * 3
)

// DepthFrame holds one frame of depth samples in raster order.
type DepthFrame []uint16

// NewDepthFrame creates a zeroed frame sized for the camera mode.
func NewDepthFrame(c CameraSpec) DepthFrame {
	return make(DepthFrame, c.ResX()*c.ResY())
}

// At returns the sample at (x, y).
func (f DepthFrame) At(x, y int) uint16 {
	return f[y*Width+x]
}

// Set stores a sample at (x, y).
func (f DepthFrame) Set(x, y int, v uint16) {
	f[y*Width+x] = v
}

// Decode fills the frame from little-endian 16-bit samples. Extra
// trailing bytes are ignored.
func (f DepthFrame) Decode(data []byte) error {
	if len(data) < len(f)*2 {
		return errors.Errorf("depth frame needs %d bytes, got %d", len(f)*2, len(data))
	}
	for i := range f {
		f[i] = binary.LittleEndian.Uint16(data[i*2:])
	}
	return nil
}

// Encode returns the frame as little-endian 16-bit samples.
func (f DepthFrame) Encode() []byte {
	out := make([]byte, len(f)*2)
	for i, v := range f {
		binary.LittleEndian.PutUint16(out[i*2:], v)
	}
	return out
}
